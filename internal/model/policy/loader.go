package policy

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidPolicy = errors.New("invalid keyword policy")

// LoadFile 读取 YAML 策略文件，文件中出现的字段覆盖默认表，未出现的字段保持默认值。
// path 为空时直接返回默认表。
func LoadFile(path string) (Policy, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse 将 YAML 内容叠加到默认策略上。
func Parse(raw []byte) (Policy, error) {
	p := Default()
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Policy{}, fmt.Errorf("decode policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate 检查策略表是否可用。
func (p Policy) Validate() error {
	if strings.TrimSpace(p.SentenceTerminators) == "" {
		return fmt.Errorf("%w: sentence_terminators must not be empty", ErrInvalidPolicy)
	}
	if p.MinSummaryIndicators < 1 {
		return fmt.Errorf("%w: min_summary_indicators must be at least 1, got %d", ErrInvalidPolicy, p.MinSummaryIndicators)
	}
	return nil
}
