package meeting

import (
	"fmt"

	"github.com/zhouzirui/agent-meeting/backend/internal/analysis/keyword"
	"github.com/zhouzirui/agent-meeting/backend/internal/model/policy"
)

// Termination 根据主持人发言判断其是否希望结束会议。
type Termination struct {
	end          *keyword.Matcher
	summary      *keyword.Matcher
	continuation *keyword.Matcher
	minSummary   int
}

// NewTermination 由策略表构建结束判定。
func NewTermination(p policy.Policy) (*Termination, error) {
	end, err := keyword.NewMatcher(p.EndPhrases)
	if err != nil {
		return nil, fmt.Errorf("build end matcher: %w", err)
	}
	summary, err := keyword.NewMatcher(p.SummaryIndicators)
	if err != nil {
		return nil, fmt.Errorf("build summary matcher: %w", err)
	}
	continuation, err := keyword.NewMatcher(p.ContinuationPhrases)
	if err != nil {
		return nil, fmt.Errorf("build continuation matcher: %w", err)
	}

	minSummary := p.MinSummaryIndicators
	if minSummary < 1 {
		minSummary = 2
	}

	return &Termination{
		end:          end,
		summary:      summary,
		continuation: continuation,
		minSummary:   minSummary,
	}, nil
}

// WantsToEnd 在出现明确的结束短语，或出现足够多的总结指示词且没有继续讨论的短语时返回 true。
func (t *Termination) WantsToEnd(content string) bool {
	if t.end.Any(content) {
		return true
	}
	return t.summary.Count(content) >= t.minSummary && !t.continuation.Any(content)
}
