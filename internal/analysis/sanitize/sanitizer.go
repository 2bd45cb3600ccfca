package sanitize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/zhouzirui/agent-meeting/backend/internal/analysis/keyword"
	"github.com/zhouzirui/agent-meeting/backend/internal/model/policy"
)

var (
	emojiPattern       = regexp.MustCompile(`[\x{1F000}-\x{1FAFF}\x{2600}-\x{27BF}\x{FE0F}\x{200D}]`)
	repeatedBangs      = regexp.MustCompile(`[!！]{2,}`)
	repeatedQuestions  = regexp.MustCompile(`[?？]{2,}`)
	tildes             = regexp.MustCompile(`[~～]+`)
	parentheticalAside = regexp.MustCompile(`（[^（）\n]*）|\([^()\n]*\)`)
	horizontalSpace    = regexp.MustCompile(`[^\S\n]+`)
)

// BoundaryFunc 判断一个字符是否为句子结束符。
type BoundaryFunc func(r rune) bool

// TerminatorBoundary 由一组结束标点构造句子边界判断函数。
func TerminatorBoundary(terminators string) BoundaryFunc {
	set := make(map[rune]struct{}, len(terminators))
	for _, r := range terminators {
		if !unicode.IsSpace(r) {
			set[r] = struct{}{}
		}
	}
	return func(r rune) bool {
		_, ok := set[r]
		return ok
	}
}

// Sanitizer 清理主持人发言：去除重复开场白、口语化标记，以及最终总结中的"下一位"类语句。
type Sanitizer struct {
	opening    *keyword.Matcher
	resumption []string
	finalRefs  *keyword.Matcher
	boundary   BoundaryFunc
}

// New 根据策略表创建清理器。
func New(p policy.Policy) (*Sanitizer, error) {
	opening, err := keyword.NewMatcher(p.OpeningPhrases)
	if err != nil {
		return nil, fmt.Errorf("build opening matcher: %w", err)
	}
	finalRefs, err := keyword.NewMatcher(p.FinalReferenceTriggers)
	if err != nil {
		return nil, fmt.Errorf("build final reference matcher: %w", err)
	}

	resumption := lo.FilterMap(p.ResumptionPrefixes, func(prefix string, _ int) (string, bool) {
		prefix = strings.ToLower(strings.TrimLeft(prefix, " \t"))
		return prefix, strings.TrimSpace(prefix) != ""
	})

	return &Sanitizer{
		opening:    opening,
		resumption: resumption,
		finalRefs:  finalRefs,
		boundary:   TerminatorBoundary(p.SentenceTerminators),
	}, nil
}

// WithBoundary 替换句子边界判断函数，便于适配其他书写系统。
func (s *Sanitizer) WithBoundary(fn BoundaryFunc) *Sanitizer {
	if fn != nil {
		s.boundary = fn
	}
	return s
}

// Sanitize 依次执行开场白清理、口语化标记清理，以及（最终总结时）"下一位"类语句清理。
// 流水线重复执行直到输出不再变化，因此结果是幂等的。各阶段都保留换行，
// 开场白清理在每一轮都按原有的行结构工作，不会因为空白压缩而把整段当作一行丢弃。
func (s *Sanitizer) Sanitize(text string, isFinalSummary bool) string {
	current := text
	for {
		next := s.pass(current, isFinalSummary)
		if next == current {
			return next
		}
		current = next
	}
}

// SanitizeOpening 仅清理口语化标记，用于会议的第一条主持人发言。
func (s *Sanitizer) SanitizeOpening(text string) string {
	current := text
	for {
		next := StripInformal(current)
		if next == current {
			return next
		}
		current = next
	}
}

func (s *Sanitizer) pass(text string, isFinalSummary bool) string {
	out := s.StripOpening(text)
	out = StripInformal(out)
	if isFinalSummary {
		out = s.StripFinalReferences(out)
	}
	return out
}

// StripOpening 按行扫描，命中开场白短语后丢弃后续行，直到遇到空行或以恢复前缀开头的行。
func (s *Sanitizer) StripOpening(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	skipping := false

	for _, line := range lines {
		if s.opening.Any(line) {
			skipping = true
			continue
		}
		if skipping && (strings.TrimSpace(line) == "" || s.resumes(line)) {
			skipping = false
		}
		if !skipping {
			kept = append(kept, line)
		}
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func (s *Sanitizer) resumes(line string) bool {
	trimmed := strings.ToLower(strings.TrimLeft(line, " \t"))
	return lo.SomeBy(s.resumption, func(prefix string) bool {
		return strings.HasPrefix(trimmed, prefix)
	})
}

// StripInformal 去除表情符号、连续的感叹号/问号、波浪号和括号旁白，并压缩空白。
// 行内空白压缩为单个空格，连续空行合并为一个空行。
func StripInformal(text string) string {
	out := emojiPattern.ReplaceAllString(text, "")
	out = repeatedBangs.ReplaceAllString(out, "")
	out = repeatedQuestions.ReplaceAllString(out, "")
	out = tildes.ReplaceAllString(out, "")
	out = parentheticalAside.ReplaceAllString(out, "")
	return collapse(out)
}

// StripFinalReferences 删除包含"下一位""下一轮""继续讨论"等触发词的整句。
func (s *Sanitizer) StripFinalReferences(text string) string {
	if s.finalRefs.Len() == 0 {
		return collapse(text)
	}

	sentences := s.splitSentences(text)
	kept := lo.Filter(sentences, func(sentence string, _ int) bool {
		return !s.finalRefs.Any(sentence)
	})
	return collapse(strings.Join(kept, ""))
}

// splitSentences 按边界函数切分句子，换行同样结束一句；句末标点归属于所在句子，末尾没有标点的片段也算一句。
func (s *Sanitizer) splitSentences(text string) []string {
	var (
		sentences []string
		current   strings.Builder
	)
	for _, r := range text {
		current.WriteRune(r)
		if r == '\n' || s.boundary(r) {
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

func collapse(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
		if line == "" {
			if len(kept) > 0 && !blank {
				kept = append(kept, "")
			}
			blank = true
			continue
		}
		blank = false
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
