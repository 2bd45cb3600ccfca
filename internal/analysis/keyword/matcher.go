package keyword

import (
	"sort"
	"strings"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Matcher 在文本中同时查找多条短语，大小写不敏感。
// 普通短语由 Aho-Corasick 自动机匹配；带 "*" 的短语要求各片段在文本中按顺序出现。
type Matcher struct {
	machine  *goahocorasick.Machine
	ordered  [][]string
	patterns int
}

// NewMatcher 用给定的短语表构建匹配器。空白短语被忽略，重复短语只保留一条。
func NewMatcher(phrases []string) (*Matcher, error) {
	normalized := lo.Uniq(lo.FilterMap(phrases, func(p string, _ int) (string, bool) {
		p = normalize(p)
		return p, p != "" && strings.Trim(p, "*") != ""
	}))

	plain := make([]string, 0, len(normalized))
	m := &Matcher{}
	for _, phrase := range normalized {
		if strings.Contains(phrase, "*") {
			parts := lo.Filter(strings.Split(phrase, "*"), func(part string, _ int) bool { return part != "" })
			m.ordered = append(m.ordered, parts)
			continue
		}
		plain = append(plain, phrase)
	}
	m.patterns = len(normalized)

	if len(plain) == 0 {
		return m, nil
	}

	sort.Strings(plain)
	patterns := make([][]rune, len(plain))
	for i, phrase := range plain {
		patterns[i] = []rune(phrase)
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	m.machine = machine
	return m, nil
}

// Len 返回有效短语数量。
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return m.patterns
}

// Any 判断文本是否包含任意一条短语。
func (m *Matcher) Any(text string) bool {
	if m.Len() == 0 {
		return false
	}
	content := normalize(text)
	if content == "" {
		return false
	}
	if m.machine != nil && len(m.machine.MultiPatternSearch([]rune(content), true)) > 0 {
		return true
	}
	return lo.SomeBy(m.ordered, func(parts []string) bool { return containsInOrder(content, parts) })
}

// Matches 返回文本中出现过的不同短语，按首次出现位置排序。
func (m *Matcher) Matches(text string) []string {
	if m.Len() == 0 {
		return nil
	}
	content := normalize(text)
	if content == "" {
		return nil
	}

	var found []string
	if m.machine != nil {
		terms := m.machine.MultiPatternSearch([]rune(content), false)
		sort.SliceStable(terms, func(i, j int) bool { return terms[i].Pos < terms[j].Pos })
		for _, term := range terms {
			found = append(found, string(term.Word))
		}
	}
	for _, parts := range m.ordered {
		if containsInOrder(content, parts) {
			found = append(found, strings.Join(parts, "*"))
		}
	}
	return lo.Uniq(found)
}

// Count 返回文本中出现过的不同短语数量。
func (m *Matcher) Count(text string) int {
	return len(m.Matches(text))
}

func containsInOrder(content string, parts []string) bool {
	rest := content
	for _, part := range parts {
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(part):]
	}
	return true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
