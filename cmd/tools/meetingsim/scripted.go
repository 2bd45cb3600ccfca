package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/zhouzirui/agent-meeting/backend/internal/model/meeting"
)

// scriptedGenerator 离线生成固定台词，用于在没有 Ark 凭证时演练完整会议流程。
type scriptedGenerator struct {
	endAfter int

	mu     sync.Mutex
	counts map[int]int
}

func newScriptedGenerator(endAfter int) *scriptedGenerator {
	return &scriptedGenerator{endAfter: endAfter, counts: make(map[int]int)}
}

func (g *scriptedGenerator) Generate(_ context.Context, p meeting.Participant, prompt string) (string, error) {
	g.mu.Lock()
	g.counts[p.ID]++
	turn := g.counts[p.ID]
	g.mu.Unlock()

	if !p.Moderator {
		return fmt.Sprintf("作为%s，我的第%d点看法是：在%s方面需要先明确优先级，再安排资源。", p.Role, turn, p.Description), nil
	}

	switch {
	case strings.Contains(prompt, "总结报告"):
		return "会议总结：各方就优先级达成一致，技术方案分两期交付，市场与财务同步跟进预算和推广节奏。", nil
	case turn == 1:
		return "各位好，今天我们围绕议题展开讨论，请各位依次发表看法。", nil
	case g.endAfter > 0 && turn > g.endAfter:
		return "总结一下，本轮讨论已经形成会议结论，会议到此结束。", nil
	default:
		return fmt.Sprintf("感谢各位的发言，这是第%d轮的小结，我们继续深入讨论。", turn-1), nil
	}
}
