package meeting

import (
	"strings"

	"github.com/zhouzirui/agent-meeting/backend/internal/model/meeting"
)

const (
	// DefaultHistoryLimit 是拼接提示词时保留的最近消息条数。
	DefaultHistoryLimit = 20
	// EmptyHistory 在还没有任何发言时代替对话历史。
	EmptyHistory = "这是会议的开始。"
)

// RenderHistory 将最近 maxEntries 条消息渲染为 "角色: 内容"，按原顺序换行拼接。
// maxEntries 不大于 0 时使用 DefaultHistoryLimit。
func RenderHistory(messages []meeting.Message, maxEntries int) string {
	if len(messages) == 0 {
		return EmptyHistory
	}
	if maxEntries <= 0 {
		maxEntries = DefaultHistoryLimit
	}
	if len(messages) > maxEntries {
		messages = messages[len(messages)-maxEntries:]
	}

	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
	}
	return b.String()
}
