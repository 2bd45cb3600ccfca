package meeting

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/agent-meeting/backend/internal/model/meeting"
)

const openingTemplate = `会议主题：%s
会议背景：%s

作为%s，请开始这次会议，介绍会议主题和背景，并宣布会议开始。`

const roundSummaryTemplate = `会议主题：%s
会议背景：%s

会议对话历史：
%s

发言统计：
%s

作为%s，请对本轮讨论进行总结，包括：
1. 总结本轮讨论的主要观点和成果
2. 分析讨论中的关键问题和建议
3. 为下一轮讨论提出新的方向或问题
4. 鼓励团队继续深入讨论

重要提醒：
- 请保持专业和权威的语气，避免重复开场白
- 不要指定具体的角色名称，统一使用"下一位"或"下一位同事"来邀请发言
- 如果认为讨论已经足够深入，可以宣布会议结束并总结会议成果`

const forceEndTemplate = `会议主题：%s
会议背景：%s

会议对话历史：
%s

发言统计：
%s

当前轮次：%d/%d

作为%s，会议已达到最大轮次限制（%d轮），现在需要结束会议。

请为这次会议生成最终的深度总结发言：
1. 会议核心成果：提炼3-5个最重要的讨论成果
2. 关键洞察分析：分析讨论中揭示的重要发现和深层问题
3. 决策要点：明确需要做出的关键决策和选择
4. 行动计划：制定具体、可执行的后续行动步骤
5. 会议结束：正式宣布会议结束，感谢团队贡献

这是最终总结，不要安排下一轮议题，不要使用"下一位""继续讨论""下一轮"等字眼。`

const participantTemplate = `会议主题：%s
会议背景：%s

会议对话历史：
%s

作为%s，请基于你的专业背景（%s），对当前讨论的话题提供专业见解。

重要提醒：
1. 提供具体、可操作的建议
2. 与会议主题保持高度相关，避免重复之前已经讨论过的内容
3. 发言时始终使用你的角色名称：%s
4. 确保内容的真实性，不得自己创造数据和事实
5. 保持专业语气，避免使用表情符号或过于随意的表达`

const summaryTemplate = `会议主题：%s
会议背景：%s
会议轮次：%d
总发言数：%d

会议讨论内容：
%s

作为%s，请为这次会议生成一份专业的总结报告，包括：
1. 会议主要成果
2. 关键观点和建议
3. 后续行动计划
4. 会议结论`

const fallbackSummaryTemplate = `会议总结报告

会议主题：%s
会议背景：%s
会议轮次：%d
总发言数：%d
参会角色：%s

会议讨论内容：
%s

主要成果：
1. 各位与会者从不同专业角度对主题进行了讨论
2. 形成了多角度的观点和建议
3. 为后续决策提供了参考

会议结束时间：%s`

// promptContext 是生成提示词时所需的状态快照。
type promptContext struct {
	state        meeting.State
	moderator    meeting.Participant
	historyLimit int
}

func (c promptContext) history() string {
	return RenderHistory(c.state.Messages, c.historyLimit)
}

func (c promptContext) opening() string {
	return fmt.Sprintf(openingTemplate, c.state.Topic, c.state.Background, c.moderator.Role)
}

func (c promptContext) roundSummary() string {
	return fmt.Sprintf(roundSummaryTemplate,
		c.state.Topic, c.state.Background, c.history(), speakerStatistics(c.state), c.moderator.Role)
}

func (c promptContext) forceEnd() string {
	return fmt.Sprintf(forceEndTemplate,
		c.state.Topic, c.state.Background, c.history(), speakerStatistics(c.state),
		c.state.CurrentRound, c.state.MaxRounds, c.moderator.Role, c.state.MaxRounds)
}

func (c promptContext) participant(p meeting.Participant) string {
	return fmt.Sprintf(participantTemplate,
		c.state.Topic, c.state.Background, c.history(), p.Role, p.Description, p.Role)
}

func (c promptContext) summary() string {
	return fmt.Sprintf(summaryTemplate,
		c.state.Topic, c.state.Background, c.state.CurrentRound, len(c.state.Messages), c.history(), c.moderator.Role)
}

// fallbackSummary 在生成总结失败时，根据已记录的消息给出固定格式的总结。
func fallbackSummary(state meeting.State, historyLimit int) string {
	roles := make([]string, 0, len(state.Participants))
	for _, p := range state.Participants {
		roles = append(roles, p.Role)
	}

	ended := ""
	if state.EndTime != nil {
		ended = state.EndTime.Format("2006-01-02 15:04:05")
	}

	return fmt.Sprintf(fallbackSummaryTemplate,
		state.Topic, state.Background, state.CurrentRound, len(state.Messages),
		strings.Join(roles, "、"), RenderHistory(state.Messages, historyLimit), ended)
}

// speakerStatistics 按配置顺序列出每位与会者的发言次数。
func speakerStatistics(state meeting.State) string {
	if len(state.SpeakerCounts) == 0 {
		return "暂无发言统计"
	}

	var b strings.Builder
	for i, p := range state.Participants {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s：%d次", p.Role, state.SpeakerCounts[p.ID])
	}
	return b.String()
}
