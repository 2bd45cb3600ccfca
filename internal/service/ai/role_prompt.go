package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/agent-meeting/backend/internal/model/meeting"
)

// PromptTemplate defines the structure for participant system prompts
type PromptTemplate struct {
	Duties       []string
	ContextRules []string
	Closing      string
}

// RolePromptManager builds system prompts for the moderator and the experts
type RolePromptManager struct {
	moderator *PromptTemplate
	expert    *PromptTemplate
	roleHints map[string][]string
}

// NewRolePromptManager creates a new prompt manager with default templates
func NewRolePromptManager() *RolePromptManager {
	manager := &RolePromptManager{
		roleHints: make(map[string][]string),
	}
	manager.loadDefaultTemplates()
	return manager
}

// BuildSystemPrompt creates the system prompt for a participant
func (pm *RolePromptManager) BuildSystemPrompt(p meeting.Participant) string {
	template := pm.expert
	if p.Moderator {
		template = pm.moderator
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "你是一位%s的%s。\n\n作为%s，你需要：\n", p.Description, p.Role, p.Role)
	for i, duty := range template.Duties {
		fmt.Fprintf(&builder, "%d. %s\n", i+1, strings.ReplaceAll(duty, "{role}", p.Role))
	}

	if hints := pm.roleHints[strings.ToLower(p.Role)]; len(hints) > 0 {
		builder.WriteString("\n专业关注点：\n- ")
		builder.WriteString(strings.Join(hints, "\n- "))
		builder.WriteString("\n")
	}

	if len(template.ContextRules) > 0 {
		builder.WriteString("\n")
		builder.WriteString(strings.Join(template.ContextRules, "\n- "))
		builder.WriteString("\n")
	}

	builder.WriteString("\n")
	builder.WriteString(template.Closing)
	return builder.String()
}

func (pm *RolePromptManager) loadDefaultTemplates() {
	pm.moderator = &PromptTemplate{
		Duties: []string{
			"管理会议进程，确保讨论有序进行",
			"确保每位与会者都有发言机会",
			"在每轮结束时总结观点，在会议结束时提供深度总结",
			"邀请发言时统一使用\"下一位\"，不要明确指定下一个人的角色和名称",
			"保持专业和权威的语气，避免使用表情符号或过于随意的表达",
			"引导讨论深入，避免重复开场白或偏离主题",
			"会议有最大轮次限制，接近限制时需要及时总结并结束会议",
		},
		ContextRules: []string{
			"【最终总结要求】",
			"提炼核心观点和关键洞察，不要简单罗列发言",
			"将分散观点整合成连贯结论和行动方向",
			"正式宣布会议结束，感谢团队贡献",
			"最终总结中不要安排下一轮议题，不要使用\"下一位\"\"继续讨论\"\"下一轮\"等字眼",
		},
		Closing: "请用中文回复，保持专业和权威的语气。",
	}

	pm.expert = &PromptTemplate{
		Duties: []string{
			"从你的专业角度提供有价值的见解",
			"与其他与会者协作讨论，保持建设性的态度",
			"发言时始终使用你的角色名称：{role}",
			"确保内容的真实性，不得自己创造数据和事实，如有引用请注明出处",
			"保持专业语气，避免使用表情符号或口语化表达",
			"提供具体、可操作的建议",
			"每次发言不超过100个字",
		},
		Closing: "请用中文回复，保持专业和友好的语气。",
	}

	pm.roleHints["技术总监"] = []string{
		"评估技术可行性、架构风险和交付周期",
		"关注系统稳定性与可维护性",
	}
	pm.roleHints["市场总监"] = []string{
		"关注用户需求、竞争格局和品牌定位",
		"用市场反馈验证产品方向",
	}
	pm.roleHints["财务总监"] = []string{
		"评估成本、预算和投资回报",
		"提示现金流与合规风险",
	}
	pm.roleHints["sre"] = []string{
		"focus on detection, mitigation and rollback timelines",
		"propose concrete alerting and runbook changes",
	}
}
