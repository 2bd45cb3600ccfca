package meeting

// Participant 描述一位与会者。Moderator 为主持人（由配置的主持人 ID 推导）。
type Participant struct {
	ID          int    `json:"id"`
	Role        string `json:"role"`
	Description string `json:"description"`
	Moderator   bool   `json:"isModerator"`
}

// ParticipantConfig 是创建会议时提交的与会者配置，ID 按提交顺序分配。
type ParticipantConfig struct {
	Role        string `json:"role" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// Preset 是前端可直接使用的会议阵容模板。
type Preset struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Topic        string              `json:"topic"`
	Background   string              `json:"background"`
	Participants []ParticipantConfig `json:"participants"`
}

// Presets 提供内置的会议阵容，第一位默认为主持人。
func Presets() []Preset {
	return []Preset{
		{
			ID:         "product-review",
			Title:      "产品评审会",
			Topic:      "下一季度产品路线图",
			Background: "公司计划在下一季度推出新版本，需要在技术可行性、市场需求与运营成本之间取得平衡。",
			Participants: []ParticipantConfig{
				{Role: "CEO", Description: "具有战略眼光、擅长统筹全局"},
				{Role: "技术总监", Description: "精通系统架构与工程交付"},
				{Role: "市场总监", Description: "熟悉用户需求与品牌推广"},
				{Role: "财务总监", Description: "关注成本控制与投资回报"},
			},
		},
		{
			ID:         "incident-retro",
			Title:      "Incident retrospective",
			Topic:      "Checkout outage root cause",
			Background: "The checkout service was unavailable for 42 minutes after a configuration rollout.",
			Participants: []ParticipantConfig{
				{Role: "Engineering Manager", Description: "facilitates blameless retrospectives"},
				{Role: "SRE", Description: "owns the deployment pipeline and alerting"},
				{Role: "Backend Engineer", Description: "maintains the checkout service"},
			},
		},
	}
}

// FindPreset 按 ID 查找内置阵容。
func FindPreset(id string) (Preset, bool) {
	for _, item := range Presets() {
		if item.ID == id {
			return item, true
		}
	}
	return Preset{}, false
}
