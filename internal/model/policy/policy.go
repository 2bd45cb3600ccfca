package policy

// Policy 汇总会议引擎使用的关键词表。
// 各表均为有序字符串列表，可通过 YAML 文件整体替换，无需改动调度逻辑。
type Policy struct {
	// OpeningPhrases 命中后开始丢弃主持人重复的开场白。
	OpeningPhrases []string `yaml:"opening_phrases" json:"openingPhrases"`
	// ResumptionPrefixes 以这些前缀开头的行恢复正常内容。
	ResumptionPrefixes []string `yaml:"resumption_prefixes" json:"resumptionPrefixes"`
	// EndPhrases 明确表示结束会议的短语。
	EndPhrases []string `yaml:"end_phrases" json:"endPhrases"`
	// SummaryIndicators 总结性语句的指示词。
	SummaryIndicators []string `yaml:"summary_indicators" json:"summaryIndicators"`
	// ContinuationPhrases 出现时说明主持人仍希望继续讨论。
	ContinuationPhrases []string `yaml:"continuation_phrases" json:"continuationPhrases"`
	// FinalReferenceTriggers 最终总结中需要整句删除的触发词，"*" 表示同一句内按顺序出现。
	FinalReferenceTriggers []string `yaml:"final_reference_triggers" json:"finalReferenceTriggers"`
	// SentenceTerminators 句子结束标点。
	SentenceTerminators string `yaml:"sentence_terminators" json:"sentenceTerminators"`
	// MinSummaryIndicators 判定"意图结束"所需的最少总结指示词数量。
	MinSummaryIndicators int `yaml:"min_summary_indicators" json:"minSummaryIndicators"`
}

// Default 返回内置的中英文关键词表。
func Default() Policy {
	return Policy{
		OpeningPhrases: []string{
			"我们现在开始", "今天召开", "会议开始", "各位同事，上午好", "今天我们召开",
			"开始这次会议", "会议正式开始", "现在开始", "开始会议", "会议现在开始",
			"召开会议", "开始这次",
			"good morning everyone", "welcome to today's meeting", "let's get started",
			"i call this meeting to order",
		},
		ResumptionPrefixes: []string{
			"作为", "根据", "基于", "关于", "针对",
			"As ", "Based on", "Regarding", "With regard to",
		},
		EndPhrases: []string{
			"会议结束", "结束会议", "会议到此结束",
			"meeting is adjourned", "this concludes the meeting", "end the meeting here",
		},
		SummaryIndicators: []string{
			"总结一下", "总的来说", "综上所述", "会议总结", "总结会议", "会议成果", "会议结论",
			"to summarize", "in summary", "in conclusion", "overall outcome",
		},
		ContinuationPhrases: []string{
			"下一位", "继续",
			"next speaker", "continue",
		},
		FinalReferenceTriggers: []string{
			"下一位", "继续讨论", "下一轮", "请*发言", "邀请*发言", "让我们*继续", "接下来",
			"next speaker", "next round", "continue the discussion", "invite*to speak",
		},
		SentenceTerminators:  "。！？.!?",
		MinSummaryIndicators: 2,
	}
}
