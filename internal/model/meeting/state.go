package meeting

import (
	"fmt"
	"time"
)

// State 是会议的完整状态快照。
type State struct {
	MeetingID     string        `json:"meetingId,omitempty"`
	IsActive      bool          `json:"isActive"`
	IsEnding      bool          `json:"isEnding"`
	CurrentRound  int           `json:"currentRound"`
	MaxRounds     int           `json:"maxRounds"`
	Topic         string        `json:"topic"`
	Background    string        `json:"background"`
	Participants  []Participant `json:"participants"`
	Messages      []Message     `json:"messages"`
	SpeakerCounts map[int]int   `json:"speakerCounts"`
	StartTime     *time.Time    `json:"startTime,omitempty"`
	EndTime       *time.Time    `json:"endTime,omitempty"`
	Summary       *Summary      `json:"summary,omitempty"`
}

// Clone 返回深拷贝，调用方可以随意修改。
func (s State) Clone() State {
	out := s
	out.Participants = append([]Participant(nil), s.Participants...)
	out.Messages = append([]Message(nil), s.Messages...)
	out.SpeakerCounts = make(map[int]int, len(s.SpeakerCounts))
	for id, count := range s.SpeakerCounts {
		out.SpeakerCounts[id] = count
	}
	if s.StartTime != nil {
		start := *s.StartTime
		out.StartTime = &start
	}
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	if s.Summary != nil {
		summary := *s.Summary
		summary.Participants = append([]string(nil), s.Summary.Participants...)
		out.Summary = &summary
	}
	return out
}

// Duration 返回会议持续时间；未结束时以 now 计算。
func (s State) Duration(now time.Time) time.Duration {
	if s.StartTime == nil {
		return 0
	}
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	return end.Sub(*s.StartTime)
}

// Summary 是会议结束时生成的总结。
type Summary struct {
	Topic           string   `json:"topic"`
	Background      string   `json:"background"`
	TotalRounds     int      `json:"totalRounds"`
	TotalMessages   int      `json:"totalMessages"`
	DurationSeconds float64  `json:"durationSeconds"`
	Content         string   `json:"content"`
	Participants    []string `json:"participants"`
	Fallback        bool     `json:"fallback"`
}

// FormattedDuration 以"X小时Y分钟Z秒"格式输出持续时间。
func (s Summary) FormattedDuration() string {
	return FormatDuration(time.Duration(s.DurationSeconds * float64(time.Second)))
}

// FormatDuration 按小时、分钟、秒格式化时长。
func FormatDuration(d time.Duration) string {
	total := int(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%d小时%d分钟%d秒", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%d分钟%d秒", minutes, seconds)
	default:
		return fmt.Sprintf("%d秒", seconds)
	}
}
