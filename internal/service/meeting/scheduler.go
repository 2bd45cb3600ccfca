package meeting

import (
	"github.com/samber/lo"

	"github.com/zhouzirui/agent-meeting/backend/internal/model/meeting"
)

// DefaultRoundWindow 是判断轮次完成时回看的消息条数。
const DefaultRoundWindow = 10

// Scheduler 按与会者的配置顺序决定下一位发言者。
type Scheduler struct {
	ModeratorID int
	Window      int
}

// AfterModerator 返回主持人发言后的下一位：配置顺序中的第一位非主持人；
// 没有其他与会者时返回主持人自己。
func (s Scheduler) AfterModerator(participants []meeting.Participant) int {
	experts := s.experts(participants)
	if len(experts) == 0 {
		return s.ModeratorID
	}
	return experts[0]
}

// AfterParticipant 返回与会者发言后的下一位以及本轮是否已完成。
// 本轮完成时下一位为主持人；否则为本轮最后一位非主持人发言者的循环后继。
func (s Scheduler) AfterParticipant(participants []meeting.Participant, messages []meeting.Message) (int, bool) {
	if s.RoundComplete(participants, messages) {
		return s.ModeratorID, true
	}

	experts := s.experts(participants)
	segment := s.currentSegment(participants, messages)
	last, _, ok := lo.FindLastIndexOf(segment, func(msg meeting.Message) bool {
		return msg.SpeakerID != s.ModeratorID && lo.Contains(experts, msg.SpeakerID)
	})
	if !ok {
		return experts[0], false
	}

	idx := lo.IndexOf(experts, last.SpeakerID)
	return experts[(idx+1)%len(experts)], false
}

// RoundComplete 判断当前轮次中所有非主持人是否都已发言。
func (s Scheduler) RoundComplete(participants []meeting.Participant, messages []meeting.Message) bool {
	spoken := lo.SliceToMap(s.currentSegment(participants, messages), func(msg meeting.Message) (int, struct{}) {
		return msg.SpeakerID, struct{}{}
	})
	return lo.EveryBy(s.experts(participants), func(id int) bool {
		_, ok := spoken[id]
		return ok
	})
}

// currentSegment 取回看窗口内最近一条主持人消息之后的所有消息；窗口内没有主持人消息时返回整个窗口。
func (s Scheduler) currentSegment(participants []meeting.Participant, messages []meeting.Message) []meeting.Message {
	window := s.Window
	if window <= 0 {
		window = DefaultRoundWindow
	}
	if window < len(participants) {
		window = len(participants)
	}
	if len(messages) > window {
		messages = messages[len(messages)-window:]
	}

	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].SpeakerID == s.ModeratorID {
			return messages[i+1:]
		}
	}
	return messages
}

func (s Scheduler) experts(participants []meeting.Participant) []int {
	return lo.FilterMap(participants, func(p meeting.Participant, _ int) (int, bool) {
		return p.ID, p.ID != s.ModeratorID
	})
}
