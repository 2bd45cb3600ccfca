package meeting_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/agent-meeting/backend/internal/model/meeting"
	"github.com/zhouzirui/agent-meeting/backend/internal/model/policy"
	svc "github.com/zhouzirui/agent-meeting/backend/internal/service/meeting"
)

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   func(p meeting.Participant, prompt string) (string, error)
}

func (g *fakeGenerator) Generate(_ context.Context, p meeting.Participant, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	reply := g.reply
	g.mu.Unlock()

	if reply != nil {
		return reply(p, prompt)
	}
	return fmt.Sprintf("%s的发言", p.Role), nil
}

func (g *fakeGenerator) setReply(fn func(p meeting.Participant, prompt string) (string, error)) {
	g.mu.Lock()
	g.reply = fn
	g.mu.Unlock()
}

func (g *fakeGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

func newService(t *testing.T, gen svc.Generator, opts svc.Options) *svc.Service {
	t.Helper()
	service, err := svc.NewService(gen, policy.Default(), opts)
	require.NoError(t, err)
	return service
}

func startMeeting(t *testing.T, service *svc.Service, roles ...string) meeting.State {
	t.Helper()
	configs := make([]meeting.ParticipantConfig, len(roles))
	for i, role := range roles {
		configs[i] = meeting.ParticipantConfig{Role: role, Description: role + "的职责"}
	}
	state, err := service.Initialize(context.Background(), svc.InitRequest{
		Topic:        "Q3 roadmap",
		Background:   "规划第三季度的产品路线图",
		Participants: configs,
	})
	require.NoError(t, err)
	return state
}

func requireCountsConsistent(t *testing.T, state meeting.State) {
	t.Helper()
	total := 0
	for _, count := range state.SpeakerCounts {
		total += count
	}
	require.Equal(t, len(state.Messages), total)
}

func requireReason(t *testing.T, err error, kind error, reason string) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	require.Equal(t, reason, svc.ReasonOf(err))
}

func TestServiceScenario(t *testing.T) {
	ctx := context.Background()
	service := newService(t, &fakeGenerator{}, svc.Options{})

	state := startMeeting(t, service, "CEO", "Eng", "Marketing")
	require.True(t, state.IsActive)
	require.True(t, state.Participants[0].Moderator)
	require.NotEmpty(t, state.MeetingID)

	mod, err := service.ModeratorSpeak(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, mod.CurrentRound)
	require.Equal(t, 1, mod.NextSpeakerID)
	require.Equal(t, 1, mod.Message.RoundNumber)
	require.False(t, mod.MeetingShouldEnd)
	requireCountsConsistent(t, service.State())

	eng, err := service.ParticipantSpeak(ctx, 1)
	require.NoError(t, err)
	require.False(t, eng.RoundComplete)
	require.Equal(t, 2, eng.NextSpeakerID)
	require.Equal(t, "Eng的发言", eng.Message.Content)
	requireCountsConsistent(t, service.State())

	marketing, err := service.ParticipantSpeak(ctx, 2)
	require.NoError(t, err)
	require.True(t, marketing.RoundComplete)
	require.Equal(t, 0, marketing.NextSpeakerID)
	require.Equal(t, 3, marketing.CurrentRound)
	requireCountsConsistent(t, service.State())

	status := service.Status()
	require.Equal(t, 3, status.MessageCount)
	require.Equal(t, 0, status.NextSpeakerID)
}

func TestServiceRoundCompletesOnLastParticipant(t *testing.T) {
	ctx := context.Background()

	for k := 1; k <= 4; k++ {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			service := newService(t, &fakeGenerator{}, svc.Options{MaxRounds: 50})
			roles := []string{"CEO"}
			for i := 1; i <= k; i++ {
				roles = append(roles, fmt.Sprintf("Expert%d", i))
			}
			startMeeting(t, service, roles...)

			for round := 0; round < 2; round++ {
				mod, err := service.ModeratorSpeak(ctx)
				require.NoError(t, err)
				require.Equal(t, 1, mod.NextSpeakerID)

				next := mod.NextSpeakerID
				for i := 1; i <= k; i++ {
					require.Equal(t, i, next)
					res, err := service.ParticipantSpeak(ctx, next)
					require.NoError(t, err)
					require.Equal(t, i == k, res.RoundComplete, "participant %d of %d", i, k)
					next = res.NextSpeakerID
					requireCountsConsistent(t, service.State())
				}
				require.Equal(t, 0, next)
			}
		})
	}
}

func TestServiceForcedEndAtRoundLimit(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	gen.setReply(func(p meeting.Participant, prompt string) (string, error) {
		if strings.Contains(prompt, "最大轮次限制") {
			return "本次会议形成三项结论。下一轮我们讨论预算。今天的会议到此结束。", nil
		}
		return fmt.Sprintf("%s的发言", p.Role), nil
	})
	service := newService(t, gen, svc.Options{MaxRounds: 5})
	startMeeting(t, service, "CEO", "A", "B", "C")

	_, err := service.ModeratorSpeak(ctx)
	require.NoError(t, err)
	for id := 1; id <= 3; id++ {
		_, err := service.ParticipantSpeak(ctx, id)
		require.NoError(t, err)
	}
	require.Equal(t, 4, service.State().CurrentRound)

	for _, id := range []int{0, 1, 2, 3, 99} {
		_, err := service.ParticipantSpeak(ctx, id)
		requireReason(t, err, svc.ErrInvalidState, svc.ReasonRoundLimit)
	}
	require.Len(t, service.State().Messages, 4)

	final, err := service.ModeratorSpeak(ctx)
	require.NoError(t, err)
	require.True(t, final.ForcedEnd)
	require.True(t, final.MeetingShouldEnd)
	require.Equal(t, 0, final.NextSpeakerID)
	require.Equal(t, "本次会议形成三项结论。今天的会议到此结束。", final.Message.Content)

	state := service.State()
	require.Len(t, state.Messages, 5)
	require.True(t, state.IsEnding)
	require.True(t, state.IsActive)
	require.Nil(t, state.EndTime)
	requireCountsConsistent(t, state)

	_, err = service.ModeratorSpeak(ctx)
	requireReason(t, err, svc.ErrInvalidState, svc.ReasonAlreadyEnding)
	_, err = service.ParticipantSpeak(ctx, 1)
	requireReason(t, err, svc.ErrInvalidState, svc.ReasonAlreadyEnding)
	require.Len(t, service.State().Messages, 5)

	end, err := service.EndMeeting(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, end.TotalMessages)
	require.Equal(t, 5, end.TotalRounds)
	require.False(t, end.Summary.Fallback)
	require.Equal(t, []string{"CEO", "A", "B", "C"}, end.Summary.Participants)

	state = service.State()
	require.False(t, state.IsActive)
	require.NotNil(t, state.EndTime)
	require.NotNil(t, state.Summary)

	_, err = service.EndMeeting(ctx)
	requireReason(t, err, svc.ErrInvalidState, svc.ReasonNotActive)
}

func TestServiceForcedEndSanitizesMultiLineSummary(t *testing.T) {
	ctx := context.Background()
	var forcedReply string
	gen := &fakeGenerator{}
	gen.setReply(func(p meeting.Participant, prompt string) (string, error) {
		if strings.Contains(prompt, "最大轮次限制") {
			return forcedReply, nil
		}
		return fmt.Sprintf("%s的发言", p.Role), nil
	})
	service := newService(t, gen, svc.Options{MaxRounds: 4})

	runToRoundLimit := func() svc.ModeratorResult {
		t.Helper()
		startMeeting(t, service, "CEO", "A", "B")
		_, err := service.ModeratorSpeak(ctx)
		require.NoError(t, err)
		for id := 1; id <= 2; id++ {
			_, err := service.ParticipantSpeak(ctx, id)
			require.NoError(t, err)
		}
		final, err := service.ModeratorSpeak(ctx)
		require.NoError(t, err)
		require.True(t, final.ForcedEnd)
		return final
	}

	forcedReply = "Overall the plan holds.\nlet's get\nstarted on the rollout next week.\n\nIn the next round we revisit pricing."
	final := runToRoundLimit()
	require.Equal(t, "Overall the plan holds.\nlet's get\nstarted on the rollout next week.", final.Message.Content)

	forcedReply = "第一项结论是预算不变。\n自从现在（十月）开始，项目进入交付期。\n\n下一轮我们再讨论市场。请市场总监发言。"
	final = runToRoundLimit()
	require.Equal(t, "第一项结论是预算不变。", final.Message.Content)

	// 整段都被当作开场白时回退到轻度清理，但仍去掉"下一轮"类语句。
	forcedReply = "会议开始。\n下一轮继续。"
	final = runToRoundLimit()
	require.Equal(t, "会议开始。", final.Message.Content)
}

func TestServiceModeratorIntentToEnd(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	gen.setReply(func(p meeting.Participant, prompt string) (string, error) {
		if p.Moderator {
			// 开场白中的总结性词语不触发结束判定。
			return "综上所述，总的来说，今天讨论季度规划。", nil
		}
		return fmt.Sprintf("%s的发言", p.Role), nil
	})
	service := newService(t, gen, svc.Options{})
	startMeeting(t, service, "CEO", "Eng", "Marketing")

	opening, err := service.ModeratorSpeak(ctx)
	require.NoError(t, err)
	require.False(t, opening.MeetingShouldEnd)
	require.Equal(t, 1, opening.NextSpeakerID)

	_, err = service.ParticipantSpeak(ctx, 1)
	require.NoError(t, err)
	_, err = service.ParticipantSpeak(ctx, 2)
	require.NoError(t, err)

	summary, err := service.ModeratorSpeak(ctx)
	require.NoError(t, err)
	require.True(t, summary.MeetingShouldEnd)
	require.False(t, summary.ForcedEnd)
	require.False(t, summary.MeetingEnded)
	require.Equal(t, 0, summary.NextSpeakerID)
	require.True(t, service.State().IsEnding)

	_, err = service.ParticipantSpeak(ctx, 1)
	requireReason(t, err, svc.ErrInvalidState, svc.ReasonAlreadyEnding)

	_, err = service.EndMeeting(ctx)
	require.NoError(t, err)
	require.False(t, service.State().IsActive)
}

func TestServiceSanitizesModeratorContent(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	service := newService(t, gen, svc.Options{})
	startMeeting(t, service, "CEO", "Eng")

	gen.setReply(func(meeting.Participant, string) (string, error) {
		return "各位同事，上午好！今天我们召开会议😀", nil
	})
	opening, err := service.ModeratorSpeak(ctx)
	require.NoError(t, err)
	require.Equal(t, "各位同事，上午好！今天我们召开会议", opening.Message.Content)

	gen.setReply(func(p meeting.Participant, _ string) (string, error) {
		return "我有一些看法（仅供参考）~~", nil
	})
	eng, err := service.ParticipantSpeak(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "我有一些看法（仅供参考）~~", eng.Message.Content)

	gen.setReply(func(meeting.Participant, string) (string, error) {
		return "各位同事，上午好！\n重复开场。\n\n作为CEO，我认为方向正确。", nil
	})
	summary, err := service.ModeratorSpeak(ctx)
	require.NoError(t, err)
	require.Equal(t, "作为CEO，我认为方向正确。", summary.Message.Content)

	_, err = service.ParticipantSpeak(ctx, 1)
	require.NoError(t, err)

	gen.setReply(func(meeting.Participant, string) (string, error) {
		return "会议开始了！", nil
	})
	empty, err := service.ModeratorSpeak(ctx)
	require.NoError(t, err)
	require.Equal(t, "会议开始了！", empty.Message.Content)
}

func TestServiceGenerationErrorLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	service := newService(t, gen, svc.Options{})
	startMeeting(t, service, "CEO", "Eng", "Marketing")

	_, err := service.ModeratorSpeak(ctx)
	require.NoError(t, err)
	before := service.State()

	gen.setReply(func(meeting.Participant, string) (string, error) {
		return "", errors.New("upstream timeout")
	})
	_, err = service.ParticipantSpeak(ctx, 1)
	requireReason(t, err, svc.ErrGeneration, svc.ReasonGenerationFailed)
	require.Equal(t, before.CurrentRound, service.State().CurrentRound)
	require.Len(t, service.State().Messages, len(before.Messages))

	gen.setReply(func(meeting.Participant, string) (string, error) {
		return "   ", nil
	})
	_, err = service.ParticipantSpeak(ctx, 1)
	requireReason(t, err, svc.ErrGeneration, svc.ReasonGenerationFailed)
	requireCountsConsistent(t, service.State())

	gen.setReply(nil)
	res, err := service.ParticipantSpeak(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, res.CurrentRound)
}

func TestServiceRejectsInvalidParticipants(t *testing.T) {
	ctx := context.Background()
	service := newService(t, &fakeGenerator{}, svc.Options{})

	_, err := service.ModeratorSpeak(ctx)
	requireReason(t, err, svc.ErrInvalidState, svc.ReasonNotActive)
	_, err = service.ParticipantSpeak(ctx, 1)
	requireReason(t, err, svc.ErrInvalidState, svc.ReasonNotActive)
	_, err = service.EndMeeting(ctx)
	requireReason(t, err, svc.ErrInvalidState, svc.ReasonNotActive)

	startMeeting(t, service, "CEO", "Eng")

	_, err = service.ParticipantSpeak(ctx, 7)
	requireReason(t, err, svc.ErrInvalidParticipant, svc.ReasonUnknownParticipant)
	_, err = service.ParticipantSpeak(ctx, -1)
	requireReason(t, err, svc.ErrInvalidParticipant, svc.ReasonUnknownParticipant)
	_, err = service.ParticipantSpeak(ctx, 0)
	requireReason(t, err, svc.ErrInvalidParticipant, svc.ReasonModeratorNotAllowed)
	require.Empty(t, service.State().Messages)
}

func TestServiceInitializeValidation(t *testing.T) {
	service := newService(t, &fakeGenerator{}, svc.Options{})
	valid := []meeting.ParticipantConfig{{Role: "CEO", Description: "主持"}, {Role: "Eng", Description: "技术"}}

	cases := map[string]svc.InitRequest{
		"empty topic":         {Topic: "  ", Background: "bg", Participants: valid},
		"empty background":    {Topic: "topic", Background: "", Participants: valid},
		"no participants":     {Topic: "topic", Background: "bg", Participants: []meeting.ParticipantConfig{}},
		"missing role":        {Topic: "topic", Background: "bg", Participants: []meeting.ParticipantConfig{{Role: " ", Description: "d"}}},
		"missing description": {Topic: "topic", Background: "bg", Participants: []meeting.ParticipantConfig{{Role: "CEO"}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := service.Initialize(context.Background(), req)
			requireReason(t, err, svc.ErrValidation, svc.ReasonValidationFailed)
			require.False(t, service.State().IsActive)
		})
	}

	outOfRange := newService(t, &fakeGenerator{}, svc.Options{ModeratorID: 2})
	_, err := outOfRange.Initialize(context.Background(), svc.InitRequest{Topic: "t", Background: "b", Participants: valid})
	requireReason(t, err, svc.ErrValidation, svc.ReasonValidationFailed)

	_, err = svc.NewService(&fakeGenerator{}, policy.Default(), svc.Options{ModeratorID: -1})
	require.Error(t, err)
}

func TestServiceRestartDuringParticipantTurn(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	gen := &fakeGenerator{}
	gen.setReply(func(p meeting.Participant, _ string) (string, error) {
		if !p.Moderator {
			once.Do(func() { close(started) })
			<-release
		}
		return fmt.Sprintf("%s的发言", p.Role), nil
	})
	service := newService(t, gen, svc.Options{})
	startMeeting(t, service, "CEO", "Eng", "Marketing")

	_, err := service.ModeratorSpeak(ctx)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := service.ParticipantSpeak(ctx, 1)
		errCh <- err
	}()

	<-started
	service.Restart()

	state := service.State()
	require.False(t, state.IsActive)
	require.Equal(t, 0, state.CurrentRound)
	require.Empty(t, state.Messages)

	close(release)
	err = <-errCh
	requireReason(t, err, svc.ErrInvalidState, svc.ReasonRestarted)

	state = service.State()
	require.Empty(t, state.Messages)
	requireCountsConsistent(t, state)
}

func TestServiceEndDuringParticipantTurn(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	gen := &fakeGenerator{}
	gen.setReply(func(p meeting.Participant, _ string) (string, error) {
		if !p.Moderator {
			once.Do(func() { close(started) })
			<-release
		}
		return fmt.Sprintf("%s的发言", p.Role), nil
	})
	service := newService(t, gen, svc.Options{})
	startMeeting(t, service, "CEO", "Eng")

	_, err := service.ModeratorSpeak(ctx)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := service.ParticipantSpeak(ctx, 1)
		errCh <- err
	}()

	<-started
	end, err := service.EndMeeting(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, end.TotalMessages)

	close(release)
	err = <-errCh
	require.ErrorIs(t, err, svc.ErrInvalidState)
	require.Len(t, service.State().Messages, 1)
}

func TestServiceConcurrentEndIsRejected(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})

	gen := &fakeGenerator{}
	service := newService(t, gen, svc.Options{})
	startMeeting(t, service, "CEO", "Eng")
	_, err := service.ModeratorSpeak(ctx)
	require.NoError(t, err)

	gen.setReply(func(meeting.Participant, string) (string, error) {
		close(started)
		<-release
		return "会议总结", nil
	})

	resCh := make(chan svc.EndResult, 1)
	go func() {
		res, _ := service.EndMeeting(ctx)
		resCh <- res
	}()

	<-started
	_, err = service.EndMeeting(ctx)
	requireReason(t, err, svc.ErrInvalidState, svc.ReasonAlreadyEnding)
	_, err = service.ModeratorSpeak(ctx)
	requireReason(t, err, svc.ErrInvalidState, svc.ReasonAlreadyEnding)

	close(release)
	res := <-resCh
	require.Equal(t, "会议总结", res.Summary.Content)
	require.False(t, service.State().IsActive)
}

func TestServiceSummaryFallback(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	service := newService(t, gen, svc.Options{})
	startMeeting(t, service, "CEO", "Eng")

	_, err := service.ModeratorSpeak(ctx)
	require.NoError(t, err)

	gen.setReply(func(meeting.Participant, string) (string, error) {
		return "", errors.New("model unavailable")
	})
	end, err := service.EndMeeting(ctx)
	require.NoError(t, err)
	require.True(t, end.Summary.Fallback)
	require.Contains(t, end.Summary.Content, "会议总结报告")
	require.Contains(t, end.Summary.Content, "Q3 roadmap")
	require.Contains(t, end.Summary.Content, "CEO: CEO的发言")
	require.Contains(t, gen.lastPrompt(), "总结报告")
	require.False(t, service.State().IsActive)
}

func TestServiceWithoutGenerator(t *testing.T) {
	ctx := context.Background()
	service := newService(t, nil, svc.Options{})
	startMeeting(t, service, "CEO", "Eng")

	_, err := service.ModeratorSpeak(ctx)
	require.ErrorIs(t, err, svc.ErrGeneration)
	require.ErrorIs(t, err, svc.ErrGeneratorUnavailable)

	end, err := service.EndMeeting(ctx)
	require.NoError(t, err)
	require.True(t, end.Summary.Fallback)
	require.Contains(t, end.Summary.Content, "这是会议的开始。")
}

func TestServiceTranscriptAndPrompts(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	service := newService(t, gen, svc.Options{})
	startMeeting(t, service, "CEO", "Eng")

	_, err := service.ModeratorSpeak(ctx)
	require.NoError(t, err)
	require.Contains(t, gen.lastPrompt(), "请开始这次会议")

	_, err = service.ParticipantSpeak(ctx, 1)
	require.NoError(t, err)
	prompt := gen.lastPrompt()
	require.Contains(t, prompt, "作为Eng")
	require.Contains(t, prompt, "CEO: CEO的发言")

	_, err = service.ModeratorSpeak(ctx)
	require.NoError(t, err)
	prompt = gen.lastPrompt()
	require.Contains(t, prompt, "请对本轮讨论进行总结")
	require.Contains(t, prompt, "- Eng：1次")

	transcript := service.Transcript()
	require.Contains(t, transcript, "多智能体会议记录")
	require.Contains(t, transcript, "会议主题：Q3 roadmap")
	require.Contains(t, transcript, "Eng: Eng的发言")
}
