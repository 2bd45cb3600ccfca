package meeting

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/zhouzirui/agent-meeting/backend/internal/analysis/sanitize"
	"github.com/zhouzirui/agent-meeting/backend/internal/model/meeting"
	"github.com/zhouzirui/agent-meeting/backend/internal/model/policy"
)

const (
	DefaultMaxRounds       = 13
	DefaultGenerateTimeout = 60 * time.Second
)

var (
	ErrGeneratorUnavailable = errors.New("generator not configured")
	errEmptyContent         = errors.New("generator returned empty content")
)

// Generator produces the next contribution for a participant from a prompt.
type Generator interface {
	Generate(ctx context.Context, participant meeting.Participant, prompt string) (string, error)
}

// Options tunes the orchestration engine. Zero values fall back to defaults.
type Options struct {
	ModeratorID     int
	MaxRounds       int
	HistoryLimit    int
	RoundWindow     int
	GenerateTimeout time.Duration
	Now             func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxRounds <= 0 {
		o.MaxRounds = DefaultMaxRounds
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.RoundWindow <= 0 {
		o.RoundWindow = DefaultRoundWindow
	}
	if o.GenerateTimeout < 0 {
		o.GenerateTimeout = 0
	} else if o.GenerateTimeout == 0 {
		o.GenerateTimeout = DefaultGenerateTimeout
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// InitRequest describes a meeting to start.
type InitRequest struct {
	Topic        string                      `json:"topic" validate:"required"`
	Background   string                      `json:"background" validate:"required"`
	Participants []meeting.ParticipantConfig `json:"participants" validate:"required,min=1,dive"`
}

func (r InitRequest) trimmed() InitRequest {
	out := InitRequest{
		Topic:      strings.TrimSpace(r.Topic),
		Background: strings.TrimSpace(r.Background),
	}
	out.Participants = lo.Map(r.Participants, func(cfg meeting.ParticipantConfig, _ int) meeting.ParticipantConfig {
		return meeting.ParticipantConfig{
			Role:        strings.TrimSpace(cfg.Role),
			Description: strings.TrimSpace(cfg.Description),
		}
	})
	return out
}

// ModeratorResult is returned by ModeratorSpeak.
type ModeratorResult struct {
	Message          meeting.Message `json:"message"`
	CurrentRound     int             `json:"currentRound"`
	NextSpeakerID    int             `json:"nextSpeakerId"`
	MeetingShouldEnd bool            `json:"meetingShouldEnd"`
	MeetingEnded     bool            `json:"meetingEnded"`
	ForcedEnd        bool            `json:"forcedEnd"`
}

// ParticipantResult is returned by ParticipantSpeak.
type ParticipantResult struct {
	Message       meeting.Message `json:"message"`
	CurrentRound  int             `json:"currentRound"`
	NextSpeakerID int             `json:"nextSpeakerId"`
	RoundComplete bool            `json:"roundComplete"`
	MeetingEnded  bool            `json:"meetingEnded"`
}

// EndResult is returned by EndMeeting.
type EndResult struct {
	Summary       meeting.Summary `json:"summary"`
	TotalMessages int             `json:"totalMessages"`
	TotalRounds   int             `json:"totalRounds"`
}

// Status is a lightweight view of the meeting used by health checks.
type Status struct {
	MeetingID        string `json:"meetingId"`
	IsActive         bool   `json:"isActive"`
	IsEnding         bool   `json:"isEnding"`
	CurrentRound     int    `json:"currentRound"`
	MaxRounds        int    `json:"maxRounds"`
	Topic            string `json:"topic"`
	ParticipantCount int    `json:"participantCount"`
	MessageCount     int    `json:"messageCount"`
	NextSpeakerID    int    `json:"nextSpeakerId"`
}

// Service owns a single meeting and sequences every turn through the Generator.
type Service struct {
	generator   Generator
	opts        Options
	sanitizer   *sanitize.Sanitizer
	termination *Termination
	scheduler   Scheduler
	validate    *validator.Validate

	// turnMu 保证同一时刻只有一位发言者在生成内容。
	turnMu sync.Mutex

	mu          sync.RWMutex
	state       meeting.State
	epoch       uint64
	finalizing  bool
	nextSpeaker int
}

// NewService wires the orchestration engine. generator may be nil, in which case
// speak operations fail with ErrGeneratorUnavailable and summaries use the fallback template.
func NewService(generator Generator, p policy.Policy, opts Options) (*Service, error) {
	opts = opts.withDefaults()
	if opts.ModeratorID < 0 {
		return nil, fmt.Errorf("moderator id must not be negative, got %d", opts.ModeratorID)
	}

	sanitizer, err := sanitize.New(p)
	if err != nil {
		return nil, fmt.Errorf("build sanitizer: %w", err)
	}
	termination, err := NewTermination(p)
	if err != nil {
		return nil, fmt.Errorf("build termination policy: %w", err)
	}

	s := &Service{
		generator:   generator,
		opts:        opts,
		sanitizer:   sanitizer,
		termination: termination,
		scheduler:   Scheduler{ModeratorID: opts.ModeratorID, Window: opts.RoundWindow},
		validate:    newValidator(),
		nextSpeaker: opts.ModeratorID,
	}
	s.state = s.emptyState()
	return s, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Initialize validates the request and starts a fresh meeting, discarding any previous one.
func (s *Service) Initialize(_ context.Context, req InitRequest) (meeting.State, error) {
	req = req.trimmed()
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := lo.Map(verrs, func(fe validator.FieldError, _ int) string {
				return fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag())
			})
			return meeting.State{}, validationError("invalid meeting config: %s", strings.Join(fields, ", "))
		}
		return meeting.State{}, validationError("invalid meeting config: %v", err)
	}
	if s.opts.ModeratorID >= len(req.Participants) {
		return meeting.State{}, validationError("moderator id %d is out of range for %d participants", s.opts.ModeratorID, len(req.Participants))
	}

	participants := lo.Map(req.Participants, func(cfg meeting.ParticipantConfig, i int) meeting.Participant {
		return meeting.Participant{
			ID:          i,
			Role:        cfg.Role,
			Description: cfg.Description,
			Moderator:   i == s.opts.ModeratorID,
		}
	})
	start := s.opts.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.finalizing = false
	s.nextSpeaker = s.opts.ModeratorID
	s.state = s.emptyState()
	s.state.MeetingID = "meeting_" + uuid.NewString()
	s.state.IsActive = true
	s.state.Topic = req.Topic
	s.state.Background = req.Background
	s.state.Participants = participants
	s.state.StartTime = &start

	log.Printf("[meeting] initialized %s topic=%q participants=%d maxRounds=%d",
		s.state.MeetingID, s.state.Topic, len(participants), s.state.MaxRounds)
	return s.state.Clone(), nil
}

// ModeratorSpeak produces the opening, a round summary, or the forced final summary
// once the round budget is exhausted.
func (s *Service) ModeratorSpeak(ctx context.Context) (ModeratorResult, error) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	s.mu.RLock()
	if err := s.checkSpeakableLocked(); err != nil {
		s.mu.RUnlock()
		return ModeratorResult{}, err
	}
	epoch := s.epoch
	moderator := s.moderatorLocked()
	forced := s.roundLimitReachedLocked()
	opening := len(s.state.Messages) == 0
	pc := s.promptContextLocked()
	s.mu.RUnlock()

	var prompt string
	switch {
	case forced:
		prompt = pc.forceEnd()
	case opening:
		prompt = pc.opening()
	default:
		prompt = pc.roundSummary()
	}

	raw, err := s.generate(ctx, moderator, prompt)
	if err != nil {
		log.Printf("[meeting] moderator generation failed: %v", err)
		return ModeratorResult{}, err
	}
	content := s.sanitizeModerator(raw, opening && !forced, forced)
	shouldEnd := forced || (!opening && s.termination.WantsToEnd(content))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.revalidateLocked(epoch); err != nil {
		return ModeratorResult{}, err
	}

	msg := s.appendLocked(moderator, content)
	next := s.opts.ModeratorID
	if shouldEnd {
		s.state.IsEnding = true
	} else {
		next = s.scheduler.AfterModerator(s.state.Participants)
	}
	s.nextSpeaker = next

	log.Printf("[meeting] moderator spoke round=%d next=%d shouldEnd=%t forced=%t",
		s.state.CurrentRound, next, shouldEnd, forced)

	return ModeratorResult{
		Message:          msg,
		CurrentRound:     s.state.CurrentRound,
		NextSpeakerID:    next,
		MeetingShouldEnd: shouldEnd,
		MeetingEnded:     forced,
		ForcedEnd:        forced,
	}, nil
}

// ParticipantSpeak lets a non-moderator contribute. Participant content is stored as generated.
func (s *Service) ParticipantSpeak(ctx context.Context, id int) (ParticipantResult, error) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	s.mu.RLock()
	if err := s.checkSpeakableLocked(); err != nil {
		s.mu.RUnlock()
		return ParticipantResult{}, err
	}
	if s.roundLimitReachedLocked() {
		s.mu.RUnlock()
		return ParticipantResult{}, stateError(ReasonRoundLimit, "round limit reached, waiting for the moderator's final summary")
	}
	if id < 0 || id >= len(s.state.Participants) {
		s.mu.RUnlock()
		return ParticipantResult{}, participantError(ReasonUnknownParticipant, fmt.Sprintf("unknown participant id %d", id))
	}
	if id == s.opts.ModeratorID {
		s.mu.RUnlock()
		return ParticipantResult{}, participantError(ReasonModeratorNotAllowed, "the moderator speaks through ModeratorSpeak")
	}
	epoch := s.epoch
	speaker := s.state.Participants[id]
	prompt := s.promptContextLocked().participant(speaker)
	s.mu.RUnlock()

	content, err := s.generate(ctx, speaker, prompt)
	if err != nil {
		log.Printf("[meeting] participant %d generation failed: %v", id, err)
		return ParticipantResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.revalidateLocked(epoch); err != nil {
		return ParticipantResult{}, err
	}

	msg := s.appendLocked(speaker, content)
	next, complete := s.scheduler.AfterParticipant(s.state.Participants, s.state.Messages)
	s.nextSpeaker = next

	log.Printf("[meeting] participant %d (%s) spoke round=%d roundComplete=%t next=%d",
		id, speaker.Role, s.state.CurrentRound, complete, next)

	return ParticipantResult{
		Message:       msg,
		CurrentRound:  s.state.CurrentRound,
		NextSpeakerID: next,
		RoundComplete: complete,
		MeetingEnded:  !s.state.IsActive,
	}, nil
}

// EndMeeting finalizes the meeting. Summary generation failures fall back to a
// deterministic template so the meeting always ends once requested.
func (s *Service) EndMeeting(ctx context.Context) (EndResult, error) {
	s.mu.Lock()
	if !s.state.IsActive {
		s.mu.Unlock()
		return EndResult{}, stateError(ReasonNotActive, "meeting is not active")
	}
	if s.finalizing {
		s.mu.Unlock()
		return EndResult{}, stateError(ReasonAlreadyEnding, "meeting is already being finalized")
	}
	s.finalizing = true
	s.state.IsEnding = true
	end := s.opts.Now()
	s.state.EndTime = &end
	s.nextSpeaker = s.opts.ModeratorID
	epoch := s.epoch
	moderator := s.moderatorLocked()
	snapshot := s.state.Clone()
	pc := s.promptContextLocked()
	s.mu.Unlock()

	content, fallback := s.summarize(ctx, moderator, pc, snapshot)
	summary := meeting.Summary{
		Topic:           snapshot.Topic,
		Background:      snapshot.Background,
		TotalRounds:     snapshot.CurrentRound,
		TotalMessages:   len(snapshot.Messages),
		DurationSeconds: snapshot.Duration(end).Seconds(),
		Content:         content,
		Participants:    lo.Map(snapshot.Participants, func(p meeting.Participant, _ int) string { return p.Role }),
		Fallback:        fallback,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		return EndResult{}, stateError(ReasonRestarted, "meeting was restarted while ending")
	}
	s.state.Summary = &summary
	s.state.IsActive = false
	s.finalizing = false

	log.Printf("[meeting] ended %s rounds=%d messages=%d duration=%s fallback=%t",
		s.state.MeetingID, summary.TotalRounds, summary.TotalMessages, summary.FormattedDuration(), fallback)

	return EndResult{
		Summary:       summary,
		TotalMessages: summary.TotalMessages,
		TotalRounds:   summary.TotalRounds,
	}, nil
}

// Restart discards the current meeting. Turns still generating fail with reason restarted.
func (s *Service) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	meetingID := s.state.MeetingID
	s.epoch++
	s.finalizing = false
	s.nextSpeaker = s.opts.ModeratorID
	s.state = s.emptyState()
	log.Printf("[meeting] restarted, discarded %q", meetingID)
}

// State returns a deep copy of the meeting state.
func (s *Service) State() meeting.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Status returns a health snapshot.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		MeetingID:        s.state.MeetingID,
		IsActive:         s.state.IsActive,
		IsEnding:         s.state.IsEnding,
		CurrentRound:     s.state.CurrentRound,
		MaxRounds:        s.state.MaxRounds,
		Topic:            s.state.Topic,
		ParticipantCount: len(s.state.Participants),
		MessageCount:     len(s.state.Messages),
		NextSpeakerID:    s.nextSpeaker,
	}
}

// Transcript renders the full meeting as plain text.
func (s *Service) Transcript() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	started := ""
	if s.state.StartTime != nil {
		started = s.state.StartTime.Format("2006-01-02 15:04:05")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "多智能体会议记录\n会议主题：%s\n会议背景：%s\n会议时间：%s\n总轮次：%d\n总发言数：%d\n\n=== 会议内容 ===\n\n",
		s.state.Topic, s.state.Background, started, s.state.CurrentRound, len(s.state.Messages))
	for _, msg := range s.state.Messages {
		fmt.Fprintf(&b, "[%s] %s: %s\n\n", msg.Timestamp.Format("15:04:05"), msg.Role, msg.Content)
	}
	if s.state.Summary != nil {
		fmt.Fprintf(&b, "=== 会议总结 ===\n\n%s\n", s.state.Summary.Content)
	}
	return b.String()
}

func (s *Service) emptyState() meeting.State {
	return meeting.State{
		MaxRounds:     s.opts.MaxRounds,
		Participants:  []meeting.Participant{},
		Messages:      []meeting.Message{},
		SpeakerCounts: map[int]int{},
	}
}

func (s *Service) checkSpeakableLocked() error {
	if !s.state.IsActive {
		return stateError(ReasonNotActive, "meeting is not active")
	}
	if s.state.IsEnding {
		return stateError(ReasonAlreadyEnding, "meeting is ending")
	}
	return nil
}

// revalidateLocked 在生成结束后重新检查状态，期间被重启或结束的会议不再追加消息。
func (s *Service) revalidateLocked(epoch uint64) error {
	if s.epoch != epoch {
		return stateError(ReasonRestarted, "meeting was restarted during generation")
	}
	return s.checkSpeakableLocked()
}

func (s *Service) roundLimitReachedLocked() bool {
	return s.state.CurrentRound >= s.state.MaxRounds-1
}

func (s *Service) moderatorLocked() meeting.Participant {
	return s.state.Participants[s.opts.ModeratorID]
}

func (s *Service) promptContextLocked() promptContext {
	return promptContext{
		state:        s.state.Clone(),
		moderator:    s.moderatorLocked(),
		historyLimit: s.opts.HistoryLimit,
	}
}

func (s *Service) appendLocked(speaker meeting.Participant, content string) meeting.Message {
	s.state.CurrentRound++
	msg := meeting.Message{
		SpeakerID:   speaker.ID,
		Role:        speaker.Role,
		Content:     content,
		Timestamp:   s.opts.Now(),
		RoundNumber: s.state.CurrentRound,
	}
	s.state.Messages = append(s.state.Messages, msg)
	s.state.SpeakerCounts[speaker.ID]++
	return msg
}

func (s *Service) generate(ctx context.Context, speaker meeting.Participant, prompt string) (string, error) {
	if s.generator == nil {
		return "", generationError(speaker.Role, ErrGeneratorUnavailable)
	}
	if s.opts.GenerateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.GenerateTimeout)
		defer cancel()
	}

	content, err := s.generator.Generate(ctx, speaker, prompt)
	if err != nil {
		return "", generationError(speaker.Role, err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", generationError(speaker.Role, errEmptyContent)
	}
	return content, nil
}

// sanitizeModerator 清理主持人发言；清理后为空时退回只去除口语化标记的原文。
func (s *Service) sanitizeModerator(raw string, opening, final bool) string {
	var out string
	if opening {
		out = s.sanitizer.SanitizeOpening(raw)
	} else {
		out = s.sanitizer.Sanitize(raw, final)
	}
	if out != "" {
		return out
	}

	out = s.sanitizer.SanitizeOpening(raw)
	if final {
		// 最终总结即使回退也不能保留"下一轮""请…发言"之类的句子。
		if stripped := s.sanitizer.StripFinalReferences(out); stripped != "" {
			out = stripped
		}
	}
	if out == "" {
		out = strings.TrimSpace(raw)
	}
	log.Printf("[meeting] sanitized moderator content was empty, keeping lightly cleaned text (%d bytes)", len(out))
	return out
}

func (s *Service) summarize(ctx context.Context, moderator meeting.Participant, pc promptContext, snapshot meeting.State) (string, bool) {
	content, err := s.generate(ctx, moderator, pc.summary())
	if err != nil {
		log.Printf("[meeting] summary generation failed, using fallback: %v", err)
		return fallbackSummary(snapshot, s.opts.HistoryLimit), true
	}
	return content, false
}
