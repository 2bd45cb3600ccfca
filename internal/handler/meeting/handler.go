package meeting

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/agent-meeting/backend/internal/model/meeting"
	"github.com/zhouzirui/agent-meeting/backend/internal/service/events"
	meetingService "github.com/zhouzirui/agent-meeting/backend/internal/service/meeting"
	"github.com/zhouzirui/agent-meeting/backend/pkg/utils"
)

// Handler 会议服务的HTTP处理器
type Handler struct {
	svc       *meetingService.Service
	hub       *events.Hub
	aiEnabled bool
}

// New 创建会议处理器。hub 可以为 nil，此时不推送事件。
func New(svc *meetingService.Service, hub *events.Hub, aiEnabled bool) *Handler {
	return &Handler{svc: svc, hub: hub, aiEnabled: aiEnabled}
}

// RegisterRoutes 注册会议相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/presets", h.handlePresets)

	r.Route("/meeting", func(m chi.Router) {
		m.Post("/start", h.handleStart)
		m.Post("/moderator/speak", h.handleModeratorSpeak)
		m.Post("/participants/{id}/speak", h.handleParticipantSpeak)
		m.Post("/end", h.handleEnd)
		m.Post("/restart", h.handleRestart)
		m.Get("/state", h.handleState)
		m.Get("/transcript", h.handleTranscript)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"status":  "healthy",
		"ai":      h.aiEnabled,
		"meeting": h.svc.Status(),
	}
	if h.hub != nil {
		payload["subscribers"] = h.hub.Subscribers()
	}
	utils.RespondJSON(w, http.StatusOK, payload)
}

func (h *Handler) handlePresets(w http.ResponseWriter, _ *http.Request) {
	utils.RespondSuccess(w, http.StatusOK, map[string]any{"presets": meeting.Presets()})
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req meetingService.InitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondFailure(w, http.StatusBadRequest, "invalid request body", meetingService.ReasonValidationFailed)
		return
	}

	state, err := h.svc.Initialize(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	h.publish(events.TypeMeetingStarted, state)
	utils.RespondSuccess(w, http.StatusCreated, map[string]any{"state": state})
}

type moderatorResponse struct {
	meetingService.ModeratorResult
	Message meeting.Delivery `json:"message"`
}

func (h *Handler) handleModeratorSpeak(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ModeratorSpeak(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondSuccess(w, http.StatusOK, moderatorResponse{
		ModeratorResult: result,
		Message:         h.deliver(result.Message),
	})
}

type participantResponse struct {
	meetingService.ParticipantResult
	Message meeting.Delivery `json:"message"`
}

func (h *Handler) handleParticipantSpeak(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		utils.RespondFailure(w, http.StatusBadRequest, "participant id must be an integer", meetingService.ReasonUnknownParticipant)
		return
	}

	result, err := h.svc.ParticipantSpeak(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondSuccess(w, http.StatusOK, participantResponse{
		ParticipantResult: result,
		Message:           h.deliver(result.Message),
	})
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.EndMeeting(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	h.publish(events.TypeMeetingEnded, result)
	utils.RespondSuccess(w, http.StatusOK, result)
}

func (h *Handler) handleRestart(w http.ResponseWriter, _ *http.Request) {
	h.svc.Restart()
	h.publish(events.TypeMeetingRestarted, nil)
	utils.RespondSuccess(w, http.StatusOK, map[string]string{"message": "meeting restarted"})
}

func (h *Handler) handleState(w http.ResponseWriter, _ *http.Request) {
	utils.RespondSuccess(w, http.StatusOK, map[string]any{"state": h.svc.State()})
}

func (h *Handler) handleTranscript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(h.svc.Transcript())); err != nil {
		log.Printf("[meeting] failed to write transcript: %v", err)
	}
}

// deliver 推送新消息并返回带投递 ID 的消息。
func (h *Handler) deliver(msg meeting.Message) meeting.Delivery {
	if h.hub == nil {
		return meeting.Delivery{Message: msg}
	}
	return h.hub.PublishMessage(msg)
}

func (h *Handler) publish(eventType string, data any) {
	if h.hub != nil {
		h.hub.Publish(eventType, data)
	}
}

func respondServiceError(w http.ResponseWriter, err error) {
	reason := meetingService.ReasonOf(err)
	switch {
	case errors.Is(err, meetingService.ErrGeneratorUnavailable):
		utils.RespondFailure(w, http.StatusServiceUnavailable, err.Error(), reason)
	case errors.Is(err, meetingService.ErrValidation), errors.Is(err, meetingService.ErrInvalidParticipant):
		utils.RespondFailure(w, http.StatusBadRequest, err.Error(), reason)
	case errors.Is(err, meetingService.ErrInvalidState):
		utils.RespondFailure(w, http.StatusConflict, err.Error(), reason)
	case errors.Is(err, meetingService.ErrGeneration):
		log.Printf("[meeting] generation error: %v", err)
		utils.RespondFailure(w, http.StatusBadGateway, err.Error(), reason)
	default:
		log.Printf("[meeting] unexpected error: %v", err)
		utils.RespondFailure(w, http.StatusInternalServerError, "internal error", reason)
	}
}
