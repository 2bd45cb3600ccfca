package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/agent-meeting/backend/internal/config"
	"github.com/zhouzirui/agent-meeting/backend/internal/handler/meeting"
	"github.com/zhouzirui/agent-meeting/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/agent-meeting/backend/internal/middleware"
	"github.com/zhouzirui/agent-meeting/backend/internal/service/events"
	meetingService "github.com/zhouzirui/agent-meeting/backend/internal/service/meeting"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(meetingSvc *meetingService.Service, hub *events.Hub, wsCfg config.WebSocketConfig, aiEnabled bool) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(wsCfg.CORSOrigins))

	meetingHandler := meeting.New(meetingSvc, hub, aiEnabled)
	streamHandler := stream.New(meetingSvc, hub, wsCfg)

	r.Route("/api", func(api chi.Router) {
		meetingHandler.RegisterRoutes(api)

		// Live meeting events over WebSocket, with SSE as fallback
		streamHandler.RegisterRoutes(api)
	})

	return r
}
