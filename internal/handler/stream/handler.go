package stream

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/agent-meeting/backend/internal/config"
	"github.com/zhouzirui/agent-meeting/backend/internal/service/events"
	meetingService "github.com/zhouzirui/agent-meeting/backend/internal/service/meeting"
	"github.com/zhouzirui/agent-meeting/backend/pkg/utils"
)

// TypeConnected 是连接建立后发送的第一条消息类型，携带当前会议状态。
const TypeConnected = "connected"

const writeWait = 10 * time.Second

// Handler 通过 WebSocket 和 SSE 推送会议事件
type Handler struct {
	svc      *meetingService.Service
	hub      *events.Hub
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
}

// New 创建事件推送处理器
func New(svc *meetingService.Service, hub *events.Hub, cfg config.WebSocketConfig) *Handler {
	return &Handler{
		svc: svc,
		hub: hub,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return cfg.AllowsOrigin(r.Header.Get("Origin"))
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册推送路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
	r.Get("/events", h.handleSSE)
}

func (h *Handler) connectedEvent() events.Event {
	return events.Event{
		Type:      TypeConnected,
		Timestamp: time.Now().UTC(),
		Data:      h.svc.Status(),
	}
}

// handleWebSocket 处理WebSocket连接。写操作只在本 goroutine 中进行，读循环仅用于感知断开和处理 pong。
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sub, cancelSub := h.hub.Subscribe()
	defer cancelSub()

	log.Printf("[websocket] client connected from %s (subscribers=%d)", r.RemoteAddr, h.hub.Subscribers())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(h.cfg.PingTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.cfg.PingTimeout))
		return nil
	})
	go h.readLoop(conn, cancel)

	if err := h.writeEvent(conn, h.connectedEvent()); err != nil {
		return
	}

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[websocket] client %s disconnected", r.RemoteAddr)
			return
		case event, ok := <-sub:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if err := h.writeEvent(conn, event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(h.cfg.PingTimeout))
	}
}

func (h *Handler) writeEvent(conn *websocket.Conn, event events.Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(event); err != nil {
		log.Printf("[websocket] write %s event failed: %v", event.Type, err)
		return err
	}
	return nil
}

// handleSSE 以 Server-Sent Events 推送会议事件，作为不支持 WebSocket 的客户端的备选。
func (h *Handler) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub, cancelSub := h.hub.Subscribe()
	defer cancelSub()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	log.Printf("[sse] opening event stream for %s", r.RemoteAddr)

	utils.SendSSEChunk(w, flusher, h.connectedEvent())

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[sse] closing event stream for %s", r.RemoteAddr)
			return
		case event, ok := <-sub:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, event.ID, event.Type, event); err != nil {
				log.Printf("[sse] write %s event failed: %v", event.Type, err)
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}
