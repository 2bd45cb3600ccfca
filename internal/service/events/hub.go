package events

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/agent-meeting/backend/internal/model/meeting"
)

// 事件类型。
const (
	TypeNewMessage       = "new_message"
	TypeMeetingStarted   = "meeting_started"
	TypeMeetingEnded     = "meeting_ended"
	TypeMeetingRestarted = "meeting_restarted"
)

const defaultBufferSize = 64

// Event 是推送给客户端的一条会议事件，ID 为本次投递分配的唯一标识。
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Hub fans out meeting events to subscribers without blocking on slow listeners.
type Hub struct {
	mu          sync.Mutex
	subscribers map[uint64]chan Event
	nextSubID   uint64
	bufferSize  int
	dropped     atomic.Int64
	closed      bool
	closeOnce   sync.Once
}

// NewHub creates a hub; bufferSize <= 0 uses the default per-subscriber buffer.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Hub{
		subscribers: make(map[uint64]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe 返回事件通道以及取消订阅的函数。
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.bufferSize)
	id := atomic.AddUint64(&h.nextSubID, 1)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subscribers[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if existing, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(existing)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish 分配投递 ID 并广播事件。订阅者缓冲区已满时丢弃该事件。
func (h *Hub) Publish(eventType string, data any) Event {
	return h.broadcast(Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

// PublishMessage 推送一条新消息，MessageID 与事件 ID 相同，客户端据此去重。
func (h *Hub) PublishMessage(msg meeting.Message) meeting.Delivery {
	delivery := meeting.Delivery{Message: msg, MessageID: uuid.NewString()}
	h.broadcast(Event{
		ID:        delivery.MessageID,
		Type:      TypeNewMessage,
		Timestamp: time.Now().UTC(),
		Data:      delivery,
	})
	return delivery
}

func (h *Hub) broadcast(event Event) Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return event
	}
	for id, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			if h.dropped.Add(1)%100 == 1 {
				log.Printf("[events] subscriber %d is slow, dropped %s event (total dropped=%d)", id, event.Type, h.dropped.Load())
			}
		}
	}
	return event
}

// Subscribers 返回当前订阅者数量。
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Dropped 返回因缓冲区已满而丢弃的事件总数。
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close 关闭所有订阅通道，之后的发布被忽略。
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		for id, ch := range h.subscribers {
			delete(h.subscribers, id)
			close(ch)
		}
		h.mu.Unlock()
	})
}
