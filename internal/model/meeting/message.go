package meeting

import "time"

// Message 是会议中的一次发言，追加后不再修改。
type Message struct {
	SpeakerID   int       `json:"speakerId"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	RoundNumber int       `json:"roundNumber"`
}

// Delivery 是推送给客户端的消息，MessageID 由传输层分配，用于去重。
type Delivery struct {
	Message
	MessageID string `json:"messageId"`
}
