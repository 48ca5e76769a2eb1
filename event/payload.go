package event

import (
	"encoding/json"
	"fmt"
)

// Envelope is the webhook request body: one destination and a batch of
// platform events.
type Envelope struct {
	Destination string            `json:"destination"`
	Events      []json.RawMessage `json:"events"`
}

// Source identifies who sent a platform event.
type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

// Content is the message body of a message event.
type Content struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// DeliveryContext carries platform redelivery information.
type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

// PlatformEvent is a single event inside an Envelope.
type PlatformEvent struct {
	Type            string          `json:"type"`
	WebhookEventID  string          `json:"webhookEventId,omitempty"`
	Timestamp       int64           `json:"timestamp"`
	Source          Source          `json:"source"`
	ReplyToken      string          `json:"replyToken,omitempty"`
	Message         *Content        `json:"message,omitempty"`
	DeliveryContext DeliveryContext `json:"deliveryContext"`
}

// IsText reports whether the event carries a text message.
func (p *PlatformEvent) IsText() bool {
	return p.Type == "message" && p.Message != nil && p.Message.Type == "text"
}

// Text returns the message text, or "".
func (p *PlatformEvent) Text() string {
	if p.Message == nil {
		return ""
	}
	return p.Message.Text
}

// Decode parses the stored payload of evt.
func (evt *InboundEvent) Decode() (*PlatformEvent, error) {
	var p PlatformEvent
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return nil, fmt.Errorf("event: decode payload: %w", err)
	}
	return &p, nil
}
