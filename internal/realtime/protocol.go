package realtime

import (
	"encoding/json"
	"fmt"
)

const (
	eventTypeMessage = "message"
	eventTypeTyping  = "typing"
)

// InboundEvent es el conjunto cerrado de eventos que envia un cliente.
type InboundEvent interface {
	inbound()
}

// ChatInbound es un mensaje de texto enviado por el cliente.
type ChatInbound struct {
	Text string
}

// TypingInbound indica que el cliente empezo o dejo de escribir.
type TypingInbound struct {
	IsTyping bool
}

func (ChatInbound) inbound()   {}
func (TypingInbound) inbound() {}

// OutboundEvent es el conjunto cerrado de eventos que se difunden a una sala.
type OutboundEvent interface {
	outbound()
}

type ChatMessageEvent struct {
	MessageID int64
	SenderID  int64
	Text      string
	FileURL   string
	FileName  string
}

type TypingEvent struct {
	UserID   int64
	Username string
	IsTyping bool
}

func (ChatMessageEvent) outbound() {}
func (TypingEvent) outbound()      {}

type inboundFrame struct {
	Type     *string `json:"type"`
	Message  *string `json:"message"`
	IsTyping *bool   `json:"is_typing"`
}

// DecodeInbound valida y convierte un frame JSON. Un frame sin "type" se trata
// como mensaje de chat.
func DecodeInbound(data []byte) (InboundEvent, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolDecode, err)
	}

	eventType := eventTypeMessage
	if frame.Type != nil {
		eventType = *frame.Type
	}

	switch eventType {
	case eventTypeMessage:
		if frame.Message == nil {
			return nil, fmt.Errorf("%w: message field required", ErrProtocolDecode)
		}
		return ChatInbound{Text: *frame.Message}, nil
	case eventTypeTyping:
		if frame.IsTyping == nil {
			return nil, fmt.Errorf("%w: is_typing field required", ErrProtocolDecode)
		}
		return TypingInbound{IsTyping: *frame.IsTyping}, nil
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrProtocolDecode, eventType)
	}
}

type chatMessageFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	UserID    int64  `json:"user_id"`
	MessageID int64  `json:"message_id"`
	FileURL   string `json:"file_url,omitempty"`
	FileName  string `json:"file_name,omitempty"`
}

type typingFrame struct {
	Type     string `json:"type"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}

// EncodeOutbound serializa un evento al formato de cable.
func EncodeOutbound(event OutboundEvent) ([]byte, error) {
	switch e := event.(type) {
	case ChatMessageEvent:
		return json.Marshal(chatMessageFrame{
			Type:      eventTypeMessage,
			Message:   e.Text,
			UserID:    e.SenderID,
			MessageID: e.MessageID,
			FileURL:   e.FileURL,
			FileName:  e.FileName,
		})
	case TypingEvent:
		return json.Marshal(typingFrame{
			Type:     eventTypeTyping,
			UserID:   e.UserID,
			Username: e.Username,
			IsTyping: e.IsTyping,
		})
	default:
		return nil, fmt.Errorf("unsupported outbound event %T", event)
	}
}
