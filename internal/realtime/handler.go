package realtime

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"social-chat/internal/domain"
)

// MessageStore persiste mensajes de chat y devuelve el id asignado.
type MessageStore interface {
	Create(ctx context.Context, message domain.ChatMessage) (int64, error)
}

// Handler implementa el protocolo de mensajes de una sala: decodifica, persiste
// y difunde a traves del Registry compartido.
type Handler struct {
	registry *Registry
	store    MessageStore
	logger   *zap.Logger
	now      func() time.Time
}

func NewHandler(registry *Registry, store MessageStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry: registry,
		store:    store,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) HandleInbound(ctx context.Context, s *Session, data []byte) error {
	event, err := DecodeInbound(data)
	if err != nil {
		return err
	}

	switch e := event.(type) {
	case ChatInbound:
		return h.handleChat(ctx, s, e)
	case TypingInbound:
		identity := s.Identity()
		h.registry.Broadcast(s.GroupKey(), TypingEvent{
			UserID:   identity.UserID,
			Username: identity.Username,
			IsTyping: e.IsTyping,
		})
		return nil
	default:
		return fmt.Errorf("%w: unhandled event %T", ErrProtocolDecode, event)
	}
}

// handleChat toma el remitente de la identidad de la sesion, nunca del payload,
// y solo difunde despues de que la persistencia devolvio un id.
func (h *Handler) handleChat(ctx context.Context, s *Session, in ChatInbound) error {
	senderID := s.Identity().UserID
	return h.registry.Publish(ctx, s.GroupKey(), func(ctx context.Context) (OutboundEvent, error) {
		text := in.Text
		id, err := h.store.Create(ctx, domain.ChatMessage{
			RoomID:    s.RoomID(),
			SenderID:  senderID,
			Content:   &text,
			CreatedAt: h.now(),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		h.logger.Debug("message persisted",
			zap.Int64("message_id", id),
			zap.Int64("room_id", s.RoomID()),
			zap.Int64("user_id", senderID),
		)
		return ChatMessageEvent{
			MessageID: id,
			SenderID:  senderID,
			Text:      in.Text,
		}, nil
	})
}
