package service

import (
	"context"
	"errors"
	"time"

	"social-chat/internal/domain"
	"social-chat/internal/repository"
)

// MessageService valida y persiste mensajes de chat. Lo usan el handler de
// WebSocket, la subida de adjuntos y el historial de salas.
type MessageService struct {
	repo repository.MessageRepository
}

var (
	ErrMessageServiceNotConfigured = errors.New("message service not configured")
	ErrMessageInvalidInput         = errors.New("message invalid input")
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

func NewMessageService(repo repository.MessageRepository) *MessageService {
	return &MessageService{repo: repo}
}

// Create exige sala, remitente y contenido o adjunto. El texto vacio es valido
// cuando viene por WebSocket, asi que solo se rechaza un mensaje sin ninguno de los dos.
func (s *MessageService) Create(ctx context.Context, msg domain.ChatMessage) (int64, error) {
	if s == nil || s.repo == nil {
		return 0, ErrMessageServiceNotConfigured
	}
	if msg.RoomID <= 0 || msg.SenderID <= 0 {
		return 0, ErrMessageInvalidInput
	}
	if msg.Content == nil && !msg.HasFile() {
		return 0, ErrMessageInvalidInput
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return s.repo.Create(ctx, msg)
}

// ListByRoom devuelve mensajes del mas viejo al mas nuevo. beforeID <= 0 pagina desde el final.
func (s *MessageService) ListByRoom(ctx context.Context, roomID, beforeID int64, limit int) ([]domain.ChatMessage, error) {
	if s == nil || s.repo == nil {
		return nil, ErrMessageServiceNotConfigured
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	msgs, err := s.repo.ListByRoom(ctx, roomID, beforeID, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return msgs, nil
}
