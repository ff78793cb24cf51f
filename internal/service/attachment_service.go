package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"social-chat/internal/domain"
	"social-chat/internal/realtime"
	"social-chat/internal/storage"
)

var (
	ErrFileRequired = errors.New("no file provided")
	ErrFileTooLarge = errors.New("file too large")
)

// Publisher es la parte del registry que usa la subida de adjuntos.
type Publisher interface {
	Publish(ctx context.Context, groupKey string, produce func(ctx context.Context) (realtime.OutboundEvent, error)) error
}

type MembershipChecker interface {
	IsMember(ctx context.Context, userID, roomID int64) (bool, error)
}

type MessageStore interface {
	Create(ctx context.Context, message domain.ChatMessage) (int64, error)
}

// AttachmentService convierte un archivo subido por HTTP en un mensaje de sala
// y lo difunde por el mismo registry que usan las sesiones WebSocket.
type AttachmentService struct {
	logger    *zap.Logger
	rooms     MembershipChecker
	messages  MessageStore
	files     storage.FileStore
	publisher Publisher
}

func NewAttachmentService(logger *zap.Logger, rooms MembershipChecker, messages MessageStore, files storage.FileStore, publisher Publisher) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentService{
		logger:    logger,
		rooms:     rooms,
		messages:  messages,
		files:     files,
		publisher: publisher,
	}
}

type AttachInput struct {
	UserID   int64
	RoomID   int64
	FileURL  string
	FileName string
}

type AttachResult struct {
	MessageID int64  `json:"message_id"`
	FileURL   string `json:"file_url"`
	FileName  string `json:"file_name"`
}

type UploadInput struct {
	UserID   int64
	RoomID   int64
	Filename string
	Body     io.Reader
	// BaseURL se antepone a la URL relativa del archivo guardado.
	BaseURL string
}

// Attach registra un archivo ya almacenado como mensaje y lo difunde a la sala.
// El resultado no depende de que haya alguien conectado.
func (s *AttachmentService) Attach(ctx context.Context, in AttachInput) (AttachResult, error) {
	if err := s.requireMember(ctx, in.UserID, in.RoomID); err != nil {
		return AttachResult{}, err
	}
	return s.attach(ctx, in)
}

// Upload guarda el archivo y luego lo adjunta. Si el mensaje no se persiste,
// el archivo guardado se elimina.
func (s *AttachmentService) Upload(ctx context.Context, in UploadInput) (AttachResult, error) {
	if err := s.requireMember(ctx, in.UserID, in.RoomID); err != nil {
		return AttachResult{}, err
	}
	if in.Body == nil {
		return AttachResult{}, ErrFileRequired
	}

	stored, err := s.files.Save(ctx, in.Filename, in.Body)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrEmptyFile):
			return AttachResult{}, ErrFileRequired
		case errors.Is(err, storage.ErrFileTooLarge):
			return AttachResult{}, ErrFileTooLarge
		}
		return AttachResult{}, err
	}

	res, err := s.attach(ctx, AttachInput{
		UserID:   in.UserID,
		RoomID:   in.RoomID,
		FileURL:  strings.TrimSuffix(in.BaseURL, "/") + stored.URL,
		FileName: stored.Name,
	})
	if err != nil {
		if derr := s.files.Delete(context.WithoutCancel(ctx), stored.Path); derr != nil {
			s.logger.Warn("delete orphan upload failed", zap.String("path", stored.Path), zap.Error(derr))
		}
		return AttachResult{}, err
	}
	s.logger.Info("file uploaded",
		zap.Int64("room_id", in.RoomID),
		zap.Int64("message_id", res.MessageID),
		zap.String("content_type", stored.ContentType),
		zap.Int64("size", stored.Size),
	)
	return res, nil
}

func (s *AttachmentService) attach(ctx context.Context, in AttachInput) (AttachResult, error) {
	fileURL := strings.TrimSpace(in.FileURL)
	if fileURL == "" {
		return AttachResult{}, ErrFileRequired
	}
	fileName := strings.TrimSpace(in.FileName)

	var res AttachResult
	err := s.publisher.Publish(ctx, realtime.GroupKey(in.RoomID), func(ctx context.Context) (realtime.OutboundEvent, error) {
		id, err := s.messages.Create(ctx, domain.ChatMessage{
			RoomID:    in.RoomID,
			SenderID:  in.UserID,
			FileURL:   &fileURL,
			FileName:  &fileName,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", realtime.ErrPersistence, err)
		}
		res = AttachResult{MessageID: id, FileURL: fileURL, FileName: fileName}
		return realtime.ChatMessageEvent{
			MessageID: id,
			SenderID:  in.UserID,
			FileURL:   fileURL,
			FileName:  fileName,
		}, nil
	})
	if err != nil {
		return AttachResult{}, err
	}
	return res, nil
}

func (s *AttachmentService) requireMember(ctx context.Context, userID, roomID int64) error {
	ok, err := s.rooms.IsMember(ctx, userID, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRoomNotFound
	}
	return nil
}
