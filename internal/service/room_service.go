package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"

	"social-chat/internal/domain"
	"social-chat/internal/repository"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrInvalidRoom   = errors.New("invalid room")
	ErrUnknownMember = errors.New("unknown member")
)

const maxRoomNameLength = 255

type RoomService struct {
	rooms    repository.RoomRepository
	users    repository.UserRepository
	messages *MessageService
}

func NewRoomService(rooms repository.RoomRepository, users repository.UserRepository, messages *MessageService) *RoomService {
	return &RoomService{rooms: rooms, users: users, messages: messages}
}

type CreateRoomInput struct {
	Name      string
	IsGroup   bool
	MemberIDs []int64
}

func (s *RoomService) List(ctx context.Context, userID int64) ([]domain.ChatRoom, error) {
	rooms, err := s.rooms.ListByMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []domain.ChatRoom{}
	}
	return rooms, nil
}

// Create siempre incluye al creador. Una sala no grupal admite a lo sumo dos miembros.
func (s *RoomService) Create(ctx context.Context, userID int64, in CreateRoomInput) (domain.ChatRoom, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > maxRoomNameLength {
		return domain.ChatRoom{}, ErrInvalidRoom
	}
	members := lo.Uniq(append([]int64{userID}, in.MemberIDs...))
	if !in.IsGroup && len(members) > 2 {
		return domain.ChatRoom{}, ErrInvalidRoom
	}
	for _, id := range members {
		if id <= 0 {
			return domain.ChatRoom{}, ErrUnknownMember
		}
		if _, err := s.users.GetByID(ctx, id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ChatRoom{}, ErrUnknownMember
			}
			return domain.ChatRoom{}, err
		}
	}

	room := domain.ChatRoom{
		Name:      name,
		IsGroup:   in.IsGroup,
		MemberIDs: members,
		CreatedAt: time.Now().UTC(),
	}
	id, err := s.rooms.Create(ctx, room)
	if err != nil {
		return domain.ChatRoom{}, err
	}
	room.ID = id
	return room, nil
}

// Get devuelve ErrRoomNotFound tambien cuando el usuario no es miembro.
func (s *RoomService) Get(ctx context.Context, userID, roomID int64) (domain.ChatRoom, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ChatRoom{}, ErrRoomNotFound
		}
		return domain.ChatRoom{}, err
	}
	if !lo.Contains(room.MemberIDs, userID) {
		return domain.ChatRoom{}, ErrRoomNotFound
	}
	return room, nil
}

func (s *RoomService) IsMember(ctx context.Context, userID, roomID int64) (bool, error) {
	return s.rooms.IsMember(ctx, userID, roomID)
}

// RequireMember es IsMember traducido al error de dominio.
func (s *RoomService) RequireMember(ctx context.Context, userID, roomID int64) error {
	ok, err := s.rooms.IsMember(ctx, userID, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRoomNotFound
	}
	return nil
}

func (s *RoomService) Messages(ctx context.Context, userID, roomID, beforeID int64, limit int) ([]domain.ChatMessage, error) {
	if err := s.RequireMember(ctx, userID, roomID); err != nil {
		return nil, err
	}
	return s.messages.ListByRoom(ctx, roomID, beforeID, limit)
}
