package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"social-chat/internal/domain"
)

// RoomRepository define la persistencia de salas y su membresia.
type RoomRepository interface {
	Create(ctx context.Context, room domain.ChatRoom) (int64, error)
	GetByID(ctx context.Context, id int64) (domain.ChatRoom, error)
	ListByMember(ctx context.Context, userID int64) ([]domain.ChatRoom, error)
	IsMember(ctx context.Context, userID, roomID int64) (bool, error)
}

type PgRoomRepository struct {
	pool *pgxpool.Pool
}

func NewPgRoomRepository(pool *pgxpool.Pool) *PgRoomRepository {
	return &PgRoomRepository{pool: pool}
}

// Create inserta la sala y sus miembros en una sola transaccion.
func (r *PgRoomRepository) Create(ctx context.Context, room domain.ChatRoom) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO chat_rooms (name, is_group, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, room.Name, room.IsGroup, room.CreatedAt).Scan(&id)
	if err != nil {
		return 0, err
	}

	for _, memberID := range room.MemberIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat_room_members (room_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, id, memberID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PgRoomRepository) GetByID(ctx context.Context, id int64) (domain.ChatRoom, error) {
	const query = `
		SELECT r.id, r.name, r.is_group, r.created_at,
		       COALESCE(array_agg(m.user_id ORDER BY m.user_id) FILTER (WHERE m.user_id IS NOT NULL), '{}')
		FROM chat_rooms r
		LEFT JOIN chat_room_members m ON m.room_id = r.id
		WHERE r.id = $1
		GROUP BY r.id
	`
	var room domain.ChatRoom
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&room.ID,
		&room.Name,
		&room.IsGroup,
		&room.CreatedAt,
		&room.MemberIDs,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ChatRoom{}, err
	}
	return room, err
}

func (r *PgRoomRepository) ListByMember(ctx context.Context, userID int64) ([]domain.ChatRoom, error) {
	const query = `
		SELECT r.id, r.name, r.is_group, r.created_at
		FROM chat_rooms r
		JOIN chat_room_members m ON m.room_id = r.id
		WHERE m.user_id = $1
		ORDER BY r.created_at DESC, r.id DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := []domain.ChatRoom{}
	for rows.Next() {
		var room domain.ChatRoom
		if err := rows.Scan(&room.ID, &room.Name, &room.IsGroup, &room.CreatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// IsMember no distingue entre sala inexistente y usuario ajeno a la sala.
func (r *PgRoomRepository) IsMember(ctx context.Context, userID, roomID int64) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM chat_room_members WHERE room_id = $1 AND user_id = $2
		)
	`
	var ok bool
	err := r.pool.QueryRow(ctx, query, roomID, userID).Scan(&ok)
	return ok, err
}
