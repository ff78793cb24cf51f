package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"social-chat/internal/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, message domain.ChatMessage) (int64, error)
	ListByRoom(ctx context.Context, roomID int64, beforeID int64, limit int) ([]domain.ChatMessage, error)
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

// Create persiste el mensaje y devuelve el id asignado por la base.
func (r *PgMessageRepository) Create(ctx context.Context, message domain.ChatMessage) (int64, error) {
	const query = `
		INSERT INTO messages (room_id, sender_id, content, file_url, file_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		message.RoomID,
		message.SenderID,
		message.Content,
		message.FileURL,
		message.FileName,
		message.CreatedAt,
	).Scan(&id)
	return id, err
}

// ListByRoom devuelve hasta limit mensajes anteriores a beforeID (0 = los mas recientes),
// ordenados del mas antiguo al mas nuevo.
func (r *PgMessageRepository) ListByRoom(ctx context.Context, roomID int64, beforeID int64, limit int) ([]domain.ChatMessage, error) {
	const query = `
		SELECT id, room_id, sender_id, content, file_url, file_name, created_at
		FROM (
			SELECT id, room_id, sender_id, content, file_url, file_name, created_at
			FROM messages
			WHERE room_id = $1 AND ($2::bigint = 0 OR id < $2::bigint)
			ORDER BY id DESC
			LIMIT $3
		) recent
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query, roomID, beforeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]domain.ChatMessage, 0, limit)
	for rows.Next() {
		var msg domain.ChatMessage
		err = rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.SenderID,
			&msg.Content,
			&msg.FileURL,
			&msg.FileName,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}
