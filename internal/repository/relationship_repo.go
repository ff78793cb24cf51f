package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"social-chat/internal/domain"
)

// ErrAlreadyExists se devuelve cuando una fila unica ya existe.
var ErrAlreadyExists = errors.New("already exists")

// RelationshipRepository agrupa amistades, seguimientos y bloqueos.
type RelationshipRepository interface {
	CreateFriendRequest(ctx context.Context, req domain.FriendRequest) (int64, error)
	GetFriendRequest(ctx context.Context, id int64) (domain.FriendRequest, error)
	AcceptFriendRequest(ctx context.Context, req domain.FriendRequest) error
	RejectFriendRequest(ctx context.Context, id int64) error
	DeleteFriendRequest(ctx context.Context, id int64) error
	AreFriends(ctx context.Context, a, b int64) (bool, error)

	Follows(ctx context.Context, follower, followee int64) (bool, error)
	AddFollow(ctx context.Context, follower, followee int64) error
	RemoveFollow(ctx context.Context, follower, followee int64) error

	IsBlocked(ctx context.Context, blocker, blocked int64) (bool, error)
	Block(ctx context.Context, blocker, blocked int64) error
	Unblock(ctx context.Context, blocker, blocked int64) error
}

type PgRelationshipRepository struct {
	pool *pgxpool.Pool
}

func NewPgRelationshipRepository(pool *pgxpool.Pool) *PgRelationshipRepository {
	return &PgRelationshipRepository{pool: pool}
}

func (r *PgRelationshipRepository) CreateFriendRequest(ctx context.Context, req domain.FriendRequest) (int64, error) {
	const query = `
		INSERT INTO friendship_requests (from_user_id, to_user_id, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		req.FromUserID,
		req.ToUserID,
		req.Message,
		string(domain.FriendRequestPending),
		req.CreatedAt,
	).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrAlreadyExists
	}
	return id, err
}

func (r *PgRelationshipRepository) GetFriendRequest(ctx context.Context, id int64) (domain.FriendRequest, error) {
	const query = `
		SELECT id, from_user_id, to_user_id, message, status, created_at
		FROM friendship_requests
		WHERE id = $1
	`
	var req domain.FriendRequest
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&req.ID,
		&req.FromUserID,
		&req.ToUserID,
		&req.Message,
		&status,
		&req.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.FriendRequest{}, err
	}
	req.Status = domain.FriendRequestStatus(status)
	return req, err
}

// AcceptFriendRequest crea la amistad en ambos sentidos y elimina la solicitud.
func (r *PgRelationshipRepository) AcceptFriendRequest(ctx context.Context, req domain.FriendRequest) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insert = `
		INSERT INTO friendships (user_id, friend_id) VALUES ($1, $2), ($2, $1)
		ON CONFLICT DO NOTHING
	`
	if _, err := tx.Exec(ctx, insert, req.FromUserID, req.ToUserID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM friendship_requests WHERE id = $1`, req.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PgRelationshipRepository) RejectFriendRequest(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE friendship_requests SET status = $2 WHERE id = $1`, id, string(domain.FriendRequestRejected))
	return err
}

func (r *PgRelationshipRepository) DeleteFriendRequest(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM friendship_requests WHERE id = $1`, id)
	return err
}

func (r *PgRelationshipRepository) AreFriends(ctx context.Context, a, b int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM friendships WHERE user_id = $1 AND friend_id = $2)`, a, b)
}

func (r *PgRelationshipRepository) Follows(ctx context.Context, follower, followee int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2)`, follower, followee)
}

func (r *PgRelationshipRepository) AddFollow(ctx context.Context, follower, followee int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2)`, follower, followee)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (r *PgRelationshipRepository) RemoveFollow(ctx context.Context, follower, followee int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`, follower, followee)
	return err
}

func (r *PgRelationshipRepository) IsBlocked(ctx context.Context, blocker, blocked int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM blocks WHERE blocker_id = $1 AND blocked_id = $2)`, blocker, blocked)
}

// Block registra el bloqueo y elimina amistad y seguimiento del bloqueador en la misma transaccion.
func (r *PgRelationshipRepository) Block(ctx context.Context, blocker, blocked int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO blocks (blocker_id, blocked_id) VALUES ($1, $2)`, blocker, blocked); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	const unfriend = `
		DELETE FROM friendships
		WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)
	`
	if _, err := tx.Exec(ctx, unfriend, blocker, blocked); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`, blocker, blocked); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PgRelationshipRepository) Unblock(ctx context.Context, blocker, blocked int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM blocks WHERE blocker_id = $1 AND blocked_id = $2`, blocker, blocked)
	return err
}

func (r *PgRelationshipRepository) exists(ctx context.Context, query string, a, b int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, query, a, b).Scan(&ok)
	return ok, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
