package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"social-chat/internal/domain"
)

type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID int64) (domain.Profile, error)
	Upsert(ctx context.Context, profile domain.Profile) error
}

type PgProfileRepository struct {
	pool *pgxpool.Pool
}

func NewPgProfileRepository(pool *pgxpool.Pool) *PgProfileRepository {
	return &PgProfileRepository{pool: pool}
}

// GetByUserID devuelve el perfil junto con username y email. Un usuario sin fila
// en profiles obtiene un perfil vacio; un usuario inexistente devuelve pgx.ErrNoRows.
func (r *PgProfileRepository) GetByUserID(ctx context.Context, userID int64) (domain.Profile, error) {
	const query = `
		SELECT u.id, u.username, u.email,
		       COALESCE(p.bio, ''), COALESCE(p.profile_picture, ''), p.date_of_birth, COALESCE(p.phone_number, '')
		FROM users u
		LEFT JOIN profiles p ON p.user_id = u.id
		WHERE u.id = $1
	`
	var p domain.Profile
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.Username,
		&p.Email,
		&p.Bio,
		&p.ProfilePicture,
		&p.DateOfBirth,
		&p.PhoneNumber,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, err
	}
	return p, err
}

func (r *PgProfileRepository) Upsert(ctx context.Context, profile domain.Profile) error {
	const query = `
		INSERT INTO profiles (user_id, bio, profile_picture, date_of_birth, phone_number)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET bio = EXCLUDED.bio,
		    profile_picture = EXCLUDED.profile_picture,
		    date_of_birth = EXCLUDED.date_of_birth,
		    phone_number = EXCLUDED.phone_number
	`
	_, err := r.pool.Exec(ctx, query,
		profile.UserID,
		profile.Bio,
		profile.ProfilePicture,
		profile.DateOfBirth,
		profile.PhoneNumber,
	)
	return err
}
