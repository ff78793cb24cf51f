package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"social-chat/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	UpdateOTP(ctx context.Context, id int64, otpHash string, otpExpiresAt time.Time) error
	VerifyEmail(ctx context.Context, id int64, verifiedAt time.Time) error
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, email, username, password_hash, is_verified, email_verified_at, otp_code_hash, otp_expires_at, created_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) (int64, error) {
	const query = `
		INSERT INTO users (email, username, password_hash, is_verified, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.IsVerified,
		user.CreatedAt,
	).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrAlreadyExists
	}
	return id, err
}

func (r *PgUserRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PgUserRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *PgUserRepository) UpdateOTP(ctx context.Context, id int64, otpHash string, otpExpiresAt time.Time) error {
	const query = `
		UPDATE users SET otp_code_hash = $2, otp_expires_at = $3
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, otpHash, otpExpiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) VerifyEmail(ctx context.Context, id int64, verifiedAt time.Time) error {
	const query = `
		UPDATE users
		SET is_verified = TRUE, email_verified_at = $2, otp_code_hash = '', otp_expires_at = NULL
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, verifiedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) getOne(ctx context.Context, query string, arg any) (domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.IsVerified,
		&u.EmailVerifiedAt,
		&u.OtpCodeHash,
		&u.OtpExpiresAt,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}
	return u, err
}
