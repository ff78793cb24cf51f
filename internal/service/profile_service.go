package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"social-chat/internal/domain"
	"social-chat/internal/repository"
)

var (
	ErrInvalidDateOfBirth = errors.New("invalid date of birth")
	ErrInvalidPhoneNumber = errors.New("invalid phone number")
)

const (
	dateOfBirthLayout = "2006-01-02"
	maxPhoneLength    = 15
)

// ProfileService lee y actualiza perfiles. El perfil existe implicitamente
// para todo usuario: se crea en la primera actualizacion.
type ProfileService struct {
	profiles repository.ProfileRepository
}

func NewProfileService(profiles repository.ProfileRepository) *ProfileService {
	return &ProfileService{profiles: profiles}
}

// ProfileUpdate aplica solo los campos no nil.
type ProfileUpdate struct {
	Bio         *string
	DateOfBirth *string
	PhoneNumber *string
}

func (s *ProfileService) Get(ctx context.Context, userID int64) (domain.Profile, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, ErrUserNotFound
		}
		return domain.Profile{}, err
	}
	return profile, nil
}

func (s *ProfileService) Update(ctx context.Context, userID int64, in ProfileUpdate) (domain.Profile, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}

	if in.Bio != nil {
		profile.Bio = strings.TrimSpace(*in.Bio)
	}
	if in.PhoneNumber != nil {
		phone := strings.TrimSpace(*in.PhoneNumber)
		if len(phone) > maxPhoneLength {
			return domain.Profile{}, ErrInvalidPhoneNumber
		}
		profile.PhoneNumber = phone
	}
	if in.DateOfBirth != nil {
		raw := strings.TrimSpace(*in.DateOfBirth)
		if raw == "" {
			profile.DateOfBirth = nil
		} else {
			dob, err := time.Parse(dateOfBirthLayout, raw)
			if err != nil || dob.After(time.Now().UTC()) {
				return domain.Profile{}, ErrInvalidDateOfBirth
			}
			profile.DateOfBirth = &dob
		}
	}

	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}
