package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"social-chat/internal/domain"
	"social-chat/internal/email"
	"social-chat/internal/repository"
)

// UserService coordina registro, login y verificacion por OTP.
type UserService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	emailSender email.Sender
	otpLimiter  OTPRateLimiter
	otpTTL      time.Duration
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, emailSender email.Sender, otpLimiter OTPRateLimiter, otpTTL time.Duration) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if otpTTL <= 0 {
		otpTTL = defaultOTPTTL
	}
	if otpLimiter == nil {
		otpLimiter = NewOTPRateLimiter(otpTTL, 3)
	}
	return &UserService{
		logger:      logger,
		users:       users,
		emailSender: emailSender,
		otpLimiter:  otpLimiter,
		otpTTL:      otpTTL,
	}
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
}

type RegisterResult struct {
	User    domain.User
	OTPSent bool
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrWeakPassword       = errors.New("password too short")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyVerified    = errors.New("user already verified")
	ErrOTPNotRequested    = errors.New("otp not requested")
	ErrOTPExpired         = errors.New("otp expired")
	ErrOTPInvalid         = errors.New("otp invalid")
	ErrEmailSendFailure   = errors.New("email send failed")
	ErrRateLimited        = errors.New("rate limited")
)

const (
	defaultOTPTTL     = 5 * time.Minute
	minPasswordLength = 8
	maxUsernameLength = 150
)

// Register crea la cuenta y envia el primer OTP. Un fallo de email no
// deshace el registro: se informa con OTPSent=false.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (RegisterResult, error) {
	emailAddr := normalizeEmail(input.Email)
	if !isValidEmail(emailAddr) {
		return RegisterResult{}, ErrInvalidEmail
	}
	username := strings.TrimSpace(input.Username)
	if username == "" || len(username) > maxUsernameLength || strings.ContainsAny(username, " \t\n/") {
		return RegisterResult{}, ErrInvalidUsername
	}
	if len(input.Password) < minPasswordLength {
		return RegisterResult{}, ErrWeakPassword
	}

	if taken, err := s.exists(ctx, s.users.GetByEmail, emailAddr); err != nil || taken {
		return RegisterResult{}, firstErr(err, ErrUserExists)
	}
	if taken, err := s.exists(ctx, s.users.GetByUsername, username); err != nil || taken {
		return RegisterResult{}, firstErr(err, ErrUserExists)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return RegisterResult{}, err
	}
	user := domain.User{
		Email:        emailAddr,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	id, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return RegisterResult{}, ErrUserExists
		}
		return RegisterResult{}, err
	}
	user.ID = id

	sent := true
	if err := s.issueOTP(ctx, &user); err != nil {
		if !errors.Is(err, ErrEmailSendFailure) {
			return RegisterResult{}, err
		}
		sent = false
	}
	s.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.Bool("otp_sent", sent))
	return RegisterResult{User: user, OTPSent: sent}, nil
}

func (s *UserService) Authenticate(ctx context.Context, emailAddr, password string) (domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if user.PasswordHash == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// ResendOTP reemplaza cualquier OTP previo del usuario.
func (s *UserService) ResendOTP(ctx context.Context, userID int64) (domain.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if user.IsVerified {
		return domain.User{}, ErrAlreadyVerified
	}
	if !s.otpLimiter.Allow(ctx, strconv.FormatInt(userID, 10)) {
		return domain.User{}, ErrRateLimited
	}
	if err := s.issueOTP(ctx, &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *UserService) VerifyOTP(ctx context.Context, userID int64, code string) (domain.User, error) {
	code = strings.TrimSpace(code)
	if !isValidOTPCode(code) {
		return domain.User{}, ErrOTPInvalid
	}

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if user.IsVerified {
		return domain.User{}, ErrAlreadyVerified
	}
	if user.OtpCodeHash == "" || user.OtpExpiresAt == nil {
		return domain.User{}, ErrOTPNotRequested
	}
	if !verifyOTP(code, user.OtpCodeHash) {
		return domain.User{}, ErrOTPInvalid
	}
	if time.Now().UTC().After(*user.OtpExpiresAt) {
		return domain.User{}, ErrOTPExpired
	}

	verifiedAt := time.Now().UTC()
	if err := s.users.VerifyEmail(ctx, user.ID, verifiedAt); err != nil {
		return domain.User{}, err
	}

	user.IsVerified = true
	user.EmailVerifiedAt = &verifiedAt
	user.OtpCodeHash = ""
	user.OtpExpiresAt = nil
	return user, nil
}

func (s *UserService) issueOTP(ctx context.Context, user *domain.User) error {
	code, hash, err := generateOTP()
	if err != nil {
		return err
	}
	expiresAt := time.Now().UTC().Add(s.otpTTL)
	if err := s.users.UpdateOTP(ctx, user.ID, hash, expiresAt); err != nil {
		return err
	}
	user.OtpCodeHash = hash
	user.OtpExpiresAt = &expiresAt

	if s.emailSender == nil {
		return ErrEmailSendFailure
	}
	if err := s.emailSender.SendVerificationOTP(ctx, user.Email, user.Username, code, expiresAt); err != nil {
		s.logger.Warn("send verification otp failed", zap.Error(err), zap.Int64("user_id", user.ID))
		return ErrEmailSendFailure
	}
	return nil
}

func (s *UserService) exists(ctx context.Context, get func(context.Context, string) (domain.User, error), key string) (bool, error) {
	_, err := get(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, err
}

func firstErr(err, fallback error) error {
	if err != nil {
		return err
	}
	return fallback
}

// generateOTP devuelve el codigo en claro y su hash "salt:sha256".
func generateOTP() (string, string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", "", err
	}
	saltStr := base64.StdEncoding.EncodeToString(salt)
	return code, saltStr + ":" + hashOTP(saltStr, code), nil
}

func hashOTP(salt, code string) string {
	sum := sha256.Sum256([]byte(salt + ":" + code))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func verifyOTP(code, stored string) bool {
	salt, expected, ok := strings.Cut(stored, ":")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hashOTP(salt, code)), []byte(expected)) == 1
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(addr string) bool {
	if addr == "" {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}

func isValidOTPCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
