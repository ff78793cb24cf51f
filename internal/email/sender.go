package email

import (
	"context"
	"errors"
	"time"
)

// Sender envia el codigo OTP de verificacion de cuenta.
type Sender interface {
	SendVerificationOTP(ctx context.Context, toEmail, username, code string, expiresAt time.Time) error
}

type disabledSender struct {
	reason string
}

// NewDisabledSender devuelve un Sender que siempre falla; se usa cuando SMTP no esta configurado.
func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendVerificationOTP(_ context.Context, _, _, _ string, _ time.Time) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
