package email

import (
	"context"
	"errors"
)

// Sender envía las notificaciones de cuenta.
type Sender interface {
	SendWelcome(ctx context.Context, toEmail string) error
}

// ErrSenderDisabled se devuelve cuando no hay SMTP configurado.
var ErrSenderDisabled = errors.New("email sender disabled")

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendWelcome(_ context.Context, _ string) error {
	if s.reason == "" {
		return ErrSenderDisabled
	}
	return errors.Join(ErrSenderDisabled, errors.New(s.reason))
}
