package auth

import (
	"context"

	"github.com/rs/zerolog"
)

// Mailer delivers password reset tokens.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer writes reset tokens to the log instead of sending mail.
type LogMailer struct {
	Log zerolog.Logger
}

func (m LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.Log.Info().Str("email", email).Str("reset_token", token).Msg("password reset requested")
	return nil
}
