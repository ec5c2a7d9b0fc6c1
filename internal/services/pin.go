package services

import (
	"context"

	"cashless/internal/auth"

	"github.com/rs/zerolog"
)

type pinGuard struct {
	limiter PINLimiter
	log     zerolog.Logger
}

// check verifies pin against hash for subject. The attempt is reserved
// before bcrypt runs and only a match releases it. Limiter outages are logged
// and do not lock users out.
func (g pinGuard) check(ctx context.Context, subject, hash, pin string) error {
	if !g.reserve(ctx, subject) {
		return ErrTooManyAttempts
	}
	if hash == "" || !auth.CheckPIN(hash, pin) {
		return ErrInvalidCredential
	}
	if g.limiter != nil {
		if err := g.limiter.Reset(ctx, subject); err != nil {
			g.log.Warn().Err(err).Msg("pin limiter reset failed")
		}
	}
	return nil
}

// fail counts an attempt that never reached a PIN comparison.
func (g pinGuard) fail(ctx context.Context, subject string) {
	g.reserve(ctx, subject)
}

func (g pinGuard) reserve(ctx context.Context, subject string) bool {
	if g.limiter == nil {
		return true
	}
	ok, err := g.limiter.Reserve(ctx, subject)
	if err != nil {
		g.log.Warn().Err(err).Msg("pin limiter unavailable")
		return true
	}
	return ok
}
