package workers

import (
	"context"
	"log/slog"
	"time"

	"collab-hub/contract"
)

// DefaultSweepInterval matches the handshake token lifetime: an
// unconsumed token survives at most one extra interval after expiry.
const DefaultSweepInterval = 60 * time.Second

var _ contract.Worker = (*TokenSweeper)(nil)

// TokenSweeper periodically drops expired handshake tokens so the
// pending-token set stays bounded even when clients fetch tokens and
// never open a socket.
type TokenSweeper struct {
	log      *slog.Logger
	issuer   contract.TokenIssuer
	interval time.Duration
}

func NewTokenSweeper(log *slog.Logger, issuer contract.TokenIssuer, interval time.Duration) *TokenSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &TokenSweeper{log: log, issuer: issuer, interval: interval}
}

func (w *TokenSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping token sweeper")
			return nil
		case <-ticker.C:
			if removed := w.issuer.Sweep(); removed > 0 {
				w.log.Info("Expired handshake tokens removed", "count", removed)
			}
		}
	}
}
