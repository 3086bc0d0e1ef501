package auth

import (
	"log/slog"
	"testing"
	"time"

	"collab-hub/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestHandshakeIssuer_Consume_Exactly_Once(t *testing.T) {
	req := require.New(t)
	issuer := NewHandshakeIssuer(slog.Default(), time.Minute)
	userID := uuid.NewString()

	// Given an issued token
	token, err := issuer.Issue(userID)
	req.NoError(err)
	req.Len(token, 64) // 32 random bytes, hex encoded

	// When the token is consumed
	got, err := issuer.Consume(token)

	// Then it resolves the bound identity
	req.NoError(err)
	req.Equal(userID, got)

	// And a second consume fails
	_, err = issuer.Consume(token)
	req.ErrorIs(err, errors.ErrInvalidToken)
}

func TestHandshakeIssuer_Unknown_Token(t *testing.T) {
	req := require.New(t)
	issuer := NewHandshakeIssuer(slog.Default(), time.Minute)

	_, err := issuer.Consume("nope")

	req.ErrorIs(err, errors.ErrInvalidToken)
}

func TestHandshakeIssuer_Expired_Token_Rejected_At_Consume(t *testing.T) {
	req := require.New(t)
	issuer := NewHandshakeIssuer(slog.Default(), time.Minute)
	now := time.Now()
	issuer.now = func() time.Time { return now }

	token, err := issuer.Issue(uuid.NewString())
	req.NoError(err)

	// When the expiry window has passed
	issuer.now = func() time.Time { return now.Add(61 * time.Second) }

	_, err = issuer.Consume(token)

	req.ErrorIs(err, errors.ErrInvalidToken)
}

func TestHandshakeIssuer_Sweep_Drops_Only_Expired(t *testing.T) {
	req := require.New(t)
	issuer := NewHandshakeIssuer(slog.Default(), time.Minute)
	now := time.Now()
	issuer.now = func() time.Time { return now }

	// Given one token issued long ago and one fresh token
	stale, err := issuer.Issue(uuid.NewString())
	req.NoError(err)
	issuer.now = func() time.Time { return now.Add(2 * time.Minute) }
	freshUser := uuid.NewString()
	fresh, err := issuer.Issue(freshUser)
	req.NoError(err)

	// When the sweep runs
	removed := issuer.Sweep()

	// Then only the stale token is gone
	req.Equal(1, removed)
	req.Equal(1, issuer.Pending())
	_, err = issuer.Consume(stale)
	req.ErrorIs(err, errors.ErrInvalidToken)
	got, err := issuer.Consume(fresh)
	req.NoError(err)
	req.Equal(freshUser, got)
}

func TestHandshakeIssuer_Tokens_Are_Unique(t *testing.T) {
	req := require.New(t)
	issuer := NewHandshakeIssuer(slog.Default(), time.Minute)

	a, err := issuer.Issue("u1")
	req.NoError(err)
	b, err := issuer.Issue("u1")
	req.NoError(err)

	req.NotEqual(a, b)
}
