package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"collab-hub/errors"
)

// DefaultHandshakeTTL bounds the window between fetching a token over
// HTTP and redeeming it on the socket.
const DefaultHandshakeTTL = 60 * time.Second

type handshakeGrant struct {
	userID    string
	expiresAt time.Time
}

// HandshakeIssuer owns the pending-token set for WebSocket handshakes.
// Tokens are opaque random strings bound to an identity, single use,
// and dropped on expiry either at consume time or by the periodic sweep.
//
// The issuer is safe for concurrent use; it is shared between the HTTP
// handlers (Issue) and every connection's read loop (Consume).
type HandshakeIssuer struct {
	mu     sync.Mutex
	log    *slog.Logger
	ttl    time.Duration
	tokens map[string]handshakeGrant
	now    func() time.Time
}

func NewHandshakeIssuer(log *slog.Logger, ttl time.Duration) *HandshakeIssuer {
	if ttl <= 0 {
		ttl = DefaultHandshakeTTL
	}
	return &HandshakeIssuer{
		log:    log,
		ttl:    ttl,
		tokens: make(map[string]handshakeGrant),
		now:    time.Now,
	}
}

// Issue generates a cryptographically random token bound to userID.
// The token is returned over the authenticated HTTP channel, never the
// socket itself.
func (i *HandshakeIssuer) Issue(userID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token generation failed: %w", err)
	}
	token := hex.EncodeToString(buf)

	i.mu.Lock()
	defer i.mu.Unlock()
	i.tokens[token] = handshakeGrant{
		userID:    userID,
		expiresAt: i.now().Add(i.ttl),
	}
	return token, nil
}

// Consume redeems a token exactly once. Unknown, already-consumed and
// expired tokens all fail the same way so the client cannot tell them
// apart.
func (i *HandshakeIssuer) Consume(token string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	grant, ok := i.tokens[token]
	if !ok {
		return "", errors.ErrInvalidToken
	}
	delete(i.tokens, token)
	if i.now().After(grant.expiresAt) {
		return "", errors.ErrInvalidToken
	}
	return grant.userID, nil
}

// Sweep drops tokens past expiry that were never consumed, bounding
// memory. Returns the number of tokens removed.
func (i *HandshakeIssuer) Sweep() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	removed := 0
	for token, grant := range i.tokens {
		if now.After(grant.expiresAt) {
			delete(i.tokens, token)
			removed++
		}
	}
	if removed > 0 {
		i.log.Debug(fmt.Sprintf("Swept %d expired handshake tokens", removed))
	}
	return removed
}

// Pending returns the current pending-token count, for heartbeat stats.
func (i *HandshakeIssuer) Pending() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.tokens)
}
