//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"collab-hub/domain"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// TokenIssuer hands out single-use handshake tokens over the
// authenticated HTTP surface and redeems them during the WebSocket
// handshake. Sweep drops expired tokens and returns how many it removed.
type TokenIssuer interface {
	Issue(userID string) (string, error)
	Consume(token string) (string, error)
	Sweep() int
}

// MembershipOracle answers whether an identity belongs to a channel.
// It is consulted at bind and message time, never cached: membership
// can change between frames.
type MembershipOracle interface {
	IsMember(ctx context.Context, channel domain.Channel, userID string) (bool, error)
}

// MessageStore durably persists a chat message before any delivery.
type MessageStore interface {
	PersistMessage(ctx context.Context, content, senderID string, channel domain.Channel) (domain.Message, error)
}

// MessageSink is one live connection's outbound side. Send must not
// block on a slow peer; implementations buffer and fail fast instead.
// Close tears down the underlying transport and must be safe to call
// more than once and from any goroutine.
type MessageSink interface {
	Send(frame domain.ServerFrame) error
	Close()
}
