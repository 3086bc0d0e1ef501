package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"collab-hub/contract"
	"collab-hub/domain"
	"collab-hub/errors"
)

// Broker drives the per-connection protocol state machine:
// Unauthenticated -> Authenticated -> Bound. It validates every
// transition against the membership oracle and persists messages
// before handing them to the fan-out scheduler.
//
// HandleFrame returns a non-nil error only for terminal failures
// (invalid token, frame before auth); the transport closes the socket
// in that case. Join and message errors are reported back on the same
// connection and leave its state untouched.
type Broker struct {
	log       *slog.Logger
	issuer    contract.TokenIssuer
	oracle    contract.MembershipOracle
	store     contract.MessageStore
	registry  *Registry
	scheduler *Scheduler
}

func NewBroker(log *slog.Logger, issuer contract.TokenIssuer, oracle contract.MembershipOracle,
	store contract.MessageStore, registry *Registry, scheduler *Scheduler) *Broker {
	b := &Broker{
		log:       log,
		issuer:    issuer,
		oracle:    oracle,
		store:     store,
		registry:  registry,
		scheduler: scheduler,
	}
	scheduler.OnDeadConnection(b.dropConnection)
	return b
}

// dropConnection tears down the transport of a connection whose send
// failed mid-flush. Only the sink is closed here: the read loop sees
// the dead socket and runs Disconnect on its own goroutine, keeping
// registry mutation off the flush path.
func (b *Broker) dropConnection(conn *Connection) {
	conn.Close()
}

// Connect registers a freshly opened socket and returns its state.
func (b *Broker) Connect(sink contract.MessageSink) *Connection {
	return b.registry.Register(sink)
}

// Disconnect removes the connection and releases any channel binding.
// Safe to call on every close path, including twice.
func (b *Broker) Disconnect(conn *Connection) {
	b.registry.Unregister(conn)
}

// HandleFrame decodes and applies one inbound frame.
func (b *Broker) HandleFrame(ctx context.Context, conn *Connection, raw []byte) error {
	frame, err := domain.DecodeFrame(raw)
	if err != nil {
		b.log.Warn("Dropping malformed frame", "user", conn.UserID(), "error", err)
		b.reply(conn, domain.NewError("Internal server error"))
		if !conn.Authenticated() {
			return errors.ErrNotAuthenticated
		}
		return nil
	}

	switch f := frame.(type) {
	case domain.AuthFrame:
		return b.handleAuth(conn, f)
	case domain.JoinFrame:
		return b.handleJoin(ctx, conn, f)
	case domain.MessageFrame:
		return b.handleMessage(ctx, conn, f)
	default:
		// DecodeFrame only produces the three variants above.
		return nil
	}
}

// handleAuth consumes the handshake token. Failure is terminal: the
// channel-less window of vulnerability stays as short as possible.
func (b *Broker) handleAuth(conn *Connection, frame domain.AuthFrame) error {
	userID, err := b.issuer.Consume(frame.Token)
	if err != nil {
		b.reply(conn, domain.NewError("Invalid or expired token"))
		return errors.ErrInvalidToken
	}

	b.registry.Authenticate(conn, userID)
	b.reply(conn, domain.NewAuthSuccess(userID))
	b.log.Debug("Connection authenticated", "user", userID)
	return nil
}

func (b *Broker) handleJoin(ctx context.Context, conn *Connection, frame domain.JoinFrame) error {
	if !conn.Authenticated() {
		b.reply(conn, domain.NewError("Not authenticated"))
		return errors.ErrNotAuthenticated
	}
	if frame.RoomID != nil && frame.GroupID != nil {
		b.reply(conn, domain.NewError("Cannot specify both roomId and groupId"))
		return nil
	}

	// Neither id means "leave": release the current binding.
	if frame.RoomID == nil && frame.GroupID == nil {
		b.registry.Unbind(conn)
		b.reply(conn, domain.NewJoinSuccess(domain.Channel{}))
		return nil
	}

	channel, memberErr := b.targetChannel(frame.RoomID, frame.GroupID)
	ok, err := b.oracle.IsMember(ctx, channel, conn.UserID())
	if err != nil {
		b.log.Error("Membership check failed", "channel", channel.String(), "error", err)
		b.reply(conn, domain.NewError("Internal server error"))
		return nil
	}
	if !ok {
		b.reply(conn, domain.NewError(memberErr))
		return nil
	}

	// Rebinding releases the old channel first, so a message enqueued
	// for it moments before never reaches this connection afterwards.
	b.registry.Bind(conn, channel)
	b.reply(conn, domain.NewJoinSuccess(channel))
	b.log.Debug("Connection bound", "user", conn.UserID(), "channel", channel.String())
	return nil
}

func (b *Broker) handleMessage(ctx context.Context, conn *Connection, frame domain.MessageFrame) error {
	if !conn.Authenticated() {
		b.reply(conn, domain.NewError("Not authenticated"))
		return errors.ErrNotAuthenticated
	}
	if frame.RoomID != nil && frame.GroupID != nil {
		b.reply(conn, domain.NewError("Cannot specify both roomId and groupId"))
		return nil
	}

	// Explicit target wins; otherwise fall back to the bound channel.
	var channel domain.Channel
	switch {
	case frame.RoomID != nil:
		channel = domain.RoomChannel(*frame.RoomID)
	case frame.GroupID != nil:
		channel = domain.GroupChannel(*frame.GroupID)
	case !conn.Channel().IsZero():
		channel = conn.Channel()
	default:
		b.reply(conn, domain.NewError("No target room or group specified"))
		return nil
	}

	ok, err := b.oracle.IsMember(ctx, channel, conn.UserID())
	if err != nil {
		b.log.Error("Membership check failed", "channel", channel.String(), "error", err)
		b.reply(conn, domain.NewError("Internal server error"))
		return nil
	}
	if !ok {
		b.reply(conn, domain.NewError(fmt.Sprintf("Not authorized to send messages to this %s", channel.Kind)))
		return nil
	}

	// Write precedes broadcast: a message that fails to persist is
	// dropped, never queued for fan-out.
	message, err := b.store.PersistMessage(ctx, frame.Content, conn.UserID(), channel)
	if err != nil {
		b.log.Error("Message persistence failed", "user", conn.UserID(), "error", err)
		b.reply(conn, domain.NewError("Internal server error"))
		return nil
	}

	b.scheduler.Enqueue(channel, message)
	return nil
}

func (b *Broker) targetChannel(roomID, groupID *int) (domain.Channel, string) {
	if roomID != nil {
		return domain.RoomChannel(*roomID), "Not a room member"
	}
	return domain.GroupChannel(*groupID), "Not a group member"
}

// reply is best effort: a connection that cannot even take an error
// frame is about to die anyway.
func (b *Broker) reply(conn *Connection, frame domain.ServerFrame) {
	if err := conn.Send(frame); err != nil {
		b.log.Debug("Reply dropped", "user", conn.UserID(), "error", err)
	}
}
