package repositories

import (
	"context"
	"log/slog"
	"testing"

	"collab-hub/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Persist_Assigns_Id_And_Timestamp(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	channel := domain.RoomChannel(1)

	message, err := repository.PersistMessage(context.Background(), "hello", "alice", channel)

	req.NoError(err)
	req.NotEqual([16]byte{}, [16]byte(message.ID))
	req.False(message.CreatedAt.IsZero())
	req.Equal(channel, message.Channel())
	req.Equal("alice", message.SenderID)
}

func Test_GetMessages_Newest_First(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	channel := domain.RoomChannel(1)
	contents := []string{"first", "second", "third"}

	for _, content := range contents {
		_, err := repository.PersistMessage(context.Background(), content, "alice", channel)
		req.NoError(err)
	}

	fetched, err := repository.GetMessages(channel)
	req.NoError(err)
	req.Len(fetched, len(contents))
	req.Equal("third", fetched[0].Content)
	req.Equal("first", fetched[2].Content)
}

func Test_GetMessages_Respects_Limit(t *testing.T) {
	req := require.New(t)
	limit := 2
	repository := NewMessageRepository(openTestDB(t), slog.Default(), &limit)
	channel := domain.RoomChannel(1)

	for _, content := range []string{"first", "second", "third"} {
		_, err := repository.PersistMessage(context.Background(), content, "alice", channel)
		req.NoError(err)
	}

	fetched, err := repository.GetMessages(channel)
	req.NoError(err)
	req.Len(fetched, limit)
	// Newest survive the cut
	req.Equal("third", fetched[0].Content)
	req.Equal("second", fetched[1].Content)
}

func Test_GetMessages_Channels_Are_Isolated(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)

	_, err := repository.PersistMessage(context.Background(), "room talk", "alice", domain.RoomChannel(5))
	req.NoError(err)
	_, err = repository.PersistMessage(context.Background(), "group talk", "bob", domain.GroupChannel(5))
	req.NoError(err)

	roomMessages, err := repository.GetMessages(domain.RoomChannel(5))
	req.NoError(err)
	req.Len(roomMessages, 1)
	req.Equal("room talk", roomMessages[0].Content)

	groupMessages, err := repository.GetMessages(domain.GroupChannel(5))
	req.NoError(err)
	req.Len(groupMessages, 1)
	req.Equal("group talk", groupMessages[0].Content)
}

func Test_GetMessages_Empty_Channel(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)

	fetched, err := repository.GetMessages(domain.RoomChannel(99))

	req.NoError(err)
	req.Empty(fetched)
}
