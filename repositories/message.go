//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"collab-hub/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const defaultMessageLimit = 100

type IMessageRepository interface {
	PersistMessage(ctx context.Context, content, senderID string, channel domain.Channel) (domain.Message, error)
	GetMessages(channel domain.Channel) ([]domain.Message, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// diskMessage is the stored form of a message, encoded as JSON.
type diskMessage struct {
	ID      uuid.UUID `json:"id"`
	Channel string    `json:"channel"`
	Author  string    `json:"author"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// PersistMessage durably writes a message and returns it with its
// generated id and timestamp. The key is formatted as
// "msg:{channel_key}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func (m MessageRepository) PersistMessage(ctx context.Context, content, senderID string, channel domain.Channel) (domain.Message, error) {
	message := domain.NewMessage(uuid.New(), senderID, content, channel, time.Now().UTC())

	key := fmt.Sprintf("msg:%s:%019d:%s",
		channel.Key(),
		message.CreatedAt.UnixNano(),
		message.ID,
	)
	bytes, err := json.Marshal(fromMessage(message, channel))
	if err != nil {
		return domain.Message{}, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("message write failed: %w", err)
	}
	return message, nil
}

// GetMessages retrieves the newest messages for a channel using a
// reverse prefix scan. Thanks to the padded timestamp in the key,
// messages are naturally sorted by time; the scan walks newest first
// and stops once the configured limit is reached.
func (m MessageRepository) GetMessages(channel domain.Channel) ([]domain.Message, error) {
	limit := defaultMessageLimit
	if m.limitMessages != nil {
		limit = *m.limitMessages
	}

	var stored []diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", channel.Key())
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key for this channel, then
		// walk backwards while the prefix still matches.
		seekKey := append([]byte{}, prefix...)
		seekKey = append(seekKey, []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(stored) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", limit))
				break
			}
			item := it.Item()
			err := item.Value(func(value []byte) error {
				var dm diskMessage
				if err := json.Unmarshal(value, &dm); err != nil {
					return err
				}
				stored = append(stored, dm)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return lo.Map(stored, func(dm diskMessage, _ int) domain.Message {
		return toMessage(dm, channel)
	}), nil
}

func fromMessage(message domain.Message, channel domain.Channel) diskMessage {
	return diskMessage{
		ID:      message.ID,
		Channel: channel.Key(),
		Author:  message.SenderID,
		Content: message.Content,
		At:      message.CreatedAt,
	}
}

func toMessage(dm diskMessage, channel domain.Channel) domain.Message {
	return domain.NewMessage(dm.ID, dm.Author, dm.Content, channel, dm.At.UTC())
}
