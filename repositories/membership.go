//go:generate go run go.uber.org/mock/mockgen -source=membership.go -destination=../mocks/mock_membership_repository.go -package=mocks
package repositories

import (
	"context"
	"fmt"

	"collab-hub/domain"

	"github.com/dgraph-io/badger/v4"
)

type IMembershipRepository interface {
	AddMember(channel domain.Channel, userID string) error
	RemoveMember(channel domain.Channel, userID string) error
	IsMember(ctx context.Context, channel domain.Channel, userID string) (bool, error)
}

// MembershipRepository is the storage behind the membership oracle.
// Keys are "member:{channel_key}:{user_id}" with empty values; presence
// of the key is the membership fact.
type MembershipRepository struct {
	db *badger.DB
}

func NewMembershipRepository(db *badger.DB) MembershipRepository {
	return MembershipRepository{db: db}
}

func memberKey(channel domain.Channel, userID string) []byte {
	return []byte(fmt.Sprintf("member:%s:%s", channel.Key(), userID))
}

func (m MembershipRepository) AddMember(channel domain.Channel, userID string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(memberKey(channel, userID), nil)
	})
}

func (m MembershipRepository) RemoveMember(channel domain.Channel, userID string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(memberKey(channel, userID))
	})
}

// IsMember answers the membership question fresh on every call; the
// broker never caches the answer because membership can change between
// frames.
func (m MembershipRepository) IsMember(ctx context.Context, channel domain.Channel, userID string) (bool, error) {
	var found bool
	err := m.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(memberKey(channel, userID))
		switch err {
		case nil:
			found = true
			return nil
		case badger.ErrKeyNotFound:
			return nil
		default:
			return err
		}
	})
	return found, err
}
