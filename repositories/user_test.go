package repositories

import (
	"testing"

	"collab-hub/errors"

	"github.com/stretchr/testify/require"
)

func Test_CreateUser_And_Get(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	userID, err := repository.CreateUser("alice", "alice@example.com", "$argon2id$...")
	req.NoError(err)
	req.NotEmpty(userID)

	user, err := repository.GetUserByUsername("alice")
	req.NoError(err)
	req.Equal(userID, user.ID)
	req.Equal("alice@example.com", user.Email)
	req.Equal([]string{"member"}, user.Roles)
}

func Test_CreateUser_Duplicate_Username(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.CreateUser("alice", "", "hash")
	req.NoError(err)

	_, err = repository.CreateUser("alice", "", "hash")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_GetUser_Unknown(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.GetUserByUsername("ghost")
	req.Error(err)
}
