package main

import (
	goerrors "errors"
	"log/slog"

	"collab-hub/auth"
	"collab-hub/domain"
	"collab-hub/errors"
	"collab-hub/repositories"
	"collab-hub/services"
)

const (
	demoUsername = "demo"
	demoPassword = "Demo&Secret!pw1"
)

// seedDemo provisions a demo account that is a member of room 1 and
// group 1, so a fresh instance can be exercised end to end without a
// separate provisioning step. Idempotent across restarts.
func seedDemo(log *slog.Logger, authService services.IAuthService,
	users repositories.IUserRepository, membership repositories.IMembershipRepository) error {

	session, err := authService.Register(auth.RegisterRequest{
		Username: demoUsername,
		Password: demoPassword,
	})
	userID := session.UserID
	if err != nil {
		if !goerrors.Is(err, errors.ErrUserAlreadyExists) {
			return err
		}
		user, err := users.GetUserByUsername(demoUsername)
		if err != nil {
			return err
		}
		userID = user.ID
	}

	for _, channel := range []domain.Channel{domain.RoomChannel(1), domain.GroupChannel(1)} {
		if err := membership.AddMember(channel, userID); err != nil {
			return err
		}
	}
	log.Info("Demo account seeded", "user", userID)
	return nil
}
