package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrInvalidToken     = fmt.Errorf("invalid or expired token")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrNotAMember       = fmt.Errorf("not a member of the target channel")
	ErrAmbiguousTarget  = fmt.Errorf("both room and group specified")
	ErrNoTarget         = fmt.Errorf("no target room or group specified")

	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password is not complex enough")

	ErrSendBufferFull = fmt.Errorf("connection send buffer full")
)
