package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRoleMismatch       = errors.New("role does not match the registered role")
	ErrInvalidToken       = errors.New("invalid token")
)
