package account

import "errors"

// Domain-level error values returned by the account service.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid access token")
	ErrTokenRevoked       = errors.New("access token revoked")
	ErrTokenExpired       = errors.New("access token expired")
	ErrResetTokenInvalid  = errors.New("invalid or expired reset token")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("password too short")
	ErrInvalidConfig      = errors.New("invalid account service config")
)
