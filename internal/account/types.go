package account

import "context"

// User is the registered account holder.
type User struct {
	UserID           string
	Email            string
	PasswordHash     string
	FirstName        string
	LastName         string
	IsAdmin          bool
	CreatedUnixUTC   int64
	LastLoginUnixUTC int64
}

// AccessToken is one issued bearer token. Tokens are signed JWTs whose jti is
// persisted here so that authentication resolves the token to an account
// through this table, and revocation is a row update.
type AccessToken struct {
	TokenID        string
	UserID         string
	ExpiresUnixUTC int64
	RevokedUnixUTC int64
	CreatedUnixUTC int64
}

// PasswordResetToken is a single-use, expiring reset secret.
type PasswordResetToken struct {
	TokenID        string
	UserID         string
	Secret         string
	ExpiresUnixUTC int64
	UsedUnixUTC    int64
}

// Session is the result of a successful login.
type Session struct {
	Token          string
	ExpiresUnixUTC int64
}

// ProfileUpdate carries the optional profile fields; nil leaves a field
// unchanged.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
}

// Store is the persistence contract used by Service.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	CreateUser(ctx context.Context, user User) error
	GetUserByID(ctx context.Context, userID string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, userID string) error
	ListUsers(ctx context.Context, offset int, limit int) ([]User, error)
	InsertAccessToken(ctx context.Context, token AccessToken) error
	GetAccessToken(ctx context.Context, tokenID string) (AccessToken, error)
	RevokeAccessToken(ctx context.Context, tokenID string, revokedUnixUTC int64) error
	RevokeUserAccessTokens(ctx context.Context, userID string, revokedUnixUTC int64) error
	InsertResetToken(ctx context.Context, token PasswordResetToken) error
	GetResetTokenBySecret(ctx context.Context, secret string) (PasswordResetToken, error)
	MarkResetTokenUsed(ctx context.Context, tokenID string, usedUnixUTC int64) error
}
