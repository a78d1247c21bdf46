package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/podcraft/backend/internal/account"
)

// AccountStore implements account.Store using GORM.
type AccountStore struct {
	db *gorm.DB
}

// NewAccountStore returns an AccountStore backed by gorm.DB.
func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

// WithTx executes fn within a database transaction.
func (store *AccountStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore account.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &AccountStore{db: transaction})
	})
}

func (store *AccountStore) CreateUser(ctx context.Context, user account.User) error {
	model := userModel(user)
	err := store.db.WithContext(ctx).Create(&model).Error
	if isDuplicateKey(err) {
		return account.ErrEmailTaken
	}
	return err
}

func (store *AccountStore) GetUserByID(ctx context.Context, userID string) (account.User, error) {
	var model User
	err := store.db.WithContext(ctx).Where("user_id = ?", userID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return account.User{}, account.ErrUserNotFound
	}
	if err != nil {
		return account.User{}, err
	}
	return mapUser(model), nil
}

func (store *AccountStore) GetUserByEmail(ctx context.Context, email string) (account.User, error) {
	var model User
	err := store.db.WithContext(ctx).Where("email = ?", email).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return account.User{}, account.ErrUserNotFound
	}
	if err != nil {
		return account.User{}, err
	}
	return mapUser(model), nil
}

func (store *AccountStore) UpdateUser(ctx context.Context, user account.User) error {
	model := userModel(user)
	result := store.db.WithContext(ctx).
		Model(&User{}).
		Where("user_id = ?", user.UserID).
		Updates(map[string]interface{}{
			"email":         model.Email,
			"password_hash": model.PasswordHash,
			"first_name":    model.FirstName,
			"last_name":     model.LastName,
			"is_admin":      model.IsAdmin,
			"last_login_at": model.LastLoginAt,
		})
	if isDuplicateKey(result.Error) {
		return account.ErrEmailTaken
	}
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return account.ErrUserNotFound
	}
	return nil
}

func (store *AccountStore) DeleteUser(ctx context.Context, userID string) error {
	result := store.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return account.ErrUserNotFound
	}
	return nil
}

func (store *AccountStore) ListUsers(ctx context.Context, offset int, limit int) ([]account.User, error) {
	query := store.db.WithContext(ctx).Order("created_at ASC, user_id ASC").Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []User
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	users := make([]account.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, mapUser(row))
	}
	return users, nil
}

func (store *AccountStore) InsertAccessToken(ctx context.Context, token account.AccessToken) error {
	model := AccessToken{
		TokenID:   token.TokenID,
		UserID:    token.UserID,
		ExpiresAt: time.Unix(token.ExpiresUnixUTC, 0).UTC(),
		RevokedAt: unixOrNil(token.RevokedUnixUTC),
		CreatedAt: time.Unix(token.CreatedUnixUTC, 0).UTC(),
	}
	return store.db.WithContext(ctx).Create(&model).Error
}

func (store *AccountStore) GetAccessToken(ctx context.Context, tokenID string) (account.AccessToken, error) {
	var model AccessToken
	err := store.db.WithContext(ctx).Where("token_id = ?", tokenID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return account.AccessToken{}, account.ErrInvalidToken
	}
	if err != nil {
		return account.AccessToken{}, err
	}
	return account.AccessToken{
		TokenID:        model.TokenID,
		UserID:         model.UserID,
		ExpiresUnixUTC: model.ExpiresAt.Unix(),
		RevokedUnixUTC: timeOrZero(model.RevokedAt),
		CreatedUnixUTC: model.CreatedAt.Unix(),
	}, nil
}

func (store *AccountStore) RevokeAccessToken(ctx context.Context, tokenID string, revokedUnixUTC int64) error {
	result := store.db.WithContext(ctx).
		Model(&AccessToken{}).
		Where("token_id = ? AND revoked_at IS NULL", tokenID).
		Update("revoked_at", time.Unix(revokedUnixUTC, 0).UTC())
	if result.Error != nil {
		return result.Error
	}
	return nil
}

func (store *AccountStore) RevokeUserAccessTokens(ctx context.Context, userID string, revokedUnixUTC int64) error {
	return store.db.WithContext(ctx).
		Model(&AccessToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", time.Unix(revokedUnixUTC, 0).UTC()).Error
}

func (store *AccountStore) InsertResetToken(ctx context.Context, token account.PasswordResetToken) error {
	model := PasswordResetToken{
		TokenID:   token.TokenID,
		UserID:    token.UserID,
		Secret:    token.Secret,
		ExpiresAt: time.Unix(token.ExpiresUnixUTC, 0).UTC(),
		UsedAt:    unixOrNil(token.UsedUnixUTC),
	}
	return store.db.WithContext(ctx).Create(&model).Error
}

func (store *AccountStore) GetResetTokenBySecret(ctx context.Context, secret string) (account.PasswordResetToken, error) {
	var model PasswordResetToken
	err := store.db.WithContext(ctx).Where("secret = ?", secret).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return account.PasswordResetToken{}, account.ErrResetTokenInvalid
	}
	if err != nil {
		return account.PasswordResetToken{}, err
	}
	return account.PasswordResetToken{
		TokenID:        model.TokenID,
		UserID:         model.UserID,
		Secret:         model.Secret,
		ExpiresUnixUTC: model.ExpiresAt.Unix(),
		UsedUnixUTC:    timeOrZero(model.UsedAt),
	}, nil
}

func (store *AccountStore) MarkResetTokenUsed(ctx context.Context, tokenID string, usedUnixUTC int64) error {
	result := store.db.WithContext(ctx).
		Model(&PasswordResetToken{}).
		Where("token_id = ? AND used_at IS NULL", tokenID).
		Update("used_at", time.Unix(usedUnixUTC, 0).UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return account.ErrResetTokenInvalid
	}
	return nil
}

func userModel(user account.User) User {
	return User{
		UserID:       user.UserID,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		IsAdmin:      user.IsAdmin,
		LastLoginAt:  unixOrNil(user.LastLoginUnixUTC),
		CreatedAt:    time.Unix(user.CreatedUnixUTC, 0).UTC(),
	}
}

func mapUser(model User) account.User {
	return account.User{
		UserID:           model.UserID,
		Email:            model.Email,
		PasswordHash:     model.PasswordHash,
		FirstName:        model.FirstName,
		LastName:         model.LastName,
		IsAdmin:          model.IsAdmin,
		CreatedUnixUTC:   model.CreatedAt.Unix(),
		LastLoginUnixUTC: timeOrZero(model.LastLoginAt),
	}
}
