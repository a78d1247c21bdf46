package memstore

import (
	"context"
	"sync"

	"github.com/podcraft/backend/internal/account"
)

// Accounts is an in-memory account.Store.
type Accounts struct {
	mutex        sync.Mutex
	users        map[string]account.User
	userOrder    []string
	emailIndex   map[string]string
	accessTokens map[string]account.AccessToken
	resetTokens  map[string]account.PasswordResetToken
	secretIndex  map[string]string
}

// NewAccounts builds an empty in-memory account store.
func NewAccounts() *Accounts {
	return &Accounts{
		users:        map[string]account.User{},
		emailIndex:   map[string]string{},
		accessTokens: map[string]account.AccessToken{},
		resetTokens:  map[string]account.PasswordResetToken{},
		secretIndex:  map[string]string{},
	}
}

func (store *Accounts) WithTx(ctx context.Context, fn func(ctx context.Context, txStore account.Store) error) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	savedUsers := cloneMap(store.users)
	savedOrder := append([]string(nil), store.userOrder...)
	savedEmails := cloneMap(store.emailIndex)
	savedAccess := cloneMap(store.accessTokens)
	savedResets := cloneMap(store.resetTokens)
	savedSecrets := cloneMap(store.secretIndex)

	if err := fn(ctx, &accountsTx{store: store}); err != nil {
		store.users = savedUsers
		store.userOrder = savedOrder
		store.emailIndex = savedEmails
		store.accessTokens = savedAccess
		store.resetTokens = savedResets
		store.secretIndex = savedSecrets
		return err
	}
	return nil
}

func cloneMap[Value any](source map[string]Value) map[string]Value {
	cloned := make(map[string]Value, len(source))
	for key, value := range source {
		cloned[key] = value
	}
	return cloned
}

func (store *Accounts) CreateUser(ctx context.Context, user account.User) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.createUserLocked(user)
}

func (store *Accounts) GetUserByID(ctx context.Context, userID string) (account.User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.getUserByIDLocked(userID)
}

func (store *Accounts) GetUserByEmail(ctx context.Context, email string) (account.User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.getUserByEmailLocked(email)
}

func (store *Accounts) UpdateUser(ctx context.Context, user account.User) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.updateUserLocked(user)
}

func (store *Accounts) DeleteUser(ctx context.Context, userID string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.deleteUserLocked(userID)
}

func (store *Accounts) ListUsers(ctx context.Context, offset int, limit int) ([]account.User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.listUsersLocked(offset, limit)
}

func (store *Accounts) InsertAccessToken(ctx context.Context, token account.AccessToken) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.insertAccessTokenLocked(token)
}

func (store *Accounts) GetAccessToken(ctx context.Context, tokenID string) (account.AccessToken, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.getAccessTokenLocked(tokenID)
}

func (store *Accounts) RevokeAccessToken(ctx context.Context, tokenID string, revokedUnixUTC int64) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.revokeAccessTokenLocked(tokenID, revokedUnixUTC)
}

func (store *Accounts) RevokeUserAccessTokens(ctx context.Context, userID string, revokedUnixUTC int64) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.revokeUserAccessTokensLocked(userID, revokedUnixUTC)
}

func (store *Accounts) InsertResetToken(ctx context.Context, token account.PasswordResetToken) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.insertResetTokenLocked(token)
}

func (store *Accounts) GetResetTokenBySecret(ctx context.Context, secret string) (account.PasswordResetToken, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.getResetTokenBySecretLocked(secret)
}

func (store *Accounts) MarkResetTokenUsed(ctx context.Context, tokenID string, usedUnixUTC int64) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.markResetTokenUsedLocked(tokenID, usedUnixUTC)
}

func (store *Accounts) createUserLocked(user account.User) error {
	if _, taken := store.emailIndex[user.Email]; taken {
		return account.ErrEmailTaken
	}
	if _, exists := store.users[user.UserID]; exists {
		return account.ErrEmailTaken
	}
	store.users[user.UserID] = user
	store.userOrder = append(store.userOrder, user.UserID)
	store.emailIndex[user.Email] = user.UserID
	return nil
}

func (store *Accounts) getUserByIDLocked(userID string) (account.User, error) {
	user, exists := store.users[userID]
	if !exists {
		return account.User{}, account.ErrUserNotFound
	}
	return user, nil
}

func (store *Accounts) getUserByEmailLocked(email string) (account.User, error) {
	userID, exists := store.emailIndex[email]
	if !exists {
		return account.User{}, account.ErrUserNotFound
	}
	return store.users[userID], nil
}

func (store *Accounts) updateUserLocked(user account.User) error {
	existing, exists := store.users[user.UserID]
	if !exists {
		return account.ErrUserNotFound
	}
	if existing.Email != user.Email {
		if _, taken := store.emailIndex[user.Email]; taken {
			return account.ErrEmailTaken
		}
		delete(store.emailIndex, existing.Email)
		store.emailIndex[user.Email] = user.UserID
	}
	store.users[user.UserID] = user
	return nil
}

func (store *Accounts) deleteUserLocked(userID string) error {
	user, exists := store.users[userID]
	if !exists {
		return account.ErrUserNotFound
	}
	delete(store.users, userID)
	delete(store.emailIndex, user.Email)
	for index, id := range store.userOrder {
		if id == userID {
			store.userOrder = append(store.userOrder[:index], store.userOrder[index+1:]...)
			break
		}
	}
	return nil
}

func (store *Accounts) listUsersLocked(offset int, limit int) ([]account.User, error) {
	if offset >= len(store.userOrder) {
		return []account.User{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(store.userOrder) {
		end = len(store.userOrder)
	}
	listed := make([]account.User, 0, end-offset)
	for _, userID := range store.userOrder[offset:end] {
		listed = append(listed, store.users[userID])
	}
	return listed, nil
}

func (store *Accounts) insertAccessTokenLocked(token account.AccessToken) error {
	store.accessTokens[token.TokenID] = token
	return nil
}

func (store *Accounts) getAccessTokenLocked(tokenID string) (account.AccessToken, error) {
	token, exists := store.accessTokens[tokenID]
	if !exists {
		return account.AccessToken{}, account.ErrInvalidToken
	}
	return token, nil
}

func (store *Accounts) revokeAccessTokenLocked(tokenID string, revokedUnixUTC int64) error {
	token, exists := store.accessTokens[tokenID]
	if !exists {
		return account.ErrInvalidToken
	}
	if token.RevokedUnixUTC == 0 {
		token.RevokedUnixUTC = revokedUnixUTC
		store.accessTokens[tokenID] = token
	}
	return nil
}

func (store *Accounts) revokeUserAccessTokensLocked(userID string, revokedUnixUTC int64) error {
	for tokenID, token := range store.accessTokens {
		if token.UserID == userID && token.RevokedUnixUTC == 0 {
			token.RevokedUnixUTC = revokedUnixUTC
			store.accessTokens[tokenID] = token
		}
	}
	return nil
}

func (store *Accounts) insertResetTokenLocked(token account.PasswordResetToken) error {
	store.resetTokens[token.TokenID] = token
	store.secretIndex[token.Secret] = token.TokenID
	return nil
}

func (store *Accounts) getResetTokenBySecretLocked(secret string) (account.PasswordResetToken, error) {
	tokenID, exists := store.secretIndex[secret]
	if !exists {
		return account.PasswordResetToken{}, account.ErrResetTokenInvalid
	}
	return store.resetTokens[tokenID], nil
}

func (store *Accounts) markResetTokenUsedLocked(tokenID string, usedUnixUTC int64) error {
	token, exists := store.resetTokens[tokenID]
	if !exists {
		return account.ErrResetTokenInvalid
	}
	token.UsedUnixUTC = usedUnixUTC
	store.resetTokens[tokenID] = token
	return nil
}

// accountsTx is the view handed to WithTx callbacks while the parent mutex is
// held.
type accountsTx struct {
	store *Accounts
}

func (tx *accountsTx) WithTx(ctx context.Context, fn func(ctx context.Context, txStore account.Store) error) error {
	return fn(ctx, tx)
}

func (tx *accountsTx) CreateUser(ctx context.Context, user account.User) error {
	return tx.store.createUserLocked(user)
}

func (tx *accountsTx) GetUserByID(ctx context.Context, userID string) (account.User, error) {
	return tx.store.getUserByIDLocked(userID)
}

func (tx *accountsTx) GetUserByEmail(ctx context.Context, email string) (account.User, error) {
	return tx.store.getUserByEmailLocked(email)
}

func (tx *accountsTx) UpdateUser(ctx context.Context, user account.User) error {
	return tx.store.updateUserLocked(user)
}

func (tx *accountsTx) DeleteUser(ctx context.Context, userID string) error {
	return tx.store.deleteUserLocked(userID)
}

func (tx *accountsTx) ListUsers(ctx context.Context, offset int, limit int) ([]account.User, error) {
	return tx.store.listUsersLocked(offset, limit)
}

func (tx *accountsTx) InsertAccessToken(ctx context.Context, token account.AccessToken) error {
	return tx.store.insertAccessTokenLocked(token)
}

func (tx *accountsTx) GetAccessToken(ctx context.Context, tokenID string) (account.AccessToken, error) {
	return tx.store.getAccessTokenLocked(tokenID)
}

func (tx *accountsTx) RevokeAccessToken(ctx context.Context, tokenID string, revokedUnixUTC int64) error {
	return tx.store.revokeAccessTokenLocked(tokenID, revokedUnixUTC)
}

func (tx *accountsTx) RevokeUserAccessTokens(ctx context.Context, userID string, revokedUnixUTC int64) error {
	return tx.store.revokeUserAccessTokensLocked(userID, revokedUnixUTC)
}

func (tx *accountsTx) InsertResetToken(ctx context.Context, token account.PasswordResetToken) error {
	return tx.store.insertResetTokenLocked(token)
}

func (tx *accountsTx) GetResetTokenBySecret(ctx context.Context, secret string) (account.PasswordResetToken, error) {
	return tx.store.getResetTokenBySecretLocked(secret)
}

func (tx *accountsTx) MarkResetTokenUsed(ctx context.Context, tokenID string, usedUnixUTC int64) error {
	return tx.store.markResetTokenUsedLocked(tokenID, usedUnixUTC)
}
