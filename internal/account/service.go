package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/podcraft/backend/pkg/ledger"
)

const (
	minPasswordLength = 6

	defaultTokenTTL      = 30 * 24 * time.Hour
	defaultResetTokenTTL = time.Hour
)

// Config carries the account service settings.
type Config struct {
	SigningKey    []byte
	Issuer        string
	TokenTTL      time.Duration
	ResetTokenTTL time.Duration
	SignupBonus   int64
}

// Service owns user registration, authentication, and profile management.
// Credit accounts are opened through the ledger at registration time.
type Service struct {
	store   Store
	credits *ledger.Service
	cfg     Config
	nowFn   func() int64
}

// NewService wires a Service.
func NewService(store Store, credits *ledger.Service, cfg Config, now func() int64) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidConfig)
	}
	if credits == nil {
		return nil, fmt.Errorf("%w: ledger dependency is nil", ErrInvalidConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidConfig)
	}
	if len(cfg.SigningKey) == 0 {
		return nil, fmt.Errorf("%w: signing key is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("%w: issuer is required", ErrInvalidConfig)
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = defaultResetTokenTTL
	}
	return &Service{store: store, credits: credits, cfg: cfg, nowFn: now}, nil
}

// Register creates the user and opens their credit account with the signup
// bonus.
func (service *Service) Register(ctx context.Context, email string, password string, firstName string, lastName string) (User, error) {
	normalizedEmail, err := normalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	if len(password) < minPasswordLength {
		return User{}, fmt.Errorf("%w: minimum %d characters", ErrWeakPassword, minPasswordLength)
	}
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	user := User{
		UserID:         uuid.NewString(),
		Email:          normalizedEmail,
		PasswordHash:   string(passwordHash),
		FirstName:      strings.TrimSpace(firstName),
		LastName:       strings.TrimSpace(lastName),
		CreatedUnixUTC: service.nowFn(),
	}
	if err := service.store.CreateUser(ctx, user); err != nil {
		return User{}, err
	}
	accountID, err := ledger.NewAccountID(user.UserID)
	if err != nil {
		return User{}, err
	}
	metadata, err := ledger.NewMetadataJSON(`{"action":"signup"}`)
	if err != nil {
		return User{}, err
	}
	if _, err := service.credits.OpenAccount(ctx, accountID, service.cfg.SignupBonus, metadata); err != nil {
		return User{}, err
	}
	return user, nil
}

// Login verifies the password and issues a signed access token whose id is
// persisted for later lookup and revocation.
func (service *Service) Login(ctx context.Context, email string, password string) (Session, User, error) {
	normalizedEmail, err := normalizeEmail(email)
	if err != nil {
		return Session{}, User{}, ErrInvalidCredentials
	}
	user, err := service.store.GetUserByEmail(ctx, normalizedEmail)
	if err != nil {
		return Session{}, User{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Session{}, User{}, ErrInvalidCredentials
	}

	now := service.nowFn()
	expires := now + int64(service.cfg.TokenTTL/time.Second)
	tokenID := uuid.NewString()
	claims := jwt.RegisteredClaims{
		ID:        tokenID,
		Subject:   user.UserID,
		Issuer:    service.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(time.Unix(now, 0).UTC()),
		ExpiresAt: jwt.NewNumericDate(time.Unix(expires, 0).UTC()),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(service.cfg.SigningKey)
	if err != nil {
		return Session{}, User{}, err
	}
	if err := service.store.InsertAccessToken(ctx, AccessToken{
		TokenID:        tokenID,
		UserID:         user.UserID,
		ExpiresUnixUTC: expires,
		CreatedUnixUTC: now,
	}); err != nil {
		return Session{}, User{}, err
	}
	user.LastLoginUnixUTC = now
	if err := service.store.UpdateUser(ctx, user); err != nil {
		return Session{}, User{}, err
	}
	return Session{Token: signed, ExpiresUnixUTC: expires}, user, nil
}

// Authenticate resolves a bearer token to its user. The signature check alone
// is not enough: the token id must resolve through the issued-token table so
// a revoked token stops working immediately.
func (service *Service) Authenticate(ctx context.Context, rawToken string) (User, error) {
	tokenID, subject, err := service.parseToken(rawToken)
	if err != nil {
		return User{}, err
	}
	issued, err := service.store.GetAccessToken(ctx, tokenID)
	if err != nil {
		return User{}, ErrInvalidToken
	}
	if issued.RevokedUnixUTC != 0 {
		return User{}, ErrTokenRevoked
	}
	if service.nowFn() >= issued.ExpiresUnixUTC {
		return User{}, ErrTokenExpired
	}
	if issued.UserID != subject {
		return User{}, ErrInvalidToken
	}
	user, err := service.store.GetUserByID(ctx, issued.UserID)
	if err != nil {
		return User{}, ErrInvalidToken
	}
	return user, nil
}

// Logout revokes the presented token.
func (service *Service) Logout(ctx context.Context, rawToken string) error {
	tokenID, _, err := service.parseToken(rawToken)
	if err != nil {
		return err
	}
	return service.store.RevokeAccessToken(ctx, tokenID, service.nowFn())
}

// GetUser loads a user by id.
func (service *Service) GetUser(ctx context.Context, userID string) (User, error) {
	return service.store.GetUserByID(ctx, userID)
}

// UpdateProfile applies the provided profile fields.
func (service *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (User, error) {
	user, err := service.store.GetUserByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if update.FirstName != nil {
		user.FirstName = strings.TrimSpace(*update.FirstName)
	}
	if update.LastName != nil {
		user.LastName = strings.TrimSpace(*update.LastName)
	}
	if err := service.store.UpdateUser(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// ForgotPassword issues a single-use reset token. An unknown email yields no
// error and no token so the endpoint does not leak registered addresses.
func (service *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	normalizedEmail, err := normalizeEmail(email)
	if err != nil {
		return "", nil
	}
	user, err := service.store.GetUserByEmail(ctx, normalizedEmail)
	if err != nil {
		return "", nil
	}
	now := service.nowFn()
	secret := uuid.NewString()
	token := PasswordResetToken{
		TokenID:        uuid.NewString(),
		UserID:         user.UserID,
		Secret:         secret,
		ExpiresUnixUTC: now + int64(service.cfg.ResetTokenTTL/time.Second),
	}
	if err := service.store.InsertResetToken(ctx, token); err != nil {
		return "", err
	}
	return secret, nil
}

// ResetPassword consumes a reset token, rewrites the password hash, and
// revokes every outstanding access token for the user.
func (service *Service) ResetPassword(ctx context.Context, secret string, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: minimum %d characters", ErrWeakPassword, minPasswordLength)
	}
	token, err := service.store.GetResetTokenBySecret(ctx, secret)
	if err != nil {
		return ErrResetTokenInvalid
	}
	now := service.nowFn()
	if token.UsedUnixUTC != 0 || now >= token.ExpiresUnixUTC {
		return ErrResetTokenInvalid
	}
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		user, err := txStore.GetUserByID(ctx, token.UserID)
		if err != nil {
			return err
		}
		user.PasswordHash = string(passwordHash)
		if err := txStore.UpdateUser(ctx, user); err != nil {
			return err
		}
		if err := txStore.MarkResetTokenUsed(ctx, token.TokenID, now); err != nil {
			return err
		}
		return txStore.RevokeUserAccessTokens(ctx, token.UserID, now)
	})
}

// parseToken checks the signature and issuer only. Expiry and revocation are
// judged against the issued-token table, which stays authoritative even when
// a token's claims say otherwise.
func (service *Service) parseToken(rawToken string) (tokenID string, subject string, err error) {
	parsed, err := jwt.ParseWithClaims(rawToken, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidToken, token.Header["alg"])
		}
		return service.cfg.SigningKey, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return "", "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.ID == "" || claims.Subject == "" || claims.Issuer != service.cfg.Issuer {
		return "", "", ErrInvalidToken
	}
	return claims.ID, claims.Subject, nil
}

func normalizeEmail(raw string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" || !strings.Contains(normalized, "@") {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, raw)
	}
	return normalized, nil
}
