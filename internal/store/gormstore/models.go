package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User mirrors the users table.
type User struct {
	UserID       string     `gorm:"type:uuid;primaryKey"`
	Email        string     `gorm:"not null;uniqueIndex:uniq_users_email"`
	PasswordHash string     `gorm:"not null"`
	FirstName    string     `gorm:""`
	LastName     string     `gorm:""`
	IsAdmin      bool       `gorm:"not null;default:false"`
	LastLoginAt  *time.Time `gorm:""`
	CreatedAt    time.Time  `gorm:"not null"`
}

func (User) TableName() string { return "users" }

func (user *User) BeforeCreate(tx *gorm.DB) error {
	if user.UserID == "" {
		user.UserID = uuid.NewString()
	}
	return nil
}

// AccessToken mirrors the access_tokens table. Rows are the source of truth
// for whether an issued token is still usable.
type AccessToken struct {
	TokenID   string     `gorm:"type:uuid;primaryKey"`
	UserID    string     `gorm:"type:uuid;not null;index:idx_access_tokens_user"`
	ExpiresAt time.Time  `gorm:"not null"`
	RevokedAt *time.Time `gorm:""`
	CreatedAt time.Time  `gorm:"not null"`
}

func (AccessToken) TableName() string { return "access_tokens" }

// PasswordResetToken mirrors the password_reset_tokens table.
type PasswordResetToken struct {
	TokenID   string     `gorm:"type:uuid;primaryKey"`
	UserID    string     `gorm:"type:uuid;not null;index:idx_reset_tokens_user"`
	Secret    string     `gorm:"not null;uniqueIndex:uniq_reset_tokens_secret"`
	ExpiresAt time.Time  `gorm:"not null"`
	UsedAt    *time.Time `gorm:""`
}

func (PasswordResetToken) TableName() string { return "password_reset_tokens" }

// Project mirrors the projects table.
type Project struct {
	ProjectID        string    `gorm:"type:uuid;primaryKey"`
	OwnerID          string    `gorm:"type:uuid;not null;index:idx_projects_owner_created,priority:1"`
	Title            string    `gorm:"not null"`
	Description      string    `gorm:""`
	Voice            string    `gorm:""`
	Status           string    `gorm:"not null"`
	ScriptText       string    `gorm:"type:text"`
	AudioURL         string    `gorm:""`
	ImageURL         string    `gorm:""`
	VideoURL         string    `gorm:""`
	LastError        string    `gorm:""`
	TotalCreditsUsed int64     `gorm:"not null;default:0"`
	CreatedAt        time.Time `gorm:"not null;index:idx_projects_owner_created,priority:2"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (Project) TableName() string { return "projects" }

func (project *Project) BeforeCreate(tx *gorm.DB) error {
	if project.ProjectID == "" {
		project.ProjectID = uuid.NewString()
	}
	return nil
}

// CreditAccount mirrors the credit_accounts table. The account id equals the
// owning user's id, and the balance column caches the completed transaction
// sum.
type CreditAccount struct {
	AccountID      string    `gorm:"type:uuid;primaryKey"`
	BalanceCredits int64     `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (CreditAccount) TableName() string { return "credit_accounts" }

// CreditTransaction mirrors the credit_transactions table. Rows are
// append-only; only status and balance_after change after insert.
type CreditTransaction struct {
	TransactionID string         `gorm:"type:uuid;primaryKey"`
	AccountID     string         `gorm:"type:uuid;not null;index:idx_credit_tx_account_created,priority:1"`
	AmountCredits int64          `gorm:"not null"`
	BalanceAfter  int64          `gorm:"not null;default:0"`
	Kind          string         `gorm:"not null"`
	Label         string         `gorm:"not null;default:''"`
	Status        string         `gorm:"not null"`
	ExternalRef   string         `gorm:"not null;default:''"`
	Metadata      datatypes.JSON `gorm:"not null"`
	CreatedAt     time.Time      `gorm:"not null;index:idx_credit_tx_account_created,priority:2"`
}

func (CreditTransaction) TableName() string { return "credit_transactions" }

func (transaction *CreditTransaction) BeforeCreate(tx *gorm.DB) error {
	if transaction.TransactionID == "" {
		transaction.TransactionID = uuid.NewString()
	}
	return nil
}
