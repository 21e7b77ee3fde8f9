package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flowgate-io/flowgate/internal/db"
)

// gormAccountRepository is the GORM implementation of AccountRepository.
type gormAccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository returns an AccountRepository backed by the provided
// *gorm.DB, which may be a transaction handle.
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &gormAccountRepository{db: db}
}

// Create inserts a new account record into the database.
func (r *gormAccountRepository) Create(ctx context.Context, account *db.Account) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return fmt.Errorf("accounts: create: %w", err)
	}
	return nil
}

// GetByID retrieves an account by its UUID. Returns ErrNotFound if no record exists.
func (r *gormAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*db.Account, error) {
	var account db.Account
	err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("accounts: get by id: %w", err)
	}
	return &account, nil
}

// GetBySubject retrieves an account by the upstream subject claim.
// Accounts created before the subject claim was recorded have an empty
// Subject column — an empty subject never matches.
func (r *gormAccountRepository) GetBySubject(ctx context.Context, subject string) (*db.Account, error) {
	if subject == "" {
		return nil, ErrNotFound
	}
	var account db.Account
	err := r.db.WithContext(ctx).First(&account, "subject = ?", subject).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("accounts: get by subject: %w", err)
	}
	return &account, nil
}

// GetByEmail retrieves an account by email address. Returns ErrNotFound if no record exists.
func (r *gormAccountRepository) GetByEmail(ctx context.Context, email string) (*db.Account, error) {
	var account db.Account
	err := r.db.WithContext(ctx).First(&account, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("accounts: get by email: %w", err)
	}
	return &account, nil
}

// Update persists changes to an existing account record.
func (r *gormAccountRepository) Update(ctx context.Context, account *db.Account) error {
	result := r.db.WithContext(ctx).Save(account)
	if result.Error != nil {
		return fmt.Errorf("accounts: update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RotateCredentials replaces the password hash and the encrypted secret in
// a single update statement.
func (r *gormAccountRepository) RotateCredentials(ctx context.Context, id uuid.UUID, passwordHash string, secret db.EncryptedString) error {
	result := r.db.WithContext(ctx).
		Model(&db.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"password": passwordHash,
			"secret":   secret,
		})
	if result.Error != nil {
		return fmt.Errorf("accounts: rotate credentials: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLogin stamps LastLoginAt with the current time.
func (r *gormAccountRepository) TouchLogin(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&db.Account{}).
		Where("id = ?", id).
		Update("last_login_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
	if err != nil {
		return fmt.Errorf("accounts: touch login: %w", err)
	}
	return nil
}
