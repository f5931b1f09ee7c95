package database

import (
	"database/sql"
	"errors"

	"github.com/gabaylaguna/booking-backend/internal/models"
	"github.com/google/uuid"
)

// GCashAccountRepository handles database operations for gcash_accounts
type GCashAccountRepository struct {
	db DB
}

// NewGCashAccountRepository creates a new GCashAccountRepository
func NewGCashAccountRepository(db DB) *GCashAccountRepository {
	return &GCashAccountRepository{db: db}
}

// Create creates a new receiving account
func (r *GCashAccountRepository) Create(account *models.GCashAccount) error {
	query := `
		INSERT INTO gcash_accounts (id, account_name, account_number, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	if account.ID == "" {
		account.ID = uuid.New().String()
	}

	return r.db.QueryRow(
		query,
		account.ID, account.AccountName, account.AccountNumber, account.IsActive,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
}

// GetActive retrieves the currently active receiving account
func (r *GCashAccountRepository) GetActive() (*models.GCashAccount, error) {
	query := `
		SELECT id, account_name, account_number, is_active, created_at, updated_at
		FROM gcash_accounts
		WHERE is_active = TRUE
		LIMIT 1
	`

	account := &models.GCashAccount{}
	err := r.db.QueryRow(query).Scan(
		&account.ID, &account.AccountName, &account.AccountNumber,
		&account.IsActive, &account.CreatedAt, &account.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	return account, nil
}

// List retrieves all receiving accounts
func (r *GCashAccountRepository) List() ([]models.GCashAccount, error) {
	query := `
		SELECT id, account_name, account_number, is_active, created_at, updated_at
		FROM gcash_accounts
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []models.GCashAccount{}
	for rows.Next() {
		var account models.GCashAccount
		err := rows.Scan(
			&account.ID, &account.AccountName, &account.AccountNumber,
			&account.IsActive, &account.CreatedAt, &account.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

// Activate makes one account the active receiver and deactivates the rest.
// Both updates run in one transaction so at most one account is ever active.
func (r *GCashAccountRepository) Activate(accountID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE gcash_accounts SET is_active = FALSE, updated_at = NOW() WHERE is_active = TRUE`); err != nil {
		return err
	}

	result, err := tx.Exec(`UPDATE gcash_accounts SET is_active = TRUE, updated_at = NOW() WHERE id = $1`, accountID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return models.ErrAccountNotFound
	}

	return tx.Commit()
}

// Delete removes a receiving account
func (r *GCashAccountRepository) Delete(accountID string) error {
	result, err := r.db.Exec(`DELETE FROM gcash_accounts WHERE id = $1`, accountID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return models.ErrAccountNotFound
	}

	return nil
}
