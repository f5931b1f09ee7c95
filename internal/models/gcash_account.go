package models

import "time"

// GCashAccount is a receiving account for manual GCash payments. At most
// one account is active at a time; payments always target the active one.
type GCashAccount struct {
	ID            string    `json:"id" db:"id"`
	AccountName   string    `json:"account_name" db:"account_name"`
	AccountNumber string    `json:"account_number" db:"account_number"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
