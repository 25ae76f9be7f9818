package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Account struct {
	ID               uint   `gorm:"primaryKey"`
	BankConnectionID uint   `gorm:"index;not null"`
	AccountUID       string `gorm:"uniqueIndex;not null"`
	IBAN             string
	Name             string
	Currency         string              `gorm:"size:3;not null;default:EUR"`
	BalanceAmount    decimal.NullDecimal `gorm:"type:decimal(15,2)"`
	BalanceType      string
	BalanceUpdatedAt *time.Time
	// Identification holds the raw identification payload the provider
	// reported for this account during session finalization.
	Identification datatypes.JSON
	LastSyncedAt   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	BankConnection     *BankConnection     `gorm:"constraint:OnDelete:CASCADE"`
	TransactionRecords []TransactionRecord `gorm:"constraint:OnDelete:CASCADE"`
}

// DisplayName falls back from the user-assigned name to the IBAN to a
// synthetic label.
func (a *Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	if a.IBAN != "" {
		return a.IBAN
	}
	return fmt.Sprintf("Account %d", a.ID)
}
