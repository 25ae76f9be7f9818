package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionBooked  = "booked"
	TransactionPending = "pending"
)

type TransactionRecord struct {
	ID                  uint            `gorm:"primaryKey"`
	AccountID           uint            `gorm:"not null;uniqueIndex:idx_transaction_records_account_tx,priority:1"`
	TransactionID       string          `gorm:"not null;uniqueIndex:idx_transaction_records_account_tx,priority:2"`
	Amount              decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Currency            string          `gorm:"size:3;not null"`
	BookingDate         time.Time       `gorm:"type:date;not null;index"`
	ValueDate           *time.Time      `gorm:"type:date"`
	Status              string          `gorm:"default:booked"`
	Remittance          string
	CreditorName        string
	CreditorIBAN        string
	DebtorName          string
	DebtorIBAN          string
	BankTransactionCode string
	EntryReference      string
	CategoryID          *uint `gorm:"index"`
	CreatedAt           time.Time
	UpdatedAt           time.Time

	Category *Category `gorm:"constraint:OnDelete:SET NULL"`
}
