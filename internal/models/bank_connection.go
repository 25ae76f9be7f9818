package models

import (
	"time"
)

const (
	ProviderEnableBanking = "enable_banking"
	ProviderGoCardless    = "gocardless"
)

const (
	StatusPending    = "pending"
	StatusAuthorized = "authorized"
	StatusExpired    = "expired"
	StatusError      = "error"
)

type BankConnection struct {
	ID              uint   `gorm:"primaryKey"`
	UserID          uint   `gorm:"index;not null"`
	Provider        string `gorm:"not null;default:enable_banking"`
	InstitutionID   string `gorm:"not null;index:idx_bank_connections_user_institution,priority:2"`
	InstitutionName string
	CountryCode     string `gorm:"size:2"`
	Status          string `gorm:"not null;default:pending"`
	// Linking artifacts. AuthorizationID belongs to Enable Banking,
	// RequisitionID and Link to GoCardless.
	AuthorizationID string
	RequisitionID   string
	Link            string
	SessionID       *string `gorm:"uniqueIndex"`
	ValidUntil      *time.Time
	ErrorMessage    string
	LastSyncedAt    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Accounts []Account `gorm:"constraint:OnDelete:CASCADE"`
}

// Active reports whether the authorization is usable for data pulls.
func (bc *BankConnection) Active() bool {
	if bc.Status != StatusAuthorized {
		return false
	}
	return bc.ValidUntil == nil || bc.ValidUntil.After(time.Now())
}
