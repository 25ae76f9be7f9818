package models

import (
	"time"

	"github.com/moguls753/kontor/internal/secrets"
)

// GoCardlessCredential carries the static secret pair plus the short-lived
// token bookkeeping for the token-based provider. One row per user.
type GoCardlessCredential struct {
	ID               uint `gorm:"primaryKey"`
	UserID           uint `gorm:"uniqueIndex;not null"`
	SecretID         secrets.Encrypted
	SecretKey        secrets.Encrypted
	AccessToken      secrets.Encrypted
	RefreshToken     secrets.Encrypted
	AccessExpiresAt  *time.Time
	RefreshExpiresAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AccessExpired treats an absent expiry as expired.
func (c *GoCardlessCredential) AccessExpired(now time.Time) bool {
	return c.AccessToken.IsZero() || c.AccessExpiresAt == nil || !c.AccessExpiresAt.After(now)
}

func (c *GoCardlessCredential) RefreshValid(now time.Time) bool {
	return !c.RefreshToken.IsZero() && c.RefreshExpiresAt != nil && c.RefreshExpiresAt.After(now)
}

// EnableBankingCredential authenticates with a signed JWT per request, so it
// carries no token state.
type EnableBankingCredential struct {
	ID            uint              `gorm:"primaryKey"`
	UserID        uint              `gorm:"uniqueIndex;not null"`
	AppID         string            `gorm:"not null"`
	PrivateKeyPEM secrets.Encrypted `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type LLMCredential struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"uniqueIndex;not null"`
	BaseURL   string `gorm:"not null"`
	Model     string `gorm:"not null;column:llm_model"`
	APIKey    secrets.Encrypted
	CreatedAt time.Time
	UpdatedAt time.Time
}
