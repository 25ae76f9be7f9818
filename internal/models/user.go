package models

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID             uint   `gorm:"primaryKey"`
	EmailAddress   string `gorm:"uniqueIndex;not null"`
	PasswordDigest string `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	BankConnections []BankConnection `gorm:"constraint:OnDelete:CASCADE"`
	Categories      []Category       `gorm:"constraint:OnDelete:CASCADE"`
}

func (u *User) SetPassword(plain string) error {
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordDigest = string(digest)
	return nil
}

func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordDigest), []byte(plain)) == nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DefaultCategories lists the starter category names per locale.
var DefaultCategories = map[string][]string{
	"en": {
		"Groceries & Drinks", "Restaurants & Cafés", "Transport", "Shopping & Clothing",
		"Entertainment", "Housing & Rent", "Utilities & Energy", "Internet",
		"Phone", "Health & Pharmacy", "Education", "Travel",
		"Income & Salary", "Transfers", "Savings", "Cash & ATM", "Other",
	},
	"de": {
		"Lebensmittel & Getränke", "Restaurants & Cafés", "Transport & Verkehr", "Shopping & Kleidung",
		"Unterhaltung", "Wohnen & Miete", "Strom & Energie", "Internet",
		"Telefon", "Gesundheit & Apotheke", "Bildung", "Reisen",
		"Einkommen & Gehalt", "Überweisungen", "Sparen", "Bargeld & ATM", "Sonstiges",
	},
}
