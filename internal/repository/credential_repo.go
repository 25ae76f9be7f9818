package repository

import (
	"errors"

	"github.com/moguls753/kontor/internal/models"

	"gorm.io/gorm"
)

type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Getters return (nil, nil) when the user has not configured the credential.

func (r *CredentialRepository) GoCardless(userID uint) (*models.GoCardlessCredential, error) {
	var cred models.GoCardlessCredential
	err := r.db.First(&cred, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *CredentialRepository) EnableBanking(userID uint) (*models.EnableBankingCredential, error) {
	var cred models.EnableBankingCredential
	err := r.db.First(&cred, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *CredentialRepository) LLM(userID uint) (*models.LLMCredential, error) {
	var cred models.LLMCredential
	err := r.db.First(&cred, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *CredentialRepository) SaveGoCardless(cred *models.GoCardlessCredential) error {
	return r.db.Save(cred).Error
}

func (r *CredentialRepository) SaveEnableBanking(cred *models.EnableBankingCredential) error {
	return r.db.Save(cred).Error
}

func (r *CredentialRepository) SaveLLM(cred *models.LLMCredential) error {
	return r.db.Save(cred).Error
}
