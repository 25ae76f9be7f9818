package repository

import (
	"github.com/moguls753/kontor/internal/models"

	"gorm.io/gorm"
)

type BankConnectionRepository struct {
	db *gorm.DB
}

func NewBankConnectionRepository(db *gorm.DB) *BankConnectionRepository {
	return &BankConnectionRepository{db: db}
}

// Expose DB if needed
func (r *BankConnectionRepository) DB() *gorm.DB {
	return r.db
}

func (r *BankConnectionRepository) ListByUser(userID uint) ([]models.BankConnection, error) {
	var connections []models.BankConnection
	err := r.db.Preload("Accounts").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&connections).Error
	return connections, err
}

func (r *BankConnectionRepository) GetForUser(id, userID uint) (*models.BankConnection, error) {
	var bc models.BankConnection
	err := r.db.Preload("Accounts").
		First(&bc, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		return nil, err
	}
	return &bc, nil
}

func (r *BankConnectionRepository) Get(id uint) (*models.BankConnection, error) {
	var bc models.BankConnection
	if err := r.db.Preload("Accounts").First(&bc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &bc, nil
}

func (r *BankConnectionRepository) Create(bc *models.BankConnection) error {
	return r.db.Create(bc).Error
}

func (r *BankConnectionRepository) Save(bc *models.BankConnection) error {
	return r.db.Save(bc).Error
}

// Delete removes the connection together with its accounts and their
// transactions, in one transaction.
func (r *BankConnectionRepository) Delete(bc *models.BankConnection) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var accountIDs []uint
		if err := tx.Model(&models.Account{}).
			Where("bank_connection_id = ?", bc.ID).
			Pluck("id", &accountIDs).Error; err != nil {
			return err
		}
		if len(accountIDs) > 0 {
			if err := tx.Where("account_id IN ?", accountIDs).
				Delete(&models.TransactionRecord{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", accountIDs).Delete(&models.Account{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.BankConnection{}, bc.ID).Error
	})
}
