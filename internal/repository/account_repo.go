package repository

import (
	"github.com/moguls753/kontor/internal/models"

	"gorm.io/gorm"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) ListByUser(userID uint) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.Preload("BankConnection").
		Joins("JOIN bank_connections ON bank_connections.id = accounts.bank_connection_id").
		Where("bank_connections.user_id = ?", userID).
		Order("accounts.id").
		Find(&accounts).Error
	return accounts, err
}

func (r *AccountRepository) GetForUser(id, userID uint) (*models.Account, error) {
	var account models.Account
	err := r.db.Preload("BankConnection").
		Joins("JOIN bank_connections ON bank_connections.id = accounts.bank_connection_id").
		Where("accounts.id = ? AND bank_connections.user_id = ?", id, userID).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) ListByConnection(connectionID uint) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.Where("bank_connection_id = ?", connectionID).Order("id").Find(&accounts).Error
	return accounts, err
}

// FirstOrCreateByUID is the reconciliation primitive: existing rows are left
// untouched so user-assigned names survive re-linking and re-sync.
func (r *AccountRepository) FirstOrCreateByUID(account *models.Account) error {
	return r.db.Where(models.Account{
		BankConnectionID: account.BankConnectionID,
		AccountUID:       account.AccountUID,
	}).FirstOrCreate(account).Error
}

func (r *AccountRepository) Save(account *models.Account) error {
	return r.db.Save(account).Error
}

func (r *AccountRepository) Rename(account *models.Account, name string) error {
	account.Name = name
	return r.db.Model(account).Update("name", name).Error
}
