package repository

import (
	"strings"
	"time"

	"github.com/moguls753/kontor/internal/models"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// TransactionFilter narrows the paginated listing.
type TransactionFilter struct {
	AccountID     uint
	CategoryID    uint
	Uncategorized bool
	Query         string
	From          *time.Time
	To            *time.Time
	Page          int
	PerPage       int
}

func (r *TransactionRepository) userScope(userID uint) *gorm.DB {
	return r.db.Model(&models.TransactionRecord{}).
		Joins("JOIN accounts ON accounts.id = transaction_records.account_id").
		Joins("JOIN bank_connections ON bank_connections.id = accounts.bank_connection_id").
		Where("bank_connections.user_id = ?", userID)
}

func (r *TransactionRepository) Search(userID uint, filter TransactionFilter) ([]models.TransactionRecord, int64, error) {
	query := r.userScope(userID)

	if filter.AccountID > 0 {
		query = query.Where("transaction_records.account_id = ?", filter.AccountID)
	}
	if filter.CategoryID > 0 {
		query = query.Where("transaction_records.category_id = ?", filter.CategoryID)
	}
	if filter.Uncategorized {
		query = query.Where("transaction_records.category_id IS NULL")
	}
	if filter.Query != "" {
		like := "%" + strings.ToLower(filter.Query) + "%"
		query = query.Where(
			"LOWER(transaction_records.remittance) LIKE ? OR LOWER(transaction_records.creditor_name) LIKE ? OR LOWER(transaction_records.debtor_name) LIKE ?",
			like, like, like,
		)
	}
	if filter.From != nil {
		query = query.Where("transaction_records.booking_date >= ?", filter.From)
	}
	if filter.To != nil {
		query = query.Where("transaction_records.booking_date <= ?", filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	perPage := filter.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = 25
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	var records []models.TransactionRecord
	err := query.Preload("Category").
		Order("transaction_records.booking_date DESC, transaction_records.id DESC").
		Limit(perPage).Offset((page - 1) * perPage).
		Find(&records).Error
	return records, total, err
}

// Uncategorized returns up to limit uncategorized transactions, most recent
// booking date first.
func (r *TransactionRepository) Uncategorized(userID uint, limit int) ([]models.TransactionRecord, error) {
	var records []models.TransactionRecord
	err := r.userScope(userID).
		Where("transaction_records.category_id IS NULL").
		Order("transaction_records.booking_date DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *TransactionRepository) Recent(userID uint, limit int) ([]models.TransactionRecord, error) {
	var records []models.TransactionRecord
	err := r.userScope(userID).Preload("Category").
		Order("transaction_records.booking_date DESC, transaction_records.id DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *TransactionRepository) InPeriod(userID uint, from, to time.Time) ([]models.TransactionRecord, error) {
	var records []models.TransactionRecord
	err := r.userScope(userID).
		Where("transaction_records.booking_date BETWEEN ? AND ?", from, to).
		Find(&records).Error
	return records, err
}

// FirstOrCreateByExternalID reconciles one wire transaction; the dedup key is
// (account_id, transaction_id). Existing rows keep their category.
func (r *TransactionRepository) FirstOrCreateByExternalID(record *models.TransactionRecord) error {
	return r.db.Where(models.TransactionRecord{
		AccountID:     record.AccountID,
		TransactionID: record.TransactionID,
	}).FirstOrCreate(record).Error
}

// SetCategory is a column-only update; no validation re-run.
func (r *TransactionRepository) SetCategory(transactionID uint, categoryID *uint) error {
	return r.db.Model(&models.TransactionRecord{}).
		Where("id = ?", transactionID).
		UpdateColumn("category_id", categoryID).Error
}
