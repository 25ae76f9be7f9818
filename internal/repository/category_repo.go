package repository

import (
	"strings"

	"github.com/moguls753/kontor/internal/models"

	"gorm.io/gorm"
)

type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) ListByUser(userID uint) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.Where("user_id = ?", userID).Order("name").Find(&categories).Error
	return categories, err
}

func (r *CategoryRepository) GetForUser(id, userID uint) (*models.Category, error) {
	var category models.Category
	if err := r.db.First(&category, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *CategoryRepository) Create(userID uint, name string) (*models.Category, error) {
	category := &models.Category{UserID: userID, Name: strings.TrimSpace(name)}
	if err := r.db.Create(category).Error; err != nil {
		return nil, err
	}
	return category, nil
}

func (r *CategoryRepository) FirstOrCreate(userID uint, name string) (*models.Category, error) {
	category := &models.Category{UserID: userID, Name: strings.TrimSpace(name)}
	err := r.db.Where(models.Category{UserID: userID, Name: category.Name}).
		FirstOrCreate(category).Error
	if err != nil {
		return nil, err
	}
	return category, nil
}

func (r *CategoryRepository) Rename(category *models.Category, name string) error {
	category.Name = strings.TrimSpace(name)
	return r.db.Model(category).Update("name", category.Name).Error
}

// Delete nullifies category references on transactions instead of deleting
// them.
func (r *CategoryRepository) Delete(category *models.Category) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.TransactionRecord{}).
			Where("category_id = ?", category.ID).
			UpdateColumn("category_id", nil).Error
		if err != nil {
			return err
		}
		return tx.Delete(&models.Category{}, category.ID).Error
	})
}
