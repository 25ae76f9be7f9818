package models

import "time"

type Category struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;uniqueIndex:idx_categories_user_name,priority:1"`
	Name      string `gorm:"not null;uniqueIndex:idx_categories_user_name,priority:2"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
