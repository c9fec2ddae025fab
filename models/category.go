package models

import "time"

// Category groups posts under a unique URL slug. Categories are managed by
// administrators and are normally unpublished rather than deleted.
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:256;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Slug        string    `gorm:"size:64;uniqueIndex;not null" json:"slug"`
	IsPublished bool      `gorm:"index" json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Posts       []Post    `json:"-"`
}
