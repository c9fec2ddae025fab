package models

import "time"

// PendingUpload records an uploaded image that no post references yet. The row
// is removed when a post adopts the image; the cleanup worker deletes the file
// once ExpireAt passes without adoption.
type PendingUpload struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FilePath  string    `gorm:"size:1024;not null" json:"file_path"`
	URL       string    `gorm:"size:1024;not null" json:"url"`
	ExpireAt  time.Time `gorm:"index" json:"expire_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
