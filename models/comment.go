package models

import "time"

// Comment is a reply on a post. Comments live and die with their post and are
// always listed ascending by CreatedAt; there is no reorder operation.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"index;not null" json:"post_id"`
	AuthorID  *uint     `gorm:"index" json:"author_id"`
	Text      string    `gorm:"type:text" json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Author    *User     `json:"author,omitempty"`
}
