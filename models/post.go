package models

import "time"

// Post is a blog entry authored by a user. PubDate may be in the future for
// scheduled publication; such posts stay out of public listings until due.
// Category and Location are weak references: removing the target clears the
// reference instead of deleting the post.
type Post struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AuthorID    uint      `gorm:"index;not null" json:"author_id"`
	Title       string    `gorm:"size:256;not null" json:"title"`
	Text        string    `gorm:"type:text;not null" json:"text"`
	PubDate     time.Time `gorm:"index;not null" json:"pub_date"`
	CategoryID  *uint     `gorm:"index" json:"category_id"`
	LocationID  *uint     `gorm:"index" json:"location_id"`
	ImageURL    string    `gorm:"size:512" json:"image_url"`
	IsPublished bool      `gorm:"index" json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Author      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Category    *Category `json:"category,omitempty"`
	Location    *Location `json:"location,omitempty"`
	Comments    []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`

	// CommentCount is scanned from the listing subquery, never stored.
	CommentCount int64 `gorm:"->;-:migration" json:"comment_count"`
}
