package queries

import (
	"time"

	"gorm.io/gorm"
)

// Scope narrows or annotates a post query. Scopes compose with gorm's Scopes
// so every listing is a plain pipeline of filters over the same base query.
type Scope = func(*gorm.DB) *gorm.DB

// WithRelated eagerly attaches author, category and location so rendering a
// listing never does per-row lookups.
func WithRelated(db *gorm.DB) *gorm.DB {
	return db.Preload("Author").Preload("Category").Preload("Location")
}

// WithCommentCounts annotates each post with its comment count. Always applied
// together with WithRelated; the pair is what every listing returns.
func WithCommentCounts(db *gorm.DB) *gorm.DB {
	return db.Select("posts.*, (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comment_count")
}

// VisibleAt applies the public visibility predicate: the post is published,
// its category exists and is published, and pub_date is not in the future.
// Posts without a category never appear publicly since the join requires one.
func VisibleAt(now time.Time) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Joins("JOIN categories ON categories.id = posts.category_id AND categories.is_published = ?", true).
			Where("posts.is_published = ? AND posts.pub_date <= ?", true, now)
	}
}

// InCategory restricts a listing to one category.
func InCategory(categoryID uint) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.category_id = ?", categoryID)
	}
}

// ByAuthor restricts a listing to one author.
func ByAuthor(authorID uint) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.author_id = ?", authorID)
	}
}
