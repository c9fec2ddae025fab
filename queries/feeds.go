package queries

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/blogium/blogium/models"
)

// ErrNotFound is returned when a lookup by slug, username or id yields no row,
// or when visibility rules hide the row from the requesting viewer. Controllers
// map it to a 404 response.
var ErrNotFound = errors.New("record not found")

// listPosts runs the shared listing pipeline: count the filtered set, then
// fetch one page annotated with comment counts and related records, newest
// publication first.
func listPosts(db *gorm.DB, filters []Scope, page, size int) ([]models.Post, int64, error) {
	var total int64
	if err := db.Model(&models.Post{}).Scopes(filters...).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []models.Post
	err := db.Model(&models.Post{}).
		Scopes(filters...).
		Scopes(WithCommentCounts, WithRelated).
		Order("posts.pub_date DESC, posts.id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// PublicFeed returns the site-wide listing of visible posts.
func PublicFeed(db *gorm.DB, now time.Time, page, size int) ([]models.Post, int64, error) {
	return listPosts(db, []Scope{VisibleAt(now)}, page, size)
}

// CategoryFeed resolves a published category by slug and returns its visible
// posts. Unknown or unpublished slugs yield ErrNotFound.
func CategoryFeed(db *gorm.DB, slug string, now time.Time, page, size int) (*models.Category, []models.Post, int64, error) {
	var category models.Category
	err := db.Where("slug = ? AND is_published = ?", slug, true).First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, nil, 0, err
	}

	posts, total, err := listPosts(db, []Scope{VisibleAt(now), InCategory(category.ID)}, page, size)
	return &category, posts, total, err
}

// ProfileFeed resolves a user by username and returns their posts. The owner
// sees everything they wrote, scheduled and unpublished included; everyone
// else sees only the publicly visible subset.
func ProfileFeed(db *gorm.DB, username string, viewerIsOwner bool, now time.Time, page, size int) (*models.User, []models.Post, int64, error) {
	var user models.User
	err := db.Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, nil, 0, err
	}

	filters := []Scope{ByAuthor(user.ID)}
	if !viewerIsOwner {
		filters = append(filters, VisibleAt(now))
	}
	posts, total, err := listPosts(db, filters, page, size)
	return &user, posts, total, err
}

// PostDetail returns a single post with comment count and related records.
// A viewer that is not the author gets ErrNotFound when the post fails the
// same visibility predicate the listings use.
func PostDetail(db *gorm.DB, id uint, viewerID uint, now time.Time) (*models.Post, error) {
	var post models.Post
	err := db.Model(&models.Post{}).
		Scopes(WithCommentCounts, WithRelated).
		Where("posts.id = ?", id).
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if post.AuthorID != viewerID {
		var visible int64
		err := db.Model(&models.Post{}).
			Scopes(VisibleAt(now)).
			Where("posts.id = ?", id).
			Count(&visible).Error
		if err != nil {
			return nil, err
		}
		if visible == 0 {
			return nil, ErrNotFound
		}
	}
	return &post, nil
}

// PostComments returns a post's comments ascending by creation time with
// authors attached.
func PostComments(db *gorm.DB, postID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := db.Where("post_id = ?", postID).
		Preload("Author").
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	return comments, err
}
