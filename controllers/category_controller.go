package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/blogium/blogium/models"
	"github.com/blogium/blogium/queries"
	"github.com/blogium/blogium/utils"
)

// CategoryController serves the public category listing and the category feed,
// and lets administrators manage categories. Categories are normally
// unpublished rather than deleted; the delete path exists for cleanup and
// clears references on dependent posts instead of cascading.
type CategoryController struct {
	db *gorm.DB
}

// NewCategoryController creates a new CategoryController instance.
func NewCategoryController(db *gorm.DB) *CategoryController {
	return &CategoryController{db: db}
}

var slugPattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

type categoryRequest struct {
	Title       string `json:"title" binding:"required,min=1"`
	Description string `json:"description"`
	Slug        string `json:"slug" binding:"required"`
	IsPublished *bool  `json:"is_published"`
}

// ListCategories returns all published categories.
func (c *CategoryController) ListCategories(ctx *gin.Context) {
	var categories []models.Category
	if err := c.db.Where("is_published = ?", true).Order("title ASC").Find(&categories).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to list categories")
		return
	}
	utils.Success(ctx, gin.H{"items": categories})
}

// CategoryPosts returns the visible posts of one published category, 404 when
// the slug is unknown or the category is unpublished.
func (c *CategoryController) CategoryPosts(ctx *gin.Context) {
	slug := strings.TrimSpace(ctx.Param("slug"))
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	cacheKey := fmt.Sprintf("cache:feed:cat=%s:page=%d:size=%d", slug, page, pageSize)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(200, "application/json", b)
		return
	}

	category, posts, total, err := queries.CategoryFeed(c.db, slug, time.Now(), page, pageSize)
	if errors.Is(err, queries.ErrNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40412, "category not found")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to list category posts")
		return
	}

	payload := gin.H{
		"category":   category,
		"items":      posts,
		"pagination": paginationOf(page, pageSize, total),
	}
	cacheEnvelope(cacheKey, payload)
	utils.Success(ctx, payload)
}

// CreateCategory creates a category. Admin only (enforced in routing).
func (c *CategoryController) CreateCategory(ctx *gin.Context) {
	var req categoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}

	category := models.Category{IsPublished: true}
	if msg, ok := req.applyTo(&category); !ok {
		utils.Error(ctx, http.StatusBadRequest, 40041, msg)
		return
	}

	var n int64
	c.db.Model(&models.Category{}).Where("slug = ?", category.Slug).Count(&n)
	if n > 0 {
		utils.Error(ctx, http.StatusBadRequest, 40042, "slug already in use")
		return
	}

	if err := c.db.Create(&category).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to create category")
		return
	}
	utils.InvalidateByPrefix("cache:feed:")
	utils.Success(ctx, gin.H{"category": category})
}

// UpdateCategory edits a category. Unpublishing hides all its posts from
// public listings without touching them.
func (c *CategoryController) UpdateCategory(ctx *gin.Context) {
	var req categoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40043, "invalid request payload")
		return
	}

	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40066, "invalid category id")
		return
	}
	var category models.Category
	if err := c.db.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40413, "category not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to load category")
		return
	}

	if msg, ok := req.applyTo(&category); !ok {
		utils.Error(ctx, http.StatusBadRequest, 40044, msg)
		return
	}

	var n int64
	c.db.Model(&models.Category{}).Where("slug = ? AND id <> ?", category.Slug, category.ID).Count(&n)
	if n > 0 {
		utils.Error(ctx, http.StatusBadRequest, 40045, "slug already in use")
		return
	}

	if err := c.db.Save(&category).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50044, "failed to update category")
		return
	}
	utils.InvalidateByPrefix("cache:feed:")
	utils.Success(ctx, gin.H{"category": category})
}

// DeleteCategory removes a category and clears the reference on its posts.
// The posts themselves survive with no category, which also drops them from
// public listings until recategorized.
func (c *CategoryController) DeleteCategory(ctx *gin.Context) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40067, "invalid category id")
		return
	}
	var category models.Category
	if err := c.db.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40414, "category not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50045, "failed to load category")
		return
	}

	if err := c.db.Model(&models.Post{}).Where("category_id = ?", category.ID).
		Update("category_id", nil).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50046, "failed to detach posts")
		return
	}
	if err := c.db.Delete(&category).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50047, "failed to delete category")
		return
	}
	utils.InvalidateByPrefix("cache:feed:")
	utils.Success(ctx, gin.H{"message": "category deleted"})
}

func (r *categoryRequest) applyTo(category *models.Category) (string, bool) {
	title := utils.Sanitize(strings.TrimSpace(r.Title))
	if title == "" {
		return "title cannot be empty", false
	}
	slug := strings.ToLower(strings.TrimSpace(r.Slug))
	if !slugPattern.MatchString(slug) {
		return "slug may contain lowercase letters, digits, hyphen and underscore", false
	}
	category.Title = title
	category.Description = utils.Sanitize(r.Description)
	category.Slug = slug
	if r.IsPublished != nil {
		category.IsPublished = *r.IsPublished
	}
	return "", true
}
