package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/blogium/blogium/config"
	"github.com/blogium/blogium/middleware"
	"github.com/blogium/blogium/models"
	"github.com/blogium/blogium/queries"
	"github.com/blogium/blogium/utils"
)

// PostController manages post listings, detail and CRUD operations.
type PostController struct {
	db *gorm.DB
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB) *PostController {
	return &PostController{db: db}
}

type postRequest struct {
	Title       string `json:"title" binding:"required,min=1"`
	Text        string `json:"text" binding:"required"`
	PubDate     string `json:"pub_date"`
	CategoryID  *uint  `json:"category_id"`
	LocationID  *uint  `json:"location_id"`
	ImageURL    string `json:"image_url"`
	IsPublished *bool  `json:"is_published"`
}

// applyTo validates the request and copies it onto the post. Returns a
// human-readable message when the input is rejected.
func (r *postRequest) applyTo(db *gorm.DB, post *models.Post) (string, bool) {
	title := utils.Sanitize(strings.TrimSpace(r.Title))
	if title == "" {
		return "title cannot be empty", false
	}
	post.Title = title
	post.Text = utils.Sanitize(r.Text)

	post.PubDate = time.Now()
	if r.PubDate != "" {
		t, err := time.Parse(time.RFC3339, r.PubDate)
		if err != nil {
			return "pub_date must be RFC3339", false
		}
		// Future dates are allowed: scheduled posts stay private until due.
		post.PubDate = t
	}

	if r.CategoryID != nil {
		var n int64
		db.Model(&models.Category{}).Where("id = ?", *r.CategoryID).Count(&n)
		if n == 0 {
			return "unknown category", false
		}
	}
	post.CategoryID = r.CategoryID

	if r.LocationID != nil {
		var n int64
		db.Model(&models.Location{}).Where("id = ?", *r.LocationID).Count(&n)
		if n == 0 {
			return "unknown location", false
		}
	}
	post.LocationID = r.LocationID

	post.ImageURL = strings.TrimSpace(r.ImageURL)
	post.IsPublished = true
	if r.IsPublished != nil {
		post.IsPublished = *r.IsPublished
	}
	return "", true
}

// ListPosts returns the paginated public feed. An optional category query
// parameter scopes it to one published category.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	slug := strings.TrimSpace(ctx.Query("category"))

	cacheKey := fmt.Sprintf("cache:feed:cat=%s:page=%d:size=%d", slug, page, pageSize)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(200, "application/json", b)
		return
	}

	var (
		posts    []models.Post
		total    int64
		category *models.Category
		err      error
	)
	now := time.Now()
	if slug != "" {
		category, posts, total, err = queries.CategoryFeed(p.db, slug, now, page, pageSize)
	} else {
		posts, total, err = queries.PublicFeed(p.db, now, page, pageSize)
	}
	if errors.Is(err, queries.ErrNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40410, "category not found")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to list posts")
		return
	}

	payload := gin.H{
		"items":      posts,
		"pagination": paginationOf(page, pageSize, total),
	}
	if category != nil {
		payload["category"] = category
	}
	cacheEnvelope(cacheKey, payload)
	utils.Success(ctx, payload)
}

// ListUserPosts returns a user's profile feed. The profile owner sees all of
// their posts; everyone else sees only the publicly visible subset.
func (p *PostController) ListUserPosts(ctx *gin.Context) {
	username := strings.TrimSpace(ctx.Param("username"))
	if username == "" {
		utils.Error(ctx, http.StatusBadRequest, 40060, "missing username")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	viewer, _ := getUsername(ctx)
	isOwner := viewer != "" && viewer == username

	cacheKey := fmt.Sprintf("cache:profile:%s:page=%d:size=%d", username, page, pageSize)
	if !isOwner {
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(200, "application/json", b)
			return
		}
	}

	profile, posts, total, err := queries.ProfileFeed(p.db, username, isOwner, time.Now(), page, pageSize)
	if errors.Is(err, queries.ErrNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40411, "user not found")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to list user posts")
		return
	}

	payload := gin.H{
		"profile":    sanitizeUserResponse(*profile),
		"items":      posts,
		"pagination": paginationOf(page, pageSize, total),
	}
	// The owner view bypasses visibility filters and must never be served to
	// or cached for other viewers.
	if !isOwner {
		cacheEnvelope(cacheKey, payload)
	}
	utils.Success(ctx, payload)
}

// GetPost returns a single post with its ordered comments. Authors see their
// own hidden or scheduled posts; other viewers get 404 for them.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40061, "invalid post id")
		return
	}

	viewerID, authed := getUserID(ctx)
	if !authed {
		if b, ok := utils.CacheGetBytes("cache:post:detail:" + ctx.Param("id")); ok {
			ctx.Data(200, "application/json", b)
			return
		}
	}

	post, err := queries.PostDetail(p.db, id, viewerID, time.Now())
	if errors.Is(err, queries.ErrNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to load post")
		return
	}

	comments, err := queries.PostComments(p.db, post.ID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load comments")
		return
	}

	payload := gin.H{"post": post, "comments": comments}
	if !authed {
		cacheEnvelope("cache:post:detail:"+ctx.Param("id"), payload)
	}
	utils.Success(ctx, payload)
}

// CreatePost allows authenticated users to create new posts.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	post := models.Post{AuthorID: userID}
	if msg, ok := req.applyTo(p.db, &post); !ok {
		utils.Error(ctx, http.StatusBadRequest, 40021, msg)
		return
	}

	if err := p.db.Create(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to create post")
		return
	}
	adoptPendingUpload(p.db, post.ImageURL)
	p.db.Scopes(queries.WithRelated).First(&post, post.ID)

	invalidatePostCaches(ctx, post)
	utils.Success(ctx, gin.H{"post": post})
}

// UpdatePost allows the author to update their post. A non-author gets
// redirected to the read-only detail view instead of a hard error.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid request payload")
		return
	}

	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40062, "invalid post id")
		return
	}

	var post models.Post
	if err := p.db.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40402, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to load post")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}

	if post.AuthorID != userID {
		utils.Respond(ctx, http.StatusSeeOther, 40301, "you can only edit your own posts",
			gin.H{"redirect": fmt.Sprintf("/posts/%d", post.ID)})
		return
	}

	if msg, ok := req.applyTo(p.db, &post); !ok {
		utils.Error(ctx, http.StatusBadRequest, 40023, msg)
		return
	}

	if err := p.db.Save(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to update post")
		return
	}
	adoptPendingUpload(p.db, post.ImageURL)
	p.db.Scopes(queries.WithRelated).First(&post, post.ID)

	invalidatePostCaches(ctx, post)
	utils.Success(ctx, gin.H{"post": post})
}

// DeletePost allows the author or an administrator to delete a post together
// with its comments.
func (p *PostController) DeletePost(ctx *gin.Context) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40063, "invalid post id")
		return
	}

	var post models.Post
	if err := p.db.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40403, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to load post")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40112, "unauthorized")
		return
	}
	if post.AuthorID != userID && !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40302, "you can only delete your own posts")
		return
	}

	// Comments die with their post. Cleared explicitly since the schema may
	// have been created without FK cascade.
	if err := p.db.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to delete comments")
		return
	}
	if err := p.db.Delete(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50029, "failed to delete post")
		return
	}

	invalidatePostCaches(ctx, post)
	utils.Success(ctx, gin.H{"message": "post deleted"})
}

// adoptPendingUpload marks an uploaded image as referenced by a post so the
// cleanup worker leaves it alone.
func adoptPendingUpload(db *gorm.DB, imageURL string) {
	if imageURL == "" {
		return
	}
	db.Where("url = ?", imageURL).Delete(&models.PendingUpload{})
}

func invalidatePostCaches(ctx *gin.Context, post models.Post) {
	utils.InvalidateByPrefix("cache:feed:")
	utils.InvalidateByPrefix("cache:post:detail:" + strconv.Itoa(int(post.ID)))
	if username, ok := getUsername(ctx); ok {
		utils.InvalidateByPrefix("cache:profile:" + username)
	}
}

func paginationOf(page, pageSize int, total int64) gin.H {
	return gin.H{
		"page":        page,
		"page_size":   pageSize,
		"total":       total,
		"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
	}
}

func cacheEnvelope(key string, payload gin.H) {
	utils.CacheSetJSON(key, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, time.Hour)
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}

func getUsername(ctx *gin.Context) (string, bool) {
	value, exists := ctx.Get(middleware.ContextUsernameKey)
	if !exists {
		return "", false
	}
	name, ok := value.(string)
	return name, ok && name != ""
}

func isAdmin(ctx *gin.Context) bool {
	uname, ok := getUsername(ctx)
	if !ok {
		return false
	}
	for _, u := range config.Get().AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(u), uname) {
			return true
		}
	}
	return false
}
