package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/blogium/blogium/config"
	"github.com/blogium/blogium/models"
)

type envelope struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	config.SetForTesting(config.AppConfig{
		JWTSecret:          "test-secret",
		GinMode:            "test",
		RateLimitPerMinute: 100000,
		AllowedOrigins:     []string{"*"},
		AdminUsernames:     []string{"admin"},
		MediaDir:           t.TempDir(),
		UploadMaxMB:        5,
		UploadTTLMinutes:   30,
	})

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("db open: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Location{},
		&models.Post{},
		&models.Comment{},
		&models.PageView{},
		&models.PendingUpload{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return SetupRouter(db), db
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func registerUser(t *testing.T, r *gin.Engine, username string) string {
	t.Helper()
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": username,
		"password": "secret123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("register %s: status %d body %s", username, w.Code, w.Body.String())
	}
	token, _ := env.Data["token"].(string)
	if token == "" {
		t.Fatalf("register %s: no token in %v", username, env.Data)
	}
	return token
}

func createCategory(t *testing.T, r *gin.Engine, adminToken, slug string) uint {
	t.Helper()
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/categories", adminToken, gin.H{
		"title": slug,
		"slug":  slug,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create category: status %d body %s", w.Code, w.Body.String())
	}
	return jsonID(t, env.Data, "category")
}

func createPost(t *testing.T, r *gin.Engine, token string, body gin.H) uint {
	t.Helper()
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/posts", token, body)
	if w.Code != http.StatusOK {
		t.Fatalf("create post: status %d body %s", w.Code, w.Body.String())
	}
	return jsonID(t, env.Data, "post")
}

// jsonID digs data[key]["id"] out of a decoded response.
func jsonID(t *testing.T, data map[string]interface{}, key string) uint {
	t.Helper()
	obj, ok := data[key].(map[string]interface{})
	if !ok {
		t.Fatalf("no %q object in %v", key, data)
	}
	id, ok := obj["id"].(float64)
	if !ok || id == 0 {
		t.Fatalf("no id in %v", obj)
	}
	return uint(id)
}

func TestRegisterAndLogin(t *testing.T) {
	r, _ := newTestServer(t)

	registerUser(t, r, "alice")

	// Duplicate username is rejected.
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": "alice", "password": "secret123",
	})
	if w.Code != http.StatusConflict || env.Code != 40901 {
		t.Errorf("duplicate register: status %d code %d", w.Code, env.Code)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"username": "alice", "password": "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad password login: status %d", w.Code)
	}

	w, env = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"username": "alice", "password": "secret123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", w.Code, w.Body.String())
	}
	token, _ := env.Data["token"].(string)

	w, env = doJSON(t, r, http.MethodGet, "/api/v1/auth/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: status %d", w.Code)
	}
	user, _ := env.Data["user"].(map[string]interface{})
	if user["username"] != "alice" {
		t.Errorf("me returned %v", user)
	}
	if admin, ok := env.Data["is_admin"].(bool); !ok || admin {
		t.Errorf("is_admin = %v for a regular user", env.Data["is_admin"])
	}
}

func TestPostLifecycle(t *testing.T) {
	r, _ := newTestServer(t)
	adminToken := registerUser(t, r, "admin")
	aliceToken := registerUser(t, r, "alice")
	catID := createCategory(t, r, adminToken, "travel")

	// Anonymous writes are rejected.
	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/posts", "", gin.H{
		"title": "x", "text": "y",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create: status %d", w.Code)
	}

	postID := createPost(t, r, aliceToken, gin.H{
		"title":       "First post",
		"text":        "Hello world",
		"category_id": catID,
	})

	w, env := doJSON(t, r, http.MethodGet, "/api/v1/posts", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list posts: status %d", w.Code)
	}
	posts, _ := env.Data["items"].([]interface{})
	if len(posts) != 1 {
		t.Fatalf("public feed length = %d, want 1", len(posts))
	}

	w, env = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", postID), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get post: status %d body %s", w.Code, w.Body.String())
	}
	post, _ := env.Data["post"].(map[string]interface{})
	if post["title"] != "First post" {
		t.Errorf("detail = %v", post)
	}

	// Unknown category in the payload is a validation failure.
	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/posts", aliceToken, gin.H{
		"title": "bad", "text": "bad", "category_id": 9999,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown category: status %d", w.Code)
	}
}

func TestScheduledPostVisibleOnlyToAuthor(t *testing.T) {
	r, _ := newTestServer(t)
	adminToken := registerUser(t, r, "admin")
	aliceToken := registerUser(t, r, "alice")
	bobToken := registerUser(t, r, "bob")
	catID := createCategory(t, r, adminToken, "travel")

	postID := createPost(t, r, aliceToken, gin.H{
		"title":       "Scheduled",
		"text":        "later",
		"category_id": catID,
		"pub_date":    time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})

	path := fmt.Sprintf("/api/v1/posts/%d", postID)
	if w, _ := doJSON(t, r, http.MethodGet, path, "", nil); w.Code != http.StatusNotFound {
		t.Errorf("anonymous detail: status %d, want 404", w.Code)
	}
	if w, _ := doJSON(t, r, http.MethodGet, path, bobToken, nil); w.Code != http.StatusNotFound {
		t.Errorf("other user detail: status %d, want 404", w.Code)
	}
	if w, _ := doJSON(t, r, http.MethodGet, path, aliceToken, nil); w.Code != http.StatusOK {
		t.Errorf("author detail: status %d, want 200", w.Code)
	}

	// Profile feed shows the scheduled post only to its owner.
	_, env := doJSON(t, r, http.MethodGet, "/api/v1/users/alice/posts", aliceToken, nil)
	if own, _ := env.Data["items"].([]interface{}); len(own) != 1 {
		t.Errorf("owner profile feed length = %d, want 1", len(own))
	}
	_, env = doJSON(t, r, http.MethodGet, "/api/v1/users/alice/posts", bobToken, nil)
	if visitor, _ := env.Data["items"].([]interface{}); len(visitor) != 0 {
		t.Errorf("visitor profile feed length = %d, want 0", len(visitor))
	}
}

func TestUpdatePostByNonAuthorRedirects(t *testing.T) {
	r, _ := newTestServer(t)
	adminToken := registerUser(t, r, "admin")
	aliceToken := registerUser(t, r, "alice")
	bobToken := registerUser(t, r, "bob")
	catID := createCategory(t, r, adminToken, "travel")

	postID := createPost(t, r, aliceToken, gin.H{
		"title": "Mine", "text": "hands off", "category_id": catID,
	})

	w, env := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/v1/posts/%d", postID), bobToken, gin.H{
		"title": "Taken over", "text": "nope",
	})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("non-author edit: status %d, want 303", w.Code)
	}
	if redirect, _ := env.Data["redirect"].(string); redirect != fmt.Sprintf("/posts/%d", postID) {
		t.Errorf("redirect = %q", redirect)
	}

	// The author still can.
	w, _ = doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/v1/posts/%d", postID), aliceToken, gin.H{
		"title": "Mine, edited", "text": "still mine", "category_id": catID,
	})
	if w.Code != http.StatusOK {
		t.Errorf("author edit: status %d body %s", w.Code, w.Body.String())
	}
}

func TestDeletePostCascadesComments(t *testing.T) {
	r, db := newTestServer(t)
	adminToken := registerUser(t, r, "admin")
	aliceToken := registerUser(t, r, "alice")
	bobToken := registerUser(t, r, "bob")
	catID := createCategory(t, r, adminToken, "travel")

	postID := createPost(t, r, aliceToken, gin.H{
		"title": "Commented", "text": "talk to me", "category_id": catID,
	})

	w, _ := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/comments", postID), bobToken, gin.H{
		"text": "nice post",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create comment: status %d body %s", w.Code, w.Body.String())
	}

	// Bob cannot delete Alice's post.
	if w, _ := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/posts/%d", postID), bobToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("non-author delete: status %d, want 403", w.Code)
	}

	if w, _ := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/posts/%d", postID), aliceToken, nil); w.Code != http.StatusOK {
		t.Fatalf("author delete: status %d", w.Code)
	}

	var comments int64
	db.Model(&models.Comment{}).Where("post_id = ?", postID).Count(&comments)
	if comments != 0 {
		t.Errorf("comments left after post delete: %d", comments)
	}
	if w, _ := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", postID), aliceToken, nil); w.Code != http.StatusNotFound {
		t.Errorf("deleted post detail: status %d, want 404", w.Code)
	}
}

func TestCommentPermissions(t *testing.T) {
	r, _ := newTestServer(t)
	adminToken := registerUser(t, r, "admin")
	aliceToken := registerUser(t, r, "alice")
	bobToken := registerUser(t, r, "bob")
	catID := createCategory(t, r, adminToken, "travel")

	postID := createPost(t, r, aliceToken, gin.H{
		"title": "Post", "text": "text", "category_id": catID,
	})
	w, env := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/comments", postID), bobToken, gin.H{
		"text": "mine",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create comment: status %d", w.Code)
	}
	commentID := jsonID(t, env.Data, "comment")

	path := fmt.Sprintf("/api/v1/comments/%d", commentID)
	if w, _ := doJSON(t, r, http.MethodPut, path, aliceToken, gin.H{"text": "edited"}); w.Code != http.StatusForbidden {
		t.Errorf("non-author comment edit: status %d, want 403", w.Code)
	}
	if w, _ := doJSON(t, r, http.MethodPut, path, bobToken, gin.H{"text": "edited"}); w.Code != http.StatusOK {
		t.Errorf("author comment edit: status %d", w.Code)
	}
	// Admins may moderate other people's comments.
	if w, _ := doJSON(t, r, http.MethodDelete, path, adminToken, nil); w.Code != http.StatusOK {
		t.Errorf("admin comment delete: status %d", w.Code)
	}
}

func TestCategoryDeleteClearsPostReference(t *testing.T) {
	r, db := newTestServer(t)
	adminToken := registerUser(t, r, "admin")
	aliceToken := registerUser(t, r, "alice")
	catID := createCategory(t, r, adminToken, "travel")

	postID := createPost(t, r, aliceToken, gin.H{
		"title": "Orphaned soon", "text": "text", "category_id": catID,
	})

	// Only admins may manage categories.
	if w, _ := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/categories/%d", catID), aliceToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("non-admin category delete: status %d, want 403", w.Code)
	}
	if w, _ := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/categories/%d", catID), adminToken, nil); w.Code != http.StatusOK {
		t.Fatalf("category delete: status %d", w.Code)
	}

	// The post survives with its category reference cleared.
	var post models.Post
	if err := db.First(&post, postID).Error; err != nil {
		t.Fatalf("post gone after category delete: %v", err)
	}
	if post.CategoryID != nil {
		t.Errorf("category_id not cleared: %v", *post.CategoryID)
	}

	// Without a published category the post leaves the public feed.
	_, env := doJSON(t, r, http.MethodGet, "/api/v1/posts", "", nil)
	if posts, _ := env.Data["items"].([]interface{}); len(posts) != 0 {
		t.Errorf("public feed length = %d after category delete, want 0", len(posts))
	}
}

func TestLocationDeleteClearsPostReference(t *testing.T) {
	r, db := newTestServer(t)
	adminToken := registerUser(t, r, "admin")
	aliceToken := registerUser(t, r, "alice")
	catID := createCategory(t, r, adminToken, "travel")

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/locations", adminToken, gin.H{"name": "Oslo"})
	if w.Code != http.StatusOK {
		t.Fatalf("create location: status %d body %s", w.Code, w.Body.String())
	}
	locID := jsonID(t, env.Data, "location")

	postID := createPost(t, r, aliceToken, gin.H{
		"title": "Located", "text": "text", "category_id": catID, "location_id": locID,
	})

	if w, _ := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/locations/%d", locID), adminToken, nil); w.Code != http.StatusOK {
		t.Fatalf("location delete: status %d", w.Code)
	}

	var post models.Post
	if err := db.First(&post, postID).Error; err != nil {
		t.Fatalf("post gone after location delete: %v", err)
	}
	if post.LocationID != nil {
		t.Errorf("location_id not cleared: %v", *post.LocationID)
	}

	// Location does not gate visibility, so the post stays in the feed.
	_, env = doJSON(t, r, http.MethodGet, "/api/v1/posts", "", nil)
	if posts, _ := env.Data["items"].([]interface{}); len(posts) != 1 {
		t.Errorf("public feed length = %d after location delete, want 1", len(posts))
	}
}

func TestCategoryFeedEndpoint(t *testing.T) {
	r, _ := newTestServer(t)
	adminToken := registerUser(t, r, "admin")
	aliceToken := registerUser(t, r, "alice")
	travelID := createCategory(t, r, adminToken, "travel")
	foodID := createCategory(t, r, adminToken, "food")

	createPost(t, r, aliceToken, gin.H{"title": "t1", "text": "x", "category_id": travelID})
	createPost(t, r, aliceToken, gin.H{"title": "f1", "text": "x", "category_id": foodID})

	w, env := doJSON(t, r, http.MethodGet, "/api/v1/categories/travel/posts", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("category feed: status %d", w.Code)
	}
	posts, _ := env.Data["items"].([]interface{})
	if len(posts) != 1 {
		t.Errorf("category feed length = %d, want 1", len(posts))
	}

	if w, _ := doJSON(t, r, http.MethodGet, "/api/v1/categories/ghost/posts", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown category feed: status %d, want 404", w.Code)
	}
}

func TestUnknownProfileReturns404(t *testing.T) {
	r, _ := newTestServer(t)
	if w, _ := doJSON(t, r, http.MethodGet, "/api/v1/users/ghost_user/posts", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown profile feed: status %d, want 404", w.Code)
	}
	if w, _ := doJSON(t, r, http.MethodGet, "/api/v1/users/ghost_user", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown profile: status %d, want 404", w.Code)
	}
}
