package models

import (
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Migration must resolve every association, in particular the has-many
// relations on User whose foreign key is AuthorID rather than the
// inferred UserID.
func TestMigrateAndUserAssociations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("db open: %v", err)
	}
	if err := db.AutoMigrate(&User{}, &Category{}, &Location{}, &Post{}, &Comment{}, &PageView{}, &PendingUpload{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	user := User{Username: "alice"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	post := Post{AuthorID: user.ID, Title: "t", Text: "x", PubDate: time.Now()}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}
	comment := Comment{PostID: post.ID, AuthorID: &user.ID, Text: "c"}
	if err := db.Create(&comment).Error; err != nil {
		t.Fatalf("create comment: %v", err)
	}

	var loaded User
	if err := db.Preload("Posts").Preload("Comments").First(&loaded, user.ID).Error; err != nil {
		t.Fatalf("preload user: %v", err)
	}
	if len(loaded.Posts) != 1 || loaded.Posts[0].ID != post.ID {
		t.Errorf("user posts = %v", loaded.Posts)
	}
	if len(loaded.Comments) != 1 || loaded.Comments[0].ID != comment.ID {
		t.Errorf("user comments = %v", loaded.Comments)
	}
}
