package controllers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blogium/blogium/config"
	"github.com/blogium/blogium/models"
	"github.com/blogium/blogium/utils"
)

// MediaController handles post image uploads. Files land under the media dir
// with uuid names; a PendingUpload row marks them for cleanup until a post
// adopts the image.
type MediaController struct {
	db *gorm.DB
}

// NewMediaController creates a new MediaController instance.
func NewMediaController(db *gorm.DB) *MediaController {
	return &MediaController{db: db}
}

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// UploadImage stores an uploaded image and returns its public URL.
func (m *MediaController) UploadImage(ctx *gin.Context) {
	if _, ok := getUserID(ctx); !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40116, "unauthorized")
		return
	}

	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40070, "no file uploaded")
		return
	}
	defer file.Close()

	cfg := config.Get()
	maxSize := int64(cfg.UploadMaxMB) * 1024 * 1024
	if header.Size > 0 && header.Size > maxSize {
		utils.Error(ctx, http.StatusBadRequest, 40071, fmt.Sprintf("file size exceeds %dMB", cfg.UploadMaxMB))
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedImageExts[ext] {
		utils.Error(ctx, http.StatusBadRequest, 40072, "unsupported image type")
		return
	}

	now := time.Now()
	baseDir := filepath.Join(cfg.MediaDir, now.Format("2006"), now.Format("01"))
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to create media directory")
		return
	}

	name := uuid.NewString() + ext
	dstPath := filepath.Join(baseDir, name)

	out, err := os.Create(dstPath)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50061, "failed to save file")
		return
	}
	defer out.Close()

	// LimitedReader backs the size cap even when the header lies about Size.
	lr := &io.LimitedReader{R: file, N: maxSize + 1}
	written, err := io.Copy(out, lr)
	if err != nil || written > maxSize {
		_ = out.Close()
		_ = os.Remove(dstPath)
		if err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50062, "failed to write file")
		} else {
			utils.Error(ctx, http.StatusBadRequest, 40071, fmt.Sprintf("file size exceeds %dMB", cfg.UploadMaxMB))
		}
		return
	}

	relURL := "/media/" + filepath.ToSlash(filepath.Join(now.Format("2006"), now.Format("01"), name))
	expireAt := now.Add(time.Duration(cfg.UploadTTLMinutes) * time.Minute)
	if err := m.db.Create(&models.PendingUpload{FilePath: dstPath, URL: relURL, ExpireAt: expireAt}).Error; err != nil && utils.Sugar != nil {
		utils.Sugar.Warnf("failed to record pending upload %s: %v", relURL, err)
	}

	utils.Success(ctx, gin.H{"url": relURL})
}
