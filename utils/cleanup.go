package utils

import (
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/blogium/blogium/models"
)

// StartUploadCleaner launches a background goroutine that periodically removes
// uploaded images no post ever adopted. Attaching an image to a post deletes
// its PendingUpload row, so only orphans expire. Best-effort; failures are logged.
func StartUploadCleaner(db *gorm.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		for {
			// Sleep first to avoid racing migrations at startup.
			time.Sleep(interval)

			var items []models.PendingUpload
			if err := db.Where("expire_at <= ?", time.Now()).Limit(100).Find(&items).Error; err != nil {
				if Sugar != nil {
					Sugar.Warnf("upload cleaner query failed: %v", err)
				}
				continue
			}
			for _, it := range items {
				if it.FilePath != "" {
					_ = os.Remove(it.FilePath)
				}
				// Remove the row regardless of file deletion outcome.
				if err := db.Delete(&models.PendingUpload{}, it.ID).Error; err != nil && Sugar != nil {
					Sugar.Warnf("upload cleaner delete row failed: %v", err)
				}
			}
		}
	}()
}
