package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/blogium/blogium/models"
	"github.com/blogium/blogium/utils"
)

// StatsController provides site statistics such as entity counts and page views.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// GetStats returns aggregate statistics for the site.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var userCount, postCount, commentCount, categoryCount, todayViews int64

	// Fall back to 0 instead of failing the whole endpoint.
	if err := s.db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		userCount = 0
	}
	if err := s.db.Model(&models.Post{}).Count(&postCount).Error; err != nil {
		postCount = 0
	}
	if err := s.db.Model(&models.Comment{}).Count(&commentCount).Error; err != nil {
		commentCount = 0
	}
	if err := s.db.Model(&models.Category{}).Where("is_published = ?", true).Count(&categoryCount).Error; err != nil {
		categoryCount = 0
	}

	// String date equality avoids timezone/type mismatches with the DATE column.
	today := time.Now().In(time.Local).Format("2006-01-02")
	if err := s.db.Model(&models.PageView{}).
		Where("date = ?", today).
		Select("COALESCE(SUM(count),0)").
		Scan(&todayViews).Error; err != nil {
		todayViews = 0
	}

	utils.Success(ctx, gin.H{
		"user_count":     userCount,
		"post_count":     postCount,
		"comment_count":  commentCount,
		"category_count": categoryCount,
		"today_views":    todayViews,
	})
}

// GetPostStats returns cumulative views and comment count for one post.
func (s *StatsController) GetPostStats(ctx *gin.Context) {
	id := ctx.Param("id")

	var views int64
	if err := s.db.Model(&models.PageView{}).
		Where("path = ?", "/api/v1/posts/"+id).
		Select("COALESCE(SUM(count),0)").
		Scan(&views).Error; err != nil {
		views = 0
	}

	var commentCount int64
	if err := s.db.Model(&models.Comment{}).Where("post_id = ?", id).Count(&commentCount).Error; err != nil {
		commentCount = 0
	}

	utils.Success(ctx, gin.H{
		"views":         views,
		"comment_count": commentCount,
	})
}
