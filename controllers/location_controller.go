package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/blogium/blogium/models"
	"github.com/blogium/blogium/utils"
)

// LocationController serves the public location listing and lets
// administrators manage locations. Same lifecycle as categories: unpublish to
// hide, delete only clears references on dependent posts.
type LocationController struct {
	db *gorm.DB
}

// NewLocationController creates a new LocationController instance.
func NewLocationController(db *gorm.DB) *LocationController {
	return &LocationController{db: db}
}

type locationRequest struct {
	Name        string `json:"name" binding:"required,min=1"`
	IsPublished *bool  `json:"is_published"`
}

// ListLocations returns all published locations.
func (l *LocationController) ListLocations(ctx *gin.Context) {
	var locations []models.Location
	if err := l.db.Where("is_published = ?", true).Order("name ASC").Find(&locations).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to list locations")
		return
	}
	utils.Success(ctx, gin.H{"items": locations})
}

// CreateLocation creates a location. Admin only (enforced in routing).
func (l *LocationController) CreateLocation(ctx *gin.Context) {
	var req locationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid request payload")
		return
	}
	name := utils.Sanitize(strings.TrimSpace(req.Name))
	if name == "" {
		utils.Error(ctx, http.StatusBadRequest, 40051, "name cannot be empty")
		return
	}

	location := models.Location{Name: name, IsPublished: true}
	if req.IsPublished != nil {
		location.IsPublished = *req.IsPublished
	}
	if err := l.db.Create(&location).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to create location")
		return
	}
	utils.Success(ctx, gin.H{"location": location})
}

// UpdateLocation edits a location.
func (l *LocationController) UpdateLocation(ctx *gin.Context) {
	var req locationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40052, "invalid request payload")
		return
	}

	location, ok := l.loadLocation(ctx)
	if !ok {
		return
	}

	name := utils.Sanitize(strings.TrimSpace(req.Name))
	if name == "" {
		utils.Error(ctx, http.StatusBadRequest, 40053, "name cannot be empty")
		return
	}
	location.Name = name
	if req.IsPublished != nil {
		location.IsPublished = *req.IsPublished
	}
	if err := l.db.Save(location).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to update location")
		return
	}
	utils.Success(ctx, gin.H{"location": location})
}

// DeleteLocation removes a location and clears the reference on its posts;
// the posts themselves are untouched.
func (l *LocationController) DeleteLocation(ctx *gin.Context) {
	location, ok := l.loadLocation(ctx)
	if !ok {
		return
	}

	if err := l.db.Model(&models.Post{}).Where("location_id = ?", location.ID).
		Update("location_id", nil).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50053, "failed to detach posts")
		return
	}
	if err := l.db.Delete(location).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50054, "failed to delete location")
		return
	}
	// Location is not part of the visibility predicate, so cached feeds
	// stay correct; only detail payloads embed the location.
	utils.InvalidateByPrefix("cache:post:detail:")
	utils.Success(ctx, gin.H{"message": "location deleted"})
}

func (l *LocationController) loadLocation(ctx *gin.Context) (*models.Location, bool) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40068, "invalid location id")
		return nil, false
	}
	var location models.Location
	if err := l.db.First(&location, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40415, "location not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50055, "failed to load location")
		return nil, false
	}
	return &location, true
}
