package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/blogium/blogium/config"
	"github.com/blogium/blogium/utils"
)

// ConfigController serves static site metadata for the front end. This is
// startup configuration, not runtime state.
type ConfigController struct{}

func NewConfigController() *ConfigController { return &ConfigController{} }

// GetSite returns the configured site title and description.
func (c *ConfigController) GetSite(ctx *gin.Context) {
	cfg := config.Get()
	utils.Success(ctx, gin.H{
		"title":       cfg.SiteTitle,
		"description": cfg.SiteDescription,
	})
}
