package main

import (
	"time"

	"github.com/blogium/blogium/config"
	"github.com/blogium/blogium/models"
	"github.com/blogium/blogium/routes"
	"github.com/blogium/blogium/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{},
		&models.Category{},
		&models.Location{},
		&models.Post{},
		&models.Comment{},
		&models.PageView{},
		&models.PendingUpload{},
	)

	r := routes.SetupRouter(db)

	// Reap uploaded images that never got attached to a post (best-effort).
	utils.StartUploadCleaner(db, 5*time.Minute)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
