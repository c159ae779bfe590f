package main

import (
	"time"

	"github.com/cbpp-kr/postboard/config"
	"github.com/cbpp-kr/postboard/models"
	"github.com/cbpp-kr/postboard/repositories"
	"github.com/cbpp-kr/postboard/routes"
	"github.com/cbpp-kr/postboard/storage"
	"github.com/cbpp-kr/postboard/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.Post{}, &models.Attachment{})

	store, err := storage.NewDiskStore(cfg.UploadDir, int64(cfg.MaxUploadSizeMB)*1024*1024)
	if err != nil {
		utils.Sugar.Fatalf("upload storage init failed: %v", err)
	}

	r := routes.SetupRouter(db, store)

	// Reclaim files left behind by failed compensations (best-effort)
	utils.StartOrphanSweeper(
		store,
		repositories.NewPostRepo(db),
		repositories.NewAttachmentRepo(db),
		time.Duration(cfg.OrphanSweepIntervalMinutes)*time.Minute,
		time.Duration(cfg.OrphanMinAgeMinutes)*time.Minute,
	)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
