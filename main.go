package main

import (
	"github.com/KING-DAVIDX/cdn-example/config"
	"github.com/KING-DAVIDX/cdn-example/models"
	"github.com/KING-DAVIDX/cdn-example/routes"
	"github.com/KING-DAVIDX/cdn-example/storage"
	"github.com/KING-DAVIDX/cdn-example/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.FileRecord{})

	blob := storage.NewTelegramStore(cfg)
	r := routes.SetupRouter(db, blob)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
