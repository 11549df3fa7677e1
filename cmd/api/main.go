// server/cmd/api/main.go
package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"eco-relais-api-server/config"
	"eco-relais-api-server/internal/acceptance"
	"eco-relais-api-server/internal/api/routes"
	"eco-relais-api-server/internal/auth"
	"eco-relais-api-server/internal/database"
	"eco-relais-api-server/internal/mission"
	"eco-relais-api-server/internal/s3"
	"eco-relais-api-server/internal/settlement"
	"eco-relais-api-server/internal/socket"
	"eco-relais-api-server/internal/store"
)

func main() {
	// .env chỉ dùng cho môi trường dev, lỗi bỏ qua được.
	_ = godotenv.Load()

	// 1. Load configuration
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}
	auth.SetSecret(cfg.JWT.Secret)

	// 2. Kết nối MongoDB và chuẩn bị index + tài khoản admin
	db, err := database.Connect(cfg.Mongo)
	if err != nil {
		log.Fatalf("Could not connect to MongoDB: %v", err)
	}
	if err := database.EnsureIndexes(context.Background(), db); err != nil {
		log.Fatalf("Could not create indexes: %v", err)
	}
	if err := database.SeedAdmin(db); err != nil {
		log.Fatalf("Could not seed admin account: %v", err)
	}

	// 3. Khởi tạo WebSocket hub
	wsHub := socket.NewHub()

	// 4. Khởi tạo S3 uploader (tùy chọn, thiếu config thì tắt upload ảnh)
	var s3Uploader *s3.Uploader
	if cfg.S3.Bucket != "" {
		s3Uploader, err = s3.NewUploader(cfg.S3)
		if err != nil {
			log.Fatalf("Could not create S3 uploader: %v", err)
		}
	} else {
		log.Println("S3 is not configured, package photo upload is disabled")
	}

	// 5. Lắp ráp core: store -> grace window -> settlement -> service
	missions := store.NewMongoMissions(db)
	windows := acceptance.NewController(acceptance.RealClock{}, cfg.Mission.CancelWindowSec)
	settle := settlement.NewService(db, cfg.Settlement.WebhookURL)

	svc := &mission.Service{
		Store:           missions,
		Windows:         windows,
		Settle:          settle,
		Events:          wsHub,
		Clock:           acceptance.RealClock{},
		DefaultRadiusKm: cfg.Mission.DefaultRadiusKm,
		CommissionRate:  cfg.Mission.CommissionRate,
	}

	// 6. Truyền tất cả các thành phần cần thiết vào router
	router := routes.SetupRouter(svc, cfg, db, s3Uploader, wsHub)

	// 7. Start server
	log.Printf("Starting API server on port %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
