// server/internal/api/routes/routes.go
package routes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"eco-relais-api-server/config"
	"eco-relais-api-server/internal/api/handlers"
	"eco-relais-api-server/internal/api/middleware"
	"eco-relais-api-server/internal/mission"
	"eco-relais-api-server/internal/models"
	"eco-relais-api-server/internal/s3"
	"eco-relais-api-server/internal/socket"
)

// SetupRouter nhận vào các thành phần phụ thuộc và thiết lập các route
func SetupRouter(
	svc *mission.Service,
	cfg config.Config,
	db *mongo.Database,
	s3Uploader *s3.Uploader,
	wsHub *socket.Hub,
) *gin.Engine {
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	// Khởi tạo các handlers
	userHandler := &handlers.UserHandler{DB: db, Cfg: cfg}
	missionHandler := &handlers.MissionHandler{Service: svc, Cfg: cfg, DB: db, S3Uploader: s3Uploader}
	paymentHandler := &handlers.PaymentHandler{DB: db}
	adminHandler := &handlers.AdminHandler{DB: db}
	webSocketHandler := &handlers.WebSocketHandler{Hub: wsHub}

	api := router.Group("/api")
	{
		// Route cho WebSocket (token qua query)
		api.GET("/ws", webSocketHandler.ServeWs)

		// === CÁC ROUTE KHÔNG YÊU CẦU XÁC THỰC ===
		auth := api.Group("/auth")
		{
			auth.POST("/register", userHandler.Register)
			auth.POST("/login", userHandler.Login)
		}

		// === CÁC ROUTE YÊU CẦU XÁC THỰC (PROTECTED) ===
		users := api.Group("/users")
		users.Use(middleware.Authenticate())
		{
			users.GET("/profile", userHandler.Profile)
		}

		// Nhóm API mission, quyền cụ thể theo từng route
		missions := api.Group("/missions")
		missions.Use(middleware.Authenticate())
		{
			// GET /missions phân nhánh theo vai trò (xem ListMissions)
			missions.GET("", missionHandler.ListMissions)
			missions.GET("/:id", missionHandler.GetMission)

			// Chỉ client tạo mission và xem mã QR
			clientRoutes := missions.Group("/")
			clientRoutes.Use(middleware.Authorize(models.RoleClient))
			{
				clientRoutes.POST("", missionHandler.CreateMission)
				clientRoutes.GET("/:id/codes", missionHandler.GetMissionCodes)
				clientRoutes.POST("/:id/photo", missionHandler.UploadPackagePhoto)
			}

			// Chỉ partner thao tác vòng đời giao hàng
			partnerRoutes := missions.Group("/")
			partnerRoutes.Use(middleware.Authorize(models.RolePartner))
			{
				partnerRoutes.PUT("/:id/accept", missionHandler.AcceptMission)
				partnerRoutes.PUT("/:id/collect", missionHandler.CollectMission)
				partnerRoutes.PUT("/:id/status", missionHandler.UpdateStatus)
				partnerRoutes.PUT("/:id/deliver", missionHandler.DeliverMission)
			}

			// Hủy dùng chung cho cả ba vai trò, handler tự phân nhánh
			cancelRoutes := missions.Group("/")
			cancelRoutes.Use(middleware.Authorize(models.RoleClient, models.RolePartner, models.RoleAdmin))
			{
				cancelRoutes.PUT("/:id/cancel", missionHandler.CancelMission)
			}
		}

		// Nhóm API thanh toán cho partner
		payments := api.Group("/payments")
		payments.Use(middleware.Authenticate())
		payments.Use(middleware.Authorize(models.RolePartner))
		{
			payments.GET("/earnings", paymentHandler.Earnings)
			payments.POST("/payout", paymentHandler.RequestPayout)
		}

		// Nhóm API quản trị, yêu cầu vai trò "admin"
		admin := api.Group("/admin")
		admin.Use(middleware.Authenticate())
		admin.Use(middleware.Authorize(models.RoleAdmin))
		{
			admin.GET("/stats", adminHandler.Stats)
			admin.GET("/users", adminHandler.ListUsers)
			admin.PUT("/users/:id/verify", adminHandler.VerifyPartner)
			admin.GET("/disputes", adminHandler.ListDisputes)
			admin.PATCH("/disputes/:id/resolve", adminHandler.ResolveDispute)
		}
	}

	return router
}
