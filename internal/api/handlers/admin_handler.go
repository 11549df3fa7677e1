package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"eco-relais-api-server/internal/models"
)

type AdminHandler struct {
	DB *mongo.Database
}

// Stats trả về số liệu cho dashboard quản trị: tổng user, mission đang
// chạy, doanh thu (tổng commission của mission đã giao) và chuỗi tăng
// trưởng theo tháng.
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := context.Background()

	totalUsers, err := h.DB.Collection("users").CountDocuments(ctx, bson.M{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count users"})
		return
	}

	activeStatuses := bson.A{
		models.StatusPending,
		models.StatusAccepted,
		models.StatusCollected,
		models.StatusInTransit,
	}
	activeMissions, err := h.DB.Collection("missions").CountDocuments(ctx, bson.M{"status": bson.M{"$in": activeStatuses}})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count missions"})
		return
	}

	// Doanh thu nền tảng = tổng commission của các mission delivered.
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": models.StatusDelivered}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "revenue": bson.M{"$sum": "$commission"}}}},
	}
	cursor, err := h.DB.Collection("missions").Aggregate(ctx, pipeline)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate revenue"})
		return
	}
	defer cursor.Close(ctx)

	revenue := 0.0
	var agg []bson.M
	if err = cursor.All(ctx, &agg); err == nil && len(agg) > 0 {
		if v, ok := agg[0]["revenue"].(float64); ok {
			revenue = v
		}
	}

	growth, err := h.monthlyGrowth(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate growth"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"total_users":     totalUsers,
		"active_missions": activeMissions,
		"revenue":         revenue,
		"growth":          growth,
	})
}

type growthPoint struct {
	Month   string  `json:"month"`
	Users   int64   `json:"users"`
	Revenue float64 `json:"revenue"`
}

// monthlyGrowth gom số user mới và commission theo 6 tháng gần nhất.
func (h *AdminHandler) monthlyGrowth(ctx context.Context) ([]growthPoint, error) {
	since := time.Now().AddDate(0, -5, 0)
	start := time.Date(since.Year(), since.Month(), 1, 0, 0, 0, 0, time.UTC)

	points := []growthPoint{}
	for i := 0; i < 6; i++ {
		from := start.AddDate(0, i, 0)
		to := from.AddDate(0, 1, 0)
		if from.After(time.Now()) {
			break
		}

		users, err := h.DB.Collection("users").CountDocuments(ctx, bson.M{
			"createdAt": bson.M{"$gte": from, "$lt": to},
		})
		if err != nil {
			return nil, err
		}

		pipeline := mongo.Pipeline{
			{{Key: "$match", Value: bson.M{
				"status":      models.StatusDelivered,
				"completedAt": bson.M{"$gte": from, "$lt": to},
			}}},
			{{Key: "$group", Value: bson.M{"_id": nil, "revenue": bson.M{"$sum": "$commission"}}}},
		}
		cursor, err := h.DB.Collection("missions").Aggregate(ctx, pipeline)
		if err != nil {
			return nil, err
		}
		revenue := 0.0
		var agg []bson.M
		if err = cursor.All(ctx, &agg); err == nil && len(agg) > 0 {
			if v, ok := agg[0]["revenue"].(float64); ok {
				revenue = v
			}
		}
		cursor.Close(ctx)

		points = append(points, growthPoint{
			Month:   from.Format("2006-01"),
			Users:   users,
			Revenue: revenue,
		})
	}
	return points, nil
}

// ListUsers trả về toàn bộ tài khoản, mới nhất trước.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := h.DB.Collection("users").Find(context.Background(), bson.M{}, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query users"})
		return
	}
	defer cursor.Close(context.Background())

	var users []models.User
	if err = cursor.All(context.Background(), &users); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode users"})
		return
	}
	if users == nil {
		users = []models.User{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "users": users})
}

// ListDisputes trả về hàng đợi khiếu nại cho admin, mới nhất trước.
func (h *AdminHandler) ListDisputes(c *gin.Context) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := h.DB.Collection("disputes").Find(context.Background(), bson.M{}, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query disputes"})
		return
	}
	defer cursor.Close(context.Background())

	var disputes []models.Dispute
	if err = cursor.All(context.Background(), &disputes); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode disputes"})
		return
	}
	if disputes == nil {
		disputes = []models.Dispute{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "disputes": disputes})
}

type ResolveDisputeRequest struct {
	Resolution string `json:"resolution" binding:"required"`
}

// ResolveDispute đóng một khiếu nại với ghi chú xử lý của admin.
// Khiếu nại đã resolved thì không mở lại, resolve lần hai là conflict.
func (h *AdminHandler) ResolveDispute(c *gin.Context) {
	disputeID := c.Param("id")

	var req ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	filter := bson.M{
		"disputeID": disputeID,
		"status":    bson.M{"$in": bson.A{models.DisputeOpen, models.DisputeInReview}},
	}
	update := bson.M{"$set": bson.M{
		"status":     models.DisputeResolved,
		"resolution": req.Resolution,
		"resolvedAt": now,
	}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var d models.Dispute
	err := h.DB.Collection("disputes").FindOneAndUpdate(context.Background(), filter, update, opts).Decode(&d)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			var existing models.Dispute
			findErr := h.DB.Collection("disputes").FindOne(context.Background(), bson.M{"disputeID": disputeID}).Decode(&existing)
			if findErr == nil && !existing.Status.Resolvable() {
				c.JSON(http.StatusConflict, gin.H{"error": "Dispute is already resolved"})
				return
			}
			c.JSON(http.StatusNotFound, gin.H{"error": "Dispute not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update dispute"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "dispute": d})
}

// VerifyPartner đánh dấu một tài khoản partner đã được duyệt hồ sơ.
func (h *AdminHandler) VerifyPartner(c *gin.Context) {
	userID := c.Param("id")

	result, err := h.DB.Collection("users").UpdateOne(context.Background(),
		bson.M{"userID": userID, "role": models.RolePartner},
		bson.M{"$set": bson.M{"verified": true}},
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}
	if result.MatchedCount == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Partner not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Partner verified"})
}
