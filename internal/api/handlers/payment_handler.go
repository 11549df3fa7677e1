package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"eco-relais-api-server/internal/models"
)

// PaymentHandler phục vụ phần xem thu nhập và yêu cầu payout của partner.
// Chuyển tiền thật (Stripe) là việc của hệ thống bên ngoài, ở đây chỉ
// quản lý sổ sách transaction.
type PaymentHandler struct {
	DB *mongo.Database
}

// Earnings trả về tổng thu nhập và danh sách transaction của partner.
func (h *PaymentHandler) Earnings(c *gin.Context) {
	partnerID := c.GetString("user_id")

	collection := h.DB.Collection("transactions")
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := collection.Find(context.Background(), bson.M{"partnerID": partnerID}, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query transactions"})
		return
	}
	defer cursor.Close(context.Background())

	var transactions []models.Transaction
	if err = cursor.All(context.Background(), &transactions); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode transactions"})
		return
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}

	total := 0.0
	for _, tx := range transactions {
		if tx.Status == models.TxCompleted {
			total += tx.Amount
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"total_earnings": total,
		"transactions":   transactions,
	})
}

// RequestPayout gom các transaction completed chưa trả của partner thành
// một đợt payout và đánh dấu chúng đã trả.
func (h *PaymentHandler) RequestPayout(c *gin.Context) {
	partnerID := c.GetString("user_id")

	collection := h.DB.Collection("transactions")
	filter := bson.M{
		"partnerID": partnerID,
		"status":    models.TxCompleted,
		"paidOut":   false,
	}

	cursor, err := collection.Find(context.Background(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query transactions"})
		return
	}
	defer cursor.Close(context.Background())

	var pending []models.Transaction
	if err = cursor.All(context.Background(), &pending); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode transactions"})
		return
	}
	if len(pending) == 0 {
		c.JSON(http.StatusOK, gin.H{"success": true, "amount": 0.0, "message": "Nothing to pay out"})
		return
	}

	amount := 0.0
	for _, tx := range pending {
		amount += tx.Amount
	}

	payoutID := fmt.Sprintf("PO-%s", strings.ToUpper(uuid.New().String()[:8]))
	_, err = collection.UpdateMany(context.Background(), filter, bson.M{"$set": bson.M{"paidOut": true}})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark transactions as paid"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "payout_id": payoutID, "amount": amount})
}
