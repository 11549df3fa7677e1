// server/internal/settlement/settlement.go
package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"eco-relais-api-server/internal/models"
)

// Service ghi nhận khoản tiền partner được hưởng khi một mission được
// giao thành công và bắn webhook cho hệ thống thanh toán bên ngoài.
// Checkout/payout thực tế (Stripe) nằm ngoài service này.
type Service struct {
	DB         *mongo.Database
	WebhookURL string
	HTTPClient *http.Client
}

func NewService(db *mongo.Database, webhookURL string) *Service {
	return &Service{
		DB:         db,
		WebhookURL: webhookURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// MissionDelivered tạo transaction cho partner (giá trừ commission).
// Webhook là best-effort: lỗi chỉ log, transaction vẫn được ghi.
func (s *Service) MissionDelivered(ctx context.Context, m *models.Mission) error {
	tx := models.Transaction{
		TxID:      fmt.Sprintf("TX-%s", strings.ToUpper(uuid.New().String()[:8])),
		MissionID: m.MissionID,
		PartnerID: m.PartnerID,
		Amount:    m.Price - m.Commission,
		Status:    models.TxCompleted,
		CreatedAt: time.Now(),
	}

	collection := s.DB.Collection("transactions")
	if _, err := collection.InsertOne(ctx, tx); err != nil {
		return fmt.Errorf("failed to record settlement transaction: %w", err)
	}

	if s.WebhookURL != "" {
		if err := s.sendWebhook(ctx, m, tx); err != nil {
			log.Printf("Settlement webhook failed for mission %s: %v", m.MissionID, err)
		}
	}
	return nil
}

func (s *Service) sendWebhook(ctx context.Context, m *models.Mission, tx models.Transaction) error {
	payload, err := json.Marshal(map[string]interface{}{
		"event":      "mission.delivered",
		"mission_id": m.MissionID,
		"partner_id": m.PartnerID,
		"amount":     tx.Amount,
		"tx_id":      tx.TxID,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
