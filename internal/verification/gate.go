// server/internal/verification/gate.go
package verification

import (
	"crypto/subtle"
	"errors"

	"github.com/google/uuid"

	"eco-relais-api-server/internal/models"
)

// Checkpoint là một trong hai điểm quét QR của mission.
type Checkpoint string

const (
	CheckpointPickup   Checkpoint = "pickup"
	CheckpointDelivery Checkpoint = "delivery"
)

// ErrMismatch báo payload quét được không khớp với mã đã cấp cho mission.
// Không giới hạn số lần quét lại.
var ErrMismatch = errors.New("verification mismatch")

// NewCodes cấp hai mã QR riêng biệt cho một mission mới: một cho điểm lấy hàng,
// một cho điểm giao hàng. Mỗi mã chỉ dùng cho đúng checkpoint của nó.
func NewCodes() models.VerificationCodes {
	return models.VerificationCodes{
		Pickup:   uuid.New().String(),
		Delivery: uuid.New().String(),
	}
}

// Verify so sánh byte-exact payload quét được với mã đã cấp tại checkpoint
// tương ứng. Gate chỉ là phép so sánh thuần túy, camera hay nguồn payload
// không liên quan, test được bằng chuỗi literal.
func Verify(codes models.VerificationCodes, payload string, cp Checkpoint) error {
	var want string
	switch cp {
	case CheckpointPickup:
		want = codes.Pickup
	case CheckpointDelivery:
		want = codes.Delivery
	default:
		return ErrMismatch
	}

	if want == "" {
		return ErrMismatch
	}
	if subtle.ConstantTimeCompare([]byte(payload), []byte(want)) != 1 {
		return ErrMismatch
	}
	return nil
}
