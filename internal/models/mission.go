// server/internal/models/mission.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MissionStatus là trạng thái vòng đời của một mission.
// Mọi switch trên kiểu này phải liệt kê đầy đủ các giá trị,
// không để trạng thái lạ rơi xuống nhánh mặc định.
type MissionStatus string

const (
	StatusPending   MissionStatus = "pending"
	StatusAccepted  MissionStatus = "accepted"
	StatusCollected MissionStatus = "collected"
	StatusInTransit MissionStatus = "in_transit"
	StatusDelivered MissionStatus = "delivered"
	StatusCancelled MissionStatus = "cancelled"
)

// Known kiểm tra status có thuộc tập giá trị đã khai báo không.
func (s MissionStatus) Known() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusCollected, StatusInTransit, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal báo mission đã kết thúc (không còn transition nào hợp lệ).
func (s MissionStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// PackageSize là cỡ gói hàng, quyết định giá cố định.
type PackageSize string

const (
	SizeSmall  PackageSize = "small"
	SizeMedium PackageSize = "medium"
	SizeLarge  PackageSize = "large"
)

// PriceForSize trả về giá cố định theo cỡ gói.
func PriceForSize(size PackageSize) (float64, bool) {
	switch size {
	case SizeSmall:
		return 5, true
	case SizeMedium:
		return 8, true
	case SizeLarge:
		return 12, true
	}
	return 0, false
}

// TimeSlots là các khung giờ lấy hàng cho phép khi tạo mission.
var TimeSlots = []string{
	"08:00 - 10:00",
	"10:00 - 12:00",
	"12:00 - 14:00",
	"14:00 - 16:00",
	"16:00 - 18:00",
	"18:00 - 20:00",
}

// ValidTimeSlot kiểm tra slot có nằm trong danh sách cho phép không.
func ValidTimeSlot(slot string) bool {
	for _, s := range TimeSlots {
		if s == slot {
			return true
		}
	}
	return false
}

// VerificationCodes là hai mã QR một lần của mission: một cho điểm lấy hàng,
// một cho điểm giao hàng. Không bao giờ serialize ra JSON mặc định,
// chỉ requester được xem qua endpoint riêng.
type VerificationCodes struct {
	Pickup   string `bson:"pickup" json:"-"`
	Delivery string `bson:"delivery" json:"-"`
}

// Mission struct matches the document in MongoDB.
// Geodata được ghi đúng một lần lúc tạo và không bao giờ sửa.
type Mission struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	MissionID       string             `bson:"missionID" json:"id"`
	ClientID        string             `bson:"clientID" json:"client_id"`
	PartnerID       string             `bson:"partnerID,omitempty" json:"partner_id,omitempty"`
	PackageTitle    string             `bson:"packageTitle" json:"package_title"`
	PackageSize     PackageSize        `bson:"packageSize" json:"package_size"`
	PackagePhotoURL string             `bson:"packagePhotoURL,omitempty" json:"package_photo_url,omitempty"`
	PickupAddress   string             `bson:"pickupAddress" json:"pickup_address"`
	PickupLat       float64            `bson:"pickupLat" json:"pickup_lat"`
	PickupLng       float64            `bson:"pickupLng" json:"pickup_lng"`
	DeliveryAddress string             `bson:"deliveryAddress" json:"delivery_address"`
	DeliveryLat     float64            `bson:"deliveryLat" json:"delivery_lat"`
	DeliveryLng     float64            `bson:"deliveryLng" json:"delivery_lng"`
	PickupTimeSlot  string             `bson:"pickupTimeSlot" json:"pickup_time_slot"`
	Status          MissionStatus      `bson:"status" json:"status"`
	Price           float64            `bson:"price" json:"price"`
	Commission      float64            `bson:"commission" json:"commission"`
	Verification    VerificationCodes  `bson:"verification" json:"-"`
	// LastTransitionKey lưu Idempotency-Key của transition đã áp dụng gần nhất,
	// để một retry sau timeout không bị báo InvalidTransition oan.
	LastTransitionKey string     `bson:"lastTransitionKey,omitempty" json:"-"`
	CreatedAt         time.Time  `bson:"createdAt" json:"created_at"`
	CompletedAt       *time.Time `bson:"completedAt,omitempty" json:"completed_at,omitempty"`
}

// Assigned báo mission đang có partner phụ trách.
func (m *Mission) Assigned() bool {
	return m.PartnerID != ""
}

// AvailableMission là projection chỉ-đọc của Mission cho partner đang tìm việc,
// kèm khoảng cách tính tại thời điểm truy vấn. Không lưu xuống DB.
type AvailableMission struct {
	Mission
	DistanceKm float64 `json:"distance_km"`
}
