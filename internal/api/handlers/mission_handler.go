// server/internal/api/handlers/mission_handler.go
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"eco-relais-api-server/config"
	"eco-relais-api-server/internal/acceptance"
	"eco-relais-api-server/internal/geo"
	"eco-relais-api-server/internal/mission"
	"eco-relais-api-server/internal/models"
	"eco-relais-api-server/internal/s3"
	"eco-relais-api-server/internal/store"
	"eco-relais-api-server/internal/verification"
)

// Mỗi lời gọi transition là một round-trip tới store; quá hạn thì trả lỗi
// cho caller tự quyết, không tự retry (tránh double-apply).
const transitionTimeout = 10 * time.Second

type MissionHandler struct {
	Service    *mission.Service
	Cfg        config.Config
	DB         *mongo.Database
	S3Uploader *s3.Uploader
}

// --- Request body structs ---

type CreateMissionRequest struct {
	PackageTitle    string  `json:"package_title" binding:"required"`
	PackageSize     string  `json:"package_size" binding:"required,oneof=small medium large"`
	PackagePhotoURL string  `json:"package_photo_url"`
	PickupAddress   string  `json:"pickup_address" binding:"required"`
	PickupLat       float64 `json:"pickup_lat" binding:"required,min=-90,max=90"`
	PickupLng       float64 `json:"pickup_lng" binding:"required,min=-180,max=180"`
	DeliveryAddress string  `json:"delivery_address" binding:"required"`
	DeliveryLat     float64 `json:"delivery_lat" binding:"required,min=-90,max=90"`
	DeliveryLng     float64 `json:"delivery_lng" binding:"required,min=-180,max=180"`
	PickupTimeSlot  string  `json:"pickup_time_slot" binding:"required"`
}

type AcceptMissionRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type ScanRequest struct {
	QRPayload string `json:"qr_payload" binding:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// respondMissionErr ánh xạ lỗi của core sang HTTP status và thông điệp
// mà người dùng hành động được. Không lỗi nào bị nuốt.
func respondMissionErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, mission.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Mission not found"})
	case errors.Is(err, mission.ErrInvalidTransition):
		// Với partner thua cuộc đua accept, thông điệp này chính là
		// "có người khác nhận mất rồi", không phân biệt được gì hơn.
		c.JSON(http.StatusConflict, gin.H{"message": "This mission is no longer available", "error": "invalid_transition"})
	case errors.Is(err, mission.ErrNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed to perform this action"})
	case errors.Is(err, mission.ErrOutOfRange):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "You are outside the mission radius", "error": "out_of_range"})
	case errors.Is(err, mission.ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mission data"})
	case errors.Is(err, verification.ErrMismatch):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Invalid QR code", "error": "verification_mismatch"})
	case errors.Is(err, acceptance.ErrWindowExpired):
		c.JSON(http.StatusConflict, gin.H{"message": "The cancellation window has expired", "error": "window_expired"})
	case errors.Is(err, store.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "Mission already exists"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "The operation timed out, please check the mission state and retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "details": err.Error()})
	}
}

func transitionContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), transitionTimeout)
}

// CreateMission cho requester tạo mission mới (status pending, hai mã QR
// được cấp ngay lúc này).
func (h *MissionHandler) CreateMission(c *gin.Context) {
	clientID := c.GetString("user_id")

	var req CreateMissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := transitionContext()
	defer cancel()

	m, err := h.Service.Create(ctx, mission.CreateInput{
		ClientID:        clientID,
		PackageTitle:    req.PackageTitle,
		PackageSize:     models.PackageSize(req.PackageSize),
		PackagePhotoURL: req.PackagePhotoURL,
		PickupAddress:   req.PickupAddress,
		PickupLat:       req.PickupLat,
		PickupLng:       req.PickupLng,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryLat:     req.DeliveryLat,
		DeliveryLng:     req.DeliveryLng,
		PickupTimeSlot:  req.PickupTimeSlot,
	})
	if err != nil {
		respondMissionErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "mission": m})
}

// ListMissions là endpoint GET /missions dùng chung cho cả ba vai trò:
//   - client: các mission mình đã tạo
//   - partner kèm lat/lng: các mission pending trong bán kính (radius theo mét)
//   - partner không kèm tọa độ: các mission mình được gán
//   - admin: toàn bộ
func (h *MissionHandler) ListMissions(c *gin.Context) {
	userID := c.GetString("user_id")
	role := models.UserRole(c.GetString("user_role"))
	status := models.MissionStatus(c.Query("status"))
	if status != "" && !status.Known() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unknown status %q", status)})
		return
	}

	ctx, cancel := transitionContext()
	defer cancel()

	switch role {
	case models.RolePartner:
		latStr, lngStr := c.Query("lat"), c.Query("lng")
		if latStr != "" && lngStr != "" {
			h.listNearby(c, ctx, latStr, lngStr)
			return
		}
		missions, err := h.Service.Store.List(ctx, store.ListFilter{PartnerID: userID, Status: status})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query missions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "missions": missions})
	case models.RoleClient:
		missions, err := h.Service.Store.List(ctx, store.ListFilter{ClientID: userID, Status: status})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query missions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "missions": missions})
	case models.RoleAdmin:
		missions, err := h.Service.Store.List(ctx, store.ListFilter{Status: status})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query missions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "missions": missions})
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "Unknown role"})
	}
}

// listNearby xử lý nhánh partner tìm mission quanh một tọa độ.
// Origin do client gửi lên, có thể là vị trí thật hoặc fallback khi bị
// từ chối quyền định vị; server không phân biệt.
func (h *MissionHandler) listNearby(c *gin.Context, ctx context.Context, latStr, lngStr string) {
	lat, errLat := strconv.ParseFloat(latStr, 64)
	lng, errLng := strconv.ParseFloat(lngStr, 64)
	if errLat != nil || errLng != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coordinates"})
		return
	}

	// radius gửi theo mét (frontend nhân km với 1000), 0 nghĩa là mặc định.
	radiusKm := 0.0
	if radiusStr := c.Query("radius"); radiusStr != "" {
		meters, err := strconv.ParseFloat(radiusStr, 64)
		if err != nil || meters < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid radius"})
			return
		}
		radiusKm = meters / 1000
	}

	origin := geo.Point{Lat: lat, Lng: lng}
	if !origin.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Coordinates out of range"})
		return
	}

	missions, err := h.Service.Nearby(ctx, origin, radiusKm)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query nearby missions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "missions": missions})
}

// GetMission trả về một mission nếu caller có quyền nhìn thấy nó:
// requester của nó, partner được gán (hoặc mission còn pending), admin.
func (h *MissionHandler) GetMission(c *gin.Context) {
	missionID := c.Param("id")
	userID := c.GetString("user_id")
	role := models.UserRole(c.GetString("user_role"))

	ctx, cancel := transitionContext()
	defer cancel()

	m, err := h.Service.Store.Get(ctx, missionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Mission not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve mission"})
		return
	}

	visible := false
	switch role {
	case models.RoleAdmin:
		visible = true
	case models.RoleClient:
		visible = m.ClientID == userID
	case models.RolePartner:
		visible = m.PartnerID == userID || m.Status == models.StatusPending
	}
	if !visible {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed to view this mission"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "mission": m})
}

// GetMissionCodes trả về hai mã QR của mission cho requester, người in
// mã cho điểm lấy và điểm giao. Partner không bao giờ thấy mã qua API.
func (h *MissionHandler) GetMissionCodes(c *gin.Context) {
	missionID := c.Param("id")
	userID := c.GetString("user_id")

	ctx, cancel := transitionContext()
	defer cancel()

	m, err := h.Service.Store.Get(ctx, missionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Mission not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve mission"})
		return
	}

	if m.ClientID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the mission owner can view the QR codes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"pickup_code":   m.Verification.Pickup,
		"delivery_code": m.Verification.Delivery,
	})
}

// AcceptMission gán mission cho partner đang đăng nhập. Đúng một partner
// thắng nếu có nhiều người bấm cùng lúc; người thua nhận 409.
func (h *MissionHandler) AcceptMission(c *gin.Context) {
	missionID := c.Param("id")
	partnerID := c.GetString("user_id")
	idemKey := c.GetHeader("Idempotency-Key")

	// Body là tùy chọn: partner bị từ chối định vị vẫn accept được.
	var req AcceptMissionRequest
	_ = c.ShouldBindJSON(&req)

	var loc *geo.Point
	if req.Lat != nil && req.Lng != nil {
		loc = &geo.Point{Lat: *req.Lat, Lng: *req.Lng}
	}

	ctx, cancel := transitionContext()
	defer cancel()

	m, windowSec, err := h.Service.Accept(ctx, missionID, partnerID, loc, idemKey)
	if err != nil {
		respondMissionErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "mission": m, "cancel_window_sec": windowSec})
}

// CancelMission phục vụ hai đường hủy khác nhau qua cùng một endpoint
// (đúng như contract của frontend):
//   - partner được gán: rút lại acceptance trong grace window, mission về pending
//   - requester hoặc admin: hủy hẳn, miễn là hàng chưa bị lấy
func (h *MissionHandler) CancelMission(c *gin.Context) {
	missionID := c.Param("id")
	userID := c.GetString("user_id")
	role := models.UserRole(c.GetString("user_role"))
	idemKey := c.GetHeader("Idempotency-Key")

	ctx, cancel := transitionContext()
	defer cancel()

	var (
		m   *models.Mission
		err error
	)
	switch role {
	case models.RolePartner:
		m, err = h.Service.CancelAcceptance(ctx, missionID, userID)
	case models.RoleClient:
		m, err = h.Service.Cancel(ctx, missionID, userID, mission.ActorClient, idemKey)
	case models.RoleAdmin:
		m, err = h.Service.Cancel(ctx, missionID, userID, mission.ActorAdmin, idemKey)
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "Unknown role"})
		return
	}
	if err != nil {
		respondMissionErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "mission": m})
}

// CollectMission xác nhận lấy hàng: payload quét được phải khớp mã pickup.
func (h *MissionHandler) CollectMission(c *gin.Context) {
	missionID := c.Param("id")
	partnerID := c.GetString("user_id")
	idemKey := c.GetHeader("Idempotency-Key")

	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := transitionContext()
	defer cancel()

	m, err := h.Service.Collect(ctx, missionID, partnerID, req.QRPayload, idemKey)
	if err != nil {
		respondMissionErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "mission": m})
}

// UpdateStatus hiện chỉ phục vụ collected -> in_transit.
func (h *MissionHandler) UpdateStatus(c *gin.Context) {
	missionID := c.Param("id")
	partnerID := c.GetString("user_id")
	idemKey := c.GetHeader("Idempotency-Key")

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if models.MissionStatus(req.Status) != models.StatusInTransit {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unsupported status %q", req.Status)})
		return
	}

	ctx, cancel := transitionContext()
	defer cancel()

	m, err := h.Service.MarkInTransit(ctx, missionID, partnerID, idemKey)
	if err != nil {
		respondMissionErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "mission": m})
}

// DeliverMission xác nhận giao hàng: payload phải khớp mã delivery,
// completedAt được ghi và settlement được kích hoạt.
func (h *MissionHandler) DeliverMission(c *gin.Context) {
	missionID := c.Param("id")
	partnerID := c.GetString("user_id")
	idemKey := c.GetHeader("Idempotency-Key")

	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := transitionContext()
	defer cancel()

	m, err := h.Service.Deliver(ctx, missionID, partnerID, req.QRPayload, idemKey)
	if err != nil {
		respondMissionErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "mission": m})
}

// UploadPackagePhoto nhận ảnh gói hàng từ requester, đẩy lên S3 và lưu
// URL vào mission. Geodata và các trường lifecycle không bị đụng tới.
func (h *MissionHandler) UploadPackagePhoto(c *gin.Context) {
	missionID := c.Param("id")
	userID := c.GetString("user_id")

	if h.S3Uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Photo upload is not configured"})
		return
	}

	ctx, cancel := transitionContext()
	defer cancel()

	m, err := h.Service.Store.Get(ctx, missionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Mission not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve mission"})
		return
	}
	if m.ClientID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the mission owner can upload the package photo"})
		return
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A photo file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer file.Close()

	objectKey := fmt.Sprintf("missions/%s/package-%s.jpg", missionID, uuid.New().String()[:8])
	url, err := h.S3Uploader.UploadFile(ctx, file, objectKey, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload photo", "details": err.Error()})
		return
	}

	collection := h.DB.Collection("missions")
	_, err = collection.UpdateOne(ctx,
		bson.M{"missionID": missionID},
		bson.M{"$set": bson.M{"packagePhotoURL": url}},
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save photo URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "package_photo_url": url})
}
