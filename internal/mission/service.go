// server/internal/mission/service.go
package mission

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"eco-relais-api-server/internal/acceptance"
	"eco-relais-api-server/internal/geo"
	"eco-relais-api-server/internal/models"
	"eco-relais-api-server/internal/store"
	"eco-relais-api-server/internal/verification"
)

// ErrBadRequest báo input tạo mission không hợp lệ (cỡ gói, khung giờ,
// tọa độ ngoài phạm vi).
var ErrBadRequest = errors.New("invalid mission input")

// Settler được gọi đúng một lần khi mission chuyển sang delivered.
// Bản cài đặt thật ghi transaction và bắn webhook thanh toán.
type Settler interface {
	MissionDelivered(ctx context.Context, m *models.Mission) error
}

// Events nhận thông báo mỗi khi trạng thái mission thay đổi,
// để đẩy realtime cho hai bên qua WebSocket.
type Events interface {
	MissionUpdated(m *models.Mission)
}

// Service điều phối vòng đời mission: xác thực transition theo bảng
// trong transitions.go, ủy quyền commit cho Store (authority duy nhất),
// và nối các side effect (grace window, verification, settlement).
type Service struct {
	Store   store.Missions
	Windows *acceptance.Controller
	Settle  Settler
	Events  Events
	Clock   acceptance.Clock

	// DefaultRadiusKm là bán kính tìm mission khi caller không truyền.
	DefaultRadiusKm float64
	// CommissionRate là phần nền tảng giữ lại trên giá mỗi mission.
	CommissionRate float64
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now()
	}
	return time.Now()
}

func (s *Service) notify(m *models.Mission) {
	if s.Events != nil && m != nil {
		s.Events.MissionUpdated(m)
	}
}

// mapStoreErr dịch lỗi của store sang lỗi của state machine. Người thua
// cuộc đua accept nhận đúng ErrInvalidTransition, với client không phân
// biệt được với "có người khác nhận mất rồi".
func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrConflict):
		return ErrInvalidTransition
	}
	return err
}

// CreateInput là dữ liệu requester gửi lên khi tạo mission.
type CreateInput struct {
	ClientID        string
	PackageTitle    string
	PackageSize     models.PackageSize
	PackagePhotoURL string
	PickupAddress   string
	PickupLat       float64
	PickupLng       float64
	DeliveryAddress string
	DeliveryLat     float64
	DeliveryLng     float64
	PickupTimeSlot  string
}

// Create tạo mission mới ở trạng thái pending. Giá được suy từ cỡ gói,
// hai mã QR được cấp ngay lúc tạo, geodata từ đây bất biến.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Mission, error) {
	price, ok := models.PriceForSize(in.PackageSize)
	if !ok {
		return nil, ErrBadRequest
	}
	if !models.ValidTimeSlot(in.PickupTimeSlot) {
		return nil, ErrBadRequest
	}
	pickup := geo.Point{Lat: in.PickupLat, Lng: in.PickupLng}
	dropoff := geo.Point{Lat: in.DeliveryLat, Lng: in.DeliveryLng}
	if !pickup.Valid() || !dropoff.Valid() {
		return nil, ErrBadRequest
	}

	m := &models.Mission{
		MissionID:       uuid.New().String(),
		ClientID:        in.ClientID,
		PackageTitle:    in.PackageTitle,
		PackageSize:     in.PackageSize,
		PackagePhotoURL: in.PackagePhotoURL,
		PickupAddress:   in.PickupAddress,
		PickupLat:       in.PickupLat,
		PickupLng:       in.PickupLng,
		DeliveryAddress: in.DeliveryAddress,
		DeliveryLat:     in.DeliveryLat,
		DeliveryLng:     in.DeliveryLng,
		PickupTimeSlot:  in.PickupTimeSlot,
		Status:          models.StatusPending,
		Price:           price,
		Commission:      price * s.CommissionRate,
		Verification:    verification.NewCodes(),
		CreatedAt:       s.now(),
	}

	if err := s.Store.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Nearby trả về các mission pending trong bán kính quanh origin, sắp xếp
// theo khoảng cách tăng dần. Origin do caller cung cấp, filter không
// quan tâm đó là vị trí thật hay fallback. Mission có tọa độ hỏng bị
// loại im lặng.
func (s *Service) Nearby(ctx context.Context, origin geo.Point, radiusKm float64) ([]models.AvailableMission, error) {
	if radiusKm <= 0 {
		radiusKm = s.DefaultRadiusKm
	}

	pending, err := s.Store.List(ctx, store.ListFilter{Status: models.StatusPending})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Mission, len(pending))
	candidates := make([]geo.Candidate, 0, len(pending))
	for _, m := range pending {
		byID[m.MissionID] = m
		candidates = append(candidates, geo.Candidate{
			ID:    m.MissionID,
			Point: geo.Point{Lat: m.PickupLat, Lng: m.PickupLng},
		})
	}

	matches := geo.FindNearby(origin, radiusKm, candidates)
	available := make([]models.AvailableMission, 0, len(matches))
	for _, match := range matches {
		available = append(available, models.AvailableMission{
			Mission:    byID[match.ID],
			DistanceKm: match.DistanceKm,
		})
	}
	return available, nil
}

// Accept gán mission cho partner (atomic, đúng một người thắng) và mở
// grace window. Trả về mission sau transition và số giây còn được hủy.
// Nếu partnerLoc khác nil, partner phải đứng trong bán kính quanh điểm
// lấy hàng; nil nghĩa là không xác định được vị trí và bỏ qua kiểm tra.
func (s *Service) Accept(ctx context.Context, missionID, partnerID string, partnerLoc *geo.Point, idemKey string) (*models.Mission, int, error) {
	if partnerLoc != nil {
		current, err := s.Store.Get(ctx, missionID)
		if err != nil {
			return nil, 0, mapStoreErr(err)
		}
		pickup := geo.Point{Lat: current.PickupLat, Lng: current.PickupLng}
		if partnerLoc.Valid() && geo.DistanceKm(*partnerLoc, pickup) > s.DefaultRadiusKm {
			return nil, 0, ErrOutOfRange
		}
	}

	m, err := s.Store.Accept(ctx, missionID, partnerID, idemKey)
	if err != nil {
		return nil, 0, mapStoreErr(err)
	}

	seconds := s.Windows.StartWindow(missionID)
	s.notify(m)
	return m, seconds, nil
}

// CancelAcceptance là đường lùi duy nhất: partner rút lại acceptance
// trong grace window, mission quay về pending không partner. Sau khi
// window đóng thì trả acceptance.ErrWindowExpired, acceptance thành
// vĩnh viễn.
func (s *Service) CancelAcceptance(ctx context.Context, missionID, partnerID string) (*models.Mission, error) {
	current, err := s.Store.Get(ctx, missionID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	// Chỉ partner đang giữ mission mới được đụng vào window. Kiểm tra
	// trước khi tiêu window, để partner lạ không phá được countdown
	// của người khác.
	if current.PartnerID != partnerID {
		return nil, ErrNotAllowed
	}

	if err := s.Windows.CancelWithinWindow(missionID); err != nil {
		return nil, err
	}

	m, err := s.Store.Release(ctx, missionID, partnerID)
	if err != nil {
		// Trạng thái đã đổi giữa Get và Release (ví dụ requester hủy
		// trước), window lúc này không còn ý nghĩa với ai nữa.
		return nil, mapStoreErr(err)
	}
	s.notify(m)
	return m, nil
}

// Cancel hủy hẳn mission. Requester hủy được mission của mình, admin hủy
// được mọi mission, miễn là hàng chưa bị lấy (collected trở đi thì chỉ
// còn đường giao nốt).
func (s *Service) Cancel(ctx context.Context, missionID, actorID string, actor Actor, idemKey string) (*models.Mission, error) {
	current, err := s.Store.Get(ctx, missionID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if actor == ActorClient && current.ClientID != actorID {
		return nil, ErrNotAllowed
	}
	if !Allowed(current.Status, models.StatusCancelled, actor) {
		return nil, ErrInvalidTransition
	}

	m, err := s.Store.Cancel(ctx, missionID, idemKey)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	// Window (nếu có) không còn ý nghĩa khi mission đã cancelled.
	s.Windows.Drop(missionID)
	s.notify(m)
	return m, nil
}

// Collect commit transition accepted -> collected sau khi payload quét
// được khớp mã pickup. Mismatch không đổi trạng thái, quét lại thoải mái.
func (s *Service) Collect(ctx context.Context, missionID, partnerID, payload, idemKey string) (*models.Mission, error) {
	current, err := s.Store.Get(ctx, missionID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if current.PartnerID != partnerID {
		return nil, ErrNotAllowed
	}
	// Retry với cùng Idempotency-Key sau khi transition đã commit:
	// trả lại document hiện tại thay vì conflict.
	if idemKey != "" && current.LastTransitionKey == idemKey && current.Status == models.StatusCollected {
		return current, nil
	}
	if !Allowed(current.Status, models.StatusCollected, ActorPartner) {
		return nil, ErrInvalidTransition
	}
	if err := verification.Verify(current.Verification, payload, verification.CheckpointPickup); err != nil {
		return nil, err
	}

	m, err := s.Store.MarkCollected(ctx, missionID, partnerID, idemKey)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	// Hàng đã nằm trong tay partner, window hủy không còn tác dụng.
	s.Windows.Drop(missionID)
	s.notify(m)
	return m, nil
}

// MarkInTransit chuyển collected -> in_transit, không cần điều kiện gì
// ngoài trạng thái nguồn hợp lệ.
func (s *Service) MarkInTransit(ctx context.Context, missionID, partnerID, idemKey string) (*models.Mission, error) {
	m, err := s.Store.MarkInTransit(ctx, missionID, partnerID, idemKey)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	s.notify(m)
	return m, nil
}

// Deliver commit transition cuối cùng sau khi mã delivery khớp: ghi
// completedAt, mission thành bất biến, settlement được kích hoạt.
func (s *Service) Deliver(ctx context.Context, missionID, partnerID, payload, idemKey string) (*models.Mission, error) {
	current, err := s.Store.Get(ctx, missionID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if current.PartnerID != partnerID {
		return nil, ErrNotAllowed
	}
	if idemKey != "" && current.LastTransitionKey == idemKey && current.Status == models.StatusDelivered {
		return current, nil
	}
	if !Allowed(current.Status, models.StatusDelivered, ActorPartner) {
		return nil, ErrInvalidTransition
	}
	if err := verification.Verify(current.Verification, payload, verification.CheckpointDelivery); err != nil {
		return nil, err
	}

	m, err := s.Store.MarkDelivered(ctx, missionID, partnerID, s.now(), idemKey)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	if s.Settle != nil {
		// Transition đã commit; lỗi settlement không lùi lại được nữa,
		// chỉ log để đối soát thủ công.
		if err := s.Settle.MissionDelivered(ctx, m); err != nil {
			log.Printf("settlement failed for mission %s: %v", m.MissionID, err)
		}
	}
	s.notify(m)
	return m, nil
}
