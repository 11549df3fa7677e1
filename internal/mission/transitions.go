// server/internal/mission/transitions.go
package mission

import (
	"errors"

	"eco-relais-api-server/internal/models"
)

// Lỗi của state machine. Handler ánh xạ chúng sang HTTP status;
// không lỗi nào được tự động retry, caller phải fetch lại trạng thái
// hiện tại rồi tự quyết định.
var (
	// ErrInvalidTransition báo transition vi phạm bảng chuyển trạng thái
	// (ví dụ accept một mission không còn pending).
	ErrInvalidTransition = errors.New("invalid mission transition")
	// ErrNotAllowed báo actor không có quyền thực hiện transition này
	// (ví dụ partner khác cố collect mission không phải của mình).
	ErrNotAllowed = errors.New("actor not allowed for this transition")
	// ErrNotFound báo mission không tồn tại.
	ErrNotFound = errors.New("mission not found")
	// ErrOutOfRange báo partner đứng ngoài bán kính cho phép khi accept.
	ErrOutOfRange = errors.New("partner outside allowed radius")
)

// Actor là người kích hoạt một transition. Ngoài ba vai trò tài khoản
// còn có system cho timeout tự động của grace window.
type Actor string

const (
	ActorClient  Actor = Actor(models.RoleClient)
	ActorPartner Actor = Actor(models.RolePartner)
	ActorAdmin   Actor = Actor(models.RoleAdmin)
	ActorSystem  Actor = "system"
)

// Allowed là bảng chuyển trạng thái: status chỉ đi tiến theo đồ thị
// pending -> accepted -> collected -> in_transit -> delivered, cộng với
// cancelled từ pending/accepted và đường lùi duy nhất accepted -> pending
// (hủy trong grace window). Switch liệt kê đủ mọi trạng thái nguồn;
// trạng thái lạ không rơi im lặng vào nhánh nào.
func Allowed(from, to models.MissionStatus, actor Actor) bool {
	switch from {
	case models.StatusPending:
		switch to {
		case models.StatusAccepted:
			return actor == ActorPartner
		case models.StatusCancelled:
			return actor == ActorClient || actor == ActorAdmin
		}
		return false
	case models.StatusAccepted:
		switch to {
		case models.StatusPending:
			// Partner tự hủy trong grace window, hoặc system đóng window.
			return actor == ActorPartner || actor == ActorSystem
		case models.StatusCollected:
			return actor == ActorPartner
		case models.StatusCancelled:
			return actor == ActorClient || actor == ActorAdmin
		}
		return false
	case models.StatusCollected:
		// Đã cầm hàng thì không hủy được nữa, chỉ có đường đi tiếp.
		return to == models.StatusInTransit && actor == ActorPartner
	case models.StatusInTransit:
		return to == models.StatusDelivered && actor == ActorPartner
	case models.StatusDelivered, models.StatusCancelled:
		// Trạng thái kết thúc, mission bất biến.
		return false
	}
	return false
}
