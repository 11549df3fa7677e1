// server/internal/store/store.go
package store

import (
	"context"
	"errors"
	"time"

	"eco-relais-api-server/internal/models"
)

// Store là Mission Record Store, nguồn sự thật duy nhất về trạng thái
// mission. Mọi transition là một thao tác compare-and-swap có điều kiện
// trên trạng thái hiện tại: hai partner đua nhau accept cùng một mission
// thì đúng một người thắng, người thua nhận ErrConflict.
var (
	// ErrNotFound - signals the mission does not exist.
	ErrNotFound = errors.New("mission not found")
	// ErrConflict - signals the mission is no longer in the expected state.
	ErrConflict = errors.New("mission state conflict")
	// ErrDuplicate - signals a mission with this ID already exists.
	ErrDuplicate = errors.New("mission already exists")
)

// ListFilter giới hạn kết quả List. Trường rỗng nghĩa là không lọc.
type ListFilter struct {
	ClientID  string
	PartnerID string
	Status    models.MissionStatus
}

// Missions là cổng truy cập kho mission. Bản cài đặt Mongo là authority
// khi chạy thật; bản in-memory phục vụ test.
//
// Các thao tác transition nhận một idemKey tùy chọn (client sinh ra):
// nếu transition đã được áp dụng với đúng key đó rồi thì retry trả về
// document hiện tại thay vì ErrConflict, tránh double-apply sau timeout.
type Missions interface {
	Create(ctx context.Context, m *models.Mission) error
	Get(ctx context.Context, missionID string) (*models.Mission, error)
	List(ctx context.Context, f ListFilter) ([]models.Mission, error)

	// Accept gán partner cho một mission đang pending (atomic, exclusive).
	Accept(ctx context.Context, missionID, partnerID, idemKey string) (*models.Mission, error)
	// Release trả mission accepted của partner về pending, xóa partner.
	Release(ctx context.Context, missionID, partnerID string) (*models.Mission, error)
	// MarkCollected chuyển accepted -> collected cho partner được gán.
	MarkCollected(ctx context.Context, missionID, partnerID, idemKey string) (*models.Mission, error)
	// MarkInTransit chuyển collected -> in_transit cho partner được gán.
	MarkInTransit(ctx context.Context, missionID, partnerID, idemKey string) (*models.Mission, error)
	// MarkDelivered chuyển in_transit -> delivered, ghi completedAt.
	MarkDelivered(ctx context.Context, missionID, partnerID string, completedAt time.Time, idemKey string) (*models.Mission, error)
	// Cancel chuyển pending/accepted -> cancelled, xóa partner nếu có.
	Cancel(ctx context.Context, missionID, idemKey string) (*models.Mission, error)
}
