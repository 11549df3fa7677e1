// server/internal/acceptance/window.go
package acceptance

import (
	"errors"
	"math"
	"sync"
	"time"
)

// CancelWindowSec là số giây partner được phép hủy một acceptance
// mà không bị tính phí, tính từ lúc nhận mission.
const CancelWindowSec = 30

// ErrWindowExpired báo cửa sổ hủy đã đóng. Khi countdown về 0,
// acceptance trở thành vĩnh viễn, controller không tự trả mission về pool.
var ErrWindowExpired = errors.New("cancellation window expired")

// Clock provides current time.
type Clock interface {
	Now() time.Time
}

// RealClock is the default clock.
type RealClock struct{}

// Now returns current time.
func (RealClock) Now() time.Time { return time.Now() }

// Controller quản lý các grace window đang mở, mỗi mission một window riêng.
// Một partner có thể giữ nhiều mission accepted cùng lúc, mỗi cái có
// countdown độc lập. Controller chỉ là bookkeeping cục bộ: nó không gọi
// store, không tự revert mission.
type Controller struct {
	mu       sync.Mutex
	clock    Clock
	duration time.Duration
	deadline map[string]time.Time // missionID -> hạn chót hủy
}

// NewController tạo controller với thời lượng window theo giây.
// seconds <= 0 dùng CancelWindowSec.
func NewController(clock Clock, seconds int) *Controller {
	if clock == nil {
		clock = RealClock{}
	}
	if seconds <= 0 {
		seconds = CancelWindowSec
	}
	return &Controller{
		clock:    clock,
		duration: time.Duration(seconds) * time.Second,
		deadline: make(map[string]time.Time),
	}
}

// StartWindow mở countdown cho một mission vừa được accept và trả về
// số giây còn lại. Gọi lại trên cùng mission sẽ reset window.
func (c *Controller) StartWindow(missionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline[missionID] = c.clock.Now().Add(c.duration)
	return int(c.duration / time.Second)
}

// Remaining trả về số giây còn lại của window (0 nếu đã hết hoặc chưa mở).
// Caller poll mỗi giây để hiển thị countdown.
func (c *Controller) Remaining(missionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := c.deadline[missionID]
	if !ok {
		return 0
	}
	left := deadline.Sub(c.clock.Now())
	if left <= 0 {
		// Dọn window đã hết hạn, không còn hành động nào trên nó.
		delete(c.deadline, missionID)
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

// CancelWithinWindow đóng window nếu còn hiệu lực. Trả về ErrWindowExpired
// nếu countdown đã về 0 hoặc mission không có window nào đang mở.
// Caller chịu trách nhiệm gọi transition accepted -> pending sau khi hàm
// này trả về nil.
func (c *Controller) CancelWithinWindow(missionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := c.deadline[missionID]
	if !ok {
		return ErrWindowExpired
	}
	if !c.clock.Now().Before(deadline) {
		delete(c.deadline, missionID)
		return ErrWindowExpired
	}
	delete(c.deadline, missionID)
	return nil
}

// Drop bỏ window của một mission mà không cần biết còn hạn hay không.
// Dùng khi trạng thái mission thay đổi dưới chân window (ví dụ bị
// requester hủy) hoặc khi partner ngắt kết nối.
func (c *Controller) Drop(missionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.deadline, missionID)
}
