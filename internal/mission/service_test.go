package mission

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eco-relais-api-server/internal/acceptance"
	"eco-relais-api-server/internal/geo"
	"eco-relais-api-server/internal/models"
	"eco-relais-api-server/internal/store"
	"eco-relais-api-server/internal/verification"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeSettler struct {
	mu        sync.Mutex
	delivered []string
}

func (s *fakeSettler) MissionDelivered(_ context.Context, m *models.Mission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, m.MissionID)
	return nil
}

func newTestService() (*Service, *fakeClock, *fakeSettler) {
	clock := newFakeClock()
	settler := &fakeSettler{}
	svc := &Service{
		Store:           store.NewMemoryMissions(),
		Windows:         acceptance.NewController(clock, 30),
		Settle:          settler,
		Clock:           clock,
		DefaultRadiusKm: 1,
		CommissionRate:  0.2,
	}
	return svc, clock, settler
}

var testInput = CreateInput{
	ClientID:        "client-1",
	PackageTitle:    "Boîte de livres",
	PackageSize:     models.SizeMedium,
	PickupAddress:   "10 Rue de Rivoli, Paris",
	PickupLat:       48.8566,
	PickupLng:       2.3522,
	DeliveryAddress: "25 Rue du Faubourg, Paris",
	DeliveryLat:     48.8606,
	DeliveryLng:     2.3376,
	PickupTimeSlot:  "10:00 - 12:00",
}

// checkInvariant xác nhận bất biến cốt lõi của mission sau mỗi transition:
// partner khác rỗng khi và chỉ khi status thuộc nhóm đã gán,
// completedAt khác nil khi và chỉ khi delivered.
func checkInvariant(t *testing.T, m *models.Mission) {
	t.Helper()
	switch m.Status {
	case models.StatusAccepted, models.StatusCollected, models.StatusInTransit, models.StatusDelivered:
		assert.True(t, m.Assigned(), "status %s requires a partner", m.Status)
	case models.StatusPending, models.StatusCancelled:
		assert.False(t, m.Assigned(), "status %s must have no partner", m.Status)
	default:
		t.Fatalf("unknown status %q", m.Status)
	}

	if m.Status == models.StatusDelivered {
		assert.NotNil(t, m.CompletedAt)
	} else {
		assert.Nil(t, m.CompletedAt)
	}
}

func TestCreateMission(t *testing.T) {
	svc, _, _ := newTestService()

	m, err := svc.Create(context.Background(), testInput)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, m.Status)
	assert.Equal(t, 8.0, m.Price)
	assert.InDelta(t, 1.6, m.Commission, 1e-9)
	assert.NotEmpty(t, m.Verification.Pickup)
	assert.NotEmpty(t, m.Verification.Delivery)
	assert.NotEqual(t, m.Verification.Pickup, m.Verification.Delivery)
	checkInvariant(t, m)
}

func TestCreateMissionRejectsBadInput(t *testing.T) {
	svc, _, _ := newTestService()

	bad := testInput
	bad.PackageSize = "gigantic"
	_, err := svc.Create(context.Background(), bad)
	assert.ErrorIs(t, err, ErrBadRequest)

	bad = testInput
	bad.PickupTimeSlot = "03:00 - 05:00"
	_, err = svc.Create(context.Background(), bad)
	assert.ErrorIs(t, err, ErrBadRequest)

	bad = testInput
	bad.PickupLat = 91
	_, err = svc.Create(context.Background(), bad)
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestAcceptRace(t *testing.T) {
	svc, _, _ := newTestService()
	m, err := svc.Create(context.Background(), testInput)
	require.NoError(t, err)

	// Nhiều partner bấm accept cùng lúc: đúng một người thắng,
	// những người còn lại thấy "mission không còn nữa".
	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.Accept(context.Background(), m.MissionID, "partner-"+string(rune('a'+i)), nil, "")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, wins)

	got, err := svc.Store.Get(context.Background(), m.MissionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Status)
	checkInvariant(t, got)
}

func TestAcceptOutOfRange(t *testing.T) {
	svc, _, _ := newTestService()
	m, err := svc.Create(context.Background(), testInput)
	require.NoError(t, err)

	// Lyon cách điểm lấy hàng ở Paris gần 400 km.
	lyon := geo.Point{Lat: 45.7640, Lng: 4.8357}
	_, _, err = svc.Accept(context.Background(), m.MissionID, "partner-1", &lyon, "")
	assert.ErrorIs(t, err, ErrOutOfRange)

	// Không truyền vị trí (fallback/bị từ chối định vị) thì vẫn accept được.
	_, windowSec, err := svc.Accept(context.Background(), m.MissionID, "partner-1", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 30, windowSec)
}

func TestLifecycle(t *testing.T) {
	svc, clock, settler := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, testInput)
	require.NoError(t, err)
	checkInvariant(t, created)

	// Partner A accept rồi đổi ý trong grace window.
	accepted, windowSec, err := svc.Accept(ctx, created.MissionID, "partner-a", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 30, windowSec)
	assert.Equal(t, "partner-a", accepted.PartnerID)
	checkInvariant(t, accepted)

	clock.Advance(10 * time.Second)
	released, err := svc.CancelAcceptance(ctx, created.MissionID, "partner-a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, released.Status)
	assert.False(t, released.Assigned())
	checkInvariant(t, released)

	// Partner B nhận lại mission.
	_, _, err = svc.Accept(ctx, created.MissionID, "partner-b", nil, "")
	require.NoError(t, err)

	// Quét đúng mã pickup -> collected.
	collected, err := svc.Collect(ctx, created.MissionID, "partner-b", created.Verification.Pickup, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCollected, collected.Status)
	checkInvariant(t, collected)

	inTransit, err := svc.MarkInTransit(ctx, created.MissionID, "partner-b", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInTransit, inTransit.Status)
	checkInvariant(t, inTransit)

	// Quét sai mã delivery: mismatch, trạng thái giữ nguyên.
	_, err = svc.Deliver(ctx, created.MissionID, "partner-b", "wrong-code", "")
	assert.ErrorIs(t, err, verification.ErrMismatch)
	unchanged, err := svc.Store.Get(ctx, created.MissionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInTransit, unchanged.Status)
	assert.Empty(t, settler.delivered)

	// Quét đúng mã -> delivered, completedAt được ghi, settlement chạy.
	delivered, err := svc.Deliver(ctx, created.MissionID, "partner-b", created.Verification.Delivery, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, delivered.Status)
	require.NotNil(t, delivered.CompletedAt)
	assert.Equal(t, clock.Now(), *delivered.CompletedAt)
	checkInvariant(t, delivered)
	assert.Equal(t, []string{created.MissionID}, settler.delivered)
}

func TestCancelAcceptanceForeignPartner(t *testing.T) {
	svc, clock, _ := newTestService()
	ctx := context.Background()

	m, err := svc.Create(ctx, testInput)
	require.NoError(t, err)
	_, _, err = svc.Accept(ctx, m.MissionID, "partner-a", nil, "")
	require.NoError(t, err)

	clock.Advance(5 * time.Second)

	// Partner lạ bị chặn và không tiêu được window của người khác.
	_, err = svc.CancelAcceptance(ctx, m.MissionID, "partner-b")
	assert.ErrorIs(t, err, ErrNotAllowed)

	// Partner được gán vẫn hủy được trong window như chưa có gì xảy ra.
	released, err := svc.CancelAcceptance(ctx, m.MissionID, "partner-a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, released.Status)
	assert.False(t, released.Assigned())
}

func TestCancelAcceptanceOnUnassignedMission(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	m, err := svc.Create(ctx, testInput)
	require.NoError(t, err)

	// Mission chưa có partner thì không ai rút acceptance được.
	_, err = svc.CancelAcceptance(ctx, m.MissionID, "partner-a")
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestCancelAcceptanceAfterExpiry(t *testing.T) {
	svc, clock, _ := newTestService()
	ctx := context.Background()

	m, err := svc.Create(ctx, testInput)
	require.NoError(t, err)
	_, _, err = svc.Accept(ctx, m.MissionID, "partner-a", nil, "")
	require.NoError(t, err)

	clock.Advance(30 * time.Second)

	// Window đã đóng: acceptance thành vĩnh viễn, mission vẫn accepted.
	_, err = svc.CancelAcceptance(ctx, m.MissionID, "partner-a")
	assert.ErrorIs(t, err, acceptance.ErrWindowExpired)

	got, err := svc.Store.Get(ctx, m.MissionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Status)
	assert.Equal(t, "partner-a", got.PartnerID)
}

func TestCollectWrongPartner(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	m, err := svc.Create(ctx, testInput)
	require.NoError(t, err)
	_, _, err = svc.Accept(ctx, m.MissionID, "partner-a", nil, "")
	require.NoError(t, err)

	_, err = svc.Collect(ctx, m.MissionID, "partner-b", m.Verification.Pickup, "")
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestCollectMismatchLeavesStatus(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	m, err := svc.Create(ctx, testInput)
	require.NoError(t, err)
	_, _, err = svc.Accept(ctx, m.MissionID, "partner-a", nil, "")
	require.NoError(t, err)

	// Quét nhầm mã delivery tại điểm lấy hàng cũng là mismatch.
	_, err = svc.Collect(ctx, m.MissionID, "partner-a", m.Verification.Delivery, "")
	assert.ErrorIs(t, err, verification.ErrMismatch)

	got, err := svc.Store.Get(ctx, m.MissionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Status)

	// Quét lại không giới hạn: lần đúng vẫn đi tiếp bình thường.
	_, err = svc.Collect(ctx, m.MissionID, "partner-a", m.Verification.Pickup, "")
	assert.NoError(t, err)
}

func TestCancelByClientAndAdmin(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	m, err := svc.Create(ctx, testInput)
	require.NoError(t, err)

	// Client khác không hủy được mission của người ta.
	_, err = svc.Cancel(ctx, m.MissionID, "client-2", ActorClient, "")
	assert.ErrorIs(t, err, ErrNotAllowed)

	// Requester hủy mission accepted: partner bị gỡ.
	_, _, err = svc.Accept(ctx, m.MissionID, "partner-a", nil, "")
	require.NoError(t, err)
	cancelled, err := svc.Cancel(ctx, m.MissionID, "client-1", ActorClient, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.False(t, cancelled.Assigned())
	checkInvariant(t, cancelled)

	// Mission thứ hai: admin hủy được dù không phải chủ.
	m2, err := svc.Create(ctx, testInput)
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, m2.MissionID, "admin-1", ActorAdmin, "")
	assert.NoError(t, err)
}

func TestCancelAfterCollectForbidden(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	m, err := svc.Create(ctx, testInput)
	require.NoError(t, err)
	_, _, err = svc.Accept(ctx, m.MissionID, "partner-a", nil, "")
	require.NoError(t, err)
	_, err = svc.Collect(ctx, m.MissionID, "partner-a", m.Verification.Pickup, "")
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, m.MissionID, "client-1", ActorClient, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDeliveredMissionImmutable(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	m, err := svc.Create(ctx, testInput)
	require.NoError(t, err)
	_, _, err = svc.Accept(ctx, m.MissionID, "partner-a", nil, "")
	require.NoError(t, err)
	_, err = svc.Collect(ctx, m.MissionID, "partner-a", m.Verification.Pickup, "")
	require.NoError(t, err)
	_, err = svc.MarkInTransit(ctx, m.MissionID, "partner-a", "")
	require.NoError(t, err)
	delivered, err := svc.Deliver(ctx, m.MissionID, "partner-a", m.Verification.Delivery, "")
	require.NoError(t, err)

	// Fetch lặp lại trả về cùng geodata và cùng completedAt.
	for i := 0; i < 3; i++ {
		got, err := svc.Store.Get(ctx, m.MissionID)
		require.NoError(t, err)
		assert.Equal(t, delivered.PickupLat, got.PickupLat)
		assert.Equal(t, delivered.PickupLng, got.PickupLng)
		assert.Equal(t, delivered.DeliveryLat, got.DeliveryLat)
		assert.Equal(t, delivered.DeliveryLng, got.DeliveryLng)
		require.NotNil(t, got.CompletedAt)
		assert.Equal(t, *delivered.CompletedAt, *got.CompletedAt)
	}

	// Không còn transition nào hợp lệ nữa.
	_, err = svc.MarkInTransit(ctx, m.MissionID, "partner-a", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.Deliver(ctx, m.MissionID, "partner-a", m.Verification.Delivery, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestIdempotentRetry(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	m, err := svc.Create(ctx, testInput)
	require.NoError(t, err)
	_, _, err = svc.Accept(ctx, m.MissionID, "partner-a", nil, "")
	require.NoError(t, err)

	// Lần đầu áp dụng, lần hai là retry sau timeout với cùng key:
	// trả về document hiện tại thay vì conflict.
	first, err := svc.Collect(ctx, m.MissionID, "partner-a", m.Verification.Pickup, "key-1")
	require.NoError(t, err)
	retry, err := svc.Collect(ctx, m.MissionID, "partner-a", m.Verification.Pickup, "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.Status, retry.Status)

	// Key khác nghĩa là một lần bấm mới, lúc này conflict là thật.
	_, err = svc.Collect(ctx, m.MissionID, "partner-a", m.Verification.Pickup, "key-2")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestNearby(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	near := testInput
	near.PickupLat, near.PickupLng = 48.8593, 2.3522
	nearMission, err := svc.Create(ctx, near)
	require.NoError(t, err)

	far := testInput
	far.PickupLat, far.PickupLng = 48.8766, 2.3522 // ~2.2 km
	_, err = svc.Create(ctx, far)
	require.NoError(t, err)

	taken := testInput
	taken.PickupLat, taken.PickupLng = 48.8570, 2.3522
	takenMission, err := svc.Create(ctx, taken)
	require.NoError(t, err)
	_, _, err = svc.Accept(ctx, takenMission.MissionID, "partner-x", nil, "")
	require.NoError(t, err)

	origin := geo.Point{Lat: 48.8566, Lng: 2.3522}
	available, err := svc.Nearby(ctx, origin, 0) // 0 -> bán kính mặc định 1 km
	require.NoError(t, err)

	// Mission đã có partner không còn trong pool, mission quá xa bị loại.
	require.Len(t, available, 1)
	assert.Equal(t, nearMission.MissionID, available[0].MissionID)
	assert.Equal(t, 0.3, available[0].DistanceKm)
}
