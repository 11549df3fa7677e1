package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eco-relais-api-server/internal/models"
)

func seedMission(t *testing.T, s *MemoryMissions, status models.MissionStatus, partnerID string) *models.Mission {
	t.Helper()
	m := &models.Mission{
		MissionID: "m-" + string(status),
		ClientID:  "client-1",
		PartnerID: partnerID,
		Status:    status,
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.Create(context.Background(), m))
	return m
}

func TestAcceptExactlyOnce(t *testing.T) {
	s := NewMemoryMissions()
	m := seedMission(t, s, models.StatusPending, "")

	const racers = 16
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Accept(context.Background(), m.MissionID, "partner", "")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrConflict)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestIdempotentReplay(t *testing.T) {
	s := NewMemoryMissions()
	m := seedMission(t, s, models.StatusAccepted, "partner-1")

	first, err := s.MarkCollected(context.Background(), m.MissionID, "partner-1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCollected, first.Status)

	// Cùng key, cùng đích: replay trả document hiện tại.
	again, err := s.MarkCollected(context.Background(), m.MissionID, "partner-1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCollected, again.Status)

	// Key khác là lần bấm mới, lúc này conflict thật.
	_, err = s.MarkCollected(context.Background(), m.MissionID, "partner-1", "key-2")
	assert.ErrorIs(t, err, ErrConflict)

	// Không key thì không có replay.
	_, err = s.MarkCollected(context.Background(), m.MissionID, "partner-1", "")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestReleaseRequiresOwner(t *testing.T) {
	s := NewMemoryMissions()
	m := seedMission(t, s, models.StatusAccepted, "partner-1")

	_, err := s.Release(context.Background(), m.MissionID, "partner-2")
	assert.ErrorIs(t, err, ErrConflict)

	released, err := s.Release(context.Background(), m.MissionID, "partner-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, released.Status)
	assert.Empty(t, released.PartnerID)
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewMemoryMissions()
	m := seedMission(t, s, models.StatusPending, "")

	got, err := s.Get(context.Background(), m.MissionID)
	require.NoError(t, err)
	got.Status = models.StatusDelivered

	fresh, err := s.Get(context.Background(), m.MissionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, fresh.Status)
}
