package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"eco-relais-api-server/internal/models"
)

// MemoryMissions là bản in-memory của Missions, cùng ngữ nghĩa CAS với
// bản Mongo. Dùng trong test và khi chạy demo không có MongoDB.
type MemoryMissions struct {
	mu       sync.Mutex
	missions map[string]*models.Mission
}

func NewMemoryMissions() *MemoryMissions {
	return &MemoryMissions{missions: make(map[string]*models.Mission)}
}

// clone trả về bản sao để caller không sửa được document trong kho.
func clone(m *models.Mission) *models.Mission {
	cp := *m
	if m.CompletedAt != nil {
		t := *m.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

func (s *MemoryMissions) Create(_ context.Context, m *models.Mission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.missions[m.MissionID]; ok {
		return ErrDuplicate
	}
	s.missions[m.MissionID] = clone(m)
	return nil
}

func (s *MemoryMissions) Get(_ context.Context, missionID string) (*models.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.missions[missionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(m), nil
}

func (s *MemoryMissions) List(_ context.Context, f ListFilter) ([]models.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Mission{}
	for _, m := range s.missions {
		if f.ClientID != "" && m.ClientID != f.ClientID {
			continue
		}
		if f.PartnerID != "" && m.PartnerID != f.PartnerID {
			continue
		}
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		out = append(out, *clone(m))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// transition áp dụng mutate nếu check đạt, giữ nguyên ngữ nghĩa
// CAS + idempotent-replay của bản Mongo.
func (s *MemoryMissions) transition(missionID, idemKey string, target models.MissionStatus, check func(*models.Mission) bool, mutate func(*models.Mission)) (*models.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.missions[missionID]
	if !ok {
		return nil, ErrNotFound
	}
	if !check(m) {
		if idemKey != "" && m.LastTransitionKey == idemKey && m.Status == target {
			return clone(m), nil
		}
		return nil, ErrConflict
	}
	mutate(m)
	m.LastTransitionKey = idemKey
	return clone(m), nil
}

func (s *MemoryMissions) Accept(_ context.Context, missionID, partnerID, idemKey string) (*models.Mission, error) {
	return s.transition(missionID, idemKey, models.StatusAccepted,
		func(m *models.Mission) bool {
			return m.Status == models.StatusPending && m.PartnerID == ""
		},
		func(m *models.Mission) {
			m.Status = models.StatusAccepted
			m.PartnerID = partnerID
		})
}

func (s *MemoryMissions) Release(_ context.Context, missionID, partnerID string) (*models.Mission, error) {
	return s.transition(missionID, "", models.StatusPending,
		func(m *models.Mission) bool {
			return m.Status == models.StatusAccepted && m.PartnerID == partnerID
		},
		func(m *models.Mission) {
			m.Status = models.StatusPending
			m.PartnerID = ""
		})
}

func (s *MemoryMissions) MarkCollected(_ context.Context, missionID, partnerID, idemKey string) (*models.Mission, error) {
	return s.transition(missionID, idemKey, models.StatusCollected,
		func(m *models.Mission) bool {
			return m.Status == models.StatusAccepted && m.PartnerID == partnerID
		},
		func(m *models.Mission) {
			m.Status = models.StatusCollected
		})
}

func (s *MemoryMissions) MarkInTransit(_ context.Context, missionID, partnerID, idemKey string) (*models.Mission, error) {
	return s.transition(missionID, idemKey, models.StatusInTransit,
		func(m *models.Mission) bool {
			return m.Status == models.StatusCollected && m.PartnerID == partnerID
		},
		func(m *models.Mission) {
			m.Status = models.StatusInTransit
		})
}

func (s *MemoryMissions) MarkDelivered(_ context.Context, missionID, partnerID string, completedAt time.Time, idemKey string) (*models.Mission, error) {
	return s.transition(missionID, idemKey, models.StatusDelivered,
		func(m *models.Mission) bool {
			return m.Status == models.StatusInTransit && m.PartnerID == partnerID
		},
		func(m *models.Mission) {
			m.Status = models.StatusDelivered
			t := completedAt
			m.CompletedAt = &t
		})
}

func (s *MemoryMissions) Cancel(_ context.Context, missionID, idemKey string) (*models.Mission, error) {
	return s.transition(missionID, idemKey, models.StatusCancelled,
		func(m *models.Mission) bool {
			return m.Status == models.StatusPending || m.Status == models.StatusAccepted
		},
		func(m *models.Mission) {
			m.Status = models.StatusCancelled
			m.PartnerID = ""
		})
}
