package mission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"eco-relais-api-server/internal/models"
)

func TestAllowedForwardPath(t *testing.T) {
	// Đường đi xuôi của vòng đời, tất cả do partner kích hoạt.
	steps := []struct {
		from, to models.MissionStatus
	}{
		{models.StatusPending, models.StatusAccepted},
		{models.StatusAccepted, models.StatusCollected},
		{models.StatusCollected, models.StatusInTransit},
		{models.StatusInTransit, models.StatusDelivered},
	}
	for _, s := range steps {
		assert.True(t, Allowed(s.from, s.to, ActorPartner), "%s -> %s", s.from, s.to)
	}
}

func TestAllowedCancellation(t *testing.T) {
	// Client và admin hủy được từ pending/accepted, partner thì không.
	for _, from := range []models.MissionStatus{models.StatusPending, models.StatusAccepted} {
		assert.True(t, Allowed(from, models.StatusCancelled, ActorClient), "client cancel from %s", from)
		assert.True(t, Allowed(from, models.StatusCancelled, ActorAdmin), "admin cancel from %s", from)
		assert.False(t, Allowed(from, models.StatusCancelled, ActorPartner), "partner cancel from %s", from)
	}

	// Sau khi đã cầm hàng thì không ai hủy được nữa.
	for _, from := range []models.MissionStatus{models.StatusCollected, models.StatusInTransit} {
		for _, actor := range []Actor{ActorClient, ActorPartner, ActorAdmin, ActorSystem} {
			assert.False(t, Allowed(from, models.StatusCancelled, actor), "%s cancel from %s", actor, from)
		}
	}
}

func TestAllowedGraceReversal(t *testing.T) {
	// Đường lùi duy nhất: accepted -> pending, bởi partner hoặc system.
	assert.True(t, Allowed(models.StatusAccepted, models.StatusPending, ActorPartner))
	assert.True(t, Allowed(models.StatusAccepted, models.StatusPending, ActorSystem))
	assert.False(t, Allowed(models.StatusAccepted, models.StatusPending, ActorClient))
	assert.False(t, Allowed(models.StatusAccepted, models.StatusPending, ActorAdmin))
}

func TestAllowedNoBackwardOrSkip(t *testing.T) {
	invalid := []struct {
		from, to models.MissionStatus
	}{
		{models.StatusPending, models.StatusCollected},
		{models.StatusPending, models.StatusDelivered},
		{models.StatusAccepted, models.StatusDelivered},
		{models.StatusCollected, models.StatusAccepted},
		{models.StatusCollected, models.StatusPending},
		{models.StatusInTransit, models.StatusCollected},
		{models.StatusDelivered, models.StatusPending},
	}
	for _, s := range invalid {
		for _, actor := range []Actor{ActorClient, ActorPartner, ActorAdmin, ActorSystem} {
			assert.False(t, Allowed(s.from, s.to, actor), "%s: %s -> %s", actor, s.from, s.to)
		}
	}
}

func TestTerminalStatesImmutable(t *testing.T) {
	targets := []models.MissionStatus{
		models.StatusPending, models.StatusAccepted, models.StatusCollected,
		models.StatusInTransit, models.StatusDelivered, models.StatusCancelled,
	}
	for _, from := range []models.MissionStatus{models.StatusDelivered, models.StatusCancelled} {
		for _, to := range targets {
			for _, actor := range []Actor{ActorClient, ActorPartner, ActorAdmin, ActorSystem} {
				assert.False(t, Allowed(from, to, actor), "%s: %s -> %s", actor, from, to)
			}
		}
	}
}

func TestUnknownStatusRejected(t *testing.T) {
	assert.False(t, Allowed(models.MissionStatus("draft"), models.StatusAccepted, ActorPartner))
	assert.False(t, models.MissionStatus("draft").Known())
	assert.True(t, models.StatusInTransit.Known())
}
