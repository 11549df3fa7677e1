package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eco-relais-api-server/internal/models"
)

func TestNewCodes(t *testing.T) {
	codes := NewCodes()
	require.NotEmpty(t, codes.Pickup)
	require.NotEmpty(t, codes.Delivery)
	// Hai checkpoint dùng hai mã riêng biệt.
	assert.NotEqual(t, codes.Pickup, codes.Delivery)
}

func TestVerify(t *testing.T) {
	codes := models.VerificationCodes{Pickup: "pickup-token", Delivery: "delivery-token"}

	tests := []struct {
		name       string
		payload    string
		checkpoint Checkpoint
		wantErr    error
	}{
		{"pickup match", "pickup-token", CheckpointPickup, nil},
		{"delivery match", "delivery-token", CheckpointDelivery, nil},
		{"pickup mismatch", "wrong", CheckpointPickup, ErrMismatch},
		{"delivery mismatch", "wrong", CheckpointDelivery, ErrMismatch},
		{"pickup code at delivery checkpoint", "pickup-token", CheckpointDelivery, ErrMismatch},
		{"delivery code at pickup checkpoint", "delivery-token", CheckpointPickup, ErrMismatch},
		{"empty payload", "", CheckpointPickup, ErrMismatch},
		{"near miss", "pickup-token ", CheckpointPickup, ErrMismatch},
		{"unknown checkpoint", "pickup-token", Checkpoint("transit"), ErrMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(codes, tt.payload, tt.checkpoint)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestVerifyUnissuedCodes(t *testing.T) {
	// Mission chưa có mã thì mọi payload đều trượt, kể cả chuỗi rỗng.
	err := Verify(models.VerificationCodes{}, "", CheckpointPickup)
	assert.ErrorIs(t, err, ErrMismatch)
}
