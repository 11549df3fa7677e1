package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisputeStatusResolvable(t *testing.T) {
	assert.True(t, DisputeOpen.Resolvable())
	assert.True(t, DisputeInReview.Resolvable())

	// Resolved là trạng thái kết thúc, không xử lý lại.
	assert.False(t, DisputeResolved.Resolvable())
	assert.False(t, DisputeStatus("reopened").Resolvable())
}
