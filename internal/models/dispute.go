package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DisputeStatus là trạng thái xử lý của một khiếu nại.
type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "open"
	DisputeInReview DisputeStatus = "in_review"
	DisputeResolved DisputeStatus = "resolved"
)

// Resolvable báo khiếu nại còn xử lý được không. Resolved là kết thúc,
// không mở lại.
func (s DisputeStatus) Resolvable() bool {
	return s == DisputeOpen || s == DisputeInReview
}

// Dispute là một khiếu nại về mission, nằm trong hàng đợi xử lý của admin.
type Dispute struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	DisputeID  string             `bson:"disputeID" json:"id"`
	MissionID  string             `bson:"missionID" json:"mission_id"`
	RaisedBy   string             `bson:"raisedBy" json:"raised_by"`
	Reason     string             `bson:"reason" json:"reason"`
	Status     DisputeStatus      `bson:"status" json:"status"`
	Resolution string             `bson:"resolution,omitempty" json:"resolution,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"created_at"`
	ResolvedAt *time.Time         `bson:"resolvedAt,omitempty" json:"resolved_at,omitempty"`
}
