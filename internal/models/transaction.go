package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TransactionStatus là trạng thái của một khoản thanh toán cho partner.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
)

// Transaction ghi nhận khoản tiền partner được hưởng khi một mission
// chuyển sang delivered (price trừ commission của nền tảng).
type Transaction struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	TxID      string             `bson:"txID" json:"id"`
	MissionID string             `bson:"missionID" json:"mission_id"`
	PartnerID string             `bson:"partnerID" json:"partner_id"`
	Amount    float64            `bson:"amount" json:"amount"`
	Status    TransactionStatus  `bson:"status" json:"status"`
	PaidOut   bool               `bson:"paidOut" json:"paid_out"`
	CreatedAt time.Time          `bson:"createdAt" json:"created_at"`
}
