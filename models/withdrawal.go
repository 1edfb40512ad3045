package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Withdrawal statuses
const (
	WithdrawalPending  = "pending"
	WithdrawalApproved = "approved"
	WithdrawalRejected = "rejected"
	WithdrawalPaid     = "paid"
)

type WithdrawalRequest struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	PartnerID   primitive.ObjectID  `bson:"partnerId" json:"partnerId"`
	Amount      float64             `bson:"amount" json:"amount"`
	UpiID       string              `bson:"upiId" json:"upiId"`
	Status      string              `bson:"status" json:"status"` // "pending", "approved", "rejected", "paid"
	AdminNotes  string              `bson:"adminNotes,omitempty" json:"adminNotes,omitempty"`
	ProcessedAt *time.Time          `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
	ProcessedBy *primitive.ObjectID `bson:"processedBy,omitempty" json:"processedBy,omitempty"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// IsResolution reports whether status is an allowed outcome for a pending request.
func IsResolution(status string) bool {
	return status == WithdrawalApproved || status == WithdrawalRejected || status == WithdrawalPaid
}

type WithdrawalCreateRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	UpiID  string  `json:"upiId" validate:"required"`
}

type WithdrawalResolveRequest struct {
	Status     string `json:"status" validate:"required,oneof=approved rejected paid"`
	AdminNotes string `json:"adminNotes,omitempty" validate:"max=1000"`
}
