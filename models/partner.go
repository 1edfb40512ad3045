package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Partner approval statuses
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Partner is a service-providing profile owned by exactly one user
type Partner struct {
	ID             primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID         primitive.ObjectID `json:"userId" bson:"userId"`
	Bio            string             `json:"bio" bson:"bio"`
	City           string             `json:"city" bson:"city"`
	Interests      []string           `json:"interests,omitempty" bson:"interests,omitempty"`
	HourlyRate     float64            `json:"hourlyRate" bson:"hourlyRate"`
	ApprovalStatus string             `json:"approvalStatus" bson:"approvalStatus"`
	AverageRating  float64            `json:"averageRating" bson:"averageRating"`
	TotalReviews   int                `json:"totalReviews" bson:"totalReviews"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// PartnerApprovalRequest is the admin decision on a partner application
type PartnerApprovalRequest struct {
	ApprovalStatus string `json:"approvalStatus" validate:"required,oneof=approved rejected"`
}
