package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Report review states
const (
	ReportPending  = "pending"
	ReportReviewed = "reviewed"
	ReportResolved = "resolved"
	ReportRejected = "rejected"
)

// Report is one user's complaint about another, optionally tied to a booking
type Report struct {
	ID             primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	ReporterID     primitive.ObjectID  `json:"reporterId" bson:"reporterId"`
	ReportedUserID primitive.ObjectID  `json:"reportedUserId" bson:"reportedUserId"`
	BookingID      *primitive.ObjectID `json:"bookingId,omitempty" bson:"bookingId,omitempty"`
	Reason         string              `json:"reason" bson:"reason"`
	Description    string              `json:"description,omitempty" bson:"description,omitempty"`
	Status         string              `json:"status" bson:"status"`
	AdminNotes     string              `json:"adminNotes,omitempty" bson:"adminNotes,omitempty"`
	ResolvedAt     *time.Time          `json:"resolvedAt,omitempty" bson:"resolvedAt,omitempty"`
	CreatedAt      time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// ReportUserRequest model
type ReportUserRequest struct {
	ReportedUserID string `json:"reportedUserId" validate:"required"`
	BookingID      string `json:"bookingId,omitempty"`
	Reason         string `json:"reason" validate:"required,min=10,max=1000"`
	Description    string `json:"description,omitempty" validate:"max=2000"`
}
