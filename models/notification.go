package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types emitted by the booking and payout flows
const (
	NotificationBookingCreated     = "booking_created"
	NotificationBookingAccepted    = "booking_accepted"
	NotificationBookingRejected    = "booking_rejected"
	NotificationBookingCancelled   = "booking_cancelled"
	NotificationBookingCompleted   = "booking_completed"
	NotificationPaymentCompleted   = "payment_completed"
	NotificationWithdrawalResolved = "withdrawal_resolved"
	NotificationWalletCredited     = "wallet_credited"
)

// Notification model
type Notification struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID    primitive.ObjectID `json:"userId" bson:"userId"`       // The user who receives the notification
	Title     string             `json:"title" bson:"title"`         // Notification title
	Message   string             `json:"message" bson:"message"`     // Notification message
	Type      string             `json:"type" bson:"type"`           // Notification type (e.g., "booking_created")
	Data      interface{}        `json:"data,omitempty" bson:"data"` // Optional additional data
	IsRead    bool               `json:"isRead" bson:"isRead"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}
