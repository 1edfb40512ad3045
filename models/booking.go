package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Booking statuses
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
)

// Payment statuses
const (
	PaymentStatusUnpaid   = "unpaid"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

// BookingDateLayout is the wire format of Booking.Date.
const BookingDateLayout = "2006-01-02"

// allowedTransitions lists every status change a booking may make. Anything
// missing from this table is rejected, including same-status writes.
var allowedTransitions = map[string][]string{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusCompleted: {},
	BookingStatusCancelled: {},
}

// Booking model
type Booking struct {
	ID                 primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID             primitive.ObjectID `json:"userId" bson:"userId"`
	PartnerID          primitive.ObjectID `json:"partnerId" bson:"partnerId"`
	Date               time.Time          `json:"date" bson:"date"`
	StartTime          string             `json:"startTime" bson:"startTime"`
	EndTime            string             `json:"endTime" bson:"endTime"`
	Message            string             `json:"message,omitempty" bson:"message,omitempty"`
	TotalAmount        float64            `json:"totalAmount" bson:"totalAmount"`
	Status             string             `json:"status" bson:"status"`               // "pending", "confirmed", "completed", "cancelled"
	PaymentStatus      string             `json:"paymentStatus" bson:"paymentStatus"` // "unpaid", "paid", "refunded"
	RazorpayOrderID    string             `json:"razorpayOrderId,omitempty" bson:"razorpayOrderId,omitempty"`
	RazorpayPaymentID  string             `json:"razorpayPaymentId,omitempty" bson:"razorpayPaymentId,omitempty"`
	RazorpayRefundID   string             `json:"razorpayRefundId,omitempty" bson:"razorpayRefundId,omitempty"`
	PlatformCommission float64            `json:"platformCommission" bson:"platformCommission"`
	PartnerEarning     float64            `json:"partnerEarning" bson:"partnerEarning"`
	CommissionRate     float64            `json:"commissionRate,omitempty" bson:"commissionRate,omitempty"`
	SettlementApplied  bool               `json:"settlementApplied" bson:"settlementApplied"`
	PaidAt             *time.Time         `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
	CancelledAt        *time.Time         `json:"cancelledAt,omitempty" bson:"cancelledAt,omitempty"`
	CompletedAt        *time.Time         `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	CreatedAt          time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves the status.
func IsTerminal(status string) bool {
	next, ok := allowedTransitions[status]
	return ok && len(next) == 0
}

// IsValidBookingStatus reports whether status is one of the four booking states.
func IsValidBookingStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

// ParseClock converts an "HH:MM" wall-clock string into fractional hours.
func ParseClock(value string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", value)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 24 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minutes in %q", value)
	}
	if hours == 24 && minutes != 0 {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	return float64(hours) + float64(minutes)/60, nil
}

// DurationHours returns end minus start in hours. Zero or negative durations
// are returned as-is; callers reject them.
func DurationHours(startTime, endTime string) (float64, error) {
	start, err := ParseClock(startTime)
	if err != nil {
		return 0, err
	}
	end, err := ParseClock(endTime)
	if err != nil {
		return 0, err
	}
	return end - start, nil
}

// Overlaps reports whether the time range of b intersects [startTime, endTime).
func (b *Booking) Overlaps(startTime, endTime string) bool {
	bs, err1 := ParseClock(b.StartTime)
	be, err2 := ParseClock(b.EndTime)
	s, err3 := ParseClock(startTime)
	e, err4 := ParseClock(endTime)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return false
	}
	return s < be && bs < e
}

// BookingRequest model
type BookingRequest struct {
	PartnerID string `json:"partnerId" validate:"required"`
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
	Message   string `json:"message,omitempty" validate:"max=500"`
}

// BookingRespondRequest is the partner's accept/reject decision
type BookingRespondRequest struct {
	Action string `json:"action" validate:"required,oneof=accept reject"`
}

// BookingResponse model
type BookingResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    *Booking `json:"data,omitempty"`
}

// BookingsResponse model for multiple bookings
type BookingsResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Count   int       `json:"count"`
	Data    []Booking `json:"data"`
}
