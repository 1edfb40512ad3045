package models

import (
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// balanceEpsilon absorbs float drift from repeated $inc updates.
const balanceEpsilon = 0.005

// PartnerEarnings is the running ledger of one partner.
//
// AvailableBalance always equals TotalEarnings - TotalWithdrawn. Pending
// withdrawals reserve part of it without moving it, so the amount a partner
// can still request is Withdrawable().
type PartnerEarnings struct {
	ID                 primitive.ObjectID   `json:"id,omitempty" bson:"_id,omitempty"`
	PartnerID          primitive.ObjectID   `json:"partnerId" bson:"partnerId"`
	TotalEarnings      float64              `json:"totalEarnings" bson:"totalEarnings"`
	AvailableBalance   float64              `json:"availableBalance" bson:"availableBalance"`
	TotalWithdrawn     float64              `json:"totalWithdrawn" bson:"totalWithdrawn"`
	PendingWithdrawals float64              `json:"pendingWithdrawals" bson:"pendingWithdrawals"`
	LastWithdrawalAt   *time.Time           `json:"lastWithdrawalAt,omitempty" bson:"lastWithdrawalAt,omitempty"`
	CreditedBookings   []primitive.ObjectID `json:"-" bson:"creditedBookings"`
	ReversedBookings   []primitive.ObjectID `json:"-" bson:"reversedBookings"`
	CreatedAt          time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// NewPartnerEarnings returns the zero ledger for a partner.
func NewPartnerEarnings(partnerID primitive.ObjectID, now time.Time) *PartnerEarnings {
	return &PartnerEarnings{
		PartnerID:        partnerID,
		CreditedBookings: []primitive.ObjectID{},
		ReversedBookings: []primitive.ObjectID{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Withdrawable is the balance not yet reserved by pending withdrawal requests.
func (e *PartnerEarnings) Withdrawable() float64 {
	return RoundMoney(e.AvailableBalance - e.PendingWithdrawals)
}

// CheckInvariant verifies the ledger balance rules.
func (e *PartnerEarnings) CheckInvariant() error {
	if math.Abs(e.AvailableBalance-(e.TotalEarnings-e.TotalWithdrawn)) > balanceEpsilon {
		return fmt.Errorf("availableBalance %.2f != totalEarnings %.2f - totalWithdrawn %.2f",
			e.AvailableBalance, e.TotalEarnings, e.TotalWithdrawn)
	}
	if e.PendingWithdrawals < -balanceEpsilon {
		return fmt.Errorf("pendingWithdrawals %.2f is negative", e.PendingWithdrawals)
	}
	if e.PendingWithdrawals-e.AvailableBalance > balanceEpsilon {
		return fmt.Errorf("pendingWithdrawals %.2f exceeds availableBalance %.2f",
			e.PendingWithdrawals, e.AvailableBalance)
	}
	return nil
}

// HasCredited reports whether the booking's earning was already applied.
func (e *PartnerEarnings) HasCredited(bookingID primitive.ObjectID) bool {
	return containsID(e.CreditedBookings, bookingID)
}

// HasReversed reports whether the booking's earning was already reversed.
func (e *PartnerEarnings) HasReversed(bookingID primitive.ObjectID) bool {
	return containsID(e.ReversedBookings, bookingID)
}

// EarningsView is the partner-facing earnings payload.
type EarningsView struct {
	TotalEarnings       float64    `json:"totalEarnings"`
	AvailableBalance    float64    `json:"availableBalance"`
	WithdrawableBalance float64    `json:"withdrawableBalance"`
	TotalWithdrawn      float64    `json:"totalWithdrawn"`
	PendingWithdrawals  float64    `json:"pendingWithdrawals"`
	LastWithdrawalAt    *time.Time `json:"lastWithdrawalAt,omitempty"`
	CompletedBookings   []Booking  `json:"completedBookings"`
}

// RevenueOverview aggregates paid bookings for the admin dashboard.
type RevenueOverview struct {
	BookingCount       int64   `json:"bookingCount" bson:"bookingCount"`
	TotalAmount        float64 `json:"totalAmount" bson:"totalAmount"`
	PlatformCommission float64 `json:"platformCommission" bson:"platformCommission"`
	PartnerEarnings    float64 `json:"partnerEarnings" bson:"partnerEarnings"`
}

// RoundMoney rounds to two decimal places.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
