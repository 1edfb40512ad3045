// Package memory holds in-process repository implementations used by tests
// and local runs without MongoDB.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/HSouheill/partner_marketplace/models"
	"github.com/HSouheill/partner_marketplace/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Bookings struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]models.Booking
}

func NewBookings() *Bookings {
	return &Bookings{docs: make(map[primitive.ObjectID]models.Booking)}
}

func (r *Bookings) Insert(_ context.Context, b *models.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	if _, ok := r.docs[b.ID]; ok {
		return repositories.ErrDuplicate
	}
	r.docs[b.ID] = *b
	return nil
}

func (r *Bookings) FindByID(_ context.Context, id primitive.ObjectID) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.docs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &b, nil
}

func (r *Bookings) FindByOrderID(_ context.Context, orderID string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.docs {
		if b.RazorpayOrderID == orderID {
			return &b, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *Bookings) HasOverlap(_ context.Context, partnerID primitive.ObjectID, date time.Time, startTime, endTime string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.docs {
		if b.PartnerID != partnerID || !b.Date.Equal(date) {
			continue
		}
		if b.Status != models.BookingStatusPending && b.Status != models.BookingStatusConfirmed {
			continue
		}
		if b.Overlaps(startTime, endTime) {
			return true, nil
		}
	}
	return false, nil
}

func (r *Bookings) List(_ context.Context, f repositories.BookingFilter) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Booking{}
	for _, b := range r.docs {
		if !f.UserID.IsZero() && b.UserID != f.UserID {
			continue
		}
		if !f.PartnerID.IsZero() && b.PartnerID != f.PartnerID {
			continue
		}
		if len(f.Statuses) > 0 && !contains(f.Statuses, b.Status) {
			continue
		}
		if f.PaymentStatus != "" && b.PaymentStatus != f.PaymentStatus {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Bookings) SetOrderID(_ context.Context, id primitive.ObjectID, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.docs[id]
	if !ok || b.PaymentStatus != models.PaymentStatusUnpaid {
		return repositories.ErrPreconditionFailed
	}
	b.RazorpayOrderID = orderID
	b.UpdatedAt = time.Now()
	r.docs[id] = b
	return nil
}

func (r *Bookings) SetRefundID(_ context.Context, id primitive.ObjectID, refundID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.docs[id]
	if !ok || b.PaymentStatus != models.PaymentStatusPaid || b.RazorpayRefundID != "" {
		return repositories.ErrPreconditionFailed
	}
	b.RazorpayRefundID = refundID
	b.UpdatedAt = time.Now()
	r.docs[id] = b
	return nil
}

func (r *Bookings) CompareAndSwap(_ context.Context, id primitive.ObjectID, expect repositories.BookingExpectation, change repositories.BookingChange) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.docs[id]
	if !ok {
		return nil, repositories.ErrPreconditionFailed
	}
	if len(expect.Statuses) > 0 && !contains(expect.Statuses, b.Status) {
		return nil, repositories.ErrPreconditionFailed
	}
	if expect.PaymentStatus != "" && b.PaymentStatus != expect.PaymentStatus {
		return nil, repositories.ErrPreconditionFailed
	}
	if expect.SettlementApplied != nil && b.SettlementApplied != *expect.SettlementApplied {
		return nil, repositories.ErrPreconditionFailed
	}

	if change.Status != nil {
		b.Status = *change.Status
	}
	if change.PaymentStatus != nil {
		b.PaymentStatus = *change.PaymentStatus
	}
	if change.RazorpayPaymentID != nil {
		for otherID, other := range r.docs {
			if otherID != id && other.RazorpayPaymentID == *change.RazorpayPaymentID {
				return nil, repositories.ErrDuplicate
			}
		}
		b.RazorpayPaymentID = *change.RazorpayPaymentID
	}
	if change.PlatformCommission != nil {
		b.PlatformCommission = *change.PlatformCommission
	}
	if change.PartnerEarning != nil {
		b.PartnerEarning = *change.PartnerEarning
	}
	if change.CommissionRate != nil {
		b.CommissionRate = *change.CommissionRate
	}
	if change.SettlementApplied != nil {
		b.SettlementApplied = *change.SettlementApplied
	}
	if change.PaidAt != nil {
		t := *change.PaidAt
		b.PaidAt = &t
	}
	if change.CancelledAt != nil {
		t := *change.CancelledAt
		b.CancelledAt = &t
	}
	if change.CompletedAt != nil {
		t := *change.CompletedAt
		b.CompletedAt = &t
	}
	b.UpdatedAt = time.Now()
	r.docs[id] = b
	return &b, nil
}

func (r *Bookings) Revenue(_ context.Context) (*models.RevenueOverview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	overview := &models.RevenueOverview{}
	for _, b := range r.docs {
		if b.PaymentStatus != models.PaymentStatusPaid {
			continue
		}
		overview.BookingCount++
		overview.TotalAmount += b.TotalAmount
		overview.PlatformCommission += b.PlatformCommission
		overview.PartnerEarnings += b.PartnerEarning
	}
	overview.TotalAmount = models.RoundMoney(overview.TotalAmount)
	overview.PlatformCommission = models.RoundMoney(overview.PlatformCommission)
	overview.PartnerEarnings = models.RoundMoney(overview.PartnerEarnings)
	return overview, nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
