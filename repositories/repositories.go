package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/HSouheill/partner_marketplace/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound means no document matched the lookup.
	ErrNotFound = errors.New("document not found")
	// ErrPreconditionFailed means a conditional update matched nothing: the
	// document exists but is no longer in the expected prior state.
	ErrPreconditionFailed = errors.New("document not in expected state")
	// ErrDuplicate means a unique index rejected the write.
	ErrDuplicate = errors.New("duplicate key")
	// ErrInsufficientFunds means a balance guard rejected a debit.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// moneyEpsilon keeps balance guards tolerant of float drift.
const moneyEpsilon = 0.001

// BookingExpectation is the prior state a compare-and-swap requires.
// Empty fields are not checked.
type BookingExpectation struct {
	Statuses          []string
	PaymentStatus     string
	SettlementApplied *bool
}

// BookingChange lists the fields a compare-and-swap sets. Nil fields are left
// untouched.
type BookingChange struct {
	Status             *string
	PaymentStatus      *string
	RazorpayPaymentID  *string
	PlatformCommission *float64
	PartnerEarning     *float64
	CommissionRate     *float64
	SettlementApplied  *bool
	PaidAt             *time.Time
	CancelledAt        *time.Time
	CompletedAt        *time.Time
}

// BookingFilter selects bookings for listing. Zero fields match everything.
type BookingFilter struct {
	UserID        primitive.ObjectID
	PartnerID     primitive.ObjectID
	Statuses      []string
	PaymentStatus string
}

type BookingRepository interface {
	Insert(ctx context.Context, b *models.Booking) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error)
	FindByOrderID(ctx context.Context, orderID string) (*models.Booking, error)
	// HasOverlap reports whether an active booking of the partner on the
	// given day intersects [startTime, endTime).
	HasOverlap(ctx context.Context, partnerID primitive.ObjectID, date time.Time, startTime, endTime string) (bool, error)
	List(ctx context.Context, filter BookingFilter) ([]models.Booking, error)
	// SetOrderID records the gateway order while the booking is still unpaid.
	SetOrderID(ctx context.Context, id primitive.ObjectID, orderID string) error
	// SetRefundID records the gateway refund while the booking is still paid.
	SetRefundID(ctx context.Context, id primitive.ObjectID, refundID string) error
	// CompareAndSwap applies change only when the booking matches expect and
	// returns the updated document, or ErrPreconditionFailed.
	CompareAndSwap(ctx context.Context, id primitive.ObjectID, expect BookingExpectation, change BookingChange) (*models.Booking, error)
	Revenue(ctx context.Context) (*models.RevenueOverview, error)
}

type PartnerRepository interface {
	Insert(ctx context.Context, p *models.Partner) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Partner, error)
	FindByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Partner, error)
	// SetApprovalStatus moves a partner out of from; ErrPreconditionFailed
	// when it is no longer there.
	SetApprovalStatus(ctx context.Context, id primitive.ObjectID, from, to string) (*models.Partner, error)
}

type UserRepository interface {
	Insert(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// AddBlockedUser returns ErrPreconditionFailed when target is already blocked.
	AddBlockedUser(ctx context.Context, userID, targetID primitive.ObjectID) error
	SetFCMToken(ctx context.Context, userID primitive.ObjectID, token string) error
}

// EarningsRepository persists the partner ledger. Booking credits and
// reversals are keyed by booking id so replays are no-ops.
type EarningsRepository interface {
	// Get returns the partner ledger, creating an empty one on first access.
	Get(ctx context.Context, partnerID primitive.ObjectID) (*models.PartnerEarnings, error)
	CreditBooking(ctx context.Context, partnerID, bookingID primitive.ObjectID, amount float64) (bool, error)
	ReverseBooking(ctx context.Context, partnerID, bookingID primitive.ObjectID, amount float64) (bool, error)
	// Reserve moves amount into pendingWithdrawals when the unreserved
	// balance covers it, or returns ErrInsufficientFunds.
	Reserve(ctx context.Context, partnerID primitive.ObjectID, amount float64) error
	Release(ctx context.Context, partnerID primitive.ObjectID, amount float64) error
	// SettlePayout turns a reservation into a completed withdrawal.
	SettlePayout(ctx context.Context, partnerID primitive.ObjectID, amount float64, at time.Time) error
}

// WithdrawalFilter selects withdrawal requests. Zero fields match everything.
type WithdrawalFilter struct {
	PartnerID primitive.ObjectID
	Status    string
}

type WithdrawalRepository interface {
	Insert(ctx context.Context, w *models.WithdrawalRequest) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.WithdrawalRequest, error)
	// ResolvePending moves a pending request to status, or returns
	// ErrPreconditionFailed when it was already resolved.
	ResolvePending(ctx context.Context, id primitive.ObjectID, status, notes string, by primitive.ObjectID, at time.Time) (*models.WithdrawalRequest, error)
	// Reopen undoes a resolution whose ledger effect could not be applied.
	// The request reads as never processed afterwards, admin notes included.
	Reopen(ctx context.Context, id primitive.ObjectID, from string) error
	List(ctx context.Context, filter WithdrawalFilter) ([]models.WithdrawalRequest, error)
}

type WalletRepository interface {
	// Get returns the user's wallet, creating an empty one on first access.
	Get(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error)
	// Transfer debits from and credits to atomically, or returns
	// ErrInsufficientFunds with neither wallet changed.
	Transfer(ctx context.Context, from, to primitive.ObjectID, amount float64, reason, refID string) error
	Debit(ctx context.Context, userID primitive.ObjectID, amount float64, reason, refID string) error
}

type ReportRepository interface {
	Insert(ctx context.Context, r *models.Report) error
	ListByReporter(ctx context.Context, reporterID primitive.ObjectID) ([]models.Report, error)
}

type NotificationRepository interface {
	Insert(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.Notification, error)
}

// MoneyCovers reports whether balance covers amount within float tolerance.
func MoneyCovers(balance, amount float64) bool {
	return balance >= amount-moneyEpsilon
}
