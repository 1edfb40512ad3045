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

type Earnings struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]*models.PartnerEarnings
}

func NewEarnings() *Earnings {
	return &Earnings{docs: make(map[primitive.ObjectID]*models.PartnerEarnings)}
}

// getLocked returns the live ledger, creating it on first access.
func (r *Earnings) getLocked(partnerID primitive.ObjectID) *models.PartnerEarnings {
	e, ok := r.docs[partnerID]
	if !ok {
		e = models.NewPartnerEarnings(partnerID, time.Now())
		e.ID = primitive.NewObjectID()
		r.docs[partnerID] = e
	}
	return e
}

func (r *Earnings) Get(_ context.Context, partnerID primitive.ObjectID) (*models.PartnerEarnings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := *r.getLocked(partnerID)
	e.CreditedBookings = append([]primitive.ObjectID{}, e.CreditedBookings...)
	e.ReversedBookings = append([]primitive.ObjectID{}, e.ReversedBookings...)
	return &e, nil
}

func (r *Earnings) CreditBooking(_ context.Context, partnerID, bookingID primitive.ObjectID, amount float64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.getLocked(partnerID)
	if e.HasCredited(bookingID) || e.HasReversed(bookingID) {
		return false, nil
	}
	e.TotalEarnings += amount
	e.AvailableBalance += amount
	e.CreditedBookings = append(e.CreditedBookings, bookingID)
	e.UpdatedAt = time.Now()
	return true, nil
}

func (r *Earnings) ReverseBooking(_ context.Context, partnerID, bookingID primitive.ObjectID, amount float64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.getLocked(partnerID)
	if e.HasReversed(bookingID) {
		return false, nil
	}
	e.ReversedBookings = append(e.ReversedBookings, bookingID)
	e.UpdatedAt = time.Now()
	if !e.HasCredited(bookingID) {
		return false, nil
	}
	e.TotalEarnings -= amount
	e.AvailableBalance -= amount
	return true, nil
}

func (r *Earnings) Reserve(_ context.Context, partnerID primitive.ObjectID, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.getLocked(partnerID)
	if !repositories.MoneyCovers(e.AvailableBalance-e.PendingWithdrawals, amount) {
		return repositories.ErrInsufficientFunds
	}
	e.PendingWithdrawals += amount
	e.UpdatedAt = time.Now()
	return nil
}

func (r *Earnings) Release(_ context.Context, partnerID primitive.ObjectID, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.docs[partnerID]
	if !ok || !repositories.MoneyCovers(e.PendingWithdrawals, amount) {
		return repositories.ErrInsufficientFunds
	}
	e.PendingWithdrawals -= amount
	e.UpdatedAt = time.Now()
	return nil
}

func (r *Earnings) SettlePayout(_ context.Context, partnerID primitive.ObjectID, amount float64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.docs[partnerID]
	if !ok || !repositories.MoneyCovers(e.PendingWithdrawals, amount) || !repositories.MoneyCovers(e.AvailableBalance, amount) {
		return repositories.ErrInsufficientFunds
	}
	e.PendingWithdrawals -= amount
	e.AvailableBalance -= amount
	e.TotalWithdrawn += amount
	e.LastWithdrawalAt = &at
	e.UpdatedAt = time.Now()
	return nil
}

type Withdrawals struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]models.WithdrawalRequest
}

func NewWithdrawals() *Withdrawals {
	return &Withdrawals{docs: make(map[primitive.ObjectID]models.WithdrawalRequest)}
}

func (r *Withdrawals) Insert(_ context.Context, w *models.WithdrawalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}
	r.docs[w.ID] = *w
	return nil
}

func (r *Withdrawals) FindByID(_ context.Context, id primitive.ObjectID) (*models.WithdrawalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.docs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &w, nil
}

func (r *Withdrawals) ResolvePending(_ context.Context, id primitive.ObjectID, status, notes string, by primitive.ObjectID, at time.Time) (*models.WithdrawalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.docs[id]
	if !ok || w.Status != models.WithdrawalPending {
		return nil, repositories.ErrPreconditionFailed
	}
	w.Status = status
	if notes != "" {
		w.AdminNotes = notes
	}
	w.ProcessedAt = &at
	w.ProcessedBy = &by
	w.UpdatedAt = at
	r.docs[id] = w
	return &w, nil
}

func (r *Withdrawals) Reopen(_ context.Context, id primitive.ObjectID, from string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.docs[id]
	if !ok || w.Status != from {
		return repositories.ErrPreconditionFailed
	}
	w.Status = models.WithdrawalPending
	w.AdminNotes = ""
	w.ProcessedAt = nil
	w.ProcessedBy = nil
	w.UpdatedAt = time.Now()
	r.docs[id] = w
	return nil
}

func (r *Withdrawals) List(_ context.Context, f repositories.WithdrawalFilter) ([]models.WithdrawalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.WithdrawalRequest{}
	for _, w := range r.docs {
		if !f.PartnerID.IsZero() && w.PartnerID != f.PartnerID {
			continue
		}
		if f.Status != "" && w.Status != f.Status {
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type Wallets struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]*models.Wallet
}

func NewWallets() *Wallets {
	return &Wallets{docs: make(map[primitive.ObjectID]*models.Wallet)}
}

func (r *Wallets) getLocked(userID primitive.ObjectID) *models.Wallet {
	w, ok := r.docs[userID]
	if !ok {
		now := time.Now()
		w = &models.Wallet{
			ID:           primitive.NewObjectID(),
			UserID:       userID,
			Transactions: []models.WalletTransaction{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		r.docs[userID] = w
	}
	return w
}

func (r *Wallets) Get(_ context.Context, userID primitive.ObjectID) (*models.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := *r.getLocked(userID)
	w.Transactions = append([]models.WalletTransaction{}, w.Transactions...)
	return &w, nil
}

func (r *Wallets) Transfer(_ context.Context, from, to primitive.ObjectID, amount float64, reason, refID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sender := r.getLocked(from)
	recipient := r.getLocked(to)
	if !repositories.MoneyCovers(sender.Balance, amount) {
		return repositories.ErrInsufficientFunds
	}
	now := time.Now()
	applyLocked(sender, -amount, models.TransactionDebit, reason, refID, now)
	applyLocked(recipient, amount, models.TransactionCredit, reason, refID, now)
	return nil
}

func (r *Wallets) Debit(_ context.Context, userID primitive.ObjectID, amount float64, reason, refID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.getLocked(userID)
	if !repositories.MoneyCovers(w.Balance, amount) {
		return repositories.ErrInsufficientFunds
	}
	applyLocked(w, -amount, models.TransactionDebit, reason, refID, time.Now())
	return nil
}

// Credit tops up a wallet directly. No service path creates money, so this
// exists for seeding balances in tests and fixtures.
func (r *Wallets) Credit(_ context.Context, userID primitive.ObjectID, amount float64, reason, refID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	applyLocked(r.getLocked(userID), amount, models.TransactionCredit, reason, refID, time.Now())
	return nil
}

func applyLocked(w *models.Wallet, delta float64, kind, reason, refID string, at time.Time) {
	amount := delta
	if amount < 0 {
		amount = -amount
	}
	w.Balance += delta
	w.Transactions = append(w.Transactions, models.WalletTransaction{
		Type:      kind,
		Amount:    amount,
		Reason:    reason,
		RefID:     refID,
		CreatedAt: at,
	})
	w.UpdatedAt = at
}
