package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/HSouheill/partner_marketplace/logger"
	"github.com/HSouheill/partner_marketplace/models"
	"github.com/HSouheill/partner_marketplace/repositories"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EarningsLedger applies booking money to partner balances. Both operations
// are idempotent per booking.
type EarningsLedger interface {
	ApplyCredit(ctx context.Context, partnerID, bookingID primitive.ObjectID, amount float64) error
	ApplyReversal(ctx context.Context, partnerID, bookingID primitive.ObjectID, amount float64) error
}

// EarningsService owns the partner ledger and checks its balance rules after
// every mutation.
type EarningsService struct {
	earnings repositories.EarningsRepository
	partners repositories.PartnerRepository
	bookings repositories.BookingRepository
}

func NewEarningsService(earnings repositories.EarningsRepository, partners repositories.PartnerRepository, bookings repositories.BookingRepository) *EarningsService {
	return &EarningsService{earnings: earnings, partners: partners, bookings: bookings}
}

func (s *EarningsService) ApplyCredit(ctx context.Context, partnerID, bookingID primitive.ObjectID, amount float64) error {
	log := logger.Log.WithFields(logrus.Fields{
		"partnerId": partnerID.Hex(),
		"bookingId": bookingID.Hex(),
		"amount":    amount,
	})
	applied, err := s.earnings.CreditBooking(ctx, partnerID, bookingID, amount)
	if err != nil {
		return fmt.Errorf("credit earnings: %w", err)
	}
	if !applied {
		log.Debug("Earnings credit already applied")
		return nil
	}
	log.Info("Partner earnings credited")
	return s.verify(ctx, partnerID, log)
}

// ApplyReversal removes a booking's earning. A reversal is applied even when
// the partner has already withdrawn the money; the resulting shortfall is
// logged for recovery.
func (s *EarningsService) ApplyReversal(ctx context.Context, partnerID, bookingID primitive.ObjectID, amount float64) error {
	log := logger.Log.WithFields(logrus.Fields{
		"partnerId": partnerID.Hex(),
		"bookingId": bookingID.Hex(),
		"amount":    amount,
	})
	applied, err := s.earnings.ReverseBooking(ctx, partnerID, bookingID, amount)
	if err != nil {
		return fmt.Errorf("reverse earnings: %w", err)
	}
	if !applied {
		log.Debug("Earnings reversal not applicable or already applied")
		return nil
	}
	log.Info("Partner earnings reversed")
	if err := s.verify(ctx, partnerID, log); err != nil && !IsKind(err, KindIntegrity) {
		return err
	}
	return nil
}

// verify re-reads the ledger and reports a broken balance rule.
func (s *EarningsService) verify(ctx context.Context, partnerID primitive.ObjectID, log *logrus.Entry) error {
	e, err := s.earnings.Get(ctx, partnerID)
	if err != nil {
		return fmt.Errorf("reload earnings: %w", err)
	}
	if err := e.CheckInvariant(); err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"totalEarnings":      e.TotalEarnings,
			"availableBalance":   e.AvailableBalance,
			"totalWithdrawn":     e.TotalWithdrawn,
			"pendingWithdrawals": e.PendingWithdrawals,
		}).Error("Partner ledger invariant violated")
		return integrityError(err, "Partner ledger is inconsistent")
	}
	return nil
}

// ForPartnerUser returns the earnings view of the caller's partner profile.
func (s *EarningsService) ForPartnerUser(ctx context.Context, userID primitive.ObjectID) (*models.EarningsView, error) {
	partner, err := s.partners.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, forbiddenError("Not a partner")
		}
		return nil, fmt.Errorf("find partner: %w", err)
	}
	e, err := s.earnings.Get(ctx, partner.ID)
	if err != nil {
		return nil, fmt.Errorf("get earnings: %w", err)
	}
	completed, err := s.bookings.List(ctx, repositories.BookingFilter{
		PartnerID:     partner.ID,
		Statuses:      []string{models.BookingStatusCompleted},
		PaymentStatus: models.PaymentStatusPaid,
	})
	if err != nil {
		return nil, fmt.Errorf("list completed bookings: %w", err)
	}

	return &models.EarningsView{
		TotalEarnings:       models.RoundMoney(e.TotalEarnings),
		AvailableBalance:    models.RoundMoney(e.AvailableBalance),
		WithdrawableBalance: e.Withdrawable(),
		TotalWithdrawn:      models.RoundMoney(e.TotalWithdrawn),
		PendingWithdrawals:  models.RoundMoney(e.PendingWithdrawals),
		LastWithdrawalAt:    e.LastWithdrawalAt,
		CompletedBookings:   completed,
	}, nil
}
