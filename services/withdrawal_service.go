package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HSouheill/partner_marketplace/logger"
	"github.com/HSouheill/partner_marketplace/models"
	"github.com/HSouheill/partner_marketplace/obs"
	"github.com/HSouheill/partner_marketplace/repositories"
	"github.com/HSouheill/partner_marketplace/utils"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
)

// WithdrawalService runs partner payout requests against the earnings ledger.
// A pending request reserves its amount; only paid requests reduce the
// available balance.
type WithdrawalService struct {
	withdrawals repositories.WithdrawalRepository
	earnings    repositories.EarningsRepository
	partners    repositories.PartnerRepository
	notifier    Notifier

	Now func() time.Time
}

func NewWithdrawalService(
	withdrawals repositories.WithdrawalRepository,
	earnings repositories.EarningsRepository,
	partners repositories.PartnerRepository,
	notifier Notifier,
) *WithdrawalService {
	return &WithdrawalService{
		withdrawals: withdrawals,
		earnings:    earnings,
		partners:    partners,
		notifier:    notifier,
		Now:         time.Now,
	}
}

// Request opens a pending withdrawal for the caller's approved partner profile.
func (s *WithdrawalService) Request(ctx context.Context, userID primitive.ObjectID, req models.WithdrawalCreateRequest) (*models.WithdrawalRequest, error) {
	ctx, span := obs.Tracer().Start(ctx, "withdrawal.request")
	defer span.End()

	partner, err := s.partners.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, forbiddenError("Not a partner")
		}
		return nil, fmt.Errorf("find partner: %w", err)
	}
	if partner.ApprovalStatus != models.ApprovalApproved {
		return nil, forbiddenError("Partner profile is not approved")
	}
	amount := models.RoundMoney(req.Amount)
	if amount <= 0 {
		return nil, validationError("Amount must be greater than zero")
	}
	upi, err := utils.SanitizeUPI(req.UpiID)
	if err != nil {
		return nil, validationError("Invalid UPI ID")
	}

	log := logger.Log.WithFields(logrus.Fields{
		"partnerId": partner.ID.Hex(),
		"amount":    amount,
	})

	if err := s.earnings.Reserve(ctx, partner.ID, amount); err != nil {
		if errors.Is(err, repositories.ErrInsufficientFunds) {
			return nil, validationError("Insufficient balance")
		}
		return nil, fmt.Errorf("reserve withdrawal: %w", err)
	}

	now := s.Now()
	w := &models.WithdrawalRequest{
		PartnerID: partner.ID,
		Amount:    amount,
		UpiID:     upi,
		Status:    models.WithdrawalPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.withdrawals.Insert(ctx, w); err != nil {
		if rerr := s.earnings.Release(ctx, partner.ID, amount); rerr != nil {
			log.WithError(rerr).Error("Failed to release reservation after insert failure")
		}
		return nil, fmt.Errorf("insert withdrawal: %w", err)
	}
	span.SetAttributes(attribute.String("withdrawal.id", w.ID.Hex()))

	log.WithField("withdrawalId", w.ID.Hex()).Info("Withdrawal requested")
	return w, nil
}

// Resolve applies an admin decision to a pending request exactly once.
func (s *WithdrawalService) Resolve(ctx context.Context, adminID primitive.ObjectID, idHex string, req models.WithdrawalResolveRequest) (*models.WithdrawalRequest, error) {
	ctx, span := obs.Tracer().Start(ctx, "withdrawal.resolve")
	defer span.End()

	id, err := ParseObjectID(idHex, "withdrawal")
	if err != nil {
		return nil, err
	}
	if !models.IsResolution(req.Status) {
		return nil, validationError("Status must be approved, rejected or paid")
	}
	span.SetAttributes(attribute.String("withdrawal.id", id.Hex()), attribute.String("status", req.Status))

	if _, err := s.withdrawals.FindByID(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFoundError("Withdrawal request not found")
		}
		return nil, fmt.Errorf("find withdrawal: %w", err)
	}

	now := s.Now()
	w, err := s.withdrawals.ResolvePending(ctx, id, req.Status, utils.SanitizeInput(req.AdminNotes), adminID, now)
	if err != nil {
		if errors.Is(err, repositories.ErrPreconditionFailed) {
			return nil, validationError("Withdrawal request already processed")
		}
		return nil, fmt.Errorf("resolve withdrawal: %w", err)
	}

	log := logger.Log.WithFields(logrus.Fields{
		"withdrawalId": w.ID.Hex(),
		"partnerId":    w.PartnerID.Hex(),
		"amount":       w.Amount,
		"status":       w.Status,
	})

	var ledgerErr error
	switch w.Status {
	case models.WithdrawalPaid:
		ledgerErr = s.earnings.SettlePayout(ctx, w.PartnerID, w.Amount, now)
	case models.WithdrawalRejected:
		ledgerErr = s.earnings.Release(ctx, w.PartnerID, w.Amount)
	}
	if ledgerErr != nil {
		obs.Fail(span, ledgerErr)
		log.WithError(ledgerErr).Error("Ledger update for withdrawal failed, reopening request")
		if err := s.withdrawals.Reopen(ctx, w.ID, w.Status); err != nil {
			log.WithError(err).Error("Failed to reopen withdrawal request")
		}
		if errors.Is(ledgerErr, repositories.ErrInsufficientFunds) {
			return nil, integrityError(ledgerErr, "Partner balance does not cover this withdrawal")
		}
		return nil, fmt.Errorf("apply withdrawal: %w", ledgerErr)
	}

	if e, err := s.earnings.Get(ctx, w.PartnerID); err == nil {
		if err := e.CheckInvariant(); err != nil {
			log.WithError(err).Error("Partner ledger invariant violated after withdrawal")
		}
	}

	log.Info("Withdrawal resolved")

	partner, err := s.partners.FindByID(ctx, w.PartnerID)
	if err != nil {
		log.WithError(err).Warn("Partner lookup for withdrawal notification failed")
		return w, nil
	}
	message := fmt.Sprintf("Your withdrawal of %.2f is %s", w.Amount, w.Status)
	if w.AdminNotes != "" {
		message += ": " + w.AdminNotes
	}
	s.notifier.Notify(ctx, partner.UserID, models.NotificationWithdrawalResolved,
		"Withdrawal "+w.Status, message,
		map[string]interface{}{
			"withdrawalId": w.ID.Hex(),
			"status":       w.Status,
			"amount":       w.Amount,
		})
	return w, nil
}

// ListMine returns the caller's withdrawal requests, newest first.
func (s *WithdrawalService) ListMine(ctx context.Context, userID primitive.ObjectID) ([]models.WithdrawalRequest, error) {
	partner, err := s.partners.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, forbiddenError("Not a partner")
		}
		return nil, fmt.Errorf("find partner: %w", err)
	}
	return s.withdrawals.List(ctx, repositories.WithdrawalFilter{PartnerID: partner.ID})
}

// List returns all withdrawal requests, optionally filtered by status.
func (s *WithdrawalService) List(ctx context.Context, status string) ([]models.WithdrawalRequest, error) {
	if status != "" && status != models.WithdrawalPending && !models.IsResolution(status) {
		return nil, validationError("Unknown withdrawal status %q", status)
	}
	return s.withdrawals.List(ctx, repositories.WithdrawalFilter{Status: status})
}
