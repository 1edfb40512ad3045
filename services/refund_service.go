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
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// RefundService returns the payment of a paid booking and unwinds its
// commission split before the booking is cancelled.
type RefundService struct {
	bookings repositories.BookingRepository
	gateway  PaymentGateway
	ledger   EarningsLedger

	Now func() time.Time
}

func NewRefundService(bookings repositories.BookingRepository, gateway PaymentGateway, ledger EarningsLedger) *RefundService {
	return &RefundService{bookings: bookings, gateway: gateway, ledger: ledger, Now: time.Now}
}

// RefundAndCancel refunds the full amount, reverses the partner earning and
// cancels the booking. Each step is safe to repeat: a stored refund id skips
// the gateway call and the ledger reversal is keyed by booking. When the
// gateway refund fails nothing changes and the booking stays active.
func (s *RefundService) RefundAndCancel(ctx context.Context, booking *models.Booking) (*models.Booking, error) {
	ctx, span := obs.Tracer().Start(ctx, "booking.refund")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.id", booking.ID.Hex()),
		attribute.String("payment.id", booking.RazorpayPaymentID),
	)

	log := logger.Log.WithFields(logrus.Fields{
		"bookingId": booking.ID.Hex(),
		"paymentId": booking.RazorpayPaymentID,
		"amount":    booking.TotalAmount,
	})

	if booking.PaymentStatus != models.PaymentStatusPaid {
		return nil, conflictError("Booking is not paid")
	}
	if !models.CanTransition(booking.Status, models.BookingStatusCancelled) {
		return nil, conflictError("Booking is already %s", booking.Status)
	}

	if booking.RazorpayRefundID == "" {
		if !s.gateway.Enabled() {
			return nil, ErrPaymentsDisabled
		}
		refund, err := s.gateway.Refund(ctx, booking.RazorpayPaymentID, ToPaise(booking.TotalAmount), booking.ID.Hex())
		if err != nil {
			obs.Fail(span, err)
			log.WithError(err).Error("Gateway refund failed, booking left unchanged")
			return nil, externalError(err, map[string]interface{}{
				"bookingId": booking.ID.Hex(),
				"paymentId": booking.RazorpayPaymentID,
			}, "Refund failed, the booking was not cancelled")
		}
		log = log.WithField("refundId", refund.ID)
		if err := s.bookings.SetRefundID(ctx, booking.ID, refund.ID); err != nil {
			// The money has moved; the refund id must reach the caller and the log
			obs.Fail(span, err)
			log.WithError(err).Error("Refund issued but refund id could not be recorded")
			return nil, externalError(err, map[string]interface{}{
				"bookingId": booking.ID.Hex(),
				"paymentId": booking.RazorpayPaymentID,
				"refundId":  refund.ID,
			}, "Refund issued but could not be recorded, the booking was not cancelled")
		}
		log.Info("Gateway refund issued")
	} else {
		log = log.WithField("refundId", booking.RazorpayRefundID)
		log.Info("Refund already issued, resuming cancellation")
	}

	// Reverse by the earning recorded at payment time, before it is zeroed
	if booking.SettlementApplied && booking.PartnerEarning > 0 {
		if err := s.ledger.ApplyReversal(ctx, booking.PartnerID, booking.ID, booking.PartnerEarning); err != nil {
			obs.Fail(span, err)
			log.WithError(err).Error("Earnings reversal failed after refund")
			return nil, fmt.Errorf("reverse earnings: %w", err)
		}
	}

	now := s.Now()
	cancelled := models.BookingStatusCancelled
	refunded := models.PaymentStatusRefunded
	zero := 0.0
	updated, err := s.bookings.CompareAndSwap(ctx, booking.ID,
		repositories.BookingExpectation{
			Statuses:      []string{models.BookingStatusPending, models.BookingStatusConfirmed},
			PaymentStatus: models.PaymentStatusPaid,
		},
		repositories.BookingChange{
			Status:             &cancelled,
			PaymentStatus:      &refunded,
			PlatformCommission: &zero,
			PartnerEarning:     &zero,
			CancelledAt:        &now,
		},
	)
	if err != nil {
		if errors.Is(err, repositories.ErrPreconditionFailed) {
			return nil, conflictError("Booking was modified concurrently, please retry")
		}
		return nil, fmt.Errorf("cancel refunded booking: %w", err)
	}

	log.Info("Paid booking refunded and cancelled")
	return updated, nil
}
