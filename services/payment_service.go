package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HSouheill/partner_marketplace/logger"
	"github.com/HSouheill/partner_marketplace/models"
	"github.com/HSouheill/partner_marketplace/obs"
	"github.com/HSouheill/partner_marketplace/repositories"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
)

// settlement sources
const (
	sourceVerify  = "verify"
	sourceWebhook = "webhook"
)

// PaymentService reconciles gateway payments with bookings. Checkout
// verification and webhooks may both report the same payment, in any order
// and concurrently; the booking is settled and the partner credited once.
type PaymentService struct {
	bookings   repositories.BookingRepository
	partners   repositories.PartnerRepository
	users      repositories.UserRepository
	gateway    PaymentGateway
	commission *CommissionEngine
	ledger     EarningsLedger
	locker     Locker
	notifier   Notifier
	currency   string

	Now func() time.Time
}

func NewPaymentService(
	bookings repositories.BookingRepository,
	partners repositories.PartnerRepository,
	users repositories.UserRepository,
	gateway PaymentGateway,
	commission *CommissionEngine,
	ledger EarningsLedger,
	locker Locker,
	notifier Notifier,
	currency string,
) *PaymentService {
	return &PaymentService{
		bookings:   bookings,
		partners:   partners,
		users:      users,
		gateway:    gateway,
		commission: commission,
		ledger:     ledger,
		locker:     locker,
		notifier:   notifier,
		currency:   currency,
		Now:        time.Now,
	}
}

// CreateOrder opens a gateway order for an unpaid booking of the caller.
// An order already attached to the booking is returned again, so that
// payments against it still settle.
func (s *PaymentService) CreateOrder(ctx context.Context, userID primitive.ObjectID, bookingHex string) (*models.CreateOrderResponse, error) {
	ctx, span := obs.Tracer().Start(ctx, "payment.create_order")
	defer span.End()

	if !s.gateway.Enabled() {
		return nil, ErrPaymentsDisabled
	}
	bookingID, err := ParseObjectID(bookingHex, "booking")
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("booking.id", bookingID.Hex()))

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFoundError("Booking not found")
		}
		return nil, fmt.Errorf("find booking: %w", err)
	}
	if booking.UserID != userID {
		return nil, forbiddenError("Not authorized to pay for this booking")
	}
	if booking.PaymentStatus != models.PaymentStatusUnpaid {
		return nil, validationError("Booking is already %s", booking.PaymentStatus)
	}
	if models.IsTerminal(booking.Status) {
		return nil, validationError("Cannot pay for a %s booking", booking.Status)
	}

	amount := ToPaise(booking.TotalAmount)
	if booking.RazorpayOrderID != "" {
		return &models.CreateOrderResponse{
			Order: &models.GatewayOrder{
				ID:       booking.RazorpayOrderID,
				Amount:   amount,
				Currency: s.currency,
				Receipt:  booking.ID.Hex(),
				Status:   "created",
			},
			KeyID: s.gateway.KeyID(),
		}, nil
	}

	order, err := s.gateway.CreateOrder(ctx, amount, s.currency, booking.ID.Hex())
	if err != nil {
		obs.Fail(span, err)
		return nil, externalError(err, map[string]interface{}{"bookingId": booking.ID.Hex()}, "Failed to create payment order")
	}
	if err := s.bookings.SetOrderID(ctx, booking.ID, order.ID); err != nil {
		if errors.Is(err, repositories.ErrPreconditionFailed) {
			return nil, conflictError("Booking payment state changed, please retry")
		}
		return nil, fmt.Errorf("store order id: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"bookingId": booking.ID.Hex(),
		"orderId":   order.ID,
		"amount":    amount,
	}).Info("Payment order created")

	return &models.CreateOrderResponse{Order: order, KeyID: s.gateway.KeyID()}, nil
}

// VerifyPayment checks a checkout signature and settles the booking.
func (s *PaymentService) VerifyPayment(ctx context.Context, userID primitive.ObjectID, req models.VerifyPaymentRequest) (*models.SettlementResult, error) {
	ctx, span := obs.Tracer().Start(ctx, "payment.verify")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", req.RazorpayOrderID),
		attribute.String("payment.id", req.RazorpayPaymentID),
	)

	if req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		return nil, validationError("Missing payment verification fields")
	}
	if err := s.gateway.VerifyPayment(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature); err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			logger.Log.WithFields(logrus.Fields{
				"orderId":   req.RazorpayOrderID,
				"paymentId": req.RazorpayPaymentID,
			}).Warn("Payment signature mismatch")
			return nil, validationError("Invalid payment signature")
		}
		return nil, err
	}

	booking, err := s.bookings.FindByOrderID(ctx, req.RazorpayOrderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFoundError("Booking not found for this order")
		}
		return nil, fmt.Errorf("find booking by order: %w", err)
	}
	if booking.UserID != userID {
		return nil, forbiddenError("Not authorized to verify this payment")
	}

	result, err := s.settle(ctx, booking.ID, req.RazorpayPaymentID, sourceVerify)
	if err != nil {
		obs.Fail(span, err)
		return nil, err
	}
	return result, nil
}

// HandleWebhook authenticates and applies one gateway webhook delivery.
// Deliveries that cannot be matched are acknowledged; only retryable
// failures are returned so the gateway redelivers.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	ctx, span := obs.Tracer().Start(ctx, "payment.webhook")
	defer span.End()

	if err := s.gateway.VerifyWebhook(body, signature); err != nil {
		if errors.Is(err, ErrWebhookNotConfigured) {
			logger.Log.Error("Webhook received but RAZORPAY_WEBHOOK_SECRET is not set, rejecting")
			return ErrWebhookNotConfigured
		}
		logger.Log.WithError(err).Warn("Webhook signature rejected")
		return validationError("Invalid webhook signature")
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return validationError("Invalid webhook payload")
	}
	span.SetAttributes(attribute.String("webhook.event", event.Event))

	entity := event.Payload.Payment.Entity
	log := logger.Log.WithFields(logrus.Fields{
		"event":     event.Event,
		"orderId":   entity.OrderID,
		"paymentId": entity.ID,
	})

	if event.Event != models.EventPaymentCaptured && event.Event != models.EventOrderPaid {
		log.Debug("Ignoring webhook event")
		return nil
	}
	if entity.OrderID == "" || entity.ID == "" {
		log.Warn("Webhook without order or payment id")
		return nil
	}

	booking, err := s.bookings.FindByOrderID(ctx, entity.OrderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			log.Warn("Webhook for unknown order")
			return nil
		}
		return fmt.Errorf("find booking by order: %w", err)
	}

	if _, err := s.settle(ctx, booking.ID, entity.ID, sourceWebhook); err != nil {
		if IsKind(err, KindConflict) {
			log.WithError(err).Error("Webhook payment conflicts with booking state, manual refund may be required")
			return nil
		}
		obs.Fail(span, err)
		return err
	}
	return nil
}

// settle marks the booking paid with paymentID, applies the commission split
// and credits the partner. It is idempotent per payment.
func (s *PaymentService) settle(ctx context.Context, bookingID primitive.ObjectID, paymentID, source string) (*models.SettlementResult, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"bookingId": bookingID.Hex(),
		"paymentId": paymentID,
		"source":    source,
	})

	unlock, err := s.locker.Lock(ctx, bookingLockKey(bookingID))
	if err != nil {
		return nil, fmt.Errorf("lock booking: %w", err)
	}
	defer unlock()

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("reload booking: %w", err)
	}

	switch {
	case booking.PaymentStatus == models.PaymentStatusPaid && booking.RazorpayPaymentID == paymentID:
		// Replay; make sure a credit interrupted earlier lands now
		if err := s.ledger.ApplyCredit(ctx, booking.PartnerID, booking.ID, booking.PartnerEarning); err != nil {
			log.WithError(err).Error("Re-driving earnings credit failed")
			return nil, err
		}
		log.Info("Payment already processed")
		return &models.SettlementResult{Booking: booking, AlreadyProcessed: true}, nil
	case booking.PaymentStatus == models.PaymentStatusRefunded && booking.RazorpayPaymentID == paymentID:
		log.Info("Payment already processed and refunded")
		return &models.SettlementResult{Booking: booking, AlreadyProcessed: true}, nil
	case booking.PaymentStatus != models.PaymentStatusUnpaid:
		log.WithField("existingPaymentId", booking.RazorpayPaymentID).Error("Booking already settled by a different payment")
		return nil, conflictError("Booking is already %s by another payment", booking.PaymentStatus)
	case models.IsTerminal(booking.Status):
		log.WithField("status", booking.Status).Error("Payment received for a closed booking, manual refund required")
		return nil, conflictError("Booking is %s and cannot accept payment", booking.Status)
	}

	payer, err := s.users.FindByID(ctx, booking.UserID)
	if err != nil {
		return nil, fmt.Errorf("find payer: %w", err)
	}
	now := s.Now()
	split := s.commission.Calculate(booking.TotalAmount, payer.PremiumActive(now))

	paid := models.PaymentStatusPaid
	settled := true
	notSettled := false
	change := repositories.BookingChange{
		PaymentStatus:      &paid,
		RazorpayPaymentID:  &paymentID,
		PlatformCommission: &split.PlatformCommission,
		PartnerEarning:     &split.PartnerEarning,
		CommissionRate:     &split.Rate,
		SettlementApplied:  &settled,
		PaidAt:             &now,
	}
	if booking.Status == models.BookingStatusPending {
		confirmed := models.BookingStatusConfirmed
		change.Status = &confirmed
	}
	updated, err := s.bookings.CompareAndSwap(ctx, booking.ID,
		repositories.BookingExpectation{
			Statuses:          []string{models.BookingStatusPending, models.BookingStatusConfirmed},
			PaymentStatus:     models.PaymentStatusUnpaid,
			SettlementApplied: &notSettled,
		},
		change,
	)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrDuplicate):
			log.Error("Payment id already settled another booking")
			return nil, conflictError("Payment already used for another booking")
		case errors.Is(err, repositories.ErrPreconditionFailed):
			return nil, conflictError("Booking payment state changed concurrently")
		}
		return nil, fmt.Errorf("settle booking: %w", err)
	}

	log.WithFields(logrus.Fields{
		"platformCommission": split.PlatformCommission,
		"partnerEarning":     split.PartnerEarning,
		"commissionRate":     split.Rate,
	}).Info("Booking payment settled")

	if err := s.ledger.ApplyCredit(ctx, updated.PartnerID, updated.ID, updated.PartnerEarning); err != nil {
		log.WithError(err).Error("Earnings credit failed after settlement")
		if source == sourceWebhook {
			return nil, err
		}
		// The booking is paid; a webhook or verify replay re-drives the credit
	}

	partner, err := s.partners.FindByID(ctx, updated.PartnerID)
	if err != nil {
		log.WithError(err).Warn("Partner lookup for payment notification failed")
	} else {
		s.notifier.Notify(ctx, partner.UserID, models.NotificationPaymentCompleted,
			"Payment received",
			fmt.Sprintf("Payment of %.2f received for a booking; your earning is %.2f", updated.TotalAmount, updated.PartnerEarning),
			map[string]interface{}{
				"bookingId":      updated.ID.Hex(),
				"partnerEarning": updated.PartnerEarning,
			})
	}

	return &models.SettlementResult{Booking: updated}, nil
}
