package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID primitive.ObjectID
	Role   string
}

// Refunder reverses the money side of a paid booking and cancels it. Callers
// hold the booking lock.
type Refunder interface {
	RefundAndCancel(ctx context.Context, booking *models.Booking) (*models.Booking, error)
}

// BookingService drives the booking lifecycle.
type BookingService struct {
	bookings repositories.BookingRepository
	partners repositories.PartnerRepository
	users    repositories.UserRepository
	refunds  Refunder
	locker   Locker
	notifier Notifier

	// Now is the service clock; tests replace it.
	Now func() time.Time
}

func NewBookingService(
	bookings repositories.BookingRepository,
	partners repositories.PartnerRepository,
	users repositories.UserRepository,
	refunds Refunder,
	locker Locker,
	notifier Notifier,
) *BookingService {
	return &BookingService{
		bookings: bookings,
		partners: partners,
		users:    users,
		refunds:  refunds,
		locker:   locker,
		notifier: notifier,
		Now:      time.Now,
	}
}

// ParseObjectID converts a hex id from a request into an ObjectID.
func ParseObjectID(hex, what string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(hex))
	if err != nil {
		return primitive.NilObjectID, validationError("Invalid %s ID", what)
	}
	return id, nil
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Create books a partner for a time range on one day.
func (s *BookingService) Create(ctx context.Context, requesterID primitive.ObjectID, req models.BookingRequest) (*models.Booking, error) {
	ctx, span := obs.Tracer().Start(ctx, "booking.create")
	defer span.End()

	partnerID, err := ParseObjectID(req.PartnerID, "partner")
	if err != nil {
		return nil, err
	}
	date, err := time.Parse(models.BookingDateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		return nil, validationError("Invalid date format, expected YYYY-MM-DD")
	}
	if date.Before(today(s.Now())) {
		return nil, validationError("Cannot book a date in the past")
	}
	if req.StartTime == req.EndTime {
		return nil, validationError("Start time and end time cannot be the same")
	}
	hours, err := models.DurationHours(req.StartTime, req.EndTime)
	if err != nil {
		return nil, validationError("Invalid time: %v", err)
	}
	if hours <= 0 {
		return nil, validationError("End time must be after start time")
	}

	partner, err := s.partners.FindByID(ctx, partnerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFoundError("Partner not found")
		}
		return nil, fmt.Errorf("find partner: %w", err)
	}
	if partner.ApprovalStatus != models.ApprovalApproved {
		return nil, validationError("Partner not available")
	}
	if partner.UserID == requesterID {
		return nil, validationError("Cannot book yourself")
	}

	requester, err := s.users.FindByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFoundError("User not found")
		}
		return nil, fmt.Errorf("find requester: %w", err)
	}
	partnerUser, err := s.users.FindByID(ctx, partner.UserID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("find partner user: %w", err)
	}
	if requester.HasBlocked(partner.UserID) || (partnerUser != nil && partnerUser.HasBlocked(requesterID)) {
		return nil, forbiddenError("Booking is not allowed between these users")
	}

	overlap, err := s.bookings.HasOverlap(ctx, partnerID, date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, fmt.Errorf("check overlap: %w", err)
	}
	if overlap {
		return nil, conflictError("This time slot is already booked")
	}

	now := s.Now()
	booking := &models.Booking{
		UserID:        requesterID,
		PartnerID:     partnerID,
		Date:          date,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Message:       utils.SanitizeInput(req.Message),
		TotalAmount:   BookingAmount(hours, partner.HourlyRate),
		Status:        models.BookingStatusPending,
		PaymentStatus: models.PaymentStatusUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.bookings.Insert(ctx, booking); err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	span.SetAttributes(attribute.String("booking.id", booking.ID.Hex()))

	logger.Log.WithFields(logrus.Fields{
		"bookingId":   booking.ID.Hex(),
		"partnerId":   partnerID.Hex(),
		"userId":      requesterID.Hex(),
		"totalAmount": booking.TotalAmount,
	}).Info("Booking created")

	s.notifier.Notify(ctx, partner.UserID, models.NotificationBookingCreated,
		"New booking request",
		fmt.Sprintf("%s requested a booking on %s from %s to %s", requester.Name, req.Date, req.StartTime, req.EndTime),
		map[string]interface{}{"bookingId": booking.ID.Hex()},
	)
	return booking, nil
}

// Respond lets the owning partner accept or reject a booking.
func (s *BookingService) Respond(ctx context.Context, partnerUserID, bookingID primitive.ObjectID, action string) (*models.Booking, error) {
	ctx, span := obs.Tracer().Start(ctx, "booking.respond")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", bookingID.Hex()), attribute.String("action", action))

	if action != "accept" && action != "reject" {
		return nil, validationError("Action must be accept or reject")
	}

	unlock, err := s.locker.Lock(ctx, bookingLockKey(bookingID))
	if err != nil {
		return nil, fmt.Errorf("lock booking: %w", err)
	}
	defer unlock()

	booking, err := s.loadForPartner(ctx, partnerUserID, bookingID)
	if err != nil {
		return nil, err
	}
	if models.IsTerminal(booking.Status) {
		return nil, conflictError("Booking is already %s", booking.Status)
	}

	if action == "accept" {
		if !models.CanTransition(booking.Status, models.BookingStatusConfirmed) {
			return nil, conflictError("Booking is already %s", booking.Status)
		}
		updated, err := s.transition(ctx, booking, models.BookingStatusConfirmed, nil)
		if err != nil {
			return nil, err
		}
		s.notifier.Notify(ctx, updated.UserID, models.NotificationBookingAccepted,
			"Booking accepted", "Your booking request has been accepted",
			map[string]interface{}{"bookingId": updated.ID.Hex()})
		return updated, nil
	}

	updated, err := s.cancel(ctx, booking)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, updated.UserID, models.NotificationBookingRejected,
		"Booking rejected", "Your booking request has been rejected",
		map[string]interface{}{"bookingId": updated.ID.Hex(), "paymentStatus": updated.PaymentStatus})
	return updated, nil
}

// Cancel lets the requester cancel a booking that has not happened yet.
func (s *BookingService) Cancel(ctx context.Context, requesterID, bookingID primitive.ObjectID) (*models.Booking, error) {
	ctx, span := obs.Tracer().Start(ctx, "booking.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", bookingID.Hex()))

	unlock, err := s.locker.Lock(ctx, bookingLockKey(bookingID))
	if err != nil {
		return nil, fmt.Errorf("lock booking: %w", err)
	}
	defer unlock()

	booking, err := s.find(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != requesterID {
		return nil, forbiddenError("Not authorized to cancel this booking")
	}
	if models.IsTerminal(booking.Status) {
		return nil, conflictError("Booking is already %s", booking.Status)
	}
	if booking.Date.Before(today(s.Now())) {
		return nil, validationError("Cannot cancel a past booking")
	}

	updated, err := s.cancel(ctx, booking)
	if err != nil {
		obs.Fail(span, err)
		return nil, err
	}

	partner, err := s.partners.FindByID(ctx, updated.PartnerID)
	if err != nil {
		logger.Log.WithError(err).WithField("bookingId", updated.ID.Hex()).Warn("Partner lookup for cancel notification failed")
		return updated, nil
	}
	s.notifier.Notify(ctx, partner.UserID, models.NotificationBookingCancelled,
		"Booking cancelled", "A booking has been cancelled by the user",
		map[string]interface{}{"bookingId": updated.ID.Hex(), "paymentStatus": updated.PaymentStatus})
	return updated, nil
}

// Complete lets the owning partner close a confirmed booking.
func (s *BookingService) Complete(ctx context.Context, partnerUserID, bookingID primitive.ObjectID) (*models.Booking, error) {
	ctx, span := obs.Tracer().Start(ctx, "booking.complete")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", bookingID.Hex()))

	unlock, err := s.locker.Lock(ctx, bookingLockKey(bookingID))
	if err != nil {
		return nil, fmt.Errorf("lock booking: %w", err)
	}
	defer unlock()

	booking, err := s.loadForPartner(ctx, partnerUserID, bookingID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(booking.Status, models.BookingStatusCompleted) {
		return nil, conflictError("Only confirmed bookings can be completed")
	}

	now := s.Now()
	updated, err := s.transition(ctx, booking, models.BookingStatusCompleted, func(c *repositories.BookingChange) {
		c.CompletedAt = &now
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, updated.UserID, models.NotificationBookingCompleted,
		"Booking completed", "Your booking has been marked as completed",
		map[string]interface{}{"bookingId": updated.ID.Hex()})
	return updated, nil
}

// cancel moves a booking to cancelled, refunding first when it was paid.
func (s *BookingService) cancel(ctx context.Context, booking *models.Booking) (*models.Booking, error) {
	if booking.PaymentStatus == models.PaymentStatusPaid {
		return s.refunds.RefundAndCancel(ctx, booking)
	}
	if !models.CanTransition(booking.Status, models.BookingStatusCancelled) {
		return nil, conflictError("Booking is already %s", booking.Status)
	}
	now := s.Now()
	return s.transition(ctx, booking, models.BookingStatusCancelled, func(c *repositories.BookingChange) {
		c.CancelledAt = &now
	})
}

// transition writes a status change conditional on the status and payment
// status read under the lock.
func (s *BookingService) transition(ctx context.Context, booking *models.Booking, to string, extra func(*repositories.BookingChange)) (*models.Booking, error) {
	change := repositories.BookingChange{Status: &to}
	if extra != nil {
		extra(&change)
	}
	expect := repositories.BookingExpectation{
		Statuses:      []string{booking.Status},
		PaymentStatus: booking.PaymentStatus,
	}
	updated, err := s.bookings.CompareAndSwap(ctx, booking.ID, expect, change)
	if err != nil {
		if errors.Is(err, repositories.ErrPreconditionFailed) {
			return nil, conflictError("Booking was modified concurrently, please retry")
		}
		return nil, fmt.Errorf("update booking: %w", err)
	}
	logger.Log.WithFields(logrus.Fields{
		"bookingId": booking.ID.Hex(),
		"from":      booking.Status,
		"to":        to,
	}).Info("Booking status changed")
	return updated, nil
}

func (s *BookingService) find(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFoundError("Booking not found")
		}
		return nil, fmt.Errorf("find booking: %w", err)
	}
	return booking, nil
}

func (s *BookingService) partnerOf(ctx context.Context, userID primitive.ObjectID) (*models.Partner, error) {
	partner, err := s.partners.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, forbiddenError("Not a partner")
		}
		return nil, fmt.Errorf("find partner: %w", err)
	}
	return partner, nil
}

func (s *BookingService) loadForPartner(ctx context.Context, partnerUserID, bookingID primitive.ObjectID) (*models.Booking, error) {
	booking, err := s.find(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	partner, err := s.partnerOf(ctx, partnerUserID)
	if err != nil {
		return nil, err
	}
	if booking.PartnerID != partner.ID {
		return nil, forbiddenError("Not authorized to manage this booking")
	}
	return booking, nil
}

// Get returns a booking visible to the requester, its partner or an admin.
func (s *BookingService) Get(ctx context.Context, actor Actor, bookingID primitive.ObjectID) (*models.Booking, error) {
	booking, err := s.find(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleAdmin || booking.UserID == actor.UserID {
		return booking, nil
	}
	partner, err := s.partners.FindByUserID(ctx, actor.UserID)
	if err == nil && partner.ID == booking.PartnerID {
		return booking, nil
	}
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("find partner: %w", err)
	}
	return nil, forbiddenError("Not authorized to view this booking")
}

// ListMine returns the requester's bookings, newest first.
func (s *BookingService) ListMine(ctx context.Context, userID primitive.ObjectID) ([]models.Booking, error) {
	return s.bookings.List(ctx, repositories.BookingFilter{UserID: userID})
}

// ListForPartner returns the bookings of the caller's partner profile,
// optionally filtered by status.
func (s *BookingService) ListForPartner(ctx context.Context, partnerUserID primitive.ObjectID, status string) ([]models.Booking, error) {
	partner, err := s.partnerOf(ctx, partnerUserID)
	if err != nil {
		return nil, err
	}
	filter := repositories.BookingFilter{PartnerID: partner.ID}
	if status != "" {
		if !models.IsValidBookingStatus(status) {
			return nil, validationError("Unknown booking status %q", status)
		}
		filter.Statuses = []string{status}
	}
	return s.bookings.List(ctx, filter)
}
