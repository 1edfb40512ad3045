package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HSouheill/partner_marketplace/logger"
	"github.com/HSouheill/partner_marketplace/models"
	"github.com/HSouheill/partner_marketplace/repositories"
	"github.com/HSouheill/partner_marketplace/utils"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccountService holds moderation and admin operations on users and partners.
type AccountService struct {
	users         repositories.UserRepository
	partners      repositories.PartnerRepository
	bookings      repositories.BookingRepository
	notifications repositories.NotificationRepository
	reports       repositories.ReportRepository
}

func NewAccountService(
	users repositories.UserRepository,
	partners repositories.PartnerRepository,
	bookings repositories.BookingRepository,
	notifications repositories.NotificationRepository,
	reports repositories.ReportRepository,
) *AccountService {
	return &AccountService{
		users:         users,
		partners:      partners,
		bookings:      bookings,
		notifications: notifications,
		reports:       reports,
	}
}

// BlockUser adds target to the caller's block list.
func (s *AccountService) BlockUser(ctx context.Context, userID primitive.ObjectID, targetHex string) error {
	targetID, err := ParseObjectID(targetHex, "user")
	if err != nil {
		return err
	}
	if targetID == userID {
		return validationError("Cannot block yourself")
	}
	if _, err := s.users.FindByID(ctx, targetID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return notFoundError("User not found")
		}
		return fmt.Errorf("find user: %w", err)
	}
	if err := s.users.AddBlockedUser(ctx, userID, targetID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrPreconditionFailed):
			return validationError("User already blocked")
		case errors.Is(err, repositories.ErrNotFound):
			return notFoundError("User not found")
		}
		return fmt.Errorf("block user: %w", err)
	}
	logger.Log.WithFields(logrus.Fields{
		"userId":   userID.Hex(),
		"targetId": targetID.Hex(),
	}).Info("User blocked")
	return nil
}

// ReportUser files a pending report against another user for admin review.
func (s *AccountService) ReportUser(ctx context.Context, reporterID primitive.ObjectID, req models.ReportUserRequest) (*models.Report, error) {
	reportedID, err := ParseObjectID(req.ReportedUserID, "user")
	if err != nil {
		return nil, err
	}
	if reportedID == reporterID {
		return nil, validationError("Cannot report yourself")
	}
	reason := utils.SanitizeInput(strings.TrimSpace(req.Reason))
	if reason == "" {
		return nil, validationError("Reason is required")
	}
	if _, err := s.users.FindByID(ctx, reportedID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFoundError("Reported user not found")
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	report := &models.Report{
		ReporterID:     reporterID,
		ReportedUserID: reportedID,
		Reason:         reason,
		Description:    utils.SanitizeInput(strings.TrimSpace(req.Description)),
		Status:         models.ReportPending,
	}
	if req.BookingID != "" {
		bookingID, err := ParseObjectID(req.BookingID, "booking")
		if err != nil {
			return nil, err
		}
		if _, err := s.bookings.FindByID(ctx, bookingID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, notFoundError("Booking not found")
			}
			return nil, fmt.Errorf("find booking: %w", err)
		}
		report.BookingID = &bookingID
	}

	now := time.Now()
	report.CreatedAt = now
	report.UpdatedAt = now
	if err := s.reports.Insert(ctx, report); err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}
	logger.Log.WithFields(logrus.Fields{
		"reportId":       report.ID.Hex(),
		"reporterId":     reporterID.Hex(),
		"reportedUserId": reportedID.Hex(),
	}).Info("User reported")
	return report, nil
}

// MyReports lists the reports the caller has filed, newest first.
func (s *AccountService) MyReports(ctx context.Context, reporterID primitive.ObjectID) ([]models.Report, error) {
	list, err := s.reports.ListByReporter(ctx, reporterID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return list, nil
}

// SetPartnerApproval resolves a pending partner application once.
func (s *AccountService) SetPartnerApproval(ctx context.Context, partnerHex, status string) (*models.Partner, error) {
	partnerID, err := ParseObjectID(partnerHex, "partner")
	if err != nil {
		return nil, err
	}
	if status != models.ApprovalApproved && status != models.ApprovalRejected {
		return nil, validationError("Status must be approved or rejected")
	}
	if _, err := s.partners.FindByID(ctx, partnerID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFoundError("Partner not found")
		}
		return nil, fmt.Errorf("find partner: %w", err)
	}
	partner, err := s.partners.SetApprovalStatus(ctx, partnerID, models.ApprovalPending, status)
	if err != nil {
		if errors.Is(err, repositories.ErrPreconditionFailed) {
			return nil, validationError("Partner application already processed")
		}
		return nil, fmt.Errorf("update partner: %w", err)
	}
	logger.Log.WithFields(logrus.Fields{
		"partnerId": partnerID.Hex(),
		"status":    status,
	}).Info("Partner application resolved")
	return partner, nil
}

// Revenue aggregates paid bookings for the admin dashboard.
func (s *AccountService) Revenue(ctx context.Context) (*models.RevenueOverview, error) {
	overview, err := s.bookings.Revenue(ctx)
	if err != nil {
		return nil, fmt.Errorf("revenue: %w", err)
	}
	overview.TotalAmount = models.RoundMoney(overview.TotalAmount)
	overview.PlatformCommission = models.RoundMoney(overview.PlatformCommission)
	overview.PartnerEarnings = models.RoundMoney(overview.PartnerEarnings)
	return overview, nil
}

// UpdateFCMToken registers the device token used for push notifications.
func (s *AccountService) UpdateFCMToken(ctx context.Context, userID primitive.ObjectID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return validationError("FCM token is required")
	}
	if err := s.users.SetFCMToken(ctx, userID, token); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return notFoundError("User not found")
		}
		return fmt.Errorf("set fcm token: %w", err)
	}
	return nil
}

// Notifications returns the caller's latest in-app notifications.
func (s *AccountService) Notifications(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.Notification, error) {
	switch {
	case limit <= 0:
		limit = 50
	case limit > 100:
		limit = 100
	}
	list, err := s.notifications.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}
