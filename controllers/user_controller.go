package controllers

import (
	"net/http"
	"strconv"

	"github.com/HSouheill/partner_marketplace/models"
	"github.com/HSouheill/partner_marketplace/services"
	"github.com/labstack/echo/v4"
)

// FCMTokenUpdateRequest represents the request body for updating FCM tokens
type FCMTokenUpdateRequest struct {
	FCMToken string `json:"fcmToken" validate:"required"`
}

type UserController struct {
	accounts *services.AccountService
}

func NewUserController(accounts *services.AccountService) *UserController {
	return &UserController{accounts: accounts}
}

// BlockUser stops bookings between the caller and the target user
func (uc *UserController) BlockUser(c echo.Context) error {
	userID, authed, err := callerID(c)
	if !authed {
		return err
	}
	var request models.BlockUserRequest
	if valid, err := bindAndValidate(c, &request); !valid {
		return err
	}
	if err := uc.accounts.BlockUser(c.Request().Context(), userID, request.TargetUserID); err != nil {
		return respondError(c, err)
	}
	return ok(c, "User blocked successfully", nil)
}

// ReportUser files a complaint about another user for admin review
func (uc *UserController) ReportUser(c echo.Context) error {
	userID, authed, err := callerID(c)
	if !authed {
		return err
	}
	var request models.ReportUserRequest
	if valid, err := bindAndValidate(c, &request); !valid {
		return err
	}
	report, err := uc.accounts.ReportUser(c.Request().Context(), userID, request)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, models.Response{
		Success: true,
		Message: "Report submitted successfully",
		Data:    report,
	})
}

func (uc *UserController) GetMyReports(c echo.Context) error {
	userID, authed, err := callerID(c)
	if !authed {
		return err
	}
	list, err := uc.accounts.MyReports(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "Reports retrieved successfully", list)
}

func (uc *UserController) UpdateFCMToken(c echo.Context) error {
	userID, authed, err := callerID(c)
	if !authed {
		return err
	}
	var request FCMTokenUpdateRequest
	if valid, err := bindAndValidate(c, &request); !valid {
		return err
	}
	if err := uc.accounts.UpdateFCMToken(c.Request().Context(), userID, request.FCMToken); err != nil {
		return respondError(c, err)
	}
	return ok(c, "FCM token updated successfully", nil)
}

// GetNotifications returns the caller's latest notifications, ?limit= caps
// the count
func (uc *UserController) GetNotifications(c echo.Context) error {
	userID, authed, err := callerID(c)
	if !authed {
		return err
	}
	limit, _ := strconv.ParseInt(c.QueryParam("limit"), 10, 64)
	list, err := uc.accounts.Notifications(c.Request().Context(), userID, limit)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "Notifications retrieved successfully", list)
}
