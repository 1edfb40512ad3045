package controllers

import (
	"net/http"

	"github.com/HSouheill/partner_marketplace/models"
	"github.com/HSouheill/partner_marketplace/services"
	"github.com/labstack/echo/v4"
)

// EarningsController serves partner balances and payout requests
type EarningsController struct {
	earnings    *services.EarningsService
	withdrawals *services.WithdrawalService
}

func NewEarningsController(earnings *services.EarningsService, withdrawals *services.WithdrawalService) *EarningsController {
	return &EarningsController{earnings: earnings, withdrawals: withdrawals}
}

func (c *EarningsController) GetEarnings(ctx echo.Context) error {
	userID, authed, err := callerID(ctx)
	if !authed {
		return err
	}
	view, err := c.earnings.ForPartnerUser(ctx.Request().Context(), userID)
	if err != nil {
		return respondError(ctx, err)
	}
	return ok(ctx, "Earnings retrieved successfully", view)
}

func (c *EarningsController) RequestWithdrawal(ctx echo.Context) error {
	userID, authed, err := callerID(ctx)
	if !authed {
		return err
	}
	var request models.WithdrawalCreateRequest
	if valid, err := bindAndValidate(ctx, &request); !valid {
		return err
	}
	w, err := c.withdrawals.Request(ctx.Request().Context(), userID, request)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, models.Response{
		Success: true,
		Message: "Withdrawal request submitted",
		Data:    w,
	})
}

func (c *EarningsController) GetMyWithdrawals(ctx echo.Context) error {
	userID, authed, err := callerID(ctx)
	if !authed {
		return err
	}
	list, err := c.withdrawals.ListMine(ctx.Request().Context(), userID)
	if err != nil {
		return respondError(ctx, err)
	}
	return ok(ctx, "Withdrawal requests retrieved successfully", list)
}
