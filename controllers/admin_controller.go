package controllers

import (
	"github.com/HSouheill/partner_marketplace/models"
	"github.com/HSouheill/partner_marketplace/services"
	"github.com/labstack/echo/v4"
)

// AdminController handles admin-only endpoints
type AdminController struct {
	accounts    *services.AccountService
	withdrawals *services.WithdrawalService
}

func NewAdminController(accounts *services.AccountService, withdrawals *services.WithdrawalService) *AdminController {
	return &AdminController{accounts: accounts, withdrawals: withdrawals}
}

// ResolveWithdrawal applies an admin decision to a pending payout request
func (c *AdminController) ResolveWithdrawal(ctx echo.Context) error {
	adminID, authed, err := callerID(ctx)
	if !authed {
		return err
	}
	var request models.WithdrawalResolveRequest
	if valid, err := bindAndValidate(ctx, &request); !valid {
		return err
	}
	w, err := c.withdrawals.Resolve(ctx.Request().Context(), adminID, ctx.Param("id"), request)
	if err != nil {
		return respondError(ctx, err)
	}
	return ok(ctx, "Withdrawal request "+w.Status, w)
}

// ListWithdrawals returns payout requests, optionally filtered with ?status=
func (c *AdminController) ListWithdrawals(ctx echo.Context) error {
	list, err := c.withdrawals.List(ctx.Request().Context(), ctx.QueryParam("status"))
	if err != nil {
		return respondError(ctx, err)
	}
	return ok(ctx, "Withdrawal requests retrieved successfully", list)
}

// SetPartnerApproval approves or rejects a pending partner application
func (c *AdminController) SetPartnerApproval(ctx echo.Context) error {
	var request models.PartnerApprovalRequest
	if valid, err := bindAndValidate(ctx, &request); !valid {
		return err
	}
	partner, err := c.accounts.SetPartnerApproval(ctx.Request().Context(), ctx.Param("id"), request.ApprovalStatus)
	if err != nil {
		return respondError(ctx, err)
	}
	return ok(ctx, "Partner "+partner.ApprovalStatus, partner)
}

func (c *AdminController) GetRevenue(ctx echo.Context) error {
	overview, err := c.accounts.Revenue(ctx.Request().Context())
	if err != nil {
		return respondError(ctx, err)
	}
	return ok(ctx, "Revenue overview retrieved successfully", overview)
}
