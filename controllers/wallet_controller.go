package controllers

import (
	"github.com/HSouheill/partner_marketplace/models"
	"github.com/HSouheill/partner_marketplace/services"
	"github.com/labstack/echo/v4"
)

type WalletController struct {
	wallets *services.WalletService
}

func NewWalletController(wallets *services.WalletService) *WalletController {
	return &WalletController{wallets: wallets}
}

func (c *WalletController) GetWallet(ctx echo.Context) error {
	userID, authed, err := callerID(ctx)
	if !authed {
		return err
	}
	w, err := c.wallets.Get(ctx.Request().Context(), userID)
	if err != nil {
		return respondError(ctx, err)
	}
	return ok(ctx, "Wallet retrieved successfully", w)
}

func (c *WalletController) Transfer(ctx echo.Context) error {
	userID, authed, err := callerID(ctx)
	if !authed {
		return err
	}
	var request models.WalletTransferRequest
	if valid, err := bindAndValidate(ctx, &request); !valid {
		return err
	}
	w, err := c.wallets.Transfer(ctx.Request().Context(), userID, request)
	if err != nil {
		return respondError(ctx, err)
	}
	return ok(ctx, "Transfer completed successfully", w)
}

func (c *WalletController) Withdraw(ctx echo.Context) error {
	userID, authed, err := callerID(ctx)
	if !authed {
		return err
	}
	var request models.WalletWithdrawRequest
	if valid, err := bindAndValidate(ctx, &request); !valid {
		return err
	}
	w, err := c.wallets.Withdraw(ctx.Request().Context(), userID, request)
	if err != nil {
		return respondError(ctx, err)
	}
	return ok(ctx, "Withdrawal recorded successfully", w)
}
