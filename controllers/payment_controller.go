package controllers

import (
	"io"
	"net/http"

	"github.com/HSouheill/partner_marketplace/logger"
	"github.com/HSouheill/partner_marketplace/models"
	"github.com/HSouheill/partner_marketplace/services"
	"github.com/labstack/echo/v4"
)

// maxWebhookBody bounds the webhook payload read into memory.
const maxWebhookBody = 1 << 20

// PaymentController exposes checkout and gateway webhook endpoints
type PaymentController struct {
	payments *services.PaymentService
}

func NewPaymentController(payments *services.PaymentService) *PaymentController {
	return &PaymentController{payments: payments}
}

// CreateOrder opens a gateway order for one of the caller's bookings
func (c *PaymentController) CreateOrder(ctx echo.Context) error {
	userID, authed, err := callerID(ctx)
	if !authed {
		return err
	}
	var request models.CreateOrderRequest
	if valid, err := bindAndValidate(ctx, &request); !valid {
		return err
	}
	order, err := c.payments.CreateOrder(ctx.Request().Context(), userID, request.BookingID)
	if err != nil {
		return respondError(ctx, err)
	}
	return ok(ctx, "Payment order created", order)
}

// VerifyPayment settles a booking from the checkout callback
func (c *PaymentController) VerifyPayment(ctx echo.Context) error {
	userID, authed, err := callerID(ctx)
	if !authed {
		return err
	}
	var request models.VerifyPaymentRequest
	if valid, err := bindAndValidate(ctx, &request); !valid {
		return err
	}
	result, err := c.payments.VerifyPayment(ctx.Request().Context(), userID, request)
	if err != nil {
		return respondError(ctx, err)
	}
	message := "Payment verified successfully"
	if result.AlreadyProcessed {
		message = "Payment already processed"
	}
	return ok(ctx, message, result)
}

// Webhook receives gateway events. The signature covers the raw body, so it
// is read before any decoding.
func (c *PaymentController) Webhook(ctx echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxWebhookBody))
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to read webhook body")
		return badRequest(ctx, "Invalid webhook payload")
	}
	signature := ctx.Request().Header.Get("X-Razorpay-Signature")

	if err := c.payments.HandleWebhook(ctx.Request().Context(), body, signature); err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, models.Response{Success: true, Message: "Webhook processed"})
}
