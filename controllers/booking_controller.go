package controllers

import (
	"fmt"
	"net/http"

	"github.com/HSouheill/partner_marketplace/middleware"
	"github.com/HSouheill/partner_marketplace/models"
	"github.com/HSouheill/partner_marketplace/services"
	"github.com/labstack/echo/v4"
)

// BookingController handles booking-related API endpoints
type BookingController struct {
	bookings *services.BookingService
}

// NewBookingController creates a new booking controller
func NewBookingController(bookings *services.BookingService) *BookingController {
	return &BookingController{bookings: bookings}
}

// CreateBooking handles the creation of a new booking
func (c *BookingController) CreateBooking(ctx echo.Context) error {
	userID, authed, err := callerID(ctx)
	if !authed {
		return err
	}
	var request models.BookingRequest
	if valid, err := bindAndValidate(ctx, &request); !valid {
		return err
	}

	booking, err := c.bookings.Create(ctx.Request().Context(), userID, request)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, models.BookingResponse{
		Success: true,
		Message: "Booking created successfully",
		Data:    booking,
	})
}

// GetMyBookings returns the caller's bookings as a requester
func (c *BookingController) GetMyBookings(ctx echo.Context) error {
	userID, authed, err := callerID(ctx)
	if !authed {
		return err
	}
	bookings, err := c.bookings.ListMine(ctx.Request().Context(), userID)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, models.BookingsResponse{
		Success: true,
		Message: "Bookings retrieved successfully",
		Count:   len(bookings),
		Data:    bookings,
	})
}

// GetPartnerBookings returns bookings of the caller's partner profile,
// optionally filtered with ?status=
func (c *BookingController) GetPartnerBookings(ctx echo.Context) error {
	userID, authed, err := callerID(ctx)
	if !authed {
		return err
	}
	bookings, err := c.bookings.ListForPartner(ctx.Request().Context(), userID, ctx.QueryParam("status"))
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, models.BookingsResponse{
		Success: true,
		Message: "Bookings retrieved successfully",
		Count:   len(bookings),
		Data:    bookings,
	})
}

func (c *BookingController) GetBooking(ctx echo.Context) error {
	actor, authed, err := actorFrom(ctx)
	if !authed {
		return err
	}
	bookingID, err := services.ParseObjectID(ctx.Param("id"), "booking")
	if err != nil {
		return respondError(ctx, err)
	}
	booking, err := c.bookings.Get(ctx.Request().Context(), actor, bookingID)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, models.BookingResponse{
		Success: true,
		Message: "Booking retrieved successfully",
		Data:    booking,
	})
}

// GetReceipt streams the PDF receipt of a paid booking
func (c *BookingController) GetReceipt(ctx echo.Context) error {
	actor, authed, err := actorFrom(ctx)
	if !authed {
		return err
	}
	bookingID, err := services.ParseObjectID(ctx.Param("id"), "booking")
	if err != nil {
		return respondError(ctx, err)
	}
	pdf, booking, err := c.bookings.Receipt(ctx.Request().Context(), actor, bookingID)
	if err != nil {
		return respondError(ctx, err)
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="receipt-%s.pdf"`, booking.ID.Hex()))
	return ctx.Blob(http.StatusOK, "application/pdf", pdf)
}

// RespondToBooking lets the partner accept or reject a booking
func (c *BookingController) RespondToBooking(ctx echo.Context) error {
	userID, authed, err := callerID(ctx)
	if !authed {
		return err
	}
	bookingID, err := services.ParseObjectID(ctx.Param("id"), "booking")
	if err != nil {
		return respondError(ctx, err)
	}
	var request models.BookingRespondRequest
	if valid, err := bindAndValidate(ctx, &request); !valid {
		return err
	}

	booking, err := c.bookings.Respond(ctx.Request().Context(), userID, bookingID, request.Action)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, models.BookingResponse{
		Success: true,
		Message: "Booking " + request.Action + "ed successfully",
		Data:    booking,
	})
}

// CancelBooking lets the requester cancel, refunding a paid booking first
func (c *BookingController) CancelBooking(ctx echo.Context) error {
	userID, authed, err := callerID(ctx)
	if !authed {
		return err
	}
	bookingID, err := services.ParseObjectID(ctx.Param("id"), "booking")
	if err != nil {
		return respondError(ctx, err)
	}
	booking, err := c.bookings.Cancel(ctx.Request().Context(), userID, bookingID)
	if err != nil {
		return respondError(ctx, err)
	}
	message := "Booking cancelled successfully"
	if booking.PaymentStatus == models.PaymentStatusRefunded {
		message = "Booking cancelled and payment refunded"
	}
	return ctx.JSON(http.StatusOK, models.BookingResponse{Success: true, Message: message, Data: booking})
}

// CompleteBooking lets the partner mark a confirmed booking as done
func (c *BookingController) CompleteBooking(ctx echo.Context) error {
	userID, authed, err := callerID(ctx)
	if !authed {
		return err
	}
	bookingID, err := services.ParseObjectID(ctx.Param("id"), "booking")
	if err != nil {
		return respondError(ctx, err)
	}
	booking, err := c.bookings.Complete(ctx.Request().Context(), userID, bookingID)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, models.BookingResponse{
		Success: true,
		Message: "Booking completed successfully",
		Data:    booking,
	})
}

func actorFrom(ctx echo.Context) (services.Actor, bool, error) {
	userID, authed, err := callerID(ctx)
	if !authed {
		return services.Actor{}, false, err
	}
	return services.Actor{UserID: userID, Role: middleware.ExtractRole(ctx)}, true, nil
}
