package controllers

import (
	"errors"
	"net/http"

	"github.com/HSouheill/partner_marketplace/logger"
	"github.com/HSouheill/partner_marketplace/middleware"
	"github.com/HSouheill/partner_marketplace/models"
	"github.com/HSouheill/partner_marketplace/services"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CustomValidator is a custom validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// ErrorResponse is the envelope of a failed request. Details carry
// reconciliation data for gateway failures.
type ErrorResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// respondError maps a service error to its HTTP status and envelope.
func respondError(ctx echo.Context, err error) error {
	var se *services.Error
	if !errors.As(err, &se) {
		logger.Log.WithFields(logrus.Fields{
			"method": ctx.Request().Method,
			"path":   ctx.Request().URL.Path,
		}).WithError(err).Error("Request failed")
		return ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Success: false,
			Message: "Internal server error",
		})
	}

	status := se.Kind.HTTPStatus()
	body := ErrorResponse{Success: false, Message: se.Message}
	switch se.Kind {
	case services.KindExternal:
		body.Details = se.Details
		logger.Log.WithError(se).WithFields(logrus.Fields(se.Details)).Error("External service failure")
	case services.KindIntegrity, services.KindInternal:
		logger.Log.WithError(se).Error("Request failed")
		body.Message = "Internal server error"
	}
	return ctx.JSON(status, body)
}

func badRequest(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusBadRequest, models.Response{Success: false, Message: message})
}

// bindAndValidate decodes the JSON body into v and runs its validate tags.
// When it reports false the 400 response has already been written.
func bindAndValidate(ctx echo.Context, v interface{}) (bool, error) {
	if err := ctx.Bind(v); err != nil {
		return false, badRequest(ctx, "Invalid request body")
	}
	if err := ctx.Validate(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return false, badRequest(ctx, "Invalid field: "+verrs[0].Field())
		}
		return false, badRequest(ctx, "Invalid request")
	}
	return true, nil
}

// callerID returns the authenticated user id or writes a 401.
func callerID(ctx echo.Context) (primitive.ObjectID, bool, error) {
	id, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		return primitive.NilObjectID, false, ctx.JSON(http.StatusUnauthorized, models.Response{
			Success: false,
			Message: "Unauthorized",
		})
	}
	return id, true, nil
}

func ok(ctx echo.Context, message string, data interface{}) error {
	return ctx.JSON(http.StatusOK, models.Response{Success: true, Message: message, Data: data})
}
