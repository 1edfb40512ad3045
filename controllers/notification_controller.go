package controllers

import (
	"net/http"

	"github.com/HSouheill/partner_marketplace/logger"
	"github.com/HSouheill/partner_marketplace/middleware"
	"github.com/HSouheill/partner_marketplace/models"
	"github.com/HSouheill/partner_marketplace/websocket"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationController opens the real-time notification socket. Browsers
// cannot set headers on the upgrade request, so the token comes as ?token=.
type NotificationController struct {
	hub       *websocket.Hub
	jwtSecret string
}

func NewNotificationController(hub *websocket.Hub, jwtSecret string) *NotificationController {
	return &NotificationController{hub: hub, jwtSecret: jwtSecret}
}

func (nc *NotificationController) Connect(c echo.Context) error {
	claims, err := middleware.ParseToken(nc.jwtSecret, c.QueryParam("token"))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{Success: false, Message: "Please provide valid credentials"})
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{Success: false, Message: "Invalid user ID in token"})
	}
	if err := websocket.HandleWebSocket(c, nc.hub, userID); err != nil {
		logger.Log.WithError(err).WithField("userId", userID.Hex()).Warn("WebSocket upgrade failed")
		return nil
	}
	return nil
}
