package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/HSouheill/partner_marketplace/logger"
	"github.com/HSouheill/partner_marketplace/models"
	"github.com/HSouheill/partner_marketplace/repositories"
	"github.com/HSouheill/partner_marketplace/utils"
	"github.com/HSouheill/partner_marketplace/websocket"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notifier delivers user notifications. Delivery is best effort: failures
// are logged and never reach the caller.
type Notifier interface {
	Notify(ctx context.Context, userID primitive.ObjectID, notifType, title, message string, data map[string]interface{})
}

// Pusher is the real-time socket sink.
type Pusher interface {
	SendToUser(userID primitive.ObjectID, n websocket.Notification) error
}

// EventPublisher is the message-broker sink.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// NotificationEvent is the broker payload of a notification.
type NotificationEvent struct {
	UserID    string                 `json:"userId"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// emailTypes are the notification types also sent by e-mail.
var emailTypes = map[string]bool{
	models.NotificationWithdrawalResolved: true,
}

// FanoutNotifier stores every notification in-app and forwards it to the
// socket hub, FCM, the broker and e-mail when those sinks are configured.
type FanoutNotifier struct {
	store     repositories.NotificationRepository
	users     repositories.UserRepository
	hub       Pusher
	push      *messaging.Client
	publisher EventPublisher
	mailer    *utils.Mailer

	wg sync.WaitGroup
}

type FanoutOption func(*FanoutNotifier)

func WithPusher(p Pusher) FanoutOption { return func(n *FanoutNotifier) { n.hub = p } }

func WithFCM(c *messaging.Client) FanoutOption { return func(n *FanoutNotifier) { n.push = c } }

func WithPublisher(p EventPublisher) FanoutOption {
	return func(n *FanoutNotifier) { n.publisher = p }
}

func WithMailer(m *utils.Mailer) FanoutOption { return func(n *FanoutNotifier) { n.mailer = m } }

func NewFanoutNotifier(store repositories.NotificationRepository, users repositories.UserRepository, opts ...FanoutOption) *FanoutNotifier {
	n := &FanoutNotifier{store: store, users: users}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *FanoutNotifier) Notify(ctx context.Context, userID primitive.ObjectID, notifType, title, message string, data map[string]interface{}) {
	log := logger.Log.WithFields(logrus.Fields{
		"userId": userID.Hex(),
		"type":   notifType,
	})
	now := time.Now()

	if err := n.store.Insert(ctx, &models.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      notifType,
		Data:      data,
		CreatedAt: now,
	}); err != nil {
		log.WithError(err).Error("Failed to save notification")
	}

	if n.hub != nil {
		err := n.hub.SendToUser(userID, websocket.Notification{
			Type:    notifType,
			Title:   title,
			Message: message,
			Data:    data,
		})
		if err != nil && !errors.Is(err, websocket.ErrNotConnected) {
			log.WithError(err).Warn("Failed to send websocket notification")
		}
	}

	if n.push == nil && n.publisher == nil && (n.mailer == nil || !emailTypes[notifType]) {
		return
	}

	// Slow external sinks run after the request returns
	bg := context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(bg, 15*time.Second)
		defer cancel()
		n.external(ctx, log, userID, notifType, title, message, data, now)
	}()
}

func (n *FanoutNotifier) external(ctx context.Context, log *logrus.Entry, userID primitive.ObjectID, notifType, title, message string, data map[string]interface{}, at time.Time) {
	if n.publisher != nil {
		event := NotificationEvent{
			UserID:    userID.Hex(),
			Type:      notifType,
			Title:     title,
			Message:   message,
			Data:      data,
			CreatedAt: at,
		}
		if err := n.publisher.PublishJSON(ctx, "notification."+notifType, event); err != nil {
			log.WithError(err).Warn("Failed to publish notification event")
		}
	}

	wantMail := n.mailer != nil && emailTypes[notifType]
	if n.push == nil && !wantMail {
		return
	}
	user, err := n.users.FindByID(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("Notification recipient lookup failed")
		return
	}

	if n.push != nil && user.FCMToken != "" {
		if err := utils.SendPush(ctx, n.push, user.FCMToken, title, message, utils.StringifyData(data)); err != nil {
			log.WithError(err).Warn("Failed to send push notification")
		}
	}
	if wantMail && user.Email != "" {
		if err := n.mailer.Send(user.Email, title, message); err != nil {
			log.WithError(err).Warn("Failed to send notification email")
		}
	}
}

// Wait blocks until queued external deliveries finish.
func (n *FanoutNotifier) Wait() {
	n.wg.Wait()
}
