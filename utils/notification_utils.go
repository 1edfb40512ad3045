package utils

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"github.com/HSouheill/partner_marketplace/config"
	"gopkg.in/gomail.v2"
)

// Mailer sends plain-text e-mail over SMTP
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewMailer returns nil when SMTP is not configured
func NewMailer(cfg config.App) *Mailer {
	if cfg.SMTPHost == "" {
		return nil
	}
	from := cfg.SMTPFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	return &Mailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   from,
	}
}

// Send delivers one message
func (m *Mailer) Send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

// SendPush delivers an FCM notification to one device token
func SendPush(ctx context.Context, client *messaging.Client, token, title, body string, data map[string]string) error {
	if token == "" {
		return fmt.Errorf("no FCM token")
	}
	fcmMessage := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: title,
						Body:  body,
					},
					Sound: "default",
				},
			},
		},
	}

	if _, err := client.Send(ctx, fcmMessage); err != nil {
		return fmt.Errorf("send FCM message: %w", err)
	}
	return nil
}

// StringifyData flattens notification data into FCM's string map
func StringifyData(data map[string]interface{}) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = fmt.Sprint(v)
	}
	return out
}
