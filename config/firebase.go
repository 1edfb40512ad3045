package config

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/HSouheill/partner_marketplace/logger"
	"google.golang.org/api/option"
)

// InitMessaging initializes the Firebase Admin SDK and returns an FCM client.
// It returns nil, nil when no credentials are configured.
func InitMessaging(ctx context.Context, cfg App) (*messaging.Client, error) {
	var opt option.ClientOption

	// Check for base64 encoded credentials first
	switch {
	case cfg.FirebaseCredentialsBase64 != "":
		logger.Log.Info("Using Firebase credentials from base64 environment variable")
		decoded, err := base64.StdEncoding.DecodeString(cfg.FirebaseCredentialsBase64)
		if err != nil {
			return nil, fmt.Errorf("decode firebase credentials: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
	case cfg.FirebaseCredentialsFile != "":
		if _, err := os.Stat(cfg.FirebaseCredentialsFile); err != nil {
			return nil, fmt.Errorf("firebase credentials file: %w", err)
		}
		logger.Log.Infof("Using Firebase credentials file: %s", cfg.FirebaseCredentialsFile)
		opt = option.WithCredentialsFile(cfg.FirebaseCredentialsFile)
	default:
		logger.Log.Warn("Firebase credentials not configured, push notifications disabled")
		return nil, nil
	}

	var fbConfig *firebase.Config
	if cfg.FirebaseProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, opt)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase messaging: %w", err)
	}
	return client, nil
}
