package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/HSouheill/partner_marketplace/config"
	"github.com/HSouheill/partner_marketplace/logger"
	"github.com/HSouheill/partner_marketplace/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrInvalidSignature is returned when a gateway signature does not match.
var ErrInvalidSignature = errors.New("invalid signature")

// PaymentGateway is the payment provider the settlement flows talk to.
type PaymentGateway interface {
	Enabled() bool
	KeyID() string
	CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (*models.GatewayOrder, error)
	// VerifyPayment checks the checkout signature over "orderId|paymentId".
	VerifyPayment(orderID, paymentID, signature string) error
	// VerifyWebhook checks the webhook signature over the raw body. Without a
	// webhook secret every delivery is rejected with ErrWebhookNotConfigured.
	VerifyWebhook(body []byte, signature string) error
	Refund(ctx context.Context, paymentID string, amountPaise int64, receipt string) (*models.GatewayRefund, error)
}

// RazorpayService handles interactions with the Razorpay REST API
type RazorpayService struct {
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret string
	client        *http.Client
}

// NewRazorpayService creates a new Razorpay client from configuration
func NewRazorpayService(cfg config.App) *RazorpayService {
	if cfg.RazorpayKeyID == "" || cfg.RazorpayKeySecret == "" {
		fields := logrus.Fields{
			"RAZORPAY_KEY_ID":     cfg.RazorpayKeyID != "",
			"RAZORPAY_KEY_SECRET": cfg.RazorpayKeySecret != "",
		}
		logger.Log.WithFields(fields).Warn("Razorpay credentials not fully configured, payments disabled")
	} else {
		logger.Log.WithFields(logrus.Fields{
			"baseURL":       cfg.RazorpayBaseURL,
			"keyID":         cfg.RazorpayKeyID,
			"webhookSecret": cfg.RazorpayWebhookSecret != "",
		}).Info("Razorpay service configured")
	}

	return &RazorpayService{
		baseURL:       strings.TrimRight(cfg.RazorpayBaseURL, "/"),
		keyID:         cfg.RazorpayKeyID,
		keySecret:     cfg.RazorpayKeySecret,
		webhookSecret: cfg.RazorpayWebhookSecret,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *RazorpayService) Enabled() bool {
	return s.keyID != "" && s.keySecret != ""
}

func (s *RazorpayService) KeyID() string {
	return s.keyID
}

func (s *RazorpayService) CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (*models.GatewayOrder, error) {
	payload := map[string]interface{}{
		"amount":   amountPaise,
		"currency": currency,
		"receipt":  receipt,
	}
	var order models.GatewayOrder
	if err := s.makeRequest(ctx, http.MethodPost, "/orders", payload, &order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &order, nil
}

func (s *RazorpayService) Refund(ctx context.Context, paymentID string, amountPaise int64, receipt string) (*models.GatewayRefund, error) {
	payload := map[string]interface{}{
		"amount":  amountPaise,
		"receipt": receipt,
	}
	var refund models.GatewayRefund
	if err := s.makeRequest(ctx, http.MethodPost, "/payments/"+paymentID+"/refund", payload, &refund); err != nil {
		return nil, fmt.Errorf("refund payment %s: %w", paymentID, err)
	}
	return &refund, nil
}

func (s *RazorpayService) VerifyPayment(orderID, paymentID, signature string) error {
	if !s.Enabled() {
		return ErrPaymentsDisabled
	}
	if !validSignature([]byte(orderID+"|"+paymentID), s.keySecret, signature) {
		return ErrInvalidSignature
	}
	return nil
}

func (s *RazorpayService) VerifyWebhook(body []byte, signature string) error {
	if s.webhookSecret == "" {
		return ErrWebhookNotConfigured
	}
	if !validSignature(body, s.webhookSecret, signature) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of message under secret.
func Sign(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(message []byte, secret, signature string) bool {
	if signature == "" {
		return false
	}
	expected := Sign(message, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// gatewayError is the error envelope Razorpay answers with
type gatewayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// makeRequest performs an authenticated request and decodes the JSON answer
func (s *RazorpayService) makeRequest(ctx context.Context, method, endpoint string, payload, out interface{}) error {
	if !s.Enabled() {
		return ErrPaymentsDisabled
	}

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	req.SetBasicAuth(s.keyID, s.keySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)

	log := logger.Log.WithFields(logrus.Fields{
		"method":    method,
		"endpoint":  endpoint,
		"requestId": requestID,
	})
	log.Debug("Razorpay API request")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	log.WithField("status", resp.StatusCode).Debug("Razorpay API response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ge gatewayError
		if json.Unmarshal(respBody, &ge) == nil && ge.Error.Description != "" {
			return fmt.Errorf("razorpay %d %s: %s", resp.StatusCode, ge.Error.Code, ge.Error.Description)
		}
		return fmt.Errorf("razorpay returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
