package models

// Razorpay webhook events that settle a booking
const (
	EventPaymentCaptured = "payment.captured"
	EventOrderPaid       = "order.paid"
)

type CreateOrderRequest struct {
	BookingID string `json:"bookingId" validate:"required"`
}

type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
}

// GatewayOrder is the subset of a Razorpay order the core needs
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// GatewayRefund is the subset of a Razorpay refund the core needs
type GatewayRefund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// WebhookEvent is the envelope of a Razorpay webhook delivery
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Amount  int64  `json:"amount"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// CreateOrderResponse is returned to the client to open the checkout
type CreateOrderResponse struct {
	Order *GatewayOrder `json:"order"`
	KeyID string        `json:"keyId"`
}

// SettlementResult describes the outcome of a settlement attempt
type SettlementResult struct {
	Booking          *Booking `json:"booking"`
	AlreadyProcessed bool     `json:"alreadyProcessed"`
}
