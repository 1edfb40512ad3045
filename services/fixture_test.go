package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/HSouheill/partner_marketplace/models"
	"github.com/HSouheill/partner_marketplace/repositories/memory"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	testKeySecret     = "key_secret"
	testWebhookSecret = "webhook_secret"
)

// fakeGateway mimics Razorpay with the same signature scheme.
type fakeGateway struct {
	mu        sync.Mutex
	disabled  bool
	orders    int
	refunds   []string
	refundErr error
	orderErr  error
}

func (g *fakeGateway) Enabled() bool { return !g.disabled }

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) CreateOrder(_ context.Context, amountPaise int64, currency, receipt string) (*models.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	g.orders++
	return &models.GatewayOrder{
		ID:       fmt.Sprintf("order_%d", g.orders),
		Amount:   amountPaise,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

func (g *fakeGateway) VerifyPayment(orderID, paymentID, signature string) error {
	if !validSignature([]byte(orderID+"|"+paymentID), testKeySecret, signature) {
		return ErrInvalidSignature
	}
	return nil
}

func (g *fakeGateway) VerifyWebhook(body []byte, signature string) error {
	if !validSignature(body, testWebhookSecret, signature) {
		return ErrInvalidSignature
	}
	return nil
}

func (g *fakeGateway) Refund(_ context.Context, paymentID string, amountPaise int64, _ string) (*models.GatewayRefund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	g.refunds = append(g.refunds, paymentID)
	return &models.GatewayRefund{
		ID:        fmt.Sprintf("rfnd_%d", len(g.refunds)),
		PaymentID: paymentID,
		Amount:    amountPaise,
		Status:    "processed",
	}, nil
}

func (g *fakeGateway) refundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.refunds)
}

type sentNotification struct {
	UserID primitive.ObjectID
	Type   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, userID primitive.ObjectID, notifType, _, _ string, _ map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Type: notifType})
}

func (n *recordingNotifier) count(userID primitive.ObjectID, notifType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.UserID == userID && s.Type == notifType {
			c++
		}
	}
	return c
}

// failingLedger wraps a ledger and fails the first N credits.
type failingLedger struct {
	EarningsLedger
	mu       sync.Mutex
	failures int
}

func (l *failingLedger) ApplyCredit(ctx context.Context, partnerID, bookingID primitive.ObjectID, amount float64) error {
	l.mu.Lock()
	if l.failures > 0 {
		l.failures--
		l.mu.Unlock()
		return errors.New("ledger unavailable")
	}
	l.mu.Unlock()
	return l.EarningsLedger.ApplyCredit(ctx, partnerID, bookingID, amount)
}

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// testEnv wires every service over one in-memory store.
type testEnv struct {
	store    *memory.Store
	gateway  *fakeGateway
	notifier *recordingNotifier

	earnings    *EarningsService
	refunds     *RefundService
	bookings    *BookingService
	payments    *PaymentService
	withdrawals *WithdrawalService
	wallets     *WalletService
	accounts    *AccountService

	requester   *models.User
	partnerUser *models.User
	partner     *models.Partner
	admin       *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	env := &testEnv{
		store:    memory.NewStore(),
		gateway:  &fakeGateway{},
		notifier: &recordingNotifier{},
	}
	st := env.store

	commission, err := NewCommissionEngine(0.10, 0.20)
	if err != nil {
		t.Fatalf("commission engine: %v", err)
	}
	locker := NewLocalLocker()

	env.earnings = NewEarningsService(st.Earnings, st.Partners, st.Bookings)
	env.refunds = NewRefundService(st.Bookings, env.gateway, env.earnings)
	env.refunds.Now = fixedClock
	env.bookings = NewBookingService(st.Bookings, st.Partners, st.Users, env.refunds, locker, env.notifier)
	env.bookings.Now = fixedClock
	env.payments = NewPaymentService(st.Bookings, st.Partners, st.Users, env.gateway, commission, env.earnings, locker, env.notifier, "INR")
	env.payments.Now = fixedClock
	env.withdrawals = NewWithdrawalService(st.Withdrawals, st.Earnings, st.Partners, env.notifier)
	env.withdrawals.Now = fixedClock
	env.wallets = NewWalletService(st.Wallets, st.Users, env.notifier)
	env.accounts = NewAccountService(st.Users, st.Partners, st.Bookings, st.Notifications, st.Reports)

	env.requester = &models.User{Name: "Asha", Email: "asha@example.com", Role: models.RoleUser}
	env.partnerUser = &models.User{Name: "Ravi", Email: "ravi@example.com", Role: models.RolePartner}
	env.admin = &models.User{Name: "Admin", Email: "admin@example.com", Role: models.RoleAdmin}
	for _, u := range []*models.User{env.requester, env.partnerUser, env.admin} {
		if err := st.Users.Insert(ctx, u); err != nil {
			t.Fatalf("insert user: %v", err)
		}
	}
	env.partner = &models.Partner{
		UserID:         env.partnerUser.ID,
		HourlyRate:     500,
		ApprovalStatus: models.ApprovalApproved,
	}
	if err := st.Partners.Insert(ctx, env.partner); err != nil {
		t.Fatalf("insert partner: %v", err)
	}
	return env
}

func (env *testEnv) bookingRequest() models.BookingRequest {
	return models.BookingRequest{
		PartnerID: env.partner.ID.Hex(),
		Date:      "2025-03-15",
		StartTime: "14:00",
		EndTime:   "16:00",
	}
}

func (env *testEnv) createBooking(t *testing.T) *models.Booking {
	t.Helper()
	b, err := env.bookings.Create(context.Background(), env.requester.ID, env.bookingRequest())
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

// pay creates an order for b and verifies a checkout for paymentID.
func (env *testEnv) pay(t *testing.T, b *models.Booking, paymentID string) *models.Booking {
	t.Helper()
	ctx := context.Background()
	order, err := env.payments.CreateOrder(ctx, env.requester.ID, b.ID.Hex())
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	res, err := env.payments.VerifyPayment(ctx, env.requester.ID, env.verifyRequest(order.Order.ID, paymentID))
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}
	return res.Booking
}

func (env *testEnv) verifyRequest(orderID, paymentID string) models.VerifyPaymentRequest {
	return models.VerifyPaymentRequest{
		RazorpayOrderID:   orderID,
		RazorpayPaymentID: paymentID,
		RazorpaySignature: Sign([]byte(orderID+"|"+paymentID), testKeySecret),
	}
}

func (env *testEnv) webhookBody(event, orderID, paymentID string) ([]byte, string) {
	body := []byte(fmt.Sprintf(`{"event":%q,"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"amount":100000,"status":"captured"}}}}`,
		event, paymentID, orderID))
	return body, Sign(body, testWebhookSecret)
}

func (env *testEnv) ledger(t *testing.T) *models.PartnerEarnings {
	t.Helper()
	e, err := env.store.Earnings.Get(context.Background(), env.partner.ID)
	if err != nil {
		t.Fatalf("get earnings: %v", err)
	}
	if err := e.CheckInvariant(); err != nil {
		t.Fatalf("ledger invariant: %v", err)
	}
	return e
}

func assertKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error of kind %d, got nil", want)
	}
	if got := KindOf(err); got != want {
		t.Fatalf("error kind = %d, want %d (%v)", got, want, err)
	}
}
