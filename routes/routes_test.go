package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/partner_marketplace/config"
	"github.com/HSouheill/partner_marketplace/controllers"
	"github.com/HSouheill/partner_marketplace/middleware"
	"github.com/HSouheill/partner_marketplace/models"
	"github.com/HSouheill/partner_marketplace/repositories/memory"
	"github.com/HSouheill/partner_marketplace/services"
	"github.com/HSouheill/partner_marketplace/websocket"
)

const (
	jwtSecret     = "routes-test-secret"
	keySecret     = "rzp_secret"
	webhookSecret = "rzp_webhook_secret"
)

// fakeRazorpay answers the two gateway endpoints the API calls.
type fakeRazorpay struct {
	mu      sync.Mutex
	orders  int
	refunds []string
}

func (f *fakeRazorpay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var payload struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Receipt  string `json:"receipt"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/orders":
		f.orders++
		_ = json.NewEncoder(w).Encode(models.GatewayOrder{
			ID:       fmt.Sprintf("order_%d", f.orders),
			Amount:   payload.Amount,
			Currency: payload.Currency,
			Receipt:  payload.Receipt,
			Status:   "created",
		})
	case strings.HasPrefix(r.URL.Path, "/payments/") && strings.HasSuffix(r.URL.Path, "/refund"):
		paymentID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/payments/"), "/refund")
		f.refunds = append(f.refunds, paymentID)
		_ = json.NewEncoder(w).Encode(models.GatewayRefund{
			ID:        fmt.Sprintf("rfnd_%d", len(f.refunds)),
			PaymentID: paymentID,
			Amount:    payload.Amount,
			Status:    "processed",
		})
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"unknown endpoint"}}`))
	}
}

type apiEnv struct {
	e       *echo.Echo
	store   *memory.Store
	gateway *fakeRazorpay

	userToken    string
	partnerToken string
	adminToken   string
	partner      *models.Partner
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	ctx := context.Background()

	gw := &fakeRazorpay{}
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)

	store := memory.NewStore()
	cfg := config.App{
		RazorpayKeyID:         "rzp_test_key",
		RazorpayKeySecret:     keySecret,
		RazorpayWebhookSecret: webhookSecret,
		RazorpayBaseURL:       srv.URL,
		Currency:              "INR",
	}

	notifier := services.NewFanoutNotifier(store.Notifications, store.Users)
	locker := services.NewLocalLocker()
	commission, err := services.NewCommissionEngine(0.10, 0.20)
	if err != nil {
		t.Fatalf("commission engine: %v", err)
	}
	gateway := services.NewRazorpayService(cfg)
	earnings := services.NewEarningsService(store.Earnings, store.Partners, store.Bookings)
	refunds := services.NewRefundService(store.Bookings, gateway, earnings)
	bookings := services.NewBookingService(store.Bookings, store.Partners, store.Users, refunds, locker, notifier)
	payments := services.NewPaymentService(store.Bookings, store.Partners, store.Users, gateway, commission, earnings, locker, notifier, cfg.Currency)
	withdrawals := services.NewWithdrawalService(store.Withdrawals, store.Earnings, store.Partners, notifier)
	wallets := services.NewWalletService(store.Wallets, store.Users, notifier)
	accounts := services.NewAccountService(store.Users, store.Partners, store.Bookings, store.Notifications, store.Reports)

	e := echo.New()
	e.Validator = controllers.NewValidator()
	SetupRoutes(e, jwtSecret, Controllers{
		Bookings:      controllers.NewBookingController(bookings),
		Payments:      controllers.NewPaymentController(payments),
		Earnings:      controllers.NewEarningsController(earnings, withdrawals),
		Admin:         controllers.NewAdminController(accounts, withdrawals),
		Wallet:        controllers.NewWalletController(wallets),
		Users:         controllers.NewUserController(accounts),
		Notifications: controllers.NewNotificationController(websocket.NewHub(), jwtSecret),
	})

	env := &apiEnv{e: e, store: store, gateway: gw}
	token := func(u *models.User) string {
		if err := store.Users.Insert(ctx, u); err != nil {
			t.Fatalf("insert user: %v", err)
		}
		tok, err := middleware.GenerateJWT(jwtSecret, u.ID.Hex(), u.Email, u.Role, time.Hour)
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		return tok
	}
	env.userToken = token(&models.User{Name: "Asha", Email: "asha@example.com", Role: models.RoleUser})
	partnerUser := &models.User{Name: "Ravi", Email: "ravi@example.com", Role: models.RolePartner}
	env.partnerToken = token(partnerUser)
	env.adminToken = token(&models.User{Name: "Admin", Email: "admin@example.com", Role: models.RoleAdmin})

	env.partner = &models.Partner{UserID: partnerUser.ID, HourlyRate: 500, ApprovalStatus: models.ApprovalApproved}
	if err := store.Partners.Insert(ctx, env.partner); err != nil {
		t.Fatalf("insert partner: %v", err)
	}
	return env
}

func (env *apiEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Data    T      `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return envelope.Data
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, want, rec.Body.String())
	}
}

func sign(message, secret string) string {
	return services.Sign([]byte(message), secret)
}

// bookAndPay creates a booking a week out and settles it through checkout.
func (env *apiEnv) bookAndPay(t *testing.T, paymentID string) models.Booking {
	t.Helper()
	rec := env.do(http.MethodPost, "/api/bookings", env.userToken, models.BookingRequest{
		PartnerID: env.partner.ID.Hex(),
		Date:      time.Now().AddDate(0, 0, 7).Format("2006-01-02"),
		StartTime: "14:00",
		EndTime:   "16:00",
	})
	expectStatus(t, rec, http.StatusCreated)
	booking := decode[models.Booking](t, rec)

	rec = env.do(http.MethodPost, "/api/payments/create-order", env.userToken, models.CreateOrderRequest{BookingID: booking.ID.Hex()})
	expectStatus(t, rec, http.StatusOK)
	order := decode[models.CreateOrderResponse](t, rec)
	if order.Order.Amount != 100000 {
		t.Fatalf("order amount = %d paise, want 100000", order.Order.Amount)
	}

	rec = env.do(http.MethodPost, "/api/payments/verify", env.userToken, models.VerifyPaymentRequest{
		RazorpayOrderID:   order.Order.ID,
		RazorpayPaymentID: paymentID,
		RazorpaySignature: sign(order.Order.ID+"|"+paymentID, keySecret),
	})
	expectStatus(t, rec, http.StatusOK)
	result := decode[models.SettlementResult](t, rec)
	if result.Booking.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want paid", result.Booking.PaymentStatus)
	}
	return *result.Booking
}

func TestHealth(t *testing.T) {
	env := newAPIEnv(t)
	expectStatus(t, env.do(http.MethodGet, "/health", "", nil), http.StatusOK)
}

func TestAuthBoundaries(t *testing.T) {
	env := newAPIEnv(t)
	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token", http.MethodGet, "/api/bookings/me", "", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/api/bookings/me", "junk", http.StatusUnauthorized},
		{"user lists own bookings", http.MethodGet, "/api/bookings/me", env.userToken, http.StatusOK},
		{"user on admin route", http.MethodGet, "/api/admin/revenue", env.userToken, http.StatusForbidden},
		{"partner on admin route", http.MethodGet, "/api/admin/withdrawals", env.partnerToken, http.StatusForbidden},
		{"admin revenue", http.MethodGet, "/api/admin/revenue", env.adminToken, http.StatusOK},
		{"user on partner earnings", http.MethodGet, "/api/earnings/partner", env.userToken, http.StatusForbidden},
		{"partner earnings", http.MethodGet, "/api/earnings/partner", env.partnerToken, http.StatusOK},
		{"unknown booking", http.MethodGet, "/api/bookings/" + env.partner.ID.Hex(), env.userToken, http.StatusNotFound},
		{"malformed booking id", http.MethodGet, "/api/bookings/nope", env.userToken, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, env.do(tt.method, tt.path, tt.token, nil), tt.want)
		})
	}
}

func TestCheckoutCancelRefund(t *testing.T) {
	env := newAPIEnv(t)
	booking := env.bookAndPay(t, "pay_1")

	rec := env.do(http.MethodGet, "/api/earnings/partner", env.partnerToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if view := decode[models.EarningsView](t, rec); view.TotalEarnings != 800 || view.AvailableBalance != 800 {
		t.Fatalf("earnings after payment = %+v", view)
	}

	rec = env.do(http.MethodGet, "/api/bookings/"+booking.ID.Hex()+"/receipt", env.userToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/pdf" {
		t.Errorf("receipt content type = %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Error("receipt is not a PDF")
	}

	rec = env.do(http.MethodPatch, "/api/bookings/"+booking.ID.Hex()+"/cancel", env.userToken, nil)
	expectStatus(t, rec, http.StatusOK)
	cancelled := decode[models.Booking](t, rec)
	if cancelled.Status != models.BookingStatusCancelled || cancelled.PaymentStatus != models.PaymentStatusRefunded {
		t.Fatalf("cancelled booking = %s/%s", cancelled.Status, cancelled.PaymentStatus)
	}
	if len(env.gateway.refunds) != 1 || env.gateway.refunds[0] != "pay_1" {
		t.Fatalf("refunds = %v", env.gateway.refunds)
	}

	rec = env.do(http.MethodGet, "/api/earnings/partner", env.partnerToken, nil)
	if view := decode[models.EarningsView](t, rec); view.TotalEarnings != 0 || view.AvailableBalance != 0 {
		t.Fatalf("earnings after refund = %+v", view)
	}

	// A second cancel is a conflict, not a second refund
	expectStatus(t, env.do(http.MethodPatch, "/api/bookings/"+booking.ID.Hex()+"/cancel", env.userToken, nil), http.StatusConflict)
	if len(env.gateway.refunds) != 1 {
		t.Fatalf("refund issued twice: %v", env.gateway.refunds)
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	env := newAPIEnv(t)
	rec := env.do(http.MethodPost, "/api/bookings", env.userToken, models.BookingRequest{
		PartnerID: env.partner.ID.Hex(),
		Date:      time.Now().AddDate(0, 0, 3).Format("2006-01-02"),
		StartTime: "10:00",
		EndTime:   "11:00",
	})
	expectStatus(t, rec, http.StatusCreated)
	booking := decode[models.Booking](t, rec)

	rec = env.do(http.MethodPost, "/api/payments/create-order", env.userToken, models.CreateOrderRequest{BookingID: booking.ID.Hex()})
	expectStatus(t, rec, http.StatusOK)
	order := decode[models.CreateOrderResponse](t, rec)

	rec = env.do(http.MethodPost, "/api/payments/verify", env.userToken, models.VerifyPaymentRequest{
		RazorpayOrderID:   order.Order.ID,
		RazorpayPaymentID: "pay_forged",
		RazorpaySignature: sign(order.Order.ID+"|pay_forged", "wrong"),
	})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = env.do(http.MethodGet, "/api/bookings/"+booking.ID.Hex(), env.userToken, nil)
	if b := decode[models.Booking](t, rec); b.PaymentStatus != models.PaymentStatusUnpaid {
		t.Fatalf("payment status = %s after forged verify", b.PaymentStatus)
	}
}

func TestWebhook(t *testing.T) {
	env := newAPIEnv(t)
	booking := env.bookAndPay(t, "pay_1")

	post := func(body []byte, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("X-Razorpay-Signature", signature)
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)
		return rec
	}
	body := []byte(fmt.Sprintf(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":%q,"amount":100000,"status":"captured"}}}}`,
		booking.RazorpayOrderID))

	t.Run("bad signature", func(t *testing.T) {
		expectStatus(t, post(body, "deadbeef"), http.StatusBadRequest)
	})
	t.Run("redelivery after verify is acknowledged", func(t *testing.T) {
		expectStatus(t, post(body, sign(string(body), webhookSecret)), http.StatusOK)
		rec := env.do(http.MethodGet, "/api/earnings/partner", env.partnerToken, nil)
		if view := decode[models.EarningsView](t, rec); view.TotalEarnings != 800 {
			t.Fatalf("earnings credited twice: %+v", view)
		}
	})
	t.Run("unknown order is acknowledged", func(t *testing.T) {
		other := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_9","order_id":"order_missing"}}}}`)
		expectStatus(t, post(other, sign(string(other), webhookSecret)), http.StatusOK)
	})
}

func TestReportUser(t *testing.T) {
	env := newAPIEnv(t)
	booking := env.bookAndPay(t, "pay_1")
	reporter, err := env.store.Users.FindByEmail(context.Background(), "asha@example.com")
	if err != nil {
		t.Fatal(err)
	}
	partnerUserID := env.partner.UserID.Hex()
	reason := "Partner arrived an hour late"

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"missing reason", map[string]string{"reportedUserId": partnerUserID}, http.StatusBadRequest},
		{"missing user", map[string]string{"reason": reason}, http.StatusBadRequest},
		{"self report", models.ReportUserRequest{ReportedUserID: reporter.ID.Hex(), Reason: reason}, http.StatusBadRequest},
		{"unknown user", models.ReportUserRequest{ReportedUserID: booking.ID.Hex(), Reason: reason}, http.StatusNotFound},
		{"unknown booking", models.ReportUserRequest{ReportedUserID: partnerUserID, Reason: reason, BookingID: reporter.ID.Hex()}, http.StatusNotFound},
		{"filed", models.ReportUserRequest{ReportedUserID: partnerUserID, Reason: reason, BookingID: booking.ID.Hex()}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, env.do(http.MethodPost, "/api/users/report", env.userToken, tt.body), tt.want)
		})
	}

	expectStatus(t, env.do(http.MethodPost, "/api/users/report", "", models.ReportUserRequest{ReportedUserID: partnerUserID, Reason: reason}), http.StatusUnauthorized)

	rec := env.do(http.MethodGet, "/api/users/reports", env.userToken, nil)
	expectStatus(t, rec, http.StatusOK)
	list := decode[[]models.Report](t, rec)
	if len(list) != 1 || list[0].Status != models.ReportPending || list[0].BookingID == nil || *list[0].BookingID != booking.ID {
		t.Fatalf("reports = %+v", list)
	}
}

func TestWithdrawalLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	env.bookAndPay(t, "pay_1")

	rec := env.do(http.MethodPost, "/api/earnings/withdrawal", env.partnerToken, models.WithdrawalCreateRequest{Amount: 900, UpiID: "ravi@upi"})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = env.do(http.MethodPost, "/api/earnings/withdrawal", env.partnerToken, models.WithdrawalCreateRequest{Amount: 500, UpiID: "ravi@upi"})
	expectStatus(t, rec, http.StatusCreated)
	w := decode[models.WithdrawalRequest](t, rec)

	rec = env.do(http.MethodGet, "/api/admin/withdrawals?status=pending", env.adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if list := decode[[]models.WithdrawalRequest](t, rec); len(list) != 1 {
		t.Fatalf("pending withdrawals = %d, want 1", len(list))
	}

	path := "/api/admin/withdrawals/" + w.ID.Hex()
	expectStatus(t, env.do(http.MethodPatch, path, env.adminToken, models.WithdrawalResolveRequest{Status: models.WithdrawalPaid}), http.StatusOK)
	expectStatus(t, env.do(http.MethodPatch, path, env.adminToken, models.WithdrawalResolveRequest{Status: models.WithdrawalRejected}), http.StatusBadRequest)

	rec = env.do(http.MethodGet, "/api/earnings/partner", env.partnerToken, nil)
	view := decode[models.EarningsView](t, rec)
	if view.TotalEarnings != 800 || view.TotalWithdrawn != 500 || view.AvailableBalance != 300 || view.PendingWithdrawals != 0 {
		t.Fatalf("earnings after payout = %+v", view)
	}
}

func TestRequestValidation(t *testing.T) {
	env := newAPIEnv(t)
	tests := []struct {
		name string
		path string
		body interface{}
	}{
		{"booking without partner", "/api/bookings", map[string]string{"date": "2030-01-01", "startTime": "10:00", "endTime": "11:00"}},
		{"verify without signature", "/api/payments/verify", map[string]string{"razorpay_order_id": "order_1", "razorpay_payment_id": "pay_1"}},
		{"transfer to invalid email", "/api/wallet/transfer", map[string]interface{}{"recipientEmail": "nobody", "amount": 10}},
		{"block self without id", "/api/users/block", map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, env.do(http.MethodPost, tt.path, env.userToken, tt.body), http.StatusBadRequest)
		})
	}
}
