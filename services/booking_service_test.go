package services

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"
	"time"

	"github.com/HSouheill/partner_marketplace/models"
	"github.com/HSouheill/partner_marketplace/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestBookingCreate_ComputesAmount(t *testing.T) {
	env := newTestEnv(t)
	b := env.createBooking(t)

	if b.TotalAmount != 1000 {
		t.Fatalf("totalAmount = %v, want 1000", b.TotalAmount)
	}
	if b.Status != models.BookingStatusPending || b.PaymentStatus != models.PaymentStatusUnpaid {
		t.Fatalf("new booking state = %s/%s", b.Status, b.PaymentStatus)
	}
	if b.PlatformCommission != 0 || b.PartnerEarning != 0 || b.SettlementApplied {
		t.Fatalf("unpaid booking carries a split: %+v", b)
	}
	if got := env.notifier.count(env.partnerUser.ID, models.NotificationBookingCreated); got != 1 {
		t.Fatalf("booking_created notifications = %d, want 1", got)
	}
}

func TestBookingCreate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(env *testEnv, req *models.BookingRequest) primitive.ObjectID
		want   Kind
	}{
		{
			name: "end before start",
			mutate: func(env *testEnv, req *models.BookingRequest) primitive.ObjectID {
				req.StartTime, req.EndTime = "16:00", "14:00"
				return env.requester.ID
			},
			want: KindValidation,
		},
		{
			name: "same start and end",
			mutate: func(env *testEnv, req *models.BookingRequest) primitive.ObjectID {
				req.EndTime = req.StartTime
				return env.requester.ID
			},
			want: KindValidation,
		},
		{
			name: "bad clock",
			mutate: func(env *testEnv, req *models.BookingRequest) primitive.ObjectID {
				req.EndTime = "25:00"
				return env.requester.ID
			},
			want: KindValidation,
		},
		{
			name: "bad date",
			mutate: func(env *testEnv, req *models.BookingRequest) primitive.ObjectID {
				req.Date = "15/03/2025"
				return env.requester.ID
			},
			want: KindValidation,
		},
		{
			name: "past date",
			mutate: func(env *testEnv, req *models.BookingRequest) primitive.ObjectID {
				req.Date = "2025-03-09"
				return env.requester.ID
			},
			want: KindValidation,
		},
		{
			name: "unknown partner",
			mutate: func(env *testEnv, req *models.BookingRequest) primitive.ObjectID {
				req.PartnerID = primitive.NewObjectID().Hex()
				return env.requester.ID
			},
			want: KindNotFound,
		},
		{
			name: "self booking",
			mutate: func(env *testEnv, req *models.BookingRequest) primitive.ObjectID {
				return env.partnerUser.ID
			},
			want: KindValidation,
		},
		{
			name: "requester blocked partner",
			mutate: func(env *testEnv, req *models.BookingRequest) primitive.ObjectID {
				if err := env.store.Users.AddBlockedUser(context.Background(), env.requester.ID, env.partnerUser.ID); err != nil {
					panic(err)
				}
				return env.requester.ID
			},
			want: KindForbidden,
		},
		{
			name: "partner blocked requester",
			mutate: func(env *testEnv, req *models.BookingRequest) primitive.ObjectID {
				if err := env.store.Users.AddBlockedUser(context.Background(), env.partnerUser.ID, env.requester.ID); err != nil {
					panic(err)
				}
				return env.requester.ID
			},
			want: KindForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			req := env.bookingRequest()
			requester := tt.mutate(env, &req)
			_, err := env.bookings.Create(context.Background(), requester, req)
			assertKind(t, err, tt.want)
		})
	}
}

func TestBookingCreate_PartnerNotApproved(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pending := &models.Partner{UserID: env.admin.ID, HourlyRate: 300, ApprovalStatus: models.ApprovalPending}
	if err := env.store.Partners.Insert(ctx, pending); err != nil {
		t.Fatal(err)
	}
	req := env.bookingRequest()
	req.PartnerID = pending.ID.Hex()
	_, err := env.bookings.Create(ctx, env.requester.ID, req)
	assertKind(t, err, KindValidation)
}

func TestBookingCreate_OverlapConflict(t *testing.T) {
	env := newTestEnv(t)
	env.createBooking(t)

	req := env.bookingRequest()
	req.StartTime, req.EndTime = "15:00", "17:00"
	_, err := env.bookings.Create(context.Background(), env.requester.ID, req)
	assertKind(t, err, KindConflict)

	// Adjacent slots do not overlap
	req.StartTime, req.EndTime = "16:00", "17:00"
	if _, err := env.bookings.Create(context.Background(), env.requester.ID, req); err != nil {
		t.Fatalf("adjacent slot: %v", err)
	}
}

func TestBookingRespond(t *testing.T) {
	ctx := context.Background()

	t.Run("accept", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBooking(t)
		got, err := env.bookings.Respond(ctx, env.partnerUser.ID, b.ID, "accept")
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != models.BookingStatusConfirmed {
			t.Fatalf("status = %s", got.Status)
		}
		if env.notifier.count(env.requester.ID, models.NotificationBookingAccepted) != 1 {
			t.Fatal("missing booking_accepted notification")
		}
		// accepting twice is a state conflict
		_, err = env.bookings.Respond(ctx, env.partnerUser.ID, b.ID, "accept")
		assertKind(t, err, KindConflict)
	})

	t.Run("reject", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBooking(t)
		got, err := env.bookings.Respond(ctx, env.partnerUser.ID, b.ID, "reject")
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != models.BookingStatusCancelled || got.CancelledAt == nil {
			t.Fatalf("rejected booking = %+v", got)
		}
		if env.notifier.count(env.requester.ID, models.NotificationBookingRejected) != 1 {
			t.Fatal("missing booking_rejected notification")
		}
		_, err = env.bookings.Respond(ctx, env.partnerUser.ID, b.ID, "accept")
		assertKind(t, err, KindConflict)
	})

	t.Run("not the owning partner", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBooking(t)
		_, err := env.bookings.Respond(ctx, env.requester.ID, b.ID, "accept")
		assertKind(t, err, KindForbidden)
	})

	t.Run("unknown action", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBooking(t)
		_, err := env.bookings.Respond(ctx, env.partnerUser.ID, b.ID, "maybe")
		assertKind(t, err, KindValidation)
	})
}

func TestBookingCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("unpaid", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBooking(t)
		got, err := env.bookings.Cancel(ctx, env.requester.ID, b.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != models.BookingStatusCancelled || got.PaymentStatus != models.PaymentStatusUnpaid {
			t.Fatalf("cancelled booking = %s/%s", got.Status, got.PaymentStatus)
		}
		if env.gateway.refundCount() != 0 {
			t.Fatal("unpaid cancel must not refund")
		}
		if env.notifier.count(env.partnerUser.ID, models.NotificationBookingCancelled) != 1 {
			t.Fatal("missing booking_cancelled notification")
		}
		_, err = env.bookings.Cancel(ctx, env.requester.ID, b.ID)
		assertKind(t, err, KindConflict)
	})

	t.Run("not the requester", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBooking(t)
		_, err := env.bookings.Cancel(ctx, env.partnerUser.ID, b.ID)
		assertKind(t, err, KindForbidden)
	})

	t.Run("past booking", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBooking(t)
		env.bookings.Now = func() time.Time { return time.Date(2025, 3, 16, 8, 0, 0, 0, time.UTC) }
		_, err := env.bookings.Cancel(ctx, env.requester.ID, b.ID)
		assertKind(t, err, KindValidation)
	})

	t.Run("same day is allowed", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBooking(t)
		env.bookings.Now = func() time.Time { return time.Date(2025, 3, 15, 23, 0, 0, 0, time.UTC) }
		if _, err := env.bookings.Cancel(ctx, env.requester.ID, b.ID); err != nil {
			t.Fatalf("cancel on booking day: %v", err)
		}
	})
}

func TestBookingCancel_PaidRefundsAndReverses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.pay(t, env.createBooking(t), "pay_1")

	if e := env.ledger(t); e.TotalEarnings != 800 || e.AvailableBalance != 800 {
		t.Fatalf("ledger after payment = %+v", e)
	}

	got, err := env.bookings.Cancel(ctx, env.requester.ID, b.ID)
	if err != nil {
		t.Fatalf("cancel paid booking: %v", err)
	}
	if got.Status != models.BookingStatusCancelled || got.PaymentStatus != models.PaymentStatusRefunded {
		t.Fatalf("state = %s/%s", got.Status, got.PaymentStatus)
	}
	if got.PlatformCommission != 0 || got.PartnerEarning != 0 {
		t.Fatalf("refunded booking keeps split %v/%v", got.PlatformCommission, got.PartnerEarning)
	}
	if got.RazorpayRefundID == "" {
		t.Fatal("refund id not recorded")
	}
	if env.gateway.refundCount() != 1 {
		t.Fatalf("refund calls = %d", env.gateway.refundCount())
	}
	if e := env.ledger(t); e.TotalEarnings != 0 || e.AvailableBalance != 0 {
		t.Fatalf("ledger after refund = %+v", e)
	}

	// Late duplicate deliveries of the same payment leave the refund intact
	order := got.RazorpayOrderID
	body, sig := env.webhookBody(models.EventPaymentCaptured, order, "pay_1")
	if err := env.payments.HandleWebhook(ctx, body, sig); err != nil {
		t.Fatalf("late webhook: %v", err)
	}
	if e := env.ledger(t); e.TotalEarnings != 0 {
		t.Fatalf("late webhook re-credited: %+v", e)
	}
}

func TestBookingCancel_RefundFailureLeavesBookingUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.pay(t, env.createBooking(t), "pay_1")

	env.gateway.refundErr = errors.New("gateway timeout")
	_, err := env.bookings.Cancel(ctx, env.requester.ID, b.ID)
	assertKind(t, err, KindExternal)
	var se *Error
	if !errors.As(err, &se) || se.Details["paymentId"] != "pay_1" || se.Details["bookingId"] != b.ID.Hex() {
		t.Fatalf("external error details = %+v", se)
	}

	stored, _ := env.store.Bookings.FindByID(ctx, b.ID)
	if stored.Status != models.BookingStatusConfirmed || stored.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("booking changed after failed refund: %s/%s", stored.Status, stored.PaymentStatus)
	}
	if stored.PartnerEarning != 800 {
		t.Fatalf("split changed after failed refund: %v", stored.PartnerEarning)
	}
	if e := env.ledger(t); e.AvailableBalance != 800 {
		t.Fatalf("ledger changed after failed refund: %+v", e)
	}

	env.gateway.refundErr = nil
	if _, err := env.bookings.Cancel(ctx, env.requester.ID, b.ID); err != nil {
		t.Fatalf("retry cancel: %v", err)
	}
	if env.gateway.refundCount() != 1 {
		t.Fatalf("refund calls = %d, want 1", env.gateway.refundCount())
	}
}

// unrecordedRefunds fails every SetRefundID call.
type unrecordedRefunds struct {
	repositories.BookingRepository
}

func (unrecordedRefunds) SetRefundID(context.Context, primitive.ObjectID, string) error {
	return errors.New("write concern timeout")
}

func TestRefundAndCancel_UnrecordedRefundSurfacesID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.pay(t, env.createBooking(t), "pay_1")

	refunds := NewRefundService(unrecordedRefunds{env.store.Bookings}, env.gateway, env.earnings)
	refunds.Now = fixedClock
	_, err := refunds.RefundAndCancel(ctx, b)
	assertKind(t, err, KindExternal)
	var se *Error
	if !errors.As(err, &se) || se.Details["refundId"] != "rfnd_1" || se.Details["paymentId"] != "pay_1" {
		t.Fatalf("external error details = %+v", se)
	}
	if env.gateway.refundCount() != 1 {
		t.Fatalf("refund calls = %d, want 1", env.gateway.refundCount())
	}

	stored, _ := env.store.Bookings.FindByID(ctx, b.ID)
	if stored.Status != models.BookingStatusConfirmed || stored.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("booking changed: %s/%s", stored.Status, stored.PaymentStatus)
	}
	if e := env.ledger(t); e.AvailableBalance != 800 {
		t.Fatalf("ledger reversed without recorded refund: %+v", e)
	}
}

func TestRefundAndCancel_StoredRefundIDSkipsGateway(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.pay(t, env.createBooking(t), "pay_1")

	// A previous attempt refunded and recorded the id but did not finish
	if err := env.store.Bookings.SetRefundID(ctx, b.ID, "rfnd_prev"); err != nil {
		t.Fatal(err)
	}
	stored, _ := env.store.Bookings.FindByID(ctx, b.ID)

	got, err := env.refunds.RefundAndCancel(ctx, stored)
	if err != nil {
		t.Fatal(err)
	}
	if env.gateway.refundCount() != 0 {
		t.Fatal("gateway called despite stored refund id")
	}
	if got.RazorpayRefundID != "rfnd_prev" || got.PaymentStatus != models.PaymentStatusRefunded {
		t.Fatalf("booking = %+v", got)
	}
	if e := env.ledger(t); e.AvailableBalance != 0 {
		t.Fatalf("ledger = %+v", e)
	}
}

func TestBookingReject_PaidRefunds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.pay(t, env.createBooking(t), "pay_1")

	got, err := env.bookings.Respond(ctx, env.partnerUser.ID, b.ID, "reject")
	if err != nil {
		t.Fatal(err)
	}
	if got.PaymentStatus != models.PaymentStatusRefunded || got.Status != models.BookingStatusCancelled {
		t.Fatalf("state = %s/%s", got.Status, got.PaymentStatus)
	}
	if e := env.ledger(t); e.TotalEarnings != 0 {
		t.Fatalf("ledger = %+v", e)
	}
}

func TestBookingComplete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createBooking(t)

	_, err := env.bookings.Complete(ctx, env.partnerUser.ID, b.ID)
	assertKind(t, err, KindConflict)

	if _, err := env.bookings.Respond(ctx, env.partnerUser.ID, b.ID, "accept"); err != nil {
		t.Fatal(err)
	}
	got, err := env.bookings.Complete(ctx, env.partnerUser.ID, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.BookingStatusCompleted || got.CompletedAt == nil {
		t.Fatalf("completed booking = %+v", got)
	}
	if env.notifier.count(env.requester.ID, models.NotificationBookingCompleted) != 1 {
		t.Fatal("missing booking_completed notification")
	}

	_, err = env.bookings.Cancel(ctx, env.requester.ID, b.ID)
	assertKind(t, err, KindConflict)
}

func TestBookingGet_Visibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createBooking(t)
	stranger := &models.User{Name: "S", Email: "s@example.com", Role: models.RoleUser}
	if err := env.store.Users.Insert(ctx, stranger); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		actor Actor
		ok    bool
	}{
		{"requester", Actor{UserID: env.requester.ID, Role: models.RoleUser}, true},
		{"partner", Actor{UserID: env.partnerUser.ID, Role: models.RolePartner}, true},
		{"admin", Actor{UserID: env.admin.ID, Role: models.RoleAdmin}, true},
		{"stranger", Actor{UserID: stranger.ID, Role: models.RoleUser}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.bookings.Get(ctx, tt.actor, b.ID)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok {
				assertKind(t, err, KindForbidden)
			}
		})
	}
}

func TestBookingLists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createBooking(t)
	if _, err := env.bookings.Respond(ctx, env.partnerUser.ID, b.ID, "accept"); err != nil {
		t.Fatal(err)
	}
	req := env.bookingRequest()
	req.StartTime, req.EndTime = "18:00", "19:00"
	if _, err := env.bookings.Create(ctx, env.requester.ID, req); err != nil {
		t.Fatal(err)
	}

	mine, err := env.bookings.ListMine(ctx, env.requester.ID)
	if err != nil || len(mine) != 2 {
		t.Fatalf("ListMine = %d, %v", len(mine), err)
	}
	confirmed, err := env.bookings.ListForPartner(ctx, env.partnerUser.ID, models.BookingStatusConfirmed)
	if err != nil || len(confirmed) != 1 || confirmed[0].ID != b.ID {
		t.Fatalf("ListForPartner(confirmed) = %+v, %v", confirmed, err)
	}
	_, err = env.bookings.ListForPartner(ctx, env.partnerUser.ID, "archived")
	assertKind(t, err, KindValidation)
	_, err = env.bookings.ListForPartner(ctx, env.requester.ID, "")
	assertKind(t, err, KindForbidden)
}

func TestBookingReceipt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createBooking(t)
	actor := Actor{UserID: env.requester.ID, Role: models.RoleUser}

	_, _, err := env.bookings.Receipt(ctx, actor, b.ID)
	assertKind(t, err, KindValidation)

	env.pay(t, b, "pay_1")
	pdf, _, err := env.bookings.Receipt(ctx, actor, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pdf) < 4 || string(pdf[:4]) != "%PDF" {
		t.Fatalf("receipt is not a PDF (%d bytes)", len(pdf))
	}
	if !bytes.Contains(pdf, []byte("/Subtype /Image")) {
		t.Fatal("receipt carries no QR image")
	}
}

func TestBookingQR(t *testing.T) {
	tests := []string{
		primitive.NewObjectID().Hex(),
		"000000000000000000000000",
	}
	for _, id := range tests {
		raw, err := bookingQR(id)
		if err != nil {
			t.Fatalf("bookingQR(%s): %v", id, err)
		}
		img, err := png.Decode(bytes.NewReader(raw))
		if err != nil {
			t.Fatalf("decode qr png: %v", err)
		}
		if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
			t.Fatalf("qr size = %dx%d, want 200x200", b.Dx(), b.Dy())
		}
	}
}
