package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/HSouheill/partner_marketplace/repositories/memory"
	"github.com/HSouheill/partner_marketplace/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakePusher struct {
	mu   sync.Mutex
	sent []websocket.Notification
	err  error
}

func (p *fakePusher) SendToUser(_ primitive.ObjectID, n websocket.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
	return p.err
}

type fakePublisher struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (p *fakePublisher) PublishJSON(_ context.Context, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return p.err
}

func TestFanoutNotifier_AllSinks(t *testing.T) {
	store := memory.NewNotifications()
	pusher := &fakePusher{}
	publisher := &fakePublisher{}
	n := NewFanoutNotifier(store, memory.NewUsers(), WithPusher(pusher), WithPublisher(publisher))

	user := primitive.NewObjectID()
	n.Notify(context.Background(), user, "booking_created", "New booking", "You have a request", map[string]interface{}{"bookingId": "b1"})
	n.Wait()

	saved, _ := store.ListByUser(context.Background(), user, 0)
	if len(saved) != 1 || saved[0].Type != "booking_created" {
		t.Fatalf("stored notifications: %+v", saved)
	}
	if len(pusher.sent) != 1 || pusher.sent[0].Title != "New booking" {
		t.Fatalf("websocket sends: %+v", pusher.sent)
	}
	if len(publisher.keys) != 1 || publisher.keys[0] != "notification.booking_created" {
		t.Fatalf("published keys: %v", publisher.keys)
	}
}

func TestFanoutNotifier_SinkFailuresAreSwallowed(t *testing.T) {
	store := memory.NewNotifications()
	n := NewFanoutNotifier(store, memory.NewUsers(),
		WithPusher(&fakePusher{err: errors.New("socket gone")}),
		WithPublisher(&fakePublisher{err: errors.New("broker down")}),
	)

	user := primitive.NewObjectID()
	n.Notify(context.Background(), user, "payment_completed", "Paid", "Payment received", nil)
	n.Wait()

	saved, _ := store.ListByUser(context.Background(), user, 0)
	if len(saved) != 1 {
		t.Fatalf("in-app notification must still be stored, got %d", len(saved))
	}
}
