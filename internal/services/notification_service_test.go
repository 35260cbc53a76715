package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/broadcast"
	"dispatch/internal/domain/entities"
	"dispatch/internal/repository"
	"dispatch/internal/repository/memory"
	"dispatch/internal/session"
)

type fakeAlarm struct {
	mu      sync.Mutex
	plays   int
	stops   int
	failing bool
}

func (a *fakeAlarm) Play(string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failing {
		return errors.New("autoplay blocked")
	}
	a.plays++
	return nil
}

func (a *fakeAlarm) Stop(string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stops++
	return nil
}

type fakePusher struct {
	mu     sync.Mutex
	bodies []string
}

func (p *fakePusher) Push(_, _, body string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bodies = append(p.bodies, body)
	return nil
}

func TestNotificationService_RingIsIdempotent(t *testing.T) {
	alarm := &fakeAlarm{}
	n := NewNotificationService(alarm, &fakePusher{}, zap.NewNop())

	n.StartRing("d")
	n.StartRing("d")
	if alarm.plays != 1 || !n.Ringing("d") {
		t.Errorf("Expected a single play while ringing, got %d", alarm.plays)
	}

	n.StopRing("d")
	n.StopRing("d")
	if n.Ringing("d") {
		t.Error("Expected ring stopped")
	}

	n.StartRing("d")
	if alarm.plays != 2 {
		t.Errorf("Expected ring to restart after stop, got %d plays", alarm.plays)
	}
}

func TestNotificationService_FailuresAreSwallowed(t *testing.T) {
	alarm := &fakeAlarm{failing: true}
	n := NewNotificationService(alarm, nil, zap.NewNop())

	n.StartRing("d")
	if n.Ringing("d") {
		t.Error("Expected failed playback not to count as ringing")
	}
	n.Notify("d", "title", "body")
}

func TestNotificationService_Watch(t *testing.T) {
	ctx := context.Background()
	repo := repository.New(memory.NewStore(), broadcast.NewLocal(), "irsa", zap.NewNop())
	repo.SaveRider(ctx, entities.NewRider("RIDER-01", "Bilal", "0300", time.Now()))

	st := session.NewState(repo.ForDevice("phone"), zap.NewNop())
	st.Start(ctx)
	defer st.Close()
	st.Login(ctx, "0300")

	alarm, pusher := &fakeAlarm{}, &fakePusher{}
	n := NewNotificationService(alarm, pusher, zap.NewNop())
	unsubscribe := n.Watch("phone", st)
	defer unsubscribe()

	if n.Ringing("phone") {
		t.Fatal("Expected silence with no orders")
	}

	dispatch := NewDispatchService(repo, zap.NewNop())
	order, _ := dispatch.CreateOrder(ctx, validOrderInput())
	if !n.Ringing("phone") {
		t.Fatal("Expected ringing for an incoming offer")
	}
	if len(pusher.bodies) != 1 || pusher.bodies[0] != "Delivery for Ali" {
		t.Errorf("Expected one announcement, got %v", pusher.bodies)
	}

	// Unrelated refreshes do not announce the same offer again.
	st.Refresh(ctx)
	if len(pusher.bodies) != 1 {
		t.Errorf("Expected no repeat announcement, got %v", pusher.bodies)
	}

	NewDeliveryService(repo, zap.NewNop()).Accept(ctx, "RIDER-01", order.ID)
	if n.Ringing("phone") {
		t.Error("Expected silence once the rider holds a delivery")
	}
}

func TestNotificationService_DismissSilences(t *testing.T) {
	ctx := context.Background()
	repo := repository.New(memory.NewStore(), broadcast.NewLocal(), "irsa", zap.NewNop())
	repo.SaveRider(ctx, entities.NewRider("RIDER-01", "Bilal", "0300", time.Now()))
	st := session.NewState(repo, zap.NewNop())
	st.Start(ctx)
	defer st.Close()
	st.Login(ctx, "0300")

	n := NewNotificationService(&fakeAlarm{}, &fakePusher{}, zap.NewNop())
	n.Watch("d", st)

	order, _ := NewDispatchService(repo, zap.NewNop()).CreateOrder(ctx, validOrderInput())
	st.Dismiss(order.ID)

	if n.Ringing("d") {
		t.Error("Expected declining the offer to stop the ring")
	}

	st.Logout(ctx)
	if n.Ringing("d") {
		t.Error("Expected signed-out device to stay silent")
	}
}
