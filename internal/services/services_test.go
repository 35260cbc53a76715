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
)

func setupServices() (*DispatchService, *DeliveryService, *repository.Repository) {
	repo := repository.New(memory.NewStore(), broadcast.NewLocal(), "irsa", zap.NewNop())
	return NewDispatchService(repo, zap.NewNop()), NewDeliveryService(repo, zap.NewNop()), repo
}

func validOrderInput() NewOrderInput {
	return NewOrderInput{
		CustomerName:    "Ali",
		CustomerNumber:  "03111111111",
		Coordinates:     "29.39, 71.68",
		DeliveryCharges: 150,
		ItemsValue:      1200,
		ItemsQuantity:   2,
	}
}

func TestDispatchService_AddRider(t *testing.T) {
	dispatch, _, _ := setupServices()
	ctx := context.Background()

	rider, err := dispatch.AddRider(ctx, NewRiderInput{ID: "RIDER-01", Name: "Bilal", PhoneNumber: " 03001234567 "})
	if err != nil {
		t.Fatalf("AddRider failed: %v", err)
	}
	if rider.PhoneNumber != "03001234567" {
		t.Errorf("Expected trimmed phone, got %q", rider.PhoneNumber)
	}
	if rider.CreatedAt == 0 {
		t.Error("Expected CreatedAt to be set")
	}

	riders, _ := dispatch.Riders(ctx)
	if len(riders) != 1 || riders[0] != rider {
		t.Errorf("Expected stored rider unchanged, got %+v", riders)
	}
}

func TestDispatchService_AddRiderValidation(t *testing.T) {
	dispatch, _, _ := setupServices()
	ctx := context.Background()
	dispatch.AddRider(ctx, NewRiderInput{ID: "RIDER-01", Name: "Bilal", PhoneNumber: "03001234567"})

	tests := []struct {
		name    string
		input   NewRiderInput
		wantErr error
	}{
		{"missing id", NewRiderInput{Name: "X", PhoneNumber: "1"}, ErrRequiredField},
		{"missing name", NewRiderInput{ID: "R2", PhoneNumber: "1"}, ErrRequiredField},
		{"missing phone", NewRiderInput{ID: "R2", Name: "X"}, ErrRequiredField},
		{"duplicate id", NewRiderInput{ID: "RIDER-01", Name: "X", PhoneNumber: "1"}, ErrDuplicateRiderID},
		{"duplicate phone", NewRiderInput{ID: "R2", Name: "X", PhoneNumber: "03001234567"}, ErrDuplicatePhone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := dispatch.AddRider(ctx, tt.input); !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	riders, _ := dispatch.Riders(ctx)
	if len(riders) != 1 {
		t.Errorf("Expected rejected riders not to be stored, got %d riders", len(riders))
	}
}

func TestDispatchService_CreateOrder(t *testing.T) {
	dispatch, _, _ := setupServices()
	ctx := context.Background()

	order, err := dispatch.CreateOrder(ctx, validOrderInput())
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if order.ID == "" {
		t.Error("Expected order ID to be set")
	}
	if len(order.ShortID) != 4 {
		t.Errorf("Expected 4-digit short id, got %q", order.ShortID)
	}
	if order.Status != entities.OrderStatusPending {
		t.Errorf("Expected pending, got %s", order.Status)
	}
	if order.AssignedRiderID != nil {
		t.Error("Expected no rider assigned")
	}
}

func TestDispatchService_CreateOrderValidation(t *testing.T) {
	dispatch, _, _ := setupServices()
	ctx := context.Background()

	noName := validOrderInput()
	noName.CustomerName = "  "
	if _, err := dispatch.CreateOrder(ctx, noName); !errors.Is(err, ErrRequiredField) {
		t.Errorf("Expected ErrRequiredField, got %v", err)
	}

	noCoords := validOrderInput()
	noCoords.Coordinates = ""
	if _, err := dispatch.CreateOrder(ctx, noCoords); !errors.Is(err, ErrRequiredField) {
		t.Errorf("Expected ErrRequiredField, got %v", err)
	}

	// Unparseable coordinates are accepted; only the distance degrades.
	odd := validOrderInput()
	odd.Coordinates = "behind the mosque"
	if _, err := dispatch.CreateOrder(ctx, odd); err != nil {
		t.Errorf("Expected free-text coordinates to be accepted, got %v", err)
	}
}

func TestDispatchService_ShortIDsAvoidCollisions(t *testing.T) {
	dispatch, _, _ := setupServices()
	ctx := context.Background()

	seen := make(map[string]bool)
	collisions := 0
	for i := 0; i < 100; i++ {
		o, _ := dispatch.CreateOrder(ctx, validOrderInput())
		if seen[o.ShortID] {
			collisions++
		}
		seen[o.ShortID] = true
	}

	// 16 draws against at most 100 taken codes out of 9000 practically never
	// all collide.
	if collisions > 0 {
		t.Errorf("Expected no short id collisions, got %d", collisions)
	}
}

func TestDispatchService_History(t *testing.T) {
	dispatch, delivery, _ := setupServices()
	ctx := context.Background()
	dispatch.AddRider(ctx, NewRiderInput{ID: "RIDER-01", Name: "Bilal", PhoneNumber: "0300"})
	first, _ := dispatch.CreateOrder(ctx, validOrderInput())
	dispatch.CreateOrder(ctx, validOrderInput())
	delivery.Accept(ctx, "RIDER-01", first.ID)

	history, err := dispatch.History(ctx)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(history))
	}
	if history[1].Order.ID != first.ID || history[1].RiderName != "Bilal" {
		t.Errorf("Expected oldest order last with rider resolved, got %+v", history[1])
	}
	if history[1].Total != 1350 {
		t.Errorf("Expected total 1350, got %v", history[1].Total)
	}
}

func TestDeliveryService_AcceptAndDeliver(t *testing.T) {
	dispatch, delivery, repo := setupServices()
	ctx := context.Background()
	order, _ := dispatch.CreateOrder(ctx, validOrderInput())

	accepted, err := delivery.Accept(ctx, "RIDER-01", order.ID)
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if accepted.Status != entities.OrderStatusAccepted || !accepted.AssignedTo("RIDER-01") {
		t.Errorf("Expected accepted by RIDER-01, got %s by %q", accepted.Status, accepted.RiderID())
	}
	if accepted.AcceptedAt == nil {
		t.Fatal("Expected AcceptedAt to be set")
	}

	delivered, err := delivery.MarkDelivered(ctx, "RIDER-01", order.ID)
	if err != nil {
		t.Fatalf("MarkDelivered failed: %v", err)
	}
	if delivered.CompletedAt == nil || *delivered.CompletedAt < *delivered.AcceptedAt || *delivered.AcceptedAt < delivered.CreatedAt {
		t.Errorf("Expected CreatedAt <= AcceptedAt <= CompletedAt, got %+v", delivered)
	}

	stored, _, _ := repo.FindOrder(ctx, order.ID)
	if stored.Status != entities.OrderStatusDelivered {
		t.Errorf("Expected stored status delivered, got %s", stored.Status)
	}
}

func TestDeliveryService_Errors(t *testing.T) {
	dispatch, delivery, _ := setupServices()
	ctx := context.Background()
	pending, _ := dispatch.CreateOrder(ctx, validOrderInput())
	mine, _ := dispatch.CreateOrder(ctx, validOrderInput())
	delivery.Accept(ctx, "RIDER-01", mine.ID)

	tests := []struct {
		name    string
		action  func() error
		wantErr error
	}{
		{"accept missing order", func() error {
			_, err := delivery.Accept(ctx, "RIDER-02", "nope")
			return err
		}, ErrOrderNotFound},
		{"deliver missing order", func() error {
			_, err := delivery.MarkDelivered(ctx, "RIDER-01", "nope")
			return err
		}, ErrOrderNotFound},
		{"re-accept accepted order", func() error {
			_, err := delivery.Accept(ctx, "RIDER-02", mine.ID)
			return err
		}, ErrInvalidTransition},
		{"deliver pending order", func() error {
			_, err := delivery.MarkDelivered(ctx, "RIDER-01", pending.ID)
			return err
		}, ErrInvalidTransition},
		{"deliver someone else's order", func() error {
			_, err := delivery.MarkDelivered(ctx, "RIDER-02", mine.ID)
			return err
		}, ErrNotAuthorized},
		{"second active delivery", func() error {
			_, err := delivery.Accept(ctx, "RIDER-01", pending.ID)
			return err
		}, ErrActiveDeliveryExists},
		{"accept without rider", func() error {
			_, err := delivery.Accept(ctx, "", pending.ID)
			return err
		}, entities.ErrRiderRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.action(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDeliveryService_DeliveredIsFinal(t *testing.T) {
	dispatch, delivery, repo := setupServices()
	ctx := context.Background()
	order, _ := dispatch.CreateOrder(ctx, validOrderInput())
	delivery.Accept(ctx, "RIDER-01", order.ID)
	delivery.MarkDelivered(ctx, "RIDER-01", order.ID)

	if _, err := delivery.Accept(ctx, "RIDER-02", order.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}
	if _, err := delivery.MarkDelivered(ctx, "RIDER-01", order.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}

	stored, _, _ := repo.FindOrder(ctx, order.ID)
	if stored.Status != entities.OrderStatusDelivered || !stored.AssignedTo("RIDER-01") {
		t.Errorf("Expected delivered by RIDER-01 unchanged, got %s by %q", stored.Status, stored.RiderID())
	}
}

func TestDeliveryService_ClockBehindCreation(t *testing.T) {
	dispatch, delivery, _ := setupServices()
	ctx := context.Background()
	order, _ := dispatch.CreateOrder(ctx, validOrderInput())

	delivery.now = func() time.Time { return time.UnixMilli(order.CreatedAt).Add(-time.Hour) }
	accepted, err := delivery.Accept(ctx, "RIDER-01", order.ID)
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if *accepted.AcceptedAt < accepted.CreatedAt {
		t.Errorf("Expected AcceptedAt clamped to CreatedAt, got %d < %d", *accepted.AcceptedAt, accepted.CreatedAt)
	}
}

// interleavingStore runs interleave once, just before the next access to
// key, so a competing write lands between a caller's read and its write.
type interleavingStore struct {
	*memory.Store
	key        string
	interleave func()
}

func (s *interleavingStore) fire(key string) {
	if key != s.key || s.interleave == nil {
		return
	}
	fn := s.interleave
	s.interleave = nil
	fn()
}

func (s *interleavingStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.fire(key)
	return s.Store.Get(ctx, key)
}

func (s *interleavingStore) Update(ctx context.Context, key string, fn repository.UpdateFunc) error {
	s.fire(key)
	return s.Store.Update(ctx, key, fn)
}

func TestDeliveryService_AcceptCannotReviveDeliveredOrder(t *testing.T) {
	store := &interleavingStore{Store: memory.NewStore(), key: "irsa_orders"}
	repo := repository.New(store, broadcast.NewLocal(), "irsa", zap.NewNop())
	dispatch := NewDispatchService(repo, zap.NewNop())
	delivery := NewDeliveryService(repo, zap.NewNop())
	ctx := context.Background()
	order, _ := dispatch.CreateOrder(ctx, validOrderInput())

	// RIDER-01 accepts and delivers while RIDER-02's accept is in flight.
	store.interleave = func() {
		if _, err := delivery.Accept(ctx, "RIDER-01", order.ID); err != nil {
			t.Errorf("RIDER-01 accept failed: %v", err)
		}
		if _, err := delivery.MarkDelivered(ctx, "RIDER-01", order.ID); err != nil {
			t.Errorf("RIDER-01 deliver failed: %v", err)
		}
	}

	if _, err := delivery.Accept(ctx, "RIDER-02", order.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}

	stored, _, _ := repo.FindOrder(ctx, order.ID)
	if stored.Status != entities.OrderStatusDelivered || !stored.AssignedTo("RIDER-01") || stored.CompletedAt == nil {
		t.Errorf("Expected order delivered by RIDER-01, got %s by %q", stored.Status, stored.RiderID())
	}
}

func TestDeliveryService_ConcurrentAcceptsHaveOneWinner(t *testing.T) {
	dispatch, delivery, repo := setupServices()
	ctx := context.Background()
	order, _ := dispatch.CreateOrder(ctx, validOrderInput())

	riders := []string{"RIDER-01", "RIDER-02", "RIDER-03", "RIDER-04"}
	errs := make(chan error, len(riders))
	var wg sync.WaitGroup
	for _, id := range riders {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := delivery.Accept(ctx, id, order.ID)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, ErrInvalidTransition):
			t.Errorf("Expected losers to get ErrInvalidTransition, got %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("Expected exactly 1 winning accept, got %d", wins)
	}

	stored, _, _ := repo.FindOrder(ctx, order.ID)
	if stored.Status != entities.OrderStatusAccepted || stored.RiderID() == "" {
		t.Errorf("Expected order accepted by one rider, got %s by %q", stored.Status, stored.RiderID())
	}
}
