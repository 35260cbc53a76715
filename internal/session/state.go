// Package session holds what one device knows: a cached copy of the shared
// collections and which rider, if any, is signed in there.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/broadcast"
	"dispatch/internal/domain/entities"
	"dispatch/internal/repository"
	"dispatch/internal/view"
)

var (
	ErrUnknownPhone     = errors.New("number not found")
	ErrNotAuthenticated = errors.New("no rider signed in")
	ErrDeviceRequired   = errors.New("device id is required")
)

// refreshTimeout bounds a re-read done on behalf of a reader, which has no
// caller context of its own.
const refreshTimeout = 5 * time.Second

// Snapshot is one consistent read of both collections.
type Snapshot struct {
	Riders   []entities.Rider
	Orders   []entities.Order
	LoadedAt time.Time
}

// State is the per-device cache. The snapshot is swapped as a whole, so a
// reader sees either the old collections or the new ones, never a mix.
//
// A change signal only marks the snapshot stale; the re-read happens on the
// next read. Any number of signals between two reads cost one re-read, and a
// device nobody looks at costs nothing.
//
// Go Learning Note — atomic.Pointer:
// Readers call Load without taking any lock. Refresh builds a complete new
// Snapshot and publishes it with Store; the old one stays valid for anyone
// still holding it.
type State struct {
	repo   *repository.Repository
	logger *zap.Logger

	snapshot  atomic.Pointer[Snapshot]
	stale     atomic.Bool
	refreshMu sync.Mutex

	mu        sync.RWMutex
	current   *entities.Rider
	dismissed map[string]bool

	changes     *broadcast.Local
	unsubscribe func()
}

func NewState(repo *repository.Repository, logger *zap.Logger) *State {
	s := &State{
		repo:      repo,
		logger:    logger.With(zap.String("component", "session")),
		dismissed: make(map[string]bool),
		changes:   broadcast.NewLocal(),
	}
	s.snapshot.Store(&Snapshot{Riders: []entities.Rider{}, Orders: []entities.Order{}})
	return s
}

// Start loads the collections, restores a persisted sign-in if it still
// names a known rider, and begins following change signals.
func (s *State) Start(ctx context.Context) error {
	// Subscribe before the first read so no change slips in between.
	if n := s.repo.Notifier(); n != nil {
		s.unsubscribe = n.Subscribe(s.onSignal)
	}
	if err := s.Refresh(ctx); err != nil {
		s.Close()
		return err
	}

	riderID, ok, err := s.repo.GetSession(ctx)
	if err != nil {
		s.logger.Warn("session pointer unreadable, starting signed out", zap.Error(err))
	} else if ok {
		if r, found := findRider(s.Snapshot().Riders, riderID); found {
			s.mu.Lock()
			s.current = &r
			s.mu.Unlock()
		} else {
			s.logger.Info("stale session pointer ignored", zap.String("rider_id", riderID))
		}
	}
	return nil
}

// Close stops following change signals.
func (s *State) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *State) onSignal() {
	s.stale.Store(true)
	s.changes.Notify(context.Background())
}

// Refresh re-reads both collections and replaces the snapshot. On error the
// previous snapshot is kept and stays stale.
func (s *State) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *State) refreshLocked(ctx context.Context) error {
	// Cleared first: a signal arriving during the read marks it stale again.
	s.stale.Store(false)

	riders, err := s.repo.ListRiders(ctx)
	if err != nil {
		s.stale.Store(true)
		return fmt.Errorf("refresh riders: %w", err)
	}
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		s.stale.Store(true)
		return fmt.Errorf("refresh orders: %w", err)
	}

	s.snapshot.Store(&Snapshot{Riders: riders, Orders: orders, LoadedAt: time.Now()})
	return nil
}

// Snapshot returns the cached collections, re-reading them first if a
// change was signalled since the last read.
func (s *State) Snapshot() *Snapshot {
	if s.stale.Load() {
		s.refreshMu.Lock()
		if s.stale.Load() {
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			if err := s.refreshLocked(ctx); err != nil {
				s.logger.Warn("refresh failed, keeping previous snapshot", zap.Error(err))
			}
			cancel()
		}
		s.refreshMu.Unlock()
	}
	return s.snapshot.Load()
}

// Login signs in the first rider whose phone number matches exactly. The
// rider list is re-read first so a rider added moments ago can sign in.
func (s *State) Login(ctx context.Context, phoneNumber string) (entities.Rider, error) {
	riders, err := s.repo.ListRiders(ctx)
	if err != nil {
		return entities.Rider{}, err
	}

	var match *entities.Rider
	for i := range riders {
		if riders[i].PhoneNumber == phoneNumber {
			match = &riders[i]
			break
		}
	}
	if match == nil {
		return entities.Rider{}, ErrUnknownPhone
	}

	if err := s.repo.SetSession(ctx, match.ID); err != nil {
		return entities.Rider{}, fmt.Errorf("persist session: %w", err)
	}

	rider := *match
	s.mu.Lock()
	s.current = &rider
	s.mu.Unlock()

	s.logger.Info("rider signed in", zap.String("rider_id", rider.ID))
	s.changes.Notify(ctx)
	return rider, nil
}

// Logout signs the rider out and forgets dismissed offers. Calling it when
// nobody is signed in is not an error.
func (s *State) Logout(ctx context.Context) error {
	s.mu.Lock()
	wasSignedIn := s.current != nil
	s.current = nil
	s.dismissed = make(map[string]bool)
	s.mu.Unlock()

	if err := s.repo.ClearSession(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if wasSignedIn {
		s.changes.Notify(ctx)
	}
	return nil
}

func (s *State) CurrentRider() (entities.Rider, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return entities.Rider{}, false
	}
	return *s.current, true
}

// Dismiss hides a pending offer from this device only. Nothing is written
// to the store; the order stays pending for every other rider.
func (s *State) Dismiss(orderID string) {
	s.mu.Lock()
	s.dismissed[orderID] = true
	s.mu.Unlock()
	s.changes.Notify(context.Background())
}

// View is the signed-in rider's current screen.
func (s *State) View() (view.RiderView, error) {
	rider, ok := s.CurrentRider()
	if !ok {
		return view.RiderView{}, ErrNotAuthenticated
	}

	s.mu.RLock()
	dismissed := make(map[string]bool, len(s.dismissed))
	for id := range s.dismissed {
		dismissed[id] = true
	}
	s.mu.RUnlock()

	return view.ForRider(s.Snapshot().Orders, rider.ID, dismissed), nil
}

func (s *State) History() ([]view.HistoryEntry, error) {
	rider, ok := s.CurrentRider()
	if !ok {
		return nil, ErrNotAuthenticated
	}
	return view.RiderHistory(s.Snapshot().Orders, rider.ID), nil
}

// OnChange registers fn to run whenever what this device shows may have
// changed: a change signal, a sign-in or sign-out, or a dismissal.
func (s *State) OnChange(fn func()) (unsubscribe func()) {
	return s.changes.Subscribe(fn)
}

func findRider(riders []entities.Rider, id string) (entities.Rider, bool) {
	for _, r := range riders {
		if r.ID == id {
			return r, true
		}
	}
	return entities.Rider{}, false
}
