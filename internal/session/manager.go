package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"dispatch/internal/repository"
)

// Hook runs once for every new State right after it starts. The function it
// returns, if any, runs when the State is dropped.
type Hook func(deviceID string, s *State) (stop func())

// Manager keeps one State per device while it is in use.
//
// Callers pair every Get with a Release. A State nobody holds is dropped at
// once unless a rider is signed in on it, so the number of live states is
// bounded by in-flight requests plus signed-in devices, whatever device ids
// callers invent. A dropped device loses nothing durable: its sign-in lives
// in the store and comes back on the next Get.
type Manager struct {
	repo   *repository.Repository
	logger *zap.Logger
	hooks  []Hook

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	state *State
	refs  int
	stops []func()
}

func NewManager(repo *repository.Repository, logger *zap.Logger, hooks ...Hook) *Manager {
	return &Manager{
		repo:    repo,
		logger:  logger,
		hooks:   hooks,
		entries: make(map[string]*entry),
	}
}

// Get returns the device's State, starting one on first use.
func (m *Manager) Get(ctx context.Context, deviceID string) (*State, error) {
	if deviceID == "" {
		return nil, ErrDeviceRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[deviceID]; ok {
		e.refs++
		return e.state, nil
	}

	s := NewState(m.repo.ForDevice(deviceID), m.logger.With(zap.String("device_id", deviceID)))
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	e := &entry{state: s, refs: 1}
	for _, hook := range m.hooks {
		if stop := hook(deviceID, s); stop != nil {
			e.stops = append(e.stops, stop)
		}
	}
	m.entries[deviceID] = e
	return s, nil
}

// Release gives back a State obtained from Get.
func (m *Manager) Release(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[deviceID]
	if !ok {
		return
	}
	if e.refs > 0 {
		e.refs--
	}
	if e.refs > 0 {
		return
	}
	if _, signedIn := e.state.CurrentRider(); signedIn {
		return
	}
	m.drop(deviceID, e)
}

func (m *Manager) drop(deviceID string, e *entry) {
	for _, stop := range e.stops {
		stop()
	}
	e.state.Close()
	delete(m.entries, deviceID)
}

func (m *Manager) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, e := range m.entries {
		m.drop(id, e)
	}
}
