package services

import (
	"sync"

	"go.uber.org/zap"

	"dispatch/internal/session"
	"dispatch/internal/view"
)

// Alarm is the looping ring a rider hears while an offer is waiting.
type Alarm interface {
	Play(deviceID string) error
	Stop(deviceID string) error
}

// Pusher delivers a one-off notification. Implementations that lack
// permission or support should return nil and do nothing.
type Pusher interface {
	Push(deviceID, title, body string) error
}

// NotificationService drives the alarm and push notifications. Both are
// best-effort: failures are logged and never reach the caller.
type NotificationService struct {
	alarm  Alarm
	pusher Pusher
	logger *zap.Logger

	mu      sync.Mutex
	ringing map[string]bool
	// offered remembers the last order each device was notified about, so
	// an unchanged offer is not announced again on every refresh.
	offered map[string]string
}

func NewNotificationService(alarm Alarm, pusher Pusher, logger *zap.Logger) *NotificationService {
	logger = logger.With(zap.String("component", "notification"))
	if alarm == nil {
		alarm = LogAlarm{logger: logger}
	}
	if pusher == nil {
		pusher = LogPusher{logger: logger}
	}
	return &NotificationService{
		alarm:   alarm,
		pusher:  pusher,
		logger:  logger,
		ringing: make(map[string]bool),
		offered: make(map[string]string),
	}
}

// StartRing starts the alarm on deviceID. Starting it while it already rings
// does nothing.
func (s *NotificationService) StartRing(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ringing[deviceID] {
		return
	}
	if err := s.alarm.Play(deviceID); err != nil {
		s.logger.Warn("alarm playback failed", zap.String("device_id", deviceID), zap.Error(err))
		return
	}
	s.ringing[deviceID] = true
}

// StopRing silences deviceID and resets the alarm, whether or not it rang.
func (s *NotificationService) StopRing(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.alarm.Stop(deviceID); err != nil {
		s.logger.Warn("alarm stop failed", zap.String("device_id", deviceID), zap.Error(err))
	}
	delete(s.ringing, deviceID)
}

func (s *NotificationService) Ringing(deviceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ringing[deviceID]
}

func (s *NotificationService) Notify(deviceID, title, body string) {
	if err := s.pusher.Push(deviceID, title, body); err != nil {
		s.logger.Warn("push notification failed", zap.String("device_id", deviceID), zap.Error(err))
	}
}

// Watch follows a device's session: an incoming offer rings and announces
// the order, an active delivery or an empty board goes quiet.
func (s *NotificationService) Watch(deviceID string, st *session.State) (unsubscribe func()) {
	react := func() {
		v, err := st.View()
		if err != nil || v.Kind != view.KindOffer {
			s.StopRing(deviceID)
			s.mu.Lock()
			delete(s.offered, deviceID)
			s.mu.Unlock()
			return
		}

		s.StartRing(deviceID)

		s.mu.Lock()
		announce := s.offered[deviceID] != v.Order.ID
		s.offered[deviceID] = v.Order.ID
		s.mu.Unlock()
		if announce {
			s.Notify(deviceID, "New Order!", "Delivery for "+v.Order.CustomerName)
		}
	}

	react()
	return st.OnChange(react)
}

// LogAlarm stands in for a device speaker: it only records what would play.
type LogAlarm struct {
	logger *zap.Logger
}

func (a LogAlarm) Play(deviceID string) error {
	a.logger.Info("[ALARM] ringing", zap.String("device_id", deviceID))
	return nil
}

func (a LogAlarm) Stop(deviceID string) error {
	a.logger.Debug("[ALARM] stopped", zap.String("device_id", deviceID))
	return nil
}

// LogPusher writes notifications to the log instead of a push provider.
type LogPusher struct {
	logger *zap.Logger
}

func (p LogPusher) Push(deviceID, title, body string) error {
	p.logger.Info("[NOTIFICATION] "+title,
		zap.String("device_id", deviceID),
		zap.String("body", body),
	)
	return nil
}
