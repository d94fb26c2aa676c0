package reminders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alan/citascrit-cli/internal/metrics"
)

// Scheduler arms alarms at absolute instants and cancels them by key.
type Scheduler interface {
	Arm(at time.Time, payload Payload) error
	Cancel(key string)
}

// Notifier delivers a fired alarm to the user.
type Notifier interface {
	Notify(ctx context.Context, p Payload) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, p Payload) error

func (f NotifierFunc) Notify(ctx context.Context, p Payload) error {
	return f(ctx, p)
}

type pendingAlarm struct {
	timer *time.Timer
	alarm Alarm
}

// TimerScheduler is an in-process Scheduler backed by time.AfterFunc.
// Arming an existing key replaces the previous alarm.
type TimerScheduler struct {
	notifier Notifier
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingAlarm
	closed  bool
}

// NewTimerScheduler creates a scheduler that hands fired alarms to n.
func NewTimerScheduler(n Notifier, logger *zap.Logger, m *metrics.Metrics) *TimerScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimerScheduler{
		notifier: n,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		pending:  make(map[string]*pendingAlarm),
	}
}

// Arm schedules payload at at. Instants that are not in the future are
// rejected.
func (s *TimerScheduler) Arm(at time.Time, payload Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("scheduler stopped")
	}

	if p, exists := s.pending[payload.Key]; exists {
		p.timer.Stop()
		delete(s.pending, payload.Key)
	}

	delay := at.Sub(s.now())
	if delay <= 0 {
		return fmt.Errorf("alarm %s is in the past", payload.Key)
	}

	key := payload.Key
	s.pending[key] = &pendingAlarm{
		alarm: Alarm{At: at, Payload: payload},
		timer: time.AfterFunc(delay, func() {
			s.fire(key)
		}),
	}
	s.metrics.RecordAlarm(string(payload.Kind), metrics.AlarmArmed)
	s.metrics.SetAlarmsPending(len(s.pending))

	s.logger.Debug("Alarm armed",
		zap.String("key", key),
		zap.Time("at", at),
	)
	return nil
}

// Cancel stops the alarm with key, if any.
func (s *TimerScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.pending[key]
	if !exists {
		return
	}
	p.timer.Stop()
	delete(s.pending, key)
	s.metrics.RecordAlarm(string(p.alarm.Payload.Kind), metrics.AlarmCancelled)
	s.metrics.SetAlarmsPending(len(s.pending))
}

// Pending returns the armed alarms ordered by trigger time.
func (s *TimerScheduler) Pending() []Alarm {
	s.mu.Lock()
	alarms := make([]Alarm, 0, len(s.pending))
	for _, p := range s.pending {
		alarms = append(alarms, p.alarm)
	}
	s.mu.Unlock()

	sort.Slice(alarms, func(i, j int) bool {
		if alarms[i].At.Equal(alarms[j].At) {
			return alarms[i].Payload.Key < alarms[j].Payload.Key
		}
		return alarms[i].At.Before(alarms[j].At)
	})
	return alarms
}

// Stop cancels every pending alarm and rejects further Arm calls.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, key)
	}
	s.closed = true
	s.metrics.SetAlarmsPending(0)
}

func (s *TimerScheduler) fire(key string) {
	s.mu.Lock()
	p, exists := s.pending[key]
	if exists {
		delete(s.pending, key)
	}
	s.metrics.SetAlarmsPending(len(s.pending))
	s.mu.Unlock()

	if !exists {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic in alarm notifier", zap.String("key", key), zap.Any("recover", r))
		}
	}()

	payload := p.alarm.Payload
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(context.Background(), payload); err != nil {
		s.metrics.RecordAlarm(string(payload.Kind), metrics.AlarmFailed)
		s.logger.Warn("Alarm notification failed", zap.String("key", key), zap.Error(err))
		return
	}
	s.metrics.RecordAlarm(string(payload.Kind), metrics.AlarmFired)
}
