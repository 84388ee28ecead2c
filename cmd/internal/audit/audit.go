// Package audit records authentication decisions.
//
// Recording is best-effort: a failing sink is logged and never fails the
// request that produced the event.
package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Actions.
const (
	ActionRegister        = "auth.register"
	ActionLogin           = "auth.login"
	ActionLoginSuspicious = "auth.login.suspicious"
	ActionRefresh         = "auth.refresh"
	ActionLogout          = "auth.logout"
	ActionSessionRevoke   = "auth.sessions.revoke"
	ActionSessionsRevoke  = "auth.sessions.revoke_all"
	ActionGate            = "auth.gate"
	ActionGuard           = "auth.guard"
	ActionUserUpdate      = "user.update"
)

// Event is one audit record.
type Event struct {
	Action    string
	Outcome   string
	UserID    string
	SessionID string
	IP        string
	UserAgent string
	Meta      map[string]any
	At        time.Time
}

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

// Nop discards events.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Event) {}

// LogRecorder writes events to a zap logger.
type LogRecorder struct {
	log *zap.Logger
}

// NewLogRecorder returns a Recorder logging at info level.
func NewLogRecorder(log *zap.Logger) *LogRecorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogRecorder{log: log}
}

// Record implements Recorder.
func (l *LogRecorder) Record(_ context.Context, ev Event) {
	fields := []zap.Field{
		zap.String("action", ev.Action),
		zap.String("outcome", ev.Outcome),
	}
	if ev.UserID != "" {
		fields = append(fields, zap.String("user_id", ev.UserID))
	}
	if ev.SessionID != "" {
		fields = append(fields, zap.String("session_id", ev.SessionID))
	}
	if ev.IP != "" {
		fields = append(fields, zap.String("ip", ev.IP))
	}
	if len(ev.Meta) > 0 {
		fields = append(fields, zap.Any("meta", ev.Meta))
	}
	l.log.Info("audit", fields...)
}

// MemoryRecorder keeps events in memory.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []Event
}

// Record implements Recorder.
func (m *MemoryRecorder) Record(_ context.Context, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// Events returns a copy of the recorded events.
func (m *MemoryRecorder) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Find returns the recorded events with action.
func (m *MemoryRecorder) Find(action string) []Event {
	var out []Event
	for _, ev := range m.Events() {
		if ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}
