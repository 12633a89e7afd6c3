package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types emitted by the engine.
const (
	TypeLoginSuccess         = "login.success"
	TypeLoginFailure         = "login.failure"
	TypeLoginLocked          = "login.locked"
	TypeAccountLocked        = "account.locked"
	TypeRefreshSuccess       = "refresh.success"
	TypeRefreshFailure       = "refresh.failure"
	TypeLogout               = "logout"
	TypeRegisterSuccess      = "register.success"
	TypePasswordResetRequest = "password_reset.request"
	TypePasswordResetConfirm = "password_reset.confirm"
)

// Event is one security-relevant occurrence. It never carries secrets.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Success   bool              `json:"success"`
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
}

// ZapSink logs each event at Info under the "audit" logger.
type ZapSink struct {
	log *zap.Logger
}

func NewZapSink(log *zap.Logger) *ZapSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapSink{log: log.Named("audit")}
}

func (s *ZapSink) Emit(_ context.Context, e Event) {
	fields := []zap.Field{
		zap.String("event_type", e.EventType),
		zap.Bool("success", e.Success),
		zap.Time("event_ts", e.Timestamp),
	}
	if e.UserID != "" {
		fields = append(fields, zap.String("user_id", e.UserID))
	}
	if e.Email != "" {
		fields = append(fields, zap.String("email", e.Email))
	}
	if e.IP != "" {
		fields = append(fields, zap.String("ip", e.IP))
	}
	if e.Reason != "" {
		fields = append(fields, zap.String("reason", e.Reason))
	}
	for k, v := range e.Metadata {
		fields = append(fields, zap.String("meta."+k, v))
	}
	s.log.Info("audit", fields...)
}
