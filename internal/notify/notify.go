// Package notify delivers best-effort account notifications (reset links,
// password change notices, welcome messages).
//
// Delivery never blocks or fails the operation that triggered it: the
// [Dispatcher] queues notifications and a background worker hands them to a
// [Notifier], logging and counting failures.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Kinds of notification the engine sends.
const (
	KindPasswordReset   = "password_reset"
	KindPasswordChanged = "password_changed"
	KindWelcome         = "welcome"
)

// Notification is one outbound message. Data holds template values.
type Notification struct {
	Kind      string            `json:"kind"`
	Recipient string            `json:"recipient"`
	Data      map[string]string `json:"data,omitempty"`
}

// Notifier sends a notification. Implementations may block and may fail.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to a zap logger instead of delivering
// them. Template data is not logged because it can carry reset tokens.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log.With(zap.String("component", "notify.log"))}
}

func (n *LogNotifier) Send(_ context.Context, msg Notification) error {
	n.log.Info("notification",
		zap.String("kind", msg.Kind),
		zap.String("recipient", msg.Recipient),
		zap.Int("fields", len(msg.Data)),
	)
	return nil
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Send(ctx context.Context, n Notification) error { return f(ctx, n) }
