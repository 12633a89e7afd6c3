package limiters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/kv"
)

// AttemptConfig holds lockout policy for the attempt tracker.
type AttemptConfig struct {
	// Threshold is the failure count that trips a lockout.
	Threshold int
	// Window is the rolling period failures accumulate in. Each failure
	// re-arms it.
	Window time.Duration
	// Duration is the fixed lockout period. Further failures never extend it.
	Duration time.Duration
}

var (
	// ErrAttemptsUnavailable indicates the counter backend is unreachable.
	ErrAttemptsUnavailable = errors.New("attempt tracker backend unavailable")
)

// Source is request metadata stored with a lockout. It never affects the
// decision.
type Source struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"ua,omitempty"`
}

// Outcome is the result of one increment-and-classify step.
type Outcome struct {
	Count      int
	JustLocked bool
}

type lockRecord struct {
	Source
	LockedAt int64 `json:"locked_at"`
	Failures int   `json:"failures"`
}

// AttemptTracker counts failed logins per submitted identifier and locks the
// identifier once Threshold failures land inside Window.
//
// Read operations never return errors: a backend failure is logged and the
// identifier is treated as fresh. RecordFailure and Clear report errors so the
// caller can refuse to issue credentials with inconsistent bookkeeping.
type AttemptTracker struct {
	store  kv.Store
	config AttemptConfig
	now    func() time.Time
	log    *zap.Logger
}

// NewAttemptTracker creates a tracker. A nil logger discards output and a nil
// now uses time.Now.
func NewAttemptTracker(store kv.Store, cfg AttemptConfig, now func() time.Time, log *zap.Logger) *AttemptTracker {
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &AttemptTracker{
		store:  store,
		config: cfg,
		now:    now,
		log:    log.With(zap.String("component", "attempt_tracker")),
	}
}

func failKey(id string) string { return "ala:fail:" + id }
func lockKey(id string) string { return "ala:lock:" + id }

// RecordFailure atomically increments the failure counter for id and reports
// whether this failure established the lockout.
//
// Exactly one concurrent caller observes JustLocked for a given lockout.
func (t *AttemptTracker) RecordFailure(ctx context.Context, id string, src Source) (Outcome, error) {
	if id == "" {
		return Outcome{}, nil
	}

	count, err := t.store.Incr(ctx, failKey(id), t.config.Window)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrAttemptsUnavailable, err)
	}
	out := Outcome{Count: int(count)}
	if out.Count < t.config.Threshold {
		return out, nil
	}

	rec, _ := json.Marshal(lockRecord{Source: src, LockedAt: t.now().Unix(), Failures: out.Count})
	set, err := t.store.SetIfAbsent(ctx, lockKey(id), string(rec), t.config.Duration)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrAttemptsUnavailable, err)
	}
	out.JustLocked = set

	// The lock now carries the state; the next window starts from zero.
	if err := t.store.Delete(ctx, failKey(id)); err != nil {
		t.log.Warn("reset failure counter after lockout", zap.String("identifier", id), zap.Error(err))
	}
	if set {
		t.log.Info("identifier locked",
			zap.String("identifier", id),
			zap.Int("failures", out.Count),
			zap.String("ip", src.IP),
			zap.Duration("duration", t.config.Duration),
		)
	}
	return out, nil
}

// IsBlocked reports whether a lockout is active for id.
func (t *AttemptTracker) IsBlocked(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	locked, err := t.store.Exists(ctx, lockKey(id))
	if err != nil {
		t.log.Warn("lockout check failed", zap.String("identifier", id), zap.Error(err))
		return false
	}
	return locked
}

// RemainingAttempts returns Threshold minus the current count, floored at
// zero. A locked identifier has no attempts left.
func (t *AttemptTracker) RemainingAttempts(ctx context.Context, id string) int {
	if t.IsBlocked(ctx, id) {
		return 0
	}
	raw, ok, err := t.store.Get(ctx, failKey(id))
	if err != nil {
		t.log.Warn("failure count read failed", zap.String("identifier", id), zap.Error(err))
		return t.config.Threshold
	}
	if !ok {
		return t.config.Threshold
	}
	var count int
	if _, err := fmt.Sscan(raw, &count); err != nil {
		return t.config.Threshold
	}
	if left := t.config.Threshold - count; left > 0 {
		return left
	}
	return 0
}

// RemainingLockout returns the time until the lockout for id expires, or 0
// when id is not locked.
func (t *AttemptTracker) RemainingLockout(ctx context.Context, id string) time.Duration {
	if id == "" {
		return 0
	}
	d, err := t.store.TTL(ctx, lockKey(id))
	if err != nil {
		t.log.Warn("lockout ttl read failed", zap.String("identifier", id), zap.Error(err))
		return 0
	}
	return d
}

// Clear drops the failure counter and any lockout for id.
func (t *AttemptTracker) Clear(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := t.store.Delete(ctx, failKey(id), lockKey(id)); err != nil {
		return fmt.Errorf("%w: %v", ErrAttemptsUnavailable, err)
	}
	return nil
}

// Threshold returns the configured failure threshold.
func (t *AttemptTracker) Threshold() int { return t.config.Threshold }
