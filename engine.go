package authcore

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/internal/notify"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/reset"
	"github.com/MrEthical07/authcore/token"
)

// Engine is the session orchestrator. It is safe for concurrent use once
// built and holds no lock across calls to collaborators.
type Engine struct {
	config      Config
	accounts    AccountStore
	encoder     Encoder
	tokens      *token.Manager
	attempts    *limiters.AttemptTracker
	revocations *stores.RevocationList
	refresh     *refresh.Service
	resets      *reset.Ledger
	ids         IDGenerator
	audit       *audit.Dispatcher
	notify      *notify.Dispatcher
	metrics     *Metrics
	gatherer    prometheus.Gatherer
	log         *zap.Logger
	now         func() time.Time
	tracer      trace.Tracer
	dummyHash   string
}

// Close drains the audit and notification queues.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
	e.notify.Close()
}

// Gatherer returns the registry metrics were registered on, or nil when the
// caller supplied a Registerer that cannot gather.
func (e *Engine) Gatherer() prometheus.Gatherer {
	if e == nil {
		return nil
	}
	return e.gatherer
}

// AuditDropped returns the number of audit events the buffer discarded.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// PruneExpired deletes refresh and reset tokens that expired before the
// given time.
func (e *Engine) PruneExpired(ctx context.Context, before time.Time) (refreshed, resets int, err error) {
	if e == nil {
		return 0, 0, ErrEngineNotReady
	}
	if refreshed, err = e.refresh.DeleteExpired(ctx, before); err != nil {
		return 0, 0, err
	}
	if resets, err = e.resets.DeleteExpired(ctx, before); err != nil {
		return refreshed, 0, err
	}
	return refreshed, resets, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func userIDString(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func (e *Engine) emitAudit(ctx context.Context, ev audit.Event) {
	ev.Timestamp = e.now().UTC()
	e.audit.Emit(ctx, ev)
}

func (e *Engine) sendNotification(n Notification) {
	e.notify.Enqueue(n)
}

func trackerSource(s Source) limiters.Source {
	return limiters.Source{IP: s.IP, UserAgent: s.UserAgent}
}
