package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/idgen"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/internal/notify"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/kv"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/reset"
	"github.com/MrEthical07/authcore/token"
)

// Builder assembles an Engine. It is single use.
type Builder struct {
	config Config

	accounts     AccountStore
	encoder      Encoder
	kv           kv.Store
	refreshStore refresh.Store
	resetStore   reset.Store
	notifier     Notifier
	auditSink    AuditSink
	log          *zap.Logger
	now          Clock
	ids          IDGenerator
	registerer   prometheus.Registerer
	tracer       trace.Tracer

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithAccounts sets the account store. Required.
func (b *Builder) WithAccounts(a AccountStore) *Builder {
	b.accounts = a
	return b
}

// WithEncoder sets the password encoder. Required.
func (b *Builder) WithEncoder(e Encoder) *Builder {
	b.encoder = e
	return b
}

// WithKV sets the volatile store backing lockouts and revocations. Required.
func (b *Builder) WithKV(s kv.Store) *Builder {
	b.kv = s
	return b
}

// WithRefreshStore sets refresh token persistence. Required.
func (b *Builder) WithRefreshStore(s refresh.Store) *Builder {
	b.refreshStore = s
	return b
}

// WithResetStore sets reset token persistence. Required.
func (b *Builder) WithResetStore(s reset.Store) *Builder {
	b.resetStore = s
	return b
}

// WithNotifier sets the outbound notifier. Without one, notifications are
// logged.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.log = l
	return b
}

// WithClock replaces time.Now for every time-dependent decision.
func (b *Builder) WithClock(now Clock) *Builder {
	b.now = now
	return b
}

// WithIDGenerator sets the row id source. The default is a node-0
// snowflake generator.
func (b *Builder) WithIDGenerator(g IDGenerator) *Builder {
	b.ids = g
	return b
}

func (b *Builder) WithAuditSink(s AuditSink) *Builder {
	b.auditSink = s
	return b
}

// WithRegisterer sets where metrics are registered. The default is a
// private registry exposed by Engine.Gatherer.
func (b *Builder) WithRegisterer(r prometheus.Registerer) *Builder {
	b.registerer = r
	return b
}

func (b *Builder) WithTracer(t trace.Tracer) *Builder {
	b.tracer = t
	return b
}

// Build validates configuration and collaborators and starts the engine's
// background dispatchers.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch {
	case b.accounts == nil:
		return nil, errors.New("account store required")
	case b.encoder == nil:
		return nil, errors.New("password encoder required")
	case b.kv == nil:
		return nil, errors.New("kv store required")
	case b.refreshStore == nil:
		return nil, errors.New("refresh store required")
	case b.resetStore == nil:
		return nil, errors.New("reset store required")
	}

	log := b.log
	if log == nil {
		log = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}
	ids := b.ids
	if ids == nil {
		gen, err := idgen.New(0, now)
		if err != nil {
			return nil, err
		}
		ids = gen
	}
	tracer := b.tracer
	if tracer == nil {
		tracer = defaultTracer()
	}

	var gatherer prometheus.Gatherer
	reg := b.registerer
	if reg == nil {
		private := prometheus.NewRegistry()
		reg, gatherer = private, private
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	m, err := NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	tokens, err := token.NewManager(token.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: token.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
	}, now)
	if err != nil {
		return nil, err
	}

	refreshSvc, err := refresh.NewService(b.refreshStore, ids, refresh.Config{TTL: cfg.Refresh.TTL}, now)
	if err != nil {
		return nil, err
	}
	ledger, err := reset.NewLedger(b.resetStore, ids, reset.Config{
		TTL:    cfg.PasswordReset.TTL,
		Limit:  cfg.PasswordReset.Limit,
		Window: cfg.PasswordReset.Window,
	}, now)
	if err != nil {
		return nil, err
	}

	// Unknown-account logins verify against this so both paths cost one
	// encoder comparison.
	dummyHash, err := b.encoder.Hash("authcore-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("encoder self-check: %w", err)
	}

	e := &Engine{
		config:    cfg,
		accounts:  b.accounts,
		encoder:   b.encoder,
		tokens:    tokens,
		refresh:   refreshSvc,
		resets:    ledger,
		ids:       ids,
		metrics:   m,
		gatherer:  gatherer,
		log:       log,
		now:       now,
		tracer:    tracer,
		dummyHash: dummyHash,
	}
	e.attempts = limiters.NewAttemptTracker(b.kv, limiters.AttemptConfig{
		Threshold: cfg.Lockout.Threshold,
		Window:    cfg.Lockout.Window,
		Duration:  cfg.Lockout.Duration,
	}, now, log)
	e.revocations = stores.NewRevocationList(b.kv, log, func(op string) {
		m.revocationFailures.WithLabelValues(op).Inc()
	})

	sink := b.auditSink
	if sink == nil {
		sink = audit.NewZapSink(log)
	}
	e.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop:     func(audit.Event) { m.auditDropped.Inc() },
	}, sink)
	e.notify = notify.NewDispatcher(notify.DispatcherConfig{
		BufferSize:  cfg.Notify.BufferSize,
		SendTimeout: cfg.Notify.SendTimeout,
		OnDrop:      func(notify.Notification) { m.notificationsDropped.Inc() },
	}, b.notifier, log)

	b.built = true
	return e, nil
}
