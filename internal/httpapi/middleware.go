package httpapi

import (
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/MrEthical07/authcore/internal/obs"
)

// IPLimiter hands out one token bucket per client IP. Buckets idle for
// longer than ttl are swept.
type IPLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
	buckets map[string]*bucket
	lastGC  time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewIPLimiter(perSecond float64, burst int, now func() time.Time) *IPLimiter {
	if now == nil {
		now = time.Now
	}
	if burst < 1 {
		burst = 1
	}
	return &IPLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		ttl:     10 * time.Minute,
		now:     now,
		buckets: make(map[string]*bucket),
	}
}

// Allow reports whether ip may make a request now.
func (l *IPLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastGC) > l.ttl {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > l.ttl {
				delete(l.buckets, k)
			}
		}
		l.lastGC = now
	}
	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

func (l *IPLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			writeError(c, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Recover reports panics to Sentry and answers 500.
func Recover(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				sentry.WithScope(func(scope *sentry.Scope) {
					scope.SetExtra("panic", rec)
					scope.SetExtra("stack", string(debug.Stack()))
					sentry.CaptureMessage("panic in request")
				})
				log.Error("panic recovered",
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
					zap.Any("panic", rec),
				)
				writeError(c, http.StatusInternalServerError, "INTERNAL", "internal server error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

// Trace opens a server span per request so engine spans and log lines
// share one trace id. A nil tracer uses the global provider.
func Trace(tracer trace.Tracer) gin.HandlerFunc {
	if tracer == nil {
		tracer = otel.Tracer("github.com/MrEthical07/authcore/internal/httpapi")
	}
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", c.FullPath()),
			),
		)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// RequestLog writes one line per request.
func RequestLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := append([]zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("ip", c.ClientIP()),
		}, obs.TraceFields(c.Request.Context())...)
		log.Info("http request", fields...)
	}
}

// NewRouter assembles the gin engine with the auth routes behind the
// per-IP limiter.
func NewRouter(h *Handler, limiter *IPLimiter, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	r := gin.New()
	r.Use(Recover(log), Trace(nil), RequestLog(log))
	if limiter != nil {
		r.Use(limiter.Middleware())
	}
	h.RegisterRoutes(r)
	return r
}
