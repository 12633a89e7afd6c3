package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/kv"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/reset"
)

type sessionState struct {
	access  string
	refresh string
	mu      sync.Mutex
}

const loadPassword = "Load-Test-Pass-1"

func main() {
	var (
		sessions    = flag.Int("sessions", 2000, "number of signed-in accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase")
		races       = flag.Int("races", 500, "refresh tokens presented twice concurrently")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt", "key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 || *races < 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	engine, err := buildEngine(client, *prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	total := *sessions + *races
	fmt.Printf("seeding %d sessions...\n", total)
	startSeed := time.Now()
	states := make([]sessionState, total)
	for i := range states {
		res, err := engine.Register(ctx, authcore.RegisterRequest{
			Email:    fmt.Sprintf("user-%d@loadtest.local", i),
			Password: loadPassword,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "register failed: %v\n", err)
			os.Exit(1)
		}
		states[i] = sessionState{access: res.AccessToken, refresh: res.RefreshToken}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	pool, raceStates := states[:*sessions], states[*sessions:]
	validateStats := runValidatePhase(ctx, engine, pool, *ops, *concurrency)
	refreshStats := runRefreshPhase(ctx, engine, pool, *ops, *concurrency)
	doubles := runRacePhase(ctx, engine, raceStates)

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)
	fmt.Printf("race: pairs=%d double_rotations=%d\n", len(raceStates), doubles)
	if doubles > 0 {
		os.Exit(1)
	}
}

type loadAccounts struct {
	mu   sync.RWMutex
	byID map[int64]*authcore.Account
	byEm map[string]*authcore.Account
}

func (a *loadAccounts) FindByEmail(_ context.Context, email string) (*authcore.Account, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if acct, ok := a.byEm[email]; ok {
		cp := *acct
		return &cp, nil
	}
	return nil, authcore.ErrUserNotFound
}

func (a *loadAccounts) FindByID(_ context.Context, id int64) (*authcore.Account, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if acct, ok := a.byID[id]; ok {
		cp := *acct
		return &cp, nil
	}
	return nil, authcore.ErrUserNotFound
}

func (a *loadAccounts) Create(_ context.Context, acct authcore.Account) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.byEm[acct.Email]; ok {
		return authcore.ErrDuplicateAccount
	}
	a.byID[acct.ID] = &acct
	a.byEm[acct.Email] = &acct
	return nil
}

func (a *loadAccounts) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	acct, ok := a.byID[id]
	if !ok {
		return authcore.ErrUserNotFound
	}
	acct.PasswordHash = hash
	return nil
}

func buildEngine(client redis.UniversalClient, prefix string) (*authcore.Engine, error) {
	enc, err := password.NewBcrypt(4)
	if err != nil {
		return nil, err
	}
	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("loadtest-signing-key-0123456789ab")
	cfg.Audit.Enabled = false

	return authcore.New().
		WithConfig(cfg).
		WithAccounts(&loadAccounts{byID: map[int64]*authcore.Account{}, byEm: map[string]*authcore.Account{}}).
		WithEncoder(enc).
		WithKV(kv.NewRedis(client, prefix)).
		WithRefreshStore(refresh.NewRedisStore(client, prefix+":rt")).
		WithResetStore(reset.NewMemory()).
		Build()
}

func runValidatePhase(ctx context.Context, e *authcore.Engine, states []sessionState, ops, concurrency int) phaseStats {
	return runPhase(ops, concurrency, 7919, func(r *rand.Rand, _ int) bool {
		s := &states[r.Intn(len(states))]
		s.mu.Lock()
		tok := s.access
		s.mu.Unlock()
		return e.ValidateToken(ctx, tok)
	})
}

func runRefreshPhase(ctx context.Context, e *authcore.Engine, states []sessionState, ops, concurrency int) phaseStats {
	return runPhase(ops, concurrency, 6151, func(r *rand.Rand, _ int) bool {
		s := &states[r.Intn(len(states))]
		s.mu.Lock()
		defer s.mu.Unlock()
		res, err := e.RefreshAccessToken(ctx, s.refresh)
		if err != nil {
			return false
		}
		s.access, s.refresh = res.AccessToken, res.RefreshToken
		return true
	})
}

// runRacePhase presents every token twice at once and counts pairs where
// both rotations succeeded.
func runRacePhase(ctx context.Context, e *authcore.Engine, states []sessionState) int64 {
	var doubles int64
	var wg sync.WaitGroup
	for i := range states {
		tok := states[i].refresh
		var wins int32
		var pair sync.WaitGroup
		start := make(chan struct{})
		for j := 0; j < 2; j++ {
			pair.Add(1)
			go func() {
				defer pair.Done()
				<-start
				if _, err := e.RefreshAccessToken(ctx, tok); err == nil {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			close(start)
			pair.Wait()
			if atomic.LoadInt32(&wins) > 1 {
				atomic.AddInt64(&doubles, 1)
			}
		}()
	}
	wg.Wait()
	return doubles
}

func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand, i int) bool) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				ok := op(r, i)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
