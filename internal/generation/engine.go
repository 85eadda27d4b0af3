package generation

import (
	"math/rand"
	"sync"
	"time"

	"popsim/internal/config"
	"popsim/internal/llm"
	"popsim/internal/logging"

	"go.uber.org/zap"
)

// Option customizes an engine
type Option func(*engine)

// WithSleeper replaces the backoff sleeper
func WithSleeper(s Sleeper) Option {
	return func(e *engine) { e.sleep = s }
}

// WithSeed makes every random choice reproducible
func WithSeed(seed int64) Option {
	return func(e *engine) { e.master = rand.New(rand.NewSource(seed)) }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *engine) { e.now = now }
}

// engine is the state shared by the three synthesis engines
type engine struct {
	gw     llm.Gateway
	cfg    config.GenerationConfig
	logger *zap.Logger
	sleep  Sleeper
	now    func() time.Time

	mu     sync.Mutex
	master *rand.Rand
}

func newEngine(gw llm.Gateway, cfg config.GenerationConfig, logger *zap.Logger, opts []Option) *engine {
	defaults := config.DefaultGenerationConfig()
	if cfg.AgentBatchSize <= 0 {
		cfg.AgentBatchSize = defaults.AgentBatchSize
	}
	if cfg.PollBatchSize <= 0 {
		cfg.PollBatchSize = defaults.PollBatchSize
	}
	if cfg.ReactionBatchSize <= 0 {
		cfg.ReactionBatchSize = defaults.ReactionBatchSize
	}
	if cfg.ReactionMaxAttempts <= 0 {
		cfg.ReactionMaxAttempts = defaults.ReactionMaxAttempts
	}
	if cfg.NameWindow <= 0 {
		cfg.NameWindow = defaults.NameWindow
	}
	e := &engine{
		gw:     gw,
		cfg:    cfg,
		logger: logging.OrNop(logger),
		sleep:  ContextSleep,
		now:    time.Now,
		master: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// rand returns a generator owned by one call. rand.Rand is not safe for
// concurrent use and engines serve several runs at once.
func (e *engine) rand() *rand.Rand {
	e.mu.Lock()
	defer e.mu.Unlock()
	return rand.New(rand.NewSource(e.master.Int63()))
}

func chunks(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
