package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pamgate/pamgate"
	"github.com/pamgate/pamgate/channel"
	"github.com/pamgate/pamgate/errors"
	"github.com/pamgate/pamgate/loader"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultWorkers       = 1
	DefaultSendTimeout   = 5 * time.Second
	DefaultChatTimeout   = 60 * time.Second
	DefaultCapacity      = 8
	DefaultShutdownGrace = 5 * time.Second
)

// Config holds configuration for engine creation.
type Config struct {
	// Workers is the number of OS-thread-pinned workers; it bounds the
	// maximum concurrency against the native module.
	Workers int

	// SendTimeout bounds every worker-to-caller message hand-off.
	SendTimeout time.Duration

	// ChatTimeout bounds the wait for a caller's answer to a prompt.
	ChatTimeout time.Duration

	// Capacity is the per-direction pipe buffer size.
	Capacity int

	// ShutdownGrace bounds how long Close waits for busy workers before
	// detaching them.
	ShutdownGrace time.Duration

	// Transactor overrides the process-wide loaded capability. Tests use it
	// to inject scripted modules; leave nil in production.
	Transactor loader.Transactor

	// LoaderOptions are forwarded to loader.Load when Transactor is nil.
	LoaderOptions []loader.Option
}

func (c Config) withDefaults() Config {
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.SendTimeout == 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.ChatTimeout == 0 {
		c.ChatTimeout = DefaultChatTimeout
	}
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	if c.ShutdownGrace == 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}
	return c
}

func (c Config) validate() error {
	if c.Workers < 1 {
		return errors.InvalidConfig("workers must be positive, got %d", c.Workers)
	}
	if c.SendTimeout < 0 || c.ChatTimeout < 0 {
		return errors.InvalidConfig("timeouts must be positive")
	}
	if c.Capacity < 1 {
		return errors.InvalidConfig("channel capacity must be positive, got %d", c.Capacity)
	}
	return nil
}

// Engine owns the worker pool and admits conversations. Immutable after New;
// safe for concurrent use.
type Engine struct {
	cfg   Config
	tr    loader.Transactor
	tasks chan *task
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// task is one admitted conversation, handed to exactly one worker.
type task struct {
	id       uuid.UUID
	service  string
	identity string
	messages *channel.Pipe[pamgate.Message]
	answers  *channel.Pipe[string]
}

// New validates cfg, loads the native capability (unless a Transactor is
// injected) and spawns the worker pool. Workers park until assigned work and
// live until Close.
func New(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	tr := cfg.Transactor
	if tr == nil {
		capability, err := loader.Load(cfg.LoaderOptions...)
		if err != nil {
			return nil, err
		}
		tr = capability
	}

	e := &Engine{
		cfg:   cfg,
		tr:    tr,
		tasks: make(chan *task), // unbuffered: a send succeeds only if a worker is parked
	}

	Logger().Debug("starting PAM workers", zap.Int("workers", cfg.Workers))
	for i := 0; i < cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}
	return e, nil
}

// Begin requests a conversation for the named service and identity. It never
// blocks: if no worker is idle the request is rejected with a pool-exhausted
// error rather than queued, so a stuck native call cannot silently back up
// unrelated authentication requests.
func (e *Engine) Begin(service, identity string) (*pamgate.Conversation, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, errors.Closed(errors.PhaseBegin, "begin")
	}

	t := &task{
		id:       uuid.New(),
		service:  service,
		identity: identity,
		messages: channel.NewPipe[pamgate.Message](e.cfg.Capacity),
		answers:  channel.NewPipe[string](e.cfg.Capacity),
	}

	select {
	case e.tasks <- t:
		Logger().Debug("conversation admitted",
			zap.Stringer("conversation", t.id),
			zap.String("service", service),
			zap.String("user", identity))
		return pamgate.NewConversation(t.id, t.messages, t.answers), nil
	default:
		return nil, errors.Exhausted(e.cfg.Workers)
	}
}

// Close stops admitting conversations and joins the workers, waiting up to the
// configured grace period for in-flight native calls to vacate. Workers still
// stuck inside the native module after that are detached with a warning; they
// exit on their own once the call returns. Close is idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.tasks)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(e.cfg.ShutdownGrace)
	defer timer.Stop()

	select {
	case <-done:
		Logger().Debug("engine closed")
		return nil
	case <-timer.C:
		Logger().Warn("workers still inside native calls after grace period; detaching",
			zap.Duration("grace", e.cfg.ShutdownGrace))
		return errors.New(errors.PhaseShutdown, errors.KindTimeout).
			Detail("workers busy after %s grace period", e.cfg.ShutdownGrace).Build()
	}
}
