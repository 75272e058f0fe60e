package bridge

import (
	"context"
	"time"

	"github.com/coreos/go-semver/semver"
	"go.uber.org/zap"

	"github.com/pamgate/pamgate"
	"github.com/pamgate/pamgate/engine"
	"github.com/pamgate/pamgate/errors"
	"github.com/pamgate/pamgate/loader"
)

// Authenticator is the high-level surface of the bridge: one shared engine
// serving both blocking and context-aware callers. Safe for concurrent use.
type Authenticator struct {
	engine *engine.Engine
}

type settings struct {
	cfg        engine.Config
	loaderOpts []loader.Option
	logger     *zap.Logger
	err        error
}

// Option configures an Authenticator.
type Option func(*settings)

// WithWorkers sets the worker pool size; it bounds the maximum concurrency
// against the native module.
func WithWorkers(n int) Option {
	return func(s *settings) { s.cfg.Workers = n }
}

// WithSendTimeout bounds every worker-to-caller message hand-off.
func WithSendTimeout(d time.Duration) Option {
	return func(s *settings) { s.cfg.SendTimeout = d }
}

// WithChatTimeout bounds the wait for the caller's answer to a prompt.
func WithChatTimeout(d time.Duration) Option {
	return func(s *settings) { s.cfg.ChatTimeout = d }
}

// WithChannelCapacity sets the per-direction pipe buffer size.
func WithChannelCapacity(n int) Option {
	return func(s *settings) { s.cfg.Capacity = n }
}

// WithShutdownGrace bounds how long Close waits for busy workers.
func WithShutdownGrace(d time.Duration) Option {
	return func(s *settings) { s.cfg.ShutdownGrace = d }
}

// WithModulePath overrides the conventional libpam search path.
func WithModulePath(path string) Option {
	return func(s *settings) {
		s.loaderOpts = append(s.loaderOpts, loader.WithPath(path))
	}
}

// WithMinVersion rejects installed libraries older than version, when the
// installed version is discoverable. The string must parse as semver.
func WithMinVersion(version string) Option {
	return func(s *settings) {
		v, err := semver.NewVersion(version)
		if err != nil {
			s.err = errors.InvalidConfig("min version %q: %v", version, err)
			return
		}
		s.loaderOpts = append(s.loaderOpts, loader.WithMinVersion(v))
	}
}

// WithLogger wires l into the engine and loader packages.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithTransactor substitutes the native module with a custom implementation.
// Intended for tests and embedders with their own PAM binding.
func WithTransactor(t loader.Transactor) Option {
	return func(s *settings) { s.cfg.Transactor = t }
}

// New assembles an immutable Authenticator. It fails synchronously with an
// invalid-config error on bad options and with an unavailable error when the
// native module cannot be loaded.
func New(opts ...Option) (*Authenticator, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	if s.err != nil {
		return nil, s.err
	}

	if s.logger != nil {
		engine.SetLogger(s.logger)
		loader.SetLogger(s.logger)
	}

	s.cfg.LoaderOptions = s.loaderOpts
	eng, err := engine.New(s.cfg)
	if err != nil {
		return nil, err
	}
	return &Authenticator{engine: eng}, nil
}

// Chat requests a conversation for the named service and login. It does not
// block: when all workers are busy it fails immediately with a pool-exhausted
// error, leaving retry policy to the caller.
func (a *Authenticator) Chat(service, login string) (*pamgate.Conversation, error) {
	return a.engine.Begin(service, login)
}

// ChatContext is the cooperative form of Chat. Admission itself never blocks,
// so the context only gates an already-cancelled call; the per-message
// operations on the returned Conversation take their own contexts.
func (a *Authenticator) ChatContext(ctx context.Context, service, login string) (*pamgate.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.New(errors.PhaseBegin, errors.KindTimeout).
			Op("chat").Cause(err).Build()
	}
	return a.engine.Begin(service, login)
}

// Close shuts the engine down, waiting a bounded grace period for in-flight
// native calls before detaching their workers.
func (a *Authenticator) Close() error {
	return a.engine.Close()
}
