// ABOUTME: Session controller owning the engine client, queues and goroutines.
// ABOUTME: Implements Start, Stop and Restart plus the login entry points.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/2389/tdsession/internal/engine"
	"github.com/2389/tdsession/internal/login"
	"github.com/2389/tdsession/internal/metrics"
	"github.com/2389/tdsession/internal/msgid"
	"github.com/2389/tdsession/internal/pending"
	"github.com/2389/tdsession/internal/tdapi"
	"github.com/2389/tdsession/internal/tderr"
)

var (
	// ErrNotRunning is returned by calls that need a started session.
	ErrNotRunning = errors.New("session not running")

	// ErrAlreadyRunning is returned by Start on a started session.
	ErrAlreadyRunning = errors.New("session already running")

	// ErrTimeout is returned by Send when every attempt went unanswered.
	ErrTimeout = errors.New("request timed out")

	// ErrSessionClosed fails requests that were waiting when the session stopped.
	ErrSessionClosed = errors.New("session closed")

	// ErrTransport wraps engine client failures.
	ErrTransport = errors.New("engine transport failure")
)

// Journal records session lifecycle events. Implemented by the triage store.
type Journal interface {
	RecordSessionEvent(ctx context.Context, sessionID, kind, detail string) error
}

// Options carries the collaborators of a Controller. All fields are optional.
type Options struct {
	Logger   *slog.Logger
	Registry *tdapi.Registry
	Resolver *tderr.Resolver
	Metrics  *metrics.Collectors
	Journal  Journal
	Provider login.CredentialProvider
	IDs      *msgid.Generator
}

// Controller is one engine session.
type Controller struct {
	cfg      Config
	factory  engine.Factory
	logger   *slog.Logger
	registry *tdapi.Registry
	resolver *tderr.Resolver
	metrics  *metrics.Collectors
	journal  Journal
	ids      *msgid.Generator
	pending  *pending.Table
	auth     *login.Machine

	handlersMu sync.RWMutex
	handlers   []UpdateHandler

	lifeMu sync.Mutex // serializes Start and Stop
	run    atomic.Pointer[run]
}

// run is the state of one Start..Stop cycle.
type run struct {
	id     string
	client engine.Client
	ctx    context.Context
	cancel context.CancelFunc
	stage1 *queue
	stage2 chan item
	group  errgroup.Group

	running  atomic.Bool
	closing  atomic.Bool
	stopOnce sync.Once
	reason   error
	done     chan struct{}
}

// item is one queue entry; stop marks the shutdown sentinel.
type item struct {
	env  *tdapi.Envelope
	obj  tdapi.Object
	stop bool
}

// New creates a Controller. The engine client is created on Start.
func New(factory engine.Factory, cfg Config, opts Options) *Controller {
	cfg = cfg.withDefaults()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := opts.Registry
	if registry == nil {
		registry = tdapi.NewRegistry()
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = tderr.NewResolver(nil, logger)
	}
	ids := opts.IDs
	if ids == nil {
		ids = msgid.New()
	}

	c := &Controller{
		cfg:      cfg,
		factory:  factory,
		logger:   logger.With("component", "session"),
		registry: registry,
		resolver: resolver,
		metrics:  opts.Metrics,
		journal:  opts.Journal,
		ids:      ids,
		pending:  pending.New(cfg.LateTTL, 0),
	}
	c.auth = login.New(login.Config{
		Sender:   c,
		Provider: opts.Provider,
		Stop: func(reason error) {
			if rs := c.run.Load(); rs != nil {
				c.stopAsync(rs, reason)
			}
		},
		OnState: c.onAuthState,
		Logger:  logger,
	})
	return c
}

// Login requests an authorization with creds. Values left empty are asked
// from the credential provider when the engine needs them.
func (c *Controller) Login(creds login.Credentials) {
	c.auth.Request(creds)
}

// LoggedIn reports whether the engine reached the Ready state.
func (c *Controller) LoggedIn() bool {
	return c.auth.LoggedIn()
}

// AuthorizationState returns the last authorization state seen, or nil.
func (c *Controller) AuthorizationState() tdapi.AuthorizationState {
	return c.auth.State()
}

// SessionID returns the id of the current or last run.
func (c *Controller) SessionID() string {
	if rs := c.run.Load(); rs != nil {
		return rs.id
	}
	return ""
}

// Running reports whether the session is started.
func (c *Controller) Running() bool {
	rs := c.run.Load()
	return rs != nil && rs.running.Load()
}

// Done returns a channel closed when the current run has fully stopped.
// It is nil before the first Start.
func (c *Controller) Done() <-chan struct{} {
	if rs := c.run.Load(); rs != nil {
		return rs.done
	}
	return nil
}

// Err returns why the last run stopped; nil for an explicit Stop.
func (c *Controller) Err() error {
	rs := c.run.Load()
	if rs == nil {
		return nil
	}
	select {
	case <-rs.done:
		return rs.reason
	default:
		return nil
	}
}

// Start creates the engine client and starts the dispatch loop and workers.
func (c *Controller) Start(ctx context.Context) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if rs := c.run.Load(); rs != nil && rs.running.Load() {
		return ErrAlreadyRunning
	}

	client, err := c.factory()
	if err != nil {
		return fmt.Errorf("creating engine client: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rs := &run{
		id:     uuid.New().String(),
		client: client,
		ctx:    runCtx,
		cancel: cancel,
		stage1: newQueue(),
		stage2: make(chan item, c.cfg.QueueSize),
		done:   make(chan struct{}),
	}
	rs.running.Store(true)

	c.pending.Reopen()
	c.auth.Reset()
	c.run.Store(rs)

	c.applyEngineLog(client)

	rs.group.Go(func() error { return c.dispatch(rs) })
	for i := range c.cfg.Workers {
		rs.group.Go(func() error { return c.stage1Worker(rs, i) })
		rs.group.Go(func() error { return c.stage2Worker(rs, i) })
	}
	rs.group.Go(func() error { return c.initialize(rs) })

	c.metrics.SetRunning(true)
	c.record(rs, "start", "")
	c.logger.Info("session started",
		"session_id", rs.id,
		"workers", c.cfg.Workers)
	return nil
}

// initialize answers the engine's startup states. A rejected or unanswered
// request stops the session.
func (c *Controller) initialize(rs *run) error {
	params := c.cfg.Parameters
	steps := []tdapi.Object{
		&tdapi.SetTdlibParameters{Parameters: &params},
		&tdapi.CheckDatabaseEncryptionKey{EncryptionKey: c.cfg.EncryptionKey},
	}
	for _, req := range steps {
		_, err := c.send(rs.ctx, rs, req)
		if err == nil {
			continue
		}
		if !rs.running.Load() {
			return nil
		}
		c.logger.Error("initializing engine",
			"session_id", rs.id,
			"request", req.Type(),
			"error", err)
		c.stopAsync(rs, fmt.Errorf("%s: %w", req.Type(), err))
		return nil
	}
	return nil
}

// applyEngineLog routes the engine's log as configured.
func (c *Controller) applyEngineLog(client engine.Client) {
	el := c.cfg.EngineLog
	if el.Verbosity != nil {
		if _, err := c.executeOn(client, &tdapi.SetLogVerbosityLevel{NewVerbosityLevel: *el.Verbosity}); err != nil {
			c.logger.Warn("setting engine log verbosity", "error", err)
		}
	}
	if el.File != "" {
		stream := &tdapi.SetLogStream{LogStream: &tdapi.LogStreamFile{Path: el.File, MaxFileSize: el.MaxFileSize}}
		if _, err := c.executeOn(client, stream); err != nil {
			c.logger.Warn("setting engine log file", "path", el.File, "error", err)
		}
	}
}

// Stop shuts the session down and waits for its goroutines. Stopping a
// stopped session is a no-op.
func (c *Controller) Stop() error {
	rs := c.run.Load()
	if rs == nil {
		return nil
	}
	return c.stopRun(rs, nil)
}

// Restart stops the session and starts it again with the same configuration.
func (c *Controller) Restart(ctx context.Context) error {
	if err := c.Stop(); err != nil {
		c.logger.Warn("stopping for restart", "error", err)
	}
	return c.Start(ctx)
}

// stopAsync stops rs from a goroutine that Stop itself waits for.
func (c *Controller) stopAsync(rs *run, reason error) {
	if !rs.running.Load() {
		return
	}
	go func() {
		if err := c.stopRun(rs, reason); err != nil {
			c.logger.Warn("stopping session", "session_id", rs.id, "error", err)
		}
	}()
}

func (c *Controller) stopRun(rs *run, reason error) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	var err error
	rs.stopOnce.Do(func() {
		err = c.shutdown(rs, reason)
	})
	return err
}

func (c *Controller) shutdown(rs *run, reason error) error {
	c.logger.Info("stopping session", "session_id", rs.id, "reason", reason)

	rs.reason = reason
	rs.running.Store(false)
	rs.cancel()

	closed := ErrSessionClosed
	if reason != nil {
		closed = fmt.Errorf("%w: %w", ErrSessionClosed, reason)
	}
	c.pending.Close(closed)

	// One sentinel per stage-1 worker; each forwards one to stage 2.
	for range c.cfg.Workers {
		rs.stage1.push(item{stop: true})
	}
	waited := make(chan error, 1)
	go func() { waited <- rs.group.Wait() }()

	var errs []error
	timer := time.NewTimer(c.cfg.StopTimeout)
	defer timer.Stop()
	select {
	case err := <-waited:
		if err != nil {
			errs = append(errs, err)
		}
	case <-timer.C:
		c.logger.Warn("session goroutines did not exit in time",
			"session_id", rs.id,
			"timeout", c.cfg.StopTimeout)
		errs = append(errs, fmt.Errorf("waiting for session goroutines: %w", context.DeadlineExceeded))
	}

	if err := rs.client.Destroy(); err != nil && !errors.Is(err, engine.ErrDestroyed) {
		errs = append(errs, fmt.Errorf("destroying engine client: %w", err))
	}

	c.metrics.SetRunning(false)
	detail := ""
	if reason != nil {
		detail = reason.Error()
	}
	c.record(rs, "stop", detail)
	close(rs.done)

	c.logger.Info("session stopped", "session_id", rs.id)
	return errors.Join(errs...)
}

func (c *Controller) onAuthState(st tdapi.AuthorizationState) {
	c.metrics.IncAuthState(st.Type())
	if rs := c.run.Load(); rs != nil {
		c.record(rs, "auth_state", st.Type())
	}
}

func (c *Controller) record(rs *run, kind, detail string) {
	if c.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.journal.RecordSessionEvent(ctx, rs.id, kind, detail); err != nil {
		c.logger.Warn("journaling session event", "kind", kind, "error", err)
	}
}
