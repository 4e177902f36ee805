// ABOUTME: Resolved session configuration and its defaults.
// ABOUTME: Immutable once passed to New.

package session

import (
	"time"

	"github.com/2389/tdsession/internal/tdapi"
)

// Defaults applied to zero Config fields.
const (
	DefaultWorkers     = 2
	DefaultWaitTimeout = 10 * time.Second
	DefaultMaxRetries  = 5
	DefaultPollTimeout = time.Second
	DefaultQueueSize   = 1000
	DefaultStopTimeout = 15 * time.Second
	DefaultLateTTL     = 5 * time.Minute
)

// EngineLog configures the engine's own log, applied with Execute at start.
type EngineLog struct {
	// Verbosity is the engine log level; nil leaves the engine default.
	Verbosity *int
	// File redirects the engine log to a file when set.
	File string
	// MaxFileSize rotates the engine log file at this many bytes.
	MaxFileSize int64
}

// Config is everything a session needs to run.
type Config struct {
	Parameters    tdapi.TdlibParameters
	EncryptionKey string
	EngineLog     EngineLog

	// Workers is the number of goroutines in each worker stage.
	Workers int
	// WaitTimeout bounds a single wait for a response.
	WaitTimeout time.Duration
	// MaxRetries is the number of attempts Send makes before ErrTimeout.
	MaxRetries int
	// PollTimeout bounds each engine Receive so the loop notices Stop.
	PollTimeout time.Duration
	// QueueSize is the capacity of the stage-2 queue. Stage 1 is unbounded
	// so the dispatch loop never waits on a busy worker.
	QueueSize int
	// StopTimeout bounds how long Stop waits for goroutines to exit.
	StopTimeout time.Duration
	// LateTTL is how long abandoned correlation ids are remembered.
	LateTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = DefaultWaitTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	// Stage 2 holds the shutdown sentinels too.
	if c.QueueSize < c.Workers {
		c.QueueSize = c.Workers
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.LateTTL <= 0 {
		c.LateTTL = DefaultLateTTL
	}
	return c
}
