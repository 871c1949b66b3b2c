package db

import (
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/viant/sqlite-facade/storage"
)

// Option configures a Connection at Open time.
type Option func(*options)

type options struct {
	mode             string
	backend          storage.Backend
	logger           lgr.L
	busyTimeout      time.Duration
	journalMode      string
	clearOnReset     bool
	metrics          *Metrics
	foreignKeys      bool
	foreignKeysIsSet bool
}

func defaultOptions() *options {
	return &options{
		mode:        "c",
		logger:      lgr.NoOp,
		busyTimeout: 5 * time.Second,
	}
}

// WithMode sets the open-mode flag string ("c", "w", "r", optionally with "t"
// for SQL tracing). Default "c".
func WithMode(flags string) Option {
	return func(o *options) { o.mode = flags }
}

// WithBackend resolves logical database names through b. Without a backend,
// names are used as host paths.
func WithBackend(b storage.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithLogger sets the logger used for tracing and warnings. Default lgr.NoOp.
func WithLogger(l lgr.L) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithBusyTimeout sets how long the engine waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// WithJournalMode issues PRAGMA journal_mode after open (e.g. "wal").
func WithJournalMode(mode string) Option {
	return func(o *options) { o.journalMode = mode }
}

// WithClearBindingsOnReset makes Statement.Reset also clear bound parameters.
// By default bindings survive a reset.
func WithClearBindingsOnReset() Option {
	return func(o *options) { o.clearOnReset = true }
}

// WithMetrics records statement, scope and function activity into m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithForeignKeys toggles PRAGMA foreign_keys after open.
func WithForeignKeys(on bool) Option {
	return func(o *options) {
		o.foreignKeys = on
		o.foreignKeysIsSet = true
	}
}
