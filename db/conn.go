package db

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/viant/sqlite-facade/storage"
	"github.com/viant/sqlite-facade/value"
)

// MemoryName opens a private in-memory database.
const MemoryName = ":memory:"

// Connection is a single logical database handle. It owns every Statement it
// compiled and the scalar functions registered on it.
//
// A Connection is not safe for concurrent use: compilation, binding, stepping
// and scope transitions must be serialized by the caller. Independent
// connections may be used from different goroutines.
type Connection struct {
	id     string
	name   string
	path   string
	mode   storage.Mode
	conn   *sqlite.Conn
	opts   *options
	log    lgr.L
	stmts  map[*Statement]struct{}
	funcs  map[funcKey]*function
	scopes []*scopeFrame
	seq    uint64
	closed bool
	// fnErr is the first registered function failure of the step in progress.
	fnErr error
}

// Open opens the database called name. name is either MemoryName, a logical
// name resolved through the configured storage backend, or (without a
// backend) a host path.
func Open(name string, opts ...Option) (*Connection, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	mode, err := storage.ParseMode(o.mode)
	if err != nil {
		return nil, &Error{Kind: KindStorage, Op: "open", Err: err}
	}
	path, err := resolvePath(name, mode, o.backend)
	if err != nil {
		return nil, &Error{Kind: KindStorage, Op: "open", Err: err}
	}

	raw, err := sqlite.OpenConn(path, openFlags(path, mode)...)
	if err != nil {
		return nil, engineError("open "+strconv.Quote(name), "", err)
	}
	c := &Connection{
		id:    uuid.NewString(),
		name:  name,
		path:  path,
		mode:  mode,
		conn:  raw,
		opts:  o,
		log:   o.logger,
		stmts: make(map[*Statement]struct{}),
		funcs: make(map[funcKey]*function),
	}
	if err := c.configure(); err != nil {
		_ = raw.Close()
		return nil, err
	}
	c.log.Logf("[DEBUG] connection %s opened %q (%s) mode %s", c.id, name, path, mode)
	return c, nil
}

func resolvePath(name string, mode storage.Mode, backend storage.Backend) (string, error) {
	if name == "" || name == MemoryName {
		return MemoryName, nil
	}
	if backend == nil || strings.HasPrefix(name, "file:") {
		return name, nil
	}
	path, err := backend.Path(name)
	if err != nil {
		return "", err
	}
	if mode.Create {
		// materialize the file (and its directory) through the backend
		f, err := backend.Open(name, mode)
		if err != nil {
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
	}
	return path, nil
}

func openFlags(path string, mode storage.Mode) []sqlite.OpenFlags {
	var flags sqlite.OpenFlags
	switch {
	case mode.ReadOnly:
		flags = sqlite.OpenReadOnly
	case mode.Create:
		flags = sqlite.OpenReadWrite | sqlite.OpenCreate
	default:
		flags = sqlite.OpenReadWrite
	}
	if strings.HasPrefix(path, "file:") {
		flags |= sqlite.OpenURI
	}
	return []sqlite.OpenFlags{flags}
}

func (c *Connection) configure() error {
	pragmas := []string{fmt.Sprintf("PRAGMA busy_timeout = %d;", c.opts.busyTimeout.Milliseconds())}
	if c.opts.journalMode != "" && !c.mode.ReadOnly {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA journal_mode = %s;", c.opts.journalMode))
	}
	if c.opts.foreignKeysIsSet {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA foreign_keys = %t;", c.opts.foreignKeys))
	}
	for _, p := range pragmas {
		if err := c.run("open", p); err != nil {
			return err
		}
	}
	return nil
}

// ID returns the unique id of c, used in log lines.
func (c *Connection) ID() string { return c.id }

// Name returns the name c was opened with.
func (c *Connection) Name() string { return c.name }

// Filename returns the path handed to the engine.
func (c *Connection) Filename() string { return c.path }

// Mode returns the open mode of c.
func (c *Connection) Mode() storage.Mode { return c.mode }

// IsOpen reports whether c has not been closed.
func (c *Connection) IsOpen() bool { return !c.closed }

// Changes returns the number of rows modified by the most recent INSERT,
// UPDATE or DELETE.
func (c *Connection) Changes() int {
	if c.closed {
		return 0
	}
	return c.conn.Changes()
}

// TotalChanges returns the number of rows modified since c was opened.
func (c *Connection) TotalChanges() (int64, error) {
	v, err := c.SelectValue("SELECT total_changes()")
	if err != nil {
		return 0, err
	}
	return v.Int64(), nil
}

// LastInsertRowID returns the rowid of the most recent successful INSERT.
func (c *Connection) LastInsertRowID() int64 {
	if c.closed {
		return 0
	}
	return c.conn.LastInsertRowID()
}

// Statements returns the number of live (not finalized) statements.
func (c *Connection) Statements() int { return len(c.stmts) }

// Close finalizes every live statement and closes the engine handle. Closing
// an already closed connection is a no-op. An open scope is rolled back by the
// engine.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	errs := new(multierror.Error)
	live := make([]*Statement, 0, len(c.stmts))
	for st := range c.stmts {
		live = append(live, st)
	}
	sort.Slice(live, func(i, j int) bool { return live[i].seq < live[j].seq })
	for _, st := range live {
		c.log.Logf("[WARN] connection %s: finalizing live statement on close: %s", c.id, st.sql)
		if err := st.Finalize(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if len(c.scopes) > 0 {
		c.log.Logf("[WARN] connection %s: closing with %d open scope(s)", c.id, len(c.scopes))
		c.scopes = nil
	}
	if err := c.conn.Close(); err != nil {
		errs = multierror.Append(errs, engineError("close", "", err))
	}
	c.closed = true
	c.log.Logf("[DEBUG] connection %s closed", c.id)
	return errs.ErrorOrNil()
}

// Exec runs sql (one or more statements) discarding any result rows. bind is
// passed through as ExecOptions.Bind: a single argument is used as is (slice,
// map or scalar), several arguments bind positionally.
func (c *Connection) Exec(sql any, bind ...any) error {
	_, err := c.Execute(sql, &ExecOptions{Bind: bindArg(bind)})
	return err
}

// SelectValue returns the first column of the first row of a single
// statement, or NULL when it yields no rows.
func (c *Connection) SelectValue(sql any, bind ...any) (value.Value, error) {
	var out value.Value
	err := c.selectRows(sql, bindArg(bind), func(st *Statement) bool {
		out = st.Get(0)
		return false
	})
	return out, err
}

// SelectValues returns the first column of every row.
func (c *Connection) SelectValues(sql any, bind ...any) ([]value.Value, error) {
	var out []value.Value
	err := c.selectRows(sql, bindArg(bind), func(st *Statement) bool {
		out = append(out, st.Get(0))
		return true
	})
	return out, err
}

// SelectArray returns the first row as a slice, or nil when there are no rows.
func (c *Connection) SelectArray(sql any, bind ...any) ([]value.Value, error) {
	var out []value.Value
	err := c.selectRows(sql, bindArg(bind), func(st *Statement) bool {
		out = st.Row()
		return false
	})
	return out, err
}

// SelectObject returns the first row keyed by column name, or nil when there
// are no rows.
func (c *Connection) SelectObject(sql any, bind ...any) (map[string]value.Value, error) {
	var out map[string]value.Value
	err := c.selectRows(sql, bindArg(bind), func(st *Statement) bool {
		out = st.Object()
		return false
	})
	return out, err
}

func (c *Connection) selectRows(sql any, bind any, each func(st *Statement) bool) (err error) {
	defer func() { c.opts.metrics.error(err) }()
	st, err := c.Prepare(sql)
	if err != nil {
		return err
	}
	defer func() {
		if ferr := st.Finalize(); err == nil {
			err = ferr
		}
	}()
	if err = st.Bind(bind); err != nil {
		return err
	}
	for {
		ok, serr := st.Step()
		if serr != nil {
			return serr
		}
		if !ok || !each(st) {
			return nil
		}
	}
}

// run executes internal bookkeeping SQL (pragmas, scope control) without
// tracking a Statement.
func (c *Connection) run(op, query string) error {
	if err := c.checkOpen(op); err != nil {
		return err
	}
	c.trace(op, query)
	if err := sqlitex.ExecuteTransient(c.conn, query, nil); err != nil {
		return engineError(op, query, err)
	}
	return nil
}

// stepSavepoint wraps the first step of a write statement while functions are
// registered, so that a failing function leaves no changes behind.
const stepSavepoint = "fn_step"

// endStep releases the step savepoint, or rolls it back when failed is set.
// A failed release rolls back too and is returned.
func (c *Connection) endStep(failed bool) error {
	var err error
	if !failed {
		if err = c.run("step", "RELEASE "+stepSavepoint); err == nil {
			return nil
		}
	}
	for _, q := range []string{"ROLLBACK TO " + stepSavepoint, "RELEASE " + stepSavepoint} {
		if rerr := c.run("step", q); rerr != nil {
			c.log.Logf("[WARN] connection %s: %s failed: %v", c.id, q, rerr)
			break
		}
	}
	return err
}

func (c *Connection) trace(op, query string) {
	if c.mode.Trace {
		c.log.Logf("[DEBUG] connection %s %s: %s", c.id, op, query)
	}
}

func (c *Connection) checkOpen(op string) error {
	if c.closed {
		return &Error{Kind: KindMisuse, Op: op, Err: ErrClosed}
	}
	return nil
}

func bindArg(bind []any) any {
	switch len(bind) {
	case 0:
		return nil
	case 1:
		return bind[0]
	}
	return bind
}
