// Package inspect reports on SQLite database files through the database/sql
// driver: page geometry, integrity and per-table row counts.
package inspect

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/viant/sqlite-facade/engine"
	"github.com/viant/sqlite-facade/storage"
	"github.com/viant/sqlite-facade/value"
)

// TableInfo is the row count of one user table.
type TableInfo struct {
	Name string
	Rows int64
}

// Report summarizes one database.
type Report struct {
	Name      string
	PageSize  int64
	PageCount int64
	// Size is PageSize*PageCount; SizeText is its human readable form.
	Size      int64
	SizeText  string
	Integrity string
	Tables    []TableInfo
}

// OK reports whether the integrity check passed.
func (r *Report) OK() bool { return r.Integrity == "ok" }

// Print writes r in a human readable layout.
func (r *Report) Print(w io.Writer) {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "Database %s:\n", r.Name)
	_, _ = fmt.Fprintf(w, "\tsize: %s (%d pages of %s), integrity: %s\n",
		r.SizeText, r.PageCount, humanize.IBytes(uint64(r.PageSize)), r.Integrity)
	for _, t := range r.Tables {
		_, _ = fmt.Fprintf(w, "\ttable %s: %s rows\n", t.Name, humanize.Comma(t.Rows))
	}
}

var registerOnce sync.Once
var registerErr error

// Register installs the humanize_bytes(n) SQL function used by reports. It
// must run before the inspected database is opened.
func Register() error {
	registerOnce.Do(func() {
		registerErr = engine.RegisterFunction("humanize_bytes", 1, humanizeBytes, true)
	})
	return registerErr
}

func humanizeBytes(args []value.Value) (value.Value, error) {
	if args[0].IsNull() {
		return value.NullValue(), nil
	}
	n := args[0].Int64()
	if n < 0 {
		return value.Value{}, fmt.Errorf("humanize_bytes: negative size %d", n)
	}
	return value.TextValue(humanize.IBytes(uint64(n))), nil
}

const (
	sizeQuery      = `SELECT p.page_size, c.page_count, p.page_size * c.page_count, humanize_bytes(p.page_size * c.page_count) FROM pragma_page_size() AS p, pragma_page_count() AS c`
	integrityQuery = `PRAGMA quick_check`
	tablesQuery    = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
)

// Inspector queries a database opened with the modernc driver.
type Inspector struct {
	db *sql.DB
}

// New returns an Inspector over db. Register must have run before db opened
// its first connection.
func New(db *sql.DB) *Inspector { return &Inspector{db: db} }

// Report builds the report for the database, labelled name.
func (i *Inspector) Report(ctx context.Context, name string) (*Report, error) {
	r := &Report{Name: name}
	if err := i.db.QueryRowContext(ctx, sizeQuery).Scan(&r.PageSize, &r.PageCount, &r.Size, &r.SizeText); err != nil {
		return nil, fmt.Errorf("inspect %s: size: %w", name, err)
	}
	if err := i.db.QueryRowContext(ctx, integrityQuery).Scan(&r.Integrity); err != nil {
		return nil, fmt.Errorf("inspect %s: integrity: %w", name, err)
	}
	names, err := i.tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: tables: %w", name, err)
	}
	for _, table := range names {
		info := TableInfo{Name: table}
		if err := i.db.QueryRowContext(ctx, "SELECT count(*) FROM "+quoteIdent(table)).Scan(&info.Rows); err != nil {
			return nil, fmt.Errorf("inspect %s: count %s: %w", name, table, err)
		}
		r.Tables = append(r.Tables, info)
	}
	return r, nil
}

func (i *Inspector) tables(ctx context.Context) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, tablesQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Database opens name read-only through backend and reports on it.
func Database(ctx context.Context, backend storage.Backend, name string) (*Report, error) {
	if err := Register(); err != nil {
		return nil, err
	}
	db, err := engine.OpenBackend(backend, name, storage.Mode{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", name, err)
	}
	defer db.Close()
	return New(db).Report(ctx, name)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
