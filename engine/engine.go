package engine

import (
	"database/sql"
	"net/url"
	"strings"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"github.com/viant/sqlite-facade/storage"
)

// DriverName is the database/sql driver name registered by modernc.org/sqlite.
const DriverName = "sqlite"

// Open opens a SQLite database using the modernc.org/sqlite driver.
//
// For file-based databases, pass a path like "./db.sqlite" or a DSN built with
// DSN. For in-memory databases, pass ":memory:".
func Open(dsn string) (*sql.DB, error) { return sql.Open(DriverName, dsn) }

// DSN builds a "file:" URI for path honouring the open mode: read-only opens
// use mode=ro, create opens mode=rwc and plain writes mode=rw. Extra pragmas
// are applied by the driver on every new connection.
func DSN(path string, mode storage.Mode, pragmas ...string) string {
	q := url.Values{}
	switch {
	case mode.ReadOnly:
		q.Set("mode", "ro")
	case mode.Create:
		q.Set("mode", "rwc")
	default:
		q.Set("mode", "rw")
	}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	u := url.URL{Scheme: "file", Opaque: strings.ReplaceAll(path, "?", "%3f"), RawQuery: q.Encode()}
	return u.String()
}

// OpenBackend opens the logical database name of backend through the driver.
// Create mode materializes the file and its directories first.
func OpenBackend(backend storage.Backend, name string, mode storage.Mode) (*sql.DB, error) {
	path, err := backend.Path(name)
	if err != nil {
		return nil, err
	}
	if mode.Create {
		f, err := backend.Open(name, mode)
		if err != nil {
			return nil, err
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
	}
	return Open(DSN(path, mode, "busy_timeout(5000)"))
}
