package engine

import (
	"strings"
	"testing"

	"github.com/viant/sqlite-facade/storage"
)

// TestOpenInMemory verifies that we can open an in-memory SQLite database
// using the modernc.org/sqlite driver and execute a trivial statement.
func TestOpenInMemory(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec("CREATE TABLE t(x INTEGER)"); err != nil {
		t.Fatalf("CREATE TABLE failed: %v", err)
	}
	if _, err := db.Exec("INSERT INTO t(x) VALUES (1),(2),(3)"); err != nil {
		t.Fatalf("INSERT failed: %v", err)
	}
}

func TestDSN(t *testing.T) {
	cases := []struct {
		mode string
		want string
	}{
		{"r", "mode=ro"},
		{"w", "mode=rw"},
		{"c", "mode=rwc"},
	}
	for _, c := range cases {
		dsn := DSN("/tmp/x.db", storage.MustParseMode(c.mode), "busy_timeout(100)")
		if !strings.HasPrefix(dsn, "file:/tmp/x.db?") {
			t.Fatalf("DSN(%s) = %q, want file: prefix", c.mode, dsn)
		}
		if !strings.Contains(dsn, c.want) {
			t.Fatalf("DSN(%s) = %q, want %q", c.mode, dsn, c.want)
		}
		if !strings.Contains(dsn, "_pragma=busy_timeout%28100%29") {
			t.Fatalf("DSN(%s) = %q, missing pragma", c.mode, dsn)
		}
	}
}

func TestOpenBackend(t *testing.T) {
	dir, err := storage.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir failed: %v", err)
	}
	rw, err := OpenBackend(dir, "sub/a.db", storage.MustParseMode("c"))
	if err != nil {
		t.Fatalf("OpenBackend(c) failed: %v", err)
	}
	if _, err := rw.Exec("CREATE TABLE t(x); INSERT INTO t VALUES (1)"); err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	_ = rw.Close()

	ro, err := OpenBackend(dir, "sub/a.db", storage.MustParseMode("r"))
	if err != nil {
		t.Fatalf("OpenBackend(r) failed: %v", err)
	}
	defer ro.Close()
	var n int
	if err := ro.QueryRow("SELECT count(*) FROM t").Scan(&n); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	if _, err := ro.Exec("INSERT INTO t VALUES (2)"); err == nil {
		t.Fatalf("insert on read-only database succeeded")
	}
}
