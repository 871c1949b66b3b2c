package db

import (
	"context"

	"github.com/viant/sqlite-facade/storage"
)

// Backup writes a consistent snapshot of the main database to name in backend
// and syncs it. An existing file of that name is replaced. It returns the size
// of the snapshot. Cancelling ctx interrupts the copy.
func (c *Connection) Backup(ctx context.Context, backend storage.Backend, name string) (size int64, err error) {
	defer func() { c.opts.metrics.error(err) }()
	if err = c.checkOpen("backup"); err != nil {
		return 0, err
	}
	if len(c.scopes) > 0 {
		return 0, newError(KindScope, "backup", "", "backup inside an open scope (depth %d)", len(c.scopes))
	}
	path, err := backend.Path(name)
	if err != nil {
		return 0, &Error{Kind: KindStorage, Op: "backup", Err: err}
	}
	if err = backend.Remove(name); err != nil {
		return 0, &Error{Kind: KindStorage, Op: "backup", Err: err}
	}
	// VACUUM INTO accepts an empty target; creating it materializes parent dirs
	empty, err := backend.Open(name, storage.Mode{Create: true, Write: true})
	if err != nil {
		return 0, &Error{Kind: KindStorage, Op: "backup", Err: err}
	}
	if err = empty.Close(); err != nil {
		return 0, &Error{Kind: KindStorage, Op: "backup", Err: err}
	}

	c.conn.SetInterrupt(ctx.Done())
	defer c.conn.SetInterrupt(nil)
	if err = c.Exec("VACUUM INTO ?", path); err != nil {
		return 0, err
	}

	f, err := backend.Open(name, storage.Mode{Write: true})
	if err != nil {
		return 0, &Error{Kind: KindStorage, Op: "backup", Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &Error{Kind: KindStorage, Op: "backup", Err: cerr}
		}
	}()
	if err = f.Sync(); err != nil {
		return 0, &Error{Kind: KindStorage, Op: "backup", Err: err}
	}
	if size, err = f.Size(); err != nil {
		return 0, &Error{Kind: KindStorage, Op: "backup", Err: err}
	}
	c.log.Logf("[INFO] connection %s backed up %q to %s (%d bytes)", c.id, c.name, path, size)
	return size, nil
}
