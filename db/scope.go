package db

import (
	"fmt"
)

// TxMode selects the locking behaviour of a top-level transaction.
type TxMode int

const (
	TxDeferred TxMode = iota
	TxImmediate
	TxExclusive
)

func (m TxMode) String() string {
	switch m {
	case TxImmediate:
		return "IMMEDIATE"
	case TxExclusive:
		return "EXCLUSIVE"
	}
	return "DEFERRED"
}

type scopeFrame struct {
	depth     int
	kind      string
	savepoint string
}

func (f *scopeFrame) String() string {
	if f.savepoint != "" {
		return f.savepoint
	}
	return fmt.Sprintf("transaction@%d", f.depth)
}

// Depth returns the number of open scopes.
func (c *Connection) Depth() int { return len(c.scopes) }

// Scope runs fn atomically. At depth 0 it opens a transaction, inside another
// scope it opens savepoint sp_<depth>. When fn returns nil the scope commits
// (or releases the savepoint); when fn fails or panics the scope rolls back,
// the savepoint leaves the stack, and fn's error is returned unchanged or its
// panic re-raised.
//
//	err := conn.Scope(func(c *db.Connection) error {
//		if err := c.Exec("INSERT INTO t(a) VALUES (?)", 1); err != nil {
//			return err
//		}
//		return c.Savepoint(func(c *db.Connection) error {
//			return c.Exec("INSERT INTO t(a) VALUES (?)", 2)
//		})
//	})
func (c *Connection) Scope(fn func(*Connection) error) error {
	if len(c.scopes) == 0 {
		return c.runScope("BEGIN", fn)
	}
	return c.runScope("", fn)
}

// Transaction is Scope restricted to depth 0 with an explicit locking mode.
func (c *Connection) Transaction(mode TxMode, fn func(*Connection) error) (err error) {
	if err = c.checkOpen("transaction"); err != nil {
		return err
	}
	if len(c.scopes) > 0 {
		err = newError(KindScope, "transaction", "", "transaction requested at scope depth %d", len(c.scopes))
		c.opts.metrics.error(err)
		return err
	}
	return c.runScope("BEGIN "+mode.String(), fn)
}

// Savepoint is Scope that always uses a savepoint, at any depth.
func (c *Connection) Savepoint(fn func(*Connection) error) error {
	return c.runScope("", fn)
}

func (c *Connection) runScope(begin string, fn func(*Connection) error) (err error) {
	defer func() { c.opts.metrics.error(err) }()
	frame, err := c.enterScope(begin)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			c.abortScope(frame, fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()
	if err = fn(c); err != nil {
		c.abortScope(frame, err)
		return err
	}
	return c.commitScope(frame)
}

// enterScope issues begin (or a SAVEPOINT when begin is empty) and pushes the
// new frame.
func (c *Connection) enterScope(begin string) (*scopeFrame, error) {
	if err := c.checkOpen("scope"); err != nil {
		return nil, err
	}
	frame := &scopeFrame{depth: len(c.scopes), kind: "savepoint"}
	query := begin
	if begin == "" {
		frame.savepoint = savepointName(frame.depth)
		query = "SAVEPOINT " + frame.savepoint
	} else {
		frame.kind = "transaction"
		if !c.conn.AutocommitEnabled() {
			return nil, newError(KindScope, "scope", begin, "a transaction is already open outside any scope")
		}
	}
	if err := c.run("scope", query); err != nil {
		return nil, err
	}
	c.scopes = append(c.scopes, frame)
	c.log.Logf("[DEBUG] connection %s entered %s at depth %d", c.id, frame, frame.depth)
	return frame, nil
}

// popScope removes frame from the stack, verifying it is the innermost scope
// and that the engine still has the transaction open.
func (c *Connection) popScope(frame *scopeFrame) error {
	n := len(c.scopes)
	if n == 0 || c.scopes[n-1] != frame {
		for i := n - 1; i >= 0; i-- {
			if c.scopes[i] == frame {
				c.scopes = c.scopes[:i]
				break
			}
		}
		return newError(KindScope, "scope", "", "%s exited out of order (depth %d)", frame, n)
	}
	c.scopes = c.scopes[:n-1]
	if c.closed {
		return &Error{Kind: KindMisuse, Op: "scope", Err: ErrClosed}
	}
	if c.conn.AutocommitEnabled() {
		return newError(KindScope, "scope", "", "%s: transaction ended inside the scope", frame)
	}
	return nil
}

func (c *Connection) commitScope(frame *scopeFrame) error {
	if err := c.popScope(frame); err != nil {
		c.opts.metrics.scope(frame.kind, "invalid")
		return err
	}
	query := "COMMIT"
	if frame.savepoint != "" {
		query = "RELEASE " + frame.savepoint
	}
	if err := c.run("scope", query); err != nil {
		c.log.Logf("[WARN] connection %s: %s failed, rolling back: %v", c.id, query, err)
		c.rollback(frame)
		c.opts.metrics.scope(frame.kind, "rollback")
		return err
	}
	c.log.Logf("[DEBUG] connection %s committed %s", c.id, frame)
	c.opts.metrics.scope(frame.kind, "commit")
	return nil
}

// abortScope rolls frame back. Failures are logged; the caller returns cause.
func (c *Connection) abortScope(frame *scopeFrame, cause error) {
	if err := c.popScope(frame); err != nil {
		c.log.Logf("[WARN] connection %s: %v (while handling: %v)", c.id, err, cause)
		c.opts.metrics.scope(frame.kind, "invalid")
		return
	}
	c.log.Logf("[DEBUG] connection %s rolling back %s: %v", c.id, frame, cause)
	c.rollback(frame)
	c.opts.metrics.scope(frame.kind, "rollback")
}

func (c *Connection) rollback(frame *scopeFrame) {
	queries := []string{"ROLLBACK"}
	if frame.savepoint != "" {
		queries = []string{"ROLLBACK TO " + frame.savepoint, "RELEASE " + frame.savepoint}
	}
	for _, q := range queries {
		if err := c.run("rollback", q); err != nil {
			c.log.Logf("[WARN] connection %s: %s failed: %v", c.id, q, err)
			return
		}
	}
}

func savepointName(depth int) string {
	return fmt.Sprintf("sp_%d", depth)
}
