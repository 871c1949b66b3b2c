package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T, opts ...Option) *Connection {
	t.Helper()
	conn := newTestConn(t, opts...)
	require.NoError(t, conn.Exec("CREATE TABLE t(a, b)"))
	for i := 20; i <= 25; i++ {
		require.NoError(t, conn.Exec("INSERT INTO t(a, b) VALUES (?, ?)", i, i*2))
	}
	return conn
}

func count(t *testing.T, conn *Connection) int64 {
	t.Helper()
	v, err := conn.SelectValue("SELECT count(*) FROM t")
	require.NoError(t, err)
	return v.Int64()
}

func TestScope_Commit(t *testing.T) {
	conn := seeded(t)
	err := conn.Scope(func(c *Connection) error {
		assert.Equal(t, 1, c.Depth())
		return c.Exec("DELETE FROM t WHERE a > 22")
	})
	require.NoError(t, err)
	assert.Equal(t, 0, conn.Depth())
	assert.Equal(t, int64(3), count(t, conn))
}

func TestScope_Rollback(t *testing.T) {
	conn := seeded(t)
	before := count(t, conn)

	boom := errors.New("boom")
	err := conn.Scope(func(c *Connection) error {
		require.NoError(t, c.Exec("DELETE FROM t"))
		assert.Equal(t, int64(0), count(t, c))
		return boom
	})
	assert.Same(t, boom, err, "the triggering error is returned unchanged")
	assert.Equal(t, 0, conn.Depth())
	assert.Equal(t, before, count(t, conn))
}

func TestScope_NestedSavepoint(t *testing.T) {
	conn := seeded(t)
	boom := errors.New("inner")

	err := conn.Scope(func(c *Connection) error {
		require.NoError(t, c.Exec("DELETE FROM t"))
		err := c.Scope(func(c *Connection) error {
			assert.Equal(t, 2, c.Depth())
			require.NoError(t, c.Exec("INSERT INTO t(a, b) VALUES (1, 2)"))
			assert.Equal(t, int64(1), count(t, c))
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, c.Depth())
		assert.Equal(t, int64(0), count(t, c), "inner insert undone, outer delete kept")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count(t, conn))

	// the savepoint left the stack: a fresh scope at depth 1 reuses its name
	err = conn.Scope(func(c *Connection) error {
		return c.Savepoint(func(c *Connection) error {
			return c.Exec("INSERT INTO t(a, b) VALUES (7, 14)")
		})
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count(t, conn))
}

func TestScope_OuterRollbackDiscardsReleasedSavepoint(t *testing.T) {
	conn := seeded(t)
	before := count(t, conn)
	boom := errors.New("outer")

	err := conn.Scope(func(c *Connection) error {
		require.NoError(t, c.Scope(func(c *Connection) error {
			return c.Exec("INSERT INTO t(a, b) VALUES (1, 2)")
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, count(t, conn))
}

func TestScope_Panic(t *testing.T) {
	conn := seeded(t)
	before := count(t, conn)

	assert.PanicsWithValue(t, "kaput", func() {
		_ = conn.Scope(func(c *Connection) error {
			require.NoError(t, c.Exec("DELETE FROM t"))
			panic("kaput")
		})
	})
	assert.Equal(t, 0, conn.Depth())
	assert.Equal(t, before, count(t, conn))
}

func TestTransaction(t *testing.T) {
	conn := seeded(t)
	for _, mode := range []TxMode{TxDeferred, TxImmediate, TxExclusive} {
		err := conn.Transaction(mode, func(c *Connection) error {
			return c.Exec("INSERT INTO t(a, b) VALUES (?, ?)", int(mode), mode.String())
		})
		require.NoError(t, err, mode.String())
	}
	assert.Equal(t, int64(9), count(t, conn))

	err := conn.Scope(func(c *Connection) error {
		return c.Transaction(TxDeferred, func(*Connection) error { return nil })
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindScope), "got %v", err)
	assert.Equal(t, 0, conn.Depth())
}

func TestSavepoint_TopLevel(t *testing.T) {
	conn := seeded(t)
	err := conn.Savepoint(func(c *Connection) error {
		return c.Exec("DELETE FROM t")
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count(t, conn))
}

func TestScope_TransactionEndedInside(t *testing.T) {
	logger := &captureLog{}
	conn := seeded(t, WithLogger(logger))

	err := conn.Scope(func(c *Connection) error {
		return c.Exec("COMMIT")
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindScope), "got %v", err)
	assert.Equal(t, 0, conn.Depth())

	boom := errors.New("boom")
	err = conn.Scope(func(c *Connection) error {
		require.NoError(t, c.Exec("ROLLBACK"))
		return boom
	})
	assert.Same(t, boom, err)
	assert.True(t, logger.contains("[WARN]", "transaction ended inside the scope"))

	// usable afterwards
	require.NoError(t, conn.Scope(func(c *Connection) error { return nil }))
}

func TestScope_ManualTransactionOpen(t *testing.T) {
	conn := seeded(t)
	require.NoError(t, conn.Exec("BEGIN"))
	err := conn.Scope(func(*Connection) error { return nil })
	assert.True(t, IsKind(err, KindScope), "got %v", err)
	require.NoError(t, conn.Exec("ROLLBACK"))
}

func TestScope_OutOfOrderExit(t *testing.T) {
	conn := seeded(t)
	outer, err := conn.enterScope("BEGIN")
	require.NoError(t, err)
	_, err = conn.enterScope("")
	require.NoError(t, err)
	assert.Equal(t, 2, conn.Depth())

	err = conn.popScope(outer)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindScope), "got %v", err)
	assert.Equal(t, 0, conn.Depth())
	require.NoError(t, conn.run("test", "ROLLBACK"))
}

func TestScope_ClosedConnection(t *testing.T) {
	conn, err := Open(MemoryName)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	err = conn.Scope(func(*Connection) error { return nil })
	assert.True(t, IsKind(err, KindMisuse))
}
