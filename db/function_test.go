package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/sqlite-facade/value"
)

func twice(args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Type() {
	case value.Integer:
		return value.IntegerValue(v.Int64() * 2), nil
	case value.Real:
		return value.RealValue(v.Float64() * 2), nil
	case value.Text:
		return value.TextValue(v.Text() + v.Text()), nil
	}
	return value.NullValue(), nil
}

func TestCreateFunction(t *testing.T) {
	conn := newTestConn(t)
	require.NoError(t, conn.CreateFunction("twice", 1, twice, Deterministic()))

	var columns []string
	rows, err := conn.Execute("SELECT twice(1) AS one, twice('x') AS two, twice(NULL), twice(1.25)",
		&ExecOptions{ColumnNames: &columns})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "twice(NULL)", "twice(1.25)"}, columns)
	assert.Equal(t, []any{[]value.Value{
		value.IntegerValue(2), value.TextValue("xx"), value.NullValue(), value.RealValue(2.5),
	}}, rows)

	assert.Equal(t, []FunctionInfo{{Name: "twice", Arity: 1, Deterministic: true}}, conn.Functions())
}

func TestCreateFunction_ArityMismatch(t *testing.T) {
	conn := newTestConn(t)
	require.NoError(t, conn.Exec("CREATE TABLE t(a); INSERT INTO t VALUES (1)"))
	require.NoError(t, conn.CreateFunction("twice", 1, twice))

	_, err := conn.Execute("SELECT twice(1, 2, 3)", nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindSQL), "got %v", err)
	assert.Equal(t, 0, conn.Statements())

	v, err := conn.SelectValue("SELECT twice(a) FROM t")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Int64())
}

func TestCreateFunction_Overloads(t *testing.T) {
	conn := newTestConn(t)
	require.NoError(t, conn.CreateFunction("pick", 1, func(args []value.Value) (value.Value, error) {
		return args[0], nil
	}))
	require.NoError(t, conn.CreateFunction("pick", 2, func(args []value.Value) (value.Value, error) {
		return args[1], nil
	}))
	require.NoError(t, conn.CreateFunction("count_args", VariadicArity, func(args []value.Value) (value.Value, error) {
		return value.IntegerValue(int64(len(args))), nil
	}))

	row, err := conn.SelectArray("SELECT pick('a'), pick('a', 'b'), count_args(), count_args(1, 2, 3)")
	require.NoError(t, err)
	assert.Equal(t, []value.Value{
		value.TextValue("a"), value.TextValue("b"), value.IntegerValue(0), value.IntegerValue(3),
	}, row)

	// re-registering replaces the implementation
	require.NoError(t, conn.CreateFunction("PICK", 1, func([]value.Value) (value.Value, error) {
		return value.TextValue("replaced"), nil
	}))
	v, err := conn.SelectValue("SELECT pick('a')")
	require.NoError(t, err)
	assert.Equal(t, "replaced", v.Text())
	assert.Len(t, conn.Functions(), 3)
}

func TestCreateFunction_Failures(t *testing.T) {
	conn := newTestConn(t)
	require.NoError(t, conn.CreateFunction("fail", 0, func([]value.Value) (value.Value, error) {
		return value.Value{}, errors.New("boom")
	}))
	require.NoError(t, conn.CreateFunction("explode", 0, func([]value.Value) (value.Value, error) {
		panic("kaput")
	}))

	_, err := conn.SelectValue("SELECT fail()")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindSQL), "got %v", err)
	assert.Contains(t, err.Error(), "boom")

	rows, err := conn.Execute("SELECT fail()", nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindSQL), "got %v", err)
	assert.Nil(t, rows)

	_, err = conn.SelectValue("SELECT explode()")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindSQL), "got %v", err)
	assert.Contains(t, err.Error(), "kaput")
	assert.Equal(t, 0, conn.Statements())

	err = conn.CreateFunction("", 1, twice)
	assert.True(t, IsKind(err, KindMisuse))
	err = conn.CreateFunction("bad", 1000, twice)
	assert.True(t, IsKind(err, KindMisuse))
	err = conn.CreateFunction("nil", 1, nil)
	assert.True(t, IsKind(err, KindMisuse))

	v, err := conn.SelectValue("SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Int64())
}

func TestCreateFunction_PerConnection(t *testing.T) {
	a := newTestConn(t)
	b := newTestConn(t)
	require.NoError(t, a.CreateFunction("twice", 1, twice))

	_, err := b.SelectValue("SELECT twice(1)")
	assert.True(t, IsKind(err, KindSQL), "function must not leak to other connections")
	assert.Empty(t, b.Functions())
}

func TestCreateFunction_FailureUndoesWrite(t *testing.T) {
	conn := newTestConn(t)
	require.NoError(t, conn.CreateFunction("fail", 0, func([]value.Value) (value.Value, error) {
		return value.Value{}, errors.New("boom")
	}))
	count := func() int64 {
		v, err := conn.SelectValue("SELECT count(*) FROM t")
		require.NoError(t, err)
		return v.Int64()
	}

	err := conn.Exec("CREATE TABLE t(a); INSERT INTO t VALUES (fail())")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindSQL), "got %v", err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, int64(0), count())

	require.NoError(t, conn.Exec("INSERT INTO t VALUES (1), (2)"))
	err = conn.Exec("UPDATE t SET a = fail() WHERE a = 2")
	assert.True(t, IsKind(err, KindSQL), "got %v", err)
	vals, err := conn.SelectValues("SELECT a FROM t ORDER BY a")
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.IntegerValue(1), value.IntegerValue(2)}, vals)

	// inside a scope only the failing statement is undone
	err = conn.Scope(func(c *Connection) error {
		require.NoError(t, c.Exec("INSERT INTO t VALUES (3)"))
		assert.Error(t, c.Exec("INSERT INTO t VALUES (fail())"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count())
	assert.Equal(t, 0, conn.Depth())

	// the statement can be re-run once the function stops failing
	st, err := conn.Prepare("INSERT INTO t VALUES (fail())")
	require.NoError(t, err)
	defer st.Finalize()
	_, err = st.Step()
	assert.True(t, IsKind(err, KindSQL), "got %v", err)
	assert.Equal(t, StateReady, st.State())
	require.NoError(t, conn.CreateFunction("fail", 0, func([]value.Value) (value.Value, error) {
		return value.IntegerValue(4), nil
	}))
	_, err = st.Step()
	require.NoError(t, err)
	assert.Equal(t, int64(4), count())
}

func TestCreateFunction_FailureMidIteration(t *testing.T) {
	conn := newTestConn(t)
	require.NoError(t, conn.Exec("CREATE TABLE t(a); INSERT INTO t VALUES (1), (2), (3)"))
	require.NoError(t, conn.CreateFunction("reject_two", 1, func(args []value.Value) (value.Value, error) {
		if args[0].Int64() == 2 {
			return value.Value{}, errors.New("two is not allowed")
		}
		return args[0], nil
	}))

	var seen []int64
	_, err := conn.Execute("SELECT reject_two(a) FROM t", &ExecOptions{
		RowMode: ColumnIndex(0),
		Callback: func(row any, _ any) error {
			seen = append(seen, row.(value.Value).Int64())
			return nil
		},
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindSQL), "got %v", err)
	assert.Contains(t, err.Error(), "two is not allowed")
	assert.Equal(t, []int64{1}, seen)
}
