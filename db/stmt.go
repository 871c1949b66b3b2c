package db

import (
	"fmt"
	"strings"
	"unicode"

	"zombiezen.com/go/sqlite"

	"github.com/viant/sqlite-facade/value"
)

// State is the cursor state of a Statement.
type State int

const (
	StateReady State = iota
	StateHasRow
	StateDone
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateHasRow:
		return "has-row"
	case StateDone:
		return "done"
	case StateFinalized:
		return "finalized"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Statement is a compiled, re-runnable SQL statement with 1-based parameter
// slots and a row cursor. It belongs to the Connection that compiled it and
// must be finalized on every exit path, typically with
//
//	stmt, err := conn.Prepare(query)
//	if err != nil {
//		return err
//	}
//	defer stmt.Finalize()
type Statement struct {
	conn    *Connection
	stmt    *sqlite.Stmt
	sql     string
	seq     uint64
	state   State
	params  []string
	columns []string
	writes  bool
}

func newStatement(c *Connection, raw *sqlite.Stmt, sql string) *Statement {
	c.seq++
	st := &Statement{conn: c, stmt: raw, sql: sql, seq: c.seq}
	st.params = make([]string, raw.BindParamCount())
	for i := range st.params {
		st.params[i] = raw.BindParamName(i + 1)
	}
	// the engine binding names columns through a name->index map, so a column
	// shadowed by a later one with the same name comes back unnamed ("")
	st.columns = make([]string, raw.ColumnCount())
	for i := range st.columns {
		st.columns[i] = raw.ColumnName(i)
	}
	st.writes = len(st.columns) == 0 && isWrite(sql)
	c.stmts[st] = struct{}{}
	c.opts.metrics.prepared()
	return st
}

// SQL returns the statement text.
func (s *Statement) SQL() string { return s.sql }

// State returns the cursor state.
func (s *Statement) State() State { return s.state }

// ColumnCount returns the number of result columns.
func (s *Statement) ColumnCount() int { return len(s.columns) }

// ColumnName returns the result name of column i, or "" if out of range.
func (s *Statement) ColumnName(i int) string {
	if i < 0 || i >= len(s.columns) {
		return ""
	}
	return s.columns[i]
}

// ColumnNames returns a copy of the result column names.
func (s *Statement) ColumnNames() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// ParameterCount returns the number of parameter slots.
func (s *Statement) ParameterCount() int { return len(s.params) }

// ParameterIndex returns the 1-based index of the named parameter, or 0. name
// is matched exactly first ("$a", ":a", "@a"); a bare name also matches the
// first of ":name", "@name", "$name" present in the statement.
func (s *Statement) ParameterIndex(name string) int {
	if name == "" {
		return 0
	}
	for i, p := range s.params {
		if p == name {
			return i + 1
		}
	}
	if strings.ContainsAny(name[:1], ":@$?") {
		return 0
	}
	for _, prefix := range []string{":", "@", "$"} {
		for i, p := range s.params {
			if p == prefix+name {
				return i + 1
			}
		}
	}
	return 0
}

// BindIndex binds v to the 1-based parameter slot i.
func (s *Statement) BindIndex(i int, v any) error {
	if err := s.checkBindable("bind"); err != nil {
		return err
	}
	if i < 1 || i > len(s.params) {
		return s.fail(newError(KindBind, "bind", s.sql, "parameter index %d out of range [1,%d]", i, len(s.params)))
	}
	val, err := value.Of(v)
	if err != nil {
		return s.fail(&Error{Kind: KindBind, Op: "bind", SQL: s.sql, Err: fmt.Errorf("parameter %d: %w", i, err)})
	}
	s.bind(i, val)
	return nil
}

// BindName binds v to the named parameter.
func (s *Statement) BindName(name string, v any) error {
	if err := s.checkBindable("bind"); err != nil {
		return err
	}
	i := s.ParameterIndex(name)
	if i == 0 {
		return s.fail(newError(KindBind, "bind", s.sql, "unknown parameter %q", name))
	}
	return s.BindIndex(i, v)
}

// Bind binds a whole set of parameters: []any or []value.Value bind
// positionally starting at 1, map[string]any or map[string]value.Value bind by
// name, and any other single value binds slot 1. nil binds nothing.
func (s *Statement) Bind(bindings any) error {
	switch b := bindings.(type) {
	case nil:
		return s.checkLive("bind")
	case []any:
		for i, v := range b {
			if err := s.BindIndex(i+1, v); err != nil {
				return err
			}
		}
	case []value.Value:
		for i, v := range b {
			if err := s.BindIndex(i+1, v); err != nil {
				return err
			}
		}
	case map[string]any:
		for name, v := range b {
			if err := s.BindName(name, v); err != nil {
				return err
			}
		}
	case map[string]value.Value:
		for name, v := range b {
			if err := s.BindName(name, v); err != nil {
				return err
			}
		}
	default:
		return s.BindIndex(1, b)
	}
	return nil
}

func (s *Statement) bind(i int, v value.Value) {
	switch v.Type() {
	case value.Integer:
		s.stmt.BindInt64(i, v.Int64())
	case value.Real:
		s.stmt.BindFloat(i, v.Float64())
	case value.Text:
		s.stmt.BindText(i, v.Text())
	case value.Blob:
		s.stmt.BindBytes(i, v.Bytes())
	default:
		s.stmt.BindNull(i)
	}
}

// ClearBindings sets every parameter slot back to NULL.
func (s *Statement) ClearBindings() error {
	if err := s.checkLive("clearBindings"); err != nil {
		return err
	}
	if err := s.stmt.ClearBindings(); err != nil {
		return s.fail(engineError("clearBindings", s.sql, err))
	}
	return nil
}

// Step advances the cursor. It returns true when a row is available and false
// once the statement is exhausted; a Done statement keeps returning false
// until Reset. On error the statement is reset so it can be re-run. A
// registered function that fails or panics fails the step with KindSQL, and
// the changes of an INSERT, UPDATE, DELETE or REPLACE are undone.
func (s *Statement) Step() (bool, error) {
	if err := s.checkLive("step"); err != nil {
		return false, err
	}
	if s.state == StateDone {
		return false, nil
	}
	guard := s.state == StateReady && s.writes && len(s.conn.funcs) > 0
	if guard {
		if err := s.conn.run("step", "SAVEPOINT "+stepSavepoint); err != nil {
			return false, s.fail(err)
		}
	}
	outer := s.conn.fnErr
	s.conn.fnErr = nil
	ok, err := s.stmt.Step()
	fnErr := s.conn.fnErr
	s.conn.fnErr = outer
	switch {
	case fnErr != nil:
		err = &Error{Kind: KindSQL, Op: "step", SQL: s.sql, Err: fnErr}
	case err != nil:
		err = engineError("step", s.sql, err)
	}
	if err != nil {
		_ = s.stmt.Reset()
		s.state = StateReady
		if guard {
			_ = s.conn.endStep(true)
		}
		return false, s.fail(err)
	}
	if guard {
		if err := s.conn.endStep(false); err != nil {
			_ = s.stmt.Reset()
			s.state = StateReady
			return false, s.fail(err)
		}
	}
	if !ok {
		s.state = StateDone
		return false, nil
	}
	s.state = StateHasRow
	s.conn.opts.metrics.step()
	return true, nil
}

// Reset returns the cursor to Ready. Bindings are kept unless the connection
// was opened WithClearBindingsOnReset.
func (s *Statement) Reset() error {
	if err := s.checkLive("reset"); err != nil {
		return err
	}
	if err := s.stmt.Reset(); err != nil {
		return s.fail(engineError("reset", s.sql, err))
	}
	s.state = StateReady
	if s.conn.opts.clearOnReset {
		return s.ClearBindings()
	}
	return nil
}

// StepReset steps once and resets, for fire-and-forget execution such as
// repeated inserts.
func (s *Statement) StepReset() (bool, error) {
	ok, err := s.Step()
	if err != nil {
		return false, err
	}
	return ok, s.Reset()
}

// StepFinalize steps once and finalizes the statement.
func (s *Statement) StepFinalize() (bool, error) {
	ok, err := s.Step()
	if ferr := s.Finalize(); err == nil {
		err = ferr
	}
	return ok, err
}

// Finalize releases the engine resources. It is idempotent.
func (s *Statement) Finalize() error {
	if s.state == StateFinalized {
		return nil
	}
	s.state = StateFinalized
	delete(s.conn.stmts, s)
	s.conn.opts.metrics.finalized()
	if err := s.stmt.Finalize(); err != nil {
		return engineError("finalize", s.sql, err)
	}
	return nil
}

// Get returns column i of the current row, or NULL when there is no current
// row or i is out of range.
func (s *Statement) Get(i int) value.Value {
	if s.state != StateHasRow || i < 0 || i >= len(s.columns) {
		return value.NullValue()
	}
	return s.column(i)
}

// Column is like Get but reports a missing row or bad index as an error.
func (s *Statement) Column(i int) (value.Value, error) {
	if err := s.checkLive("column"); err != nil {
		return value.Value{}, err
	}
	if s.state != StateHasRow {
		return value.Value{}, newError(KindMisuse, "column", s.sql, "no current row (state %s)", s.state)
	}
	if i < 0 || i >= len(s.columns) {
		return value.Value{}, newError(KindSQL, "column", s.sql, "column index %d out of range [0,%d)", i, len(s.columns))
	}
	return s.column(i), nil
}

// Row returns every column of the current row, or nil without a current row.
func (s *Statement) Row() []value.Value {
	if s.state != StateHasRow {
		return nil
	}
	out := make([]value.Value, len(s.columns))
	for i := range out {
		out[i] = s.column(i)
	}
	return out
}

// Object returns the current row keyed by column name, or nil without a
// current row. When several columns share a name the right-most one wins;
// unnamed columns are left out.
func (s *Statement) Object() map[string]value.Value {
	if s.state != StateHasRow {
		return nil
	}
	out := make(map[string]value.Value, len(s.columns))
	for i, name := range s.columns {
		if name == "" {
			continue
		}
		out[name] = s.column(i)
	}
	return out
}

func (s *Statement) column(i int) value.Value {
	switch s.stmt.ColumnType(i) {
	case sqlite.TypeInteger:
		return value.IntegerValue(s.stmt.ColumnInt64(i))
	case sqlite.TypeFloat:
		return value.RealValue(s.stmt.ColumnFloat(i))
	case sqlite.TypeText:
		return value.TextValue(s.stmt.ColumnText(i))
	case sqlite.TypeBlob:
		buf := make([]byte, s.stmt.ColumnLen(i))
		s.stmt.ColumnBytes(i, buf)
		return value.BlobValue(buf)
	}
	return value.NullValue()
}

// columnIndex returns the index of the right-most column called name, or -1.
func (s *Statement) columnIndex(name string) int {
	for i := len(s.columns) - 1; i >= 0; i-- {
		if s.columns[i] == name {
			return i
		}
	}
	return -1
}

// isWrite reports whether sql starts with a data changing verb.
func isWrite(sql string) bool {
	end := strings.IndexFunc(sql, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(sql)
	}
	switch strings.ToUpper(sql[:end]) {
	case "INSERT", "UPDATE", "DELETE", "REPLACE":
		return true
	}
	return false
}

func (s *Statement) checkLive(op string) error {
	if s.state == StateFinalized {
		return &Error{Kind: KindMisuse, Op: op, SQL: s.sql, Err: ErrFinalized}
	}
	return s.conn.checkOpen(op)
}

func (s *Statement) checkBindable(op string) error {
	if err := s.checkLive(op); err != nil {
		return err
	}
	if s.state != StateReady {
		return newError(KindMisuse, op, s.sql, "statement must be reset before binding (state %s)", s.state)
	}
	return nil
}

func (s *Statement) fail(err error) error {
	s.conn.opts.metrics.error(err)
	return err
}
