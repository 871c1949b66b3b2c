package db

import (
	"fmt"
	"strconv"
)

type rowModeKind int

const (
	rowArray rowModeKind = iota
	rowObject
	rowStatement
	rowColumnIndex
	rowColumnName
)

// RowMode selects the shape in which Execute delivers result rows. The zero
// RowMode is RowArray.
type RowMode struct {
	kind  rowModeKind
	index int
	name  string
}

var (
	// RowArray delivers each row as []value.Value.
	RowArray = RowMode{kind: rowArray}
	// RowObject delivers each row as map[string]value.Value keyed by result
	// column name. When several columns share a name the right-most wins and
	// the shadowed ones, which the engine reports unnamed, are left out.
	RowObject = RowMode{kind: rowObject}
	// RowStatement delivers the *Statement itself positioned on the row; read
	// it with Get(i). Only valid together with a callback.
	RowStatement = RowMode{kind: rowStatement}
)

// ColumnIndex delivers only the value of result column n (0-based).
func ColumnIndex(n int) RowMode { return RowMode{kind: rowColumnIndex, index: n} }

// ColumnName delivers only the value of the result column called name. With
// duplicate names it selects the same column RowObject would expose.
func ColumnName(name string) RowMode { return RowMode{kind: rowColumnName, name: name} }

func (m RowMode) String() string {
	switch m.kind {
	case rowArray:
		return "array"
	case rowObject:
		return "object"
	case rowStatement:
		return "stmt"
	case rowColumnIndex:
		return strconv.Itoa(m.index)
	case rowColumnName:
		return "$" + m.name
	}
	return fmt.Sprintf("RowMode(%d)", int(m.kind))
}

// ParseRowMode parses the textual row mode forms "array", "object", "stmt",
// a column index ("1") or a column name ("$a").
func ParseRowMode(s string) (RowMode, error) {
	switch s {
	case "", "array":
		return RowArray, nil
	case "object":
		return RowObject, nil
	case "stmt":
		return RowStatement, nil
	}
	if len(s) > 1 && s[0] == '$' {
		return ColumnName(s[1:]), nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return ColumnIndex(n), nil
	}
	return RowMode{}, fmt.Errorf("invalid row mode %q", s)
}

// shaper validates m against the compiled statement and returns the function
// that converts the current row into its delivered form.
func (m RowMode) shaper(st *Statement) (func(*Statement) any, error) {
	switch m.kind {
	case rowArray:
		return func(s *Statement) any { return s.Row() }, nil
	case rowObject:
		return func(s *Statement) any { return s.Object() }, nil
	case rowStatement:
		return func(s *Statement) any { return s }, nil
	case rowColumnIndex:
		if m.index < 0 || m.index >= st.ColumnCount() {
			return nil, newError(KindSQL, "execute", st.sql, "row mode column index %d out of range [0,%d)", m.index, st.ColumnCount())
		}
		idx := m.index
		return func(s *Statement) any { return s.Get(idx) }, nil
	case rowColumnName:
		idx := st.columnIndex(m.name)
		if idx < 0 {
			return nil, newError(KindSQL, "execute", st.sql, "row mode %q is not a result column", m.name)
		}
		return func(s *Statement) any { return s.Get(idx) }, nil
	}
	return nil, newError(KindMisuse, "execute", st.sql, "invalid row mode %v", m)
}
