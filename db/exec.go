package db

import (
	"strings"

	"github.com/viant/sqlite-facade/value"
)

// RowFunc receives one shaped row together with the accumulator supplied in
// ExecOptions. Returning an error stops Execute, which returns that error
// unchanged.
type RowFunc func(row any, acc any) error

// ExecOptions controls Execute.
type ExecOptions struct {
	// Bind is applied to the first statement that has parameters: []any,
	// []value.Value, map[string]any, map[string]value.Value or one scalar.
	Bind any
	// RowMode shapes the rows of the first statement that has result columns.
	RowMode RowMode
	// Callback, when set, is invoked once per row instead of accumulating rows
	// into the returned slice.
	Callback RowFunc
	// Accumulator is handed to every Callback invocation.
	Accumulator any
	// ColumnNames, when set, receives the result column names of the first
	// statement that has result columns.
	ColumnNames *[]string
}

// Execute compiles and runs every statement in sql in order. sql is a string,
// a []byte, or a []string whose parts are concatenated without separators.
//
// Bindings apply to the first statement that has parameters; row shaping,
// Callback, ColumnNames and the returned rows apply to the first statement
// that has result columns. Rows of any other statement are discarded.
func (c *Connection) Execute(sql any, opts *ExecOptions) (rows []any, err error) {
	defer func() { c.opts.metrics.error(err) }()
	if opts == nil {
		opts = &ExecOptions{}
	}
	text, err := sqlText("execute", sql)
	if err != nil {
		return nil, err
	}
	if err = c.checkOpen("execute"); err != nil {
		return nil, err
	}
	if opts.RowMode.kind == rowStatement && opts.Callback == nil {
		return nil, newError(KindSQL, "execute", text, "row mode %v requires a callback", opts.RowMode)
	}
	if opts.ColumnNames != nil {
		*opts.ColumnNames = (*opts.ColumnNames)[:0]
	}

	bound := isEmptyBinding(opts.Bind)
	shaped := false
	for rest := skipBlank(text); rest != ""; rest = skipBlank(rest) {
		var st *Statement
		if st, rest, err = c.compile("execute", rest); err != nil {
			return nil, err
		}
		err = func() (err error) {
			defer func() {
				if ferr := st.Finalize(); err == nil {
					err = ferr
				}
			}()
			if !bound && st.ParameterCount() > 0 {
				bound = true
				if err := st.Bind(opts.Bind); err != nil {
					return err
				}
			}
			if shaped || st.ColumnCount() == 0 {
				return drain(st)
			}
			shaped = true
			if opts.ColumnNames != nil {
				*opts.ColumnNames = append(*opts.ColumnNames, st.ColumnNames()...)
			}
			shape, err := opts.RowMode.shaper(st)
			if err != nil {
				return err
			}
			for {
				ok, err := st.Step()
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				row := shape(st)
				if opts.Callback == nil {
					rows = append(rows, row)
					continue
				}
				if err := opts.Callback(row, opts.Accumulator); err != nil {
					return err
				}
			}
		}()
		if err != nil {
			return nil, err
		}
	}
	if !bound {
		return nil, newError(KindBind, "execute", text, "bindings supplied but no statement has parameters")
	}
	return rows, nil
}

// Prepare compiles exactly one statement.
func (c *Connection) Prepare(sql any) (st *Statement, err error) {
	defer func() { c.opts.metrics.error(err) }()
	text, err := sqlText("prepare", sql)
	if err != nil {
		return nil, err
	}
	if err = c.checkOpen("prepare"); err != nil {
		return nil, err
	}
	if skipBlank(text) == "" {
		return nil, newError(KindSQL, "prepare", text, "empty SQL")
	}
	st, tail, err := c.compile("prepare", skipBlank(text))
	if err != nil {
		return nil, err
	}
	if skipBlank(tail) != "" {
		_ = st.Finalize()
		return nil, newError(KindSQL, "prepare", text, "SQL contains more than one statement")
	}
	return st, nil
}

// compile prepares the first statement of query and returns the unconsumed
// remainder.
func (c *Connection) compile(op, query string) (*Statement, string, error) {
	raw, trailing, err := c.conn.PrepareTransient(query)
	if err != nil {
		return nil, "", engineError(op, strings.TrimSpace(query), err)
	}
	tail := query[len(query)-trailing:]
	text := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(query[:len(query)-trailing]), ";"))
	if raw == nil {
		return nil, tail, newError(KindSQL, op, text, "no statement compiled")
	}
	c.trace(op, text)
	return newStatement(c, raw, text), tail, nil
}

func drain(st *Statement) error {
	for {
		ok, err := st.Step()
		if err != nil || !ok {
			return err
		}
	}
}

func sqlText(op string, sql any) (string, error) {
	switch s := sql.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case []string:
		return strings.Join(s, ""), nil
	}
	return "", newError(KindSQL, op, "", "unsupported SQL input type %T", sql)
}

func isEmptyBinding(b any) bool {
	switch v := b.(type) {
	case nil:
		return true
	case []any:
		return len(v) == 0
	case []value.Value:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	case map[string]value.Value:
		return len(v) == 0
	}
	return false
}

// skipBlank drops leading whitespace, semicolons and comments from s. An
// unterminated block comment is kept so that the engine reports it.
func skipBlank(s string) string {
	for i := 0; i < len(s); {
		switch c := s[i]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == ';':
			i++
		case strings.HasPrefix(s[i:], "--"):
			nl := strings.IndexByte(s[i:], '\n')
			if nl < 0 {
				return ""
			}
			i += nl + 1
		case strings.HasPrefix(s[i:], "/*"):
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return s[i:]
			}
			i += end + 4
		default:
			return s[i:]
		}
	}
	return ""
}
