package db

import (
	"fmt"
	"sort"
	"strings"

	"zombiezen.com/go/sqlite"

	"github.com/viant/sqlite-facade/value"
)

// VariadicArity registers a function that accepts any number of arguments.
const VariadicArity = -1

type funcKey struct {
	name  string
	arity int
}

type function struct {
	name          string
	arity         int
	fn            value.ScalarFunc
	deterministic bool
}

// FunctionOption tunes a CreateFunction registration.
type FunctionOption func(*function)

// Deterministic marks the function as always returning the same result for
// the same arguments, allowing the engine to use it in indexes and to
// factor out repeated calls.
func Deterministic() FunctionOption {
	return func(f *function) { f.deterministic = true }
}

// FunctionInfo describes a registered function.
type FunctionInfo struct {
	Name          string
	Arity         int
	Deterministic bool
}

// CreateFunction registers fn as a scalar SQL function on c. Registration is
// keyed by case-insensitive name and arity: registering the same pair again
// replaces the earlier function, a different arity adds an overload. A call
// whose argument count matches no registered arity fails when the calling
// statement is prepared.
//
// An error returned by fn, or a panic inside it, fails the calling statement
// with a KindSQL error carrying its message.
func (c *Connection) CreateFunction(name string, arity int, fn value.ScalarFunc, opts ...FunctionOption) (err error) {
	defer func() { c.opts.metrics.error(err) }()
	if err = c.checkOpen("createFunction"); err != nil {
		return err
	}
	if name == "" || fn == nil {
		return newError(KindMisuse, "createFunction", "", "function name and implementation are required")
	}
	if arity < VariadicArity || arity > 127 {
		return newError(KindMisuse, "createFunction", "", "invalid arity %d for %s", arity, name)
	}
	f := &function{name: name, arity: arity, fn: fn}
	for _, opt := range opts {
		opt(f)
	}
	impl := &sqlite.FunctionImpl{
		NArgs:         arity,
		Deterministic: f.deterministic,
		AllowIndirect: true,
		Scalar: func(_ sqlite.Context, args []sqlite.Value) (sqlite.Value, error) {
			return c.invoke(f, args)
		},
	}
	if err = c.conn.CreateFunction(name, impl); err != nil {
		return engineError("createFunction "+name, "", err)
	}
	c.funcs[funcKey{name: strings.ToLower(name), arity: arity}] = f
	c.log.Logf("[DEBUG] connection %s registered function %s/%d", c.id, name, arity)
	return nil
}

// invoke runs f for the engine. The engine binding reports a function error
// as the text result of the call, so the first failure of a step is kept in
// c.fnErr and Statement.Step turns it into the statement's error.
func (c *Connection) invoke(f *function, args []sqlite.Value) (result sqlite.Value, err error) {
	c.opts.metrics.call(f.name)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", f.name, r)
		}
		if err != nil {
			if c.fnErr == nil {
				c.fnErr = err
			}
			result = sqlite.Value{}
		}
	}()
	in := make([]value.Value, len(args))
	for i, a := range args {
		in[i] = fromEngine(a)
	}
	out, err := f.fn(in)
	if err != nil {
		return sqlite.Value{}, err
	}
	return toEngine(out), nil
}

// Functions lists the functions registered on c ordered by name and arity.
func (c *Connection) Functions() []FunctionInfo {
	out := make([]FunctionInfo, 0, len(c.funcs))
	for _, f := range c.funcs {
		out = append(out, FunctionInfo{Name: f.name, Arity: f.arity, Deterministic: f.deterministic})
	}
	sort.Slice(out, func(i, j int) bool {
		if a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name); a != b {
			return a < b
		}
		return out[i].Arity < out[j].Arity
	})
	return out
}

func fromEngine(v sqlite.Value) value.Value {
	switch v.Type() {
	case sqlite.TypeInteger:
		return value.IntegerValue(v.Int64())
	case sqlite.TypeFloat:
		return value.RealValue(v.Float())
	case sqlite.TypeText:
		return value.TextValue(v.Text())
	case sqlite.TypeBlob:
		return value.BlobValue(v.Blob())
	}
	return value.NullValue()
}

func toEngine(v value.Value) sqlite.Value {
	switch v.Type() {
	case value.Integer:
		return sqlite.IntegerValue(v.Int64())
	case value.Real:
		return sqlite.FloatValue(v.Float64())
	case value.Text:
		return sqlite.TextValue(v.Text())
	case value.Blob:
		return sqlite.BlobValue(v.Bytes())
	}
	return sqlite.Value{}
}
