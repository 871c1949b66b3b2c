package engine

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strings"
	"sync"

	sqlite "modernc.org/sqlite"

	"github.com/viant/sqlite-facade/value"
)

var (
	mux        sync.Mutex
	registered = map[string]int{}
)

// RegisterFunction registers fn with the driver under name so it is available
// on new connections opened after this call. Existing open connections will
// not see new functions.
//
// The driver keys functions by name only, so a name can be registered once;
// registering the same name and arity again is a no-op, a different arity is
// an error.
func RegisterFunction(name string, arity int, fn value.ScalarFunc, deterministic bool) error {
	mux.Lock()
	defer mux.Unlock()
	key := strings.ToLower(name)
	if prev, ok := registered[key]; ok {
		if prev == arity {
			return nil
		}
		return fmt.Errorf("engine: function %s already registered with arity %d", name, prev)
	}
	impl := adapt(name, fn)
	var err error
	if deterministic {
		err = sqlite.RegisterDeterministicScalarFunction(name, int32(arity), impl)
	} else {
		err = sqlite.RegisterScalarFunction(name, int32(arity), impl)
	}
	if err != nil {
		return fmt.Errorf("engine: register %s: %w", name, err)
	}
	registered[key] = arity
	return nil
}

// Functions lists the names registered through RegisterFunction.
func Functions() []string {
	mux.Lock()
	defer mux.Unlock()
	out := make([]string, 0, len(registered))
	for name := range registered {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func adapt(name string, fn value.ScalarFunc) func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error) {
	return func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		in := make([]value.Value, len(args))
		for i, arg := range args {
			v, err := value.Of(arg)
			if err != nil {
				return nil, fmt.Errorf("%s: argument %d: %w", name, i+1, err)
			}
			in[i] = v
		}
		out, err := fn(in)
		if err != nil {
			return nil, err
		}
		return out.Any(), nil
	}
}
