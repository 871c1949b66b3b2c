package value

import (
	"fmt"
	"math"
)

// ScalarFunc computes one SQL value from the argument values of a single
// function invocation.
type ScalarFunc func(args []Value) (Value, error)

// Of converts a Go scalar into a Value. Supported inputs are nil, Value, bool
// (stored as 0/1), all integer kinds that fit into int64, float32/float64,
// string and []byte.
func Of(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return v, nil
	case *Value:
		if v == nil {
			return Value{}, nil
		}
		return *v, nil
	case bool:
		if v {
			return IntegerValue(1), nil
		}
		return IntegerValue(0), nil
	case int:
		return IntegerValue(int64(v)), nil
	case int8:
		return IntegerValue(int64(v)), nil
	case int16:
		return IntegerValue(int64(v)), nil
	case int32:
		return IntegerValue(int64(v)), nil
	case int64:
		return IntegerValue(v), nil
	case uint:
		return fromUint(uint64(v))
	case uint8:
		return IntegerValue(int64(v)), nil
	case uint16:
		return IntegerValue(int64(v)), nil
	case uint32:
		return IntegerValue(int64(v)), nil
	case uint64:
		return fromUint(v)
	case float32:
		return RealValue(float64(v)), nil
	case float64:
		return RealValue(v), nil
	case string:
		return TextValue(v), nil
	case []byte:
		if v == nil {
			return Value{}, nil
		}
		return BlobValue(v), nil
	}
	return Value{}, fmt.Errorf("value: unsupported type %T", x)
}

// MustOf is like Of but panics on unsupported input. Intended for literals.
func MustOf(x any) Value {
	v, err := Of(x)
	if err != nil {
		panic(err)
	}
	return v
}

// List converts each element with Of.
func List(xs ...any) ([]Value, error) {
	out := make([]Value, len(xs))
	for i, x := range xs {
		v, err := Of(x)
		if err != nil {
			return nil, fmt.Errorf("value: element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, fmt.Errorf("value: %d overflows INTEGER", u)
	}
	return IntegerValue(int64(u)), nil
}
