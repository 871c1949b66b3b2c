package storage

import (
	"fmt"
	"os"
	"strings"
)

// Mode describes how a logical database file is opened. It is parsed from a
// short flag string:
//
//	c  create the file if missing (implies w)
//	w  open read-write
//	r  open read-only
//	t  trace every compiled SQL statement to the connection logger
//
// An empty string means "c".
type Mode struct {
	Create   bool
	Write    bool
	ReadOnly bool
	Trace    bool
}

// ParseMode parses a flag string such as "c", "ct" or "r".
func ParseMode(flags string) (Mode, error) {
	if flags == "" {
		flags = "c"
	}
	var m Mode
	for _, r := range flags {
		switch r {
		case 'c':
			m.Create, m.Write = true, true
		case 'w':
			m.Write = true
		case 'r':
			m.ReadOnly = true
		case 't':
			m.Trace = true
		default:
			return Mode{}, fmt.Errorf("storage: invalid mode flag %q in %q", r, flags)
		}
	}
	if m.ReadOnly && m.Write {
		return Mode{}, fmt.Errorf("storage: mode %q is both read-only and writable", flags)
	}
	if !m.ReadOnly && !m.Write {
		return Mode{}, fmt.Errorf("storage: mode %q selects neither read nor write", flags)
	}
	return m, nil
}

// MustParseMode is like ParseMode but panics on error.
func MustParseMode(flags string) Mode {
	m, err := ParseMode(flags)
	if err != nil {
		panic(err)
	}
	return m
}

// String renders m back into its flag form.
func (m Mode) String() string {
	var sb strings.Builder
	switch {
	case m.Create:
		sb.WriteByte('c')
	case m.Write:
		sb.WriteByte('w')
	case m.ReadOnly:
		sb.WriteByte('r')
	}
	if m.Trace {
		sb.WriteByte('t')
	}
	return sb.String()
}

func (m Mode) osFlags() int {
	switch {
	case m.ReadOnly:
		return os.O_RDONLY
	case m.Create:
		return os.O_RDWR | os.O_CREATE
	}
	return os.O_RDWR
}
