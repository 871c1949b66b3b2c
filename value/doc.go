// Package value defines the SQL-typed scalar exchanged between callers and the
// embedded engine: a small immutable tagged union of NULL, INTEGER, REAL, TEXT
// and BLOB, plus the scalar function signature used by function registries.
package value
