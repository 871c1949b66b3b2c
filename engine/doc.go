// Package engine provides helpers for working with the modernc.org/sqlite
// driver through database/sql: opening databases by path, DSN or storage
// backend, and registering value.ScalarFunc implementations as driver-wide SQL
// functions. It keeps a thin surface so other packages can share the same
// driver instance; per-connection work goes through package db.
package engine
