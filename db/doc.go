// Package db is a small facade over an embedded SQLite engine.
//
// A Connection owns compiled Statements and scalar functions registered on it.
// Statements expose 1-based parameter slots, a Ready/HasRow/Done/Finalized
// cursor and typed column access through value.Value. Connection.Execute runs
// multi-statement SQL with bindings, row shaping (RowArray, RowObject,
// RowStatement, ColumnIndex, ColumnName) and an optional per-row callback.
// Connection.Scope maps nested calls onto BEGIN/COMMIT at the top level and
// SAVEPOINT/RELEASE below it, rolling back on error or panic.
//
// Errors raised by the package are *Error values carrying a Kind; callers
// branch with KindOf or IsKind. An error returned by an Execute row callback
// is passed back unchanged.
package db
