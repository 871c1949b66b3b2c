// Package storage provides the durable-file collaborator used by db
// connections: logical database names are resolved below a root directory and
// opened according to a short mode flag string ("c", "w", "r", "t").
package storage
