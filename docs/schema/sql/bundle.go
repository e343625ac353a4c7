// Package sqldocs embeds the value store DDL kept in the docs tree.
package sqldocs

import _ "embed"

// SQLite contains the value store DDL for SQLite.
//
//go:embed sqlite.sql
var SQLite string

// Postgres contains the value store DDL for PostgreSQL.
//
//go:embed postgres.sql
var Postgres string
