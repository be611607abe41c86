// Package db provides the embedded database schema.
package db

import _ "embed"

// Schema is a text/template of the DDL statements. It expects .Table and
// .Index, both already quoted as identifiers.
//
//go:embed migrations/001_schema.sql
var Schema string
