package db

import (
	_ "embed"
)

//go:embed sqlite.sql
var SqliteSchema string

//go:embed postgres.sql
var PostgresSchema string
