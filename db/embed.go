// Package db embeds the database schema applied on startup.
package db

import _ "embed"

// Schema holds the DDL for every table the API uses. The script is idempotent
// and is executed as a whole on boot.
//
//go:embed migrations/001_schema.sql
var Schema string
