// Package db embeds the marketplace schema.
package db

import _ "embed"

// Schema creates users, catalog, cart, wishlist and order tables. Every
// statement is idempotent so it runs on each start.
//
//go:embed migrations/001_schema.sql
var Schema string
