// Package migrations embeds the SQL migration files so they ship inside the
// gateway binary and apply on startup.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
