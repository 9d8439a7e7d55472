// Package migrations embeds the checkout state schema.
package migrations

import "embed"

// FS holds the *.up.sql and *.down.sql files, applied by
// database.RunMigrations.
//
//go:embed *.sql
var FS embed.FS
