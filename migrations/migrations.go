// Package migrations embeds the SQL schema migrations. They are applied with
// golang-migrate through its iofs source driver.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Version is the schema version the application expects.
const Version = 2
