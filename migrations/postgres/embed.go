// Package postgres embebe las migraciones SQL del store Postgres.
package postgres

import "embed"

// FS contiene las migraciones, formato {version}_{name}.sql.
//
//go:embed *.sql
var FS embed.FS
