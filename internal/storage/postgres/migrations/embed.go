// migrations содержит SQL-миграции goose для PostgreSQL-хранилища.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
