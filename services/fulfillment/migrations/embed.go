// Package migrations содержит SQL миграции fulfillment, встроенные в бинарник для goose
package migrations

import "embed"

// FS встроенные *.sql файлы
//
//go:embed *.sql
var FS embed.FS
