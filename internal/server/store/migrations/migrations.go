// Package migrations embeds the goose schema files of both store backends.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS
