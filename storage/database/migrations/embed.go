// Package migrations embeds the goose SQL migrations of both databases.
package migrations

import "embed"

const (
	CredentialDir = "credential"
	SchoolDir     = "school"
)

//go:embed credential/*.sql school/*.sql
var FS embed.FS
