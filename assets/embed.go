// assets/embed.go
//
// Embedded data shipped with the binary:
//   - themes.yaml:    default token themes (the classic eight symbols and more).
//   - migrations/*.sql: SQLite schema, applied in lexical order.

package assets

import (
	"embed"
	"io/fs"
)

//go:embed themes.yaml migrations/*.sql
var FS embed.FS

// Themes returns the raw embedded theme file.
func Themes() ([]byte, error) {
	return FS.ReadFile("themes.yaml")
}

// Migrations returns the migrations directory as its own filesystem root.
func Migrations() fs.FS {
	sub, err := fs.Sub(FS, "migrations")
	if err != nil {
		// "migrations" is a valid, embedded path; fs.Sub only fails on invalid names.
		panic(err)
	}
	return sub
}
