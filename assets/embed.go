// Package assets embeds the files the server needs at runtime: the preset
// level list and the SQL migrations.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed levels.txt sql/*.sql
var FS embed.FS

// LevelsText returns the embedded preset level list.
func LevelsText() (string, error) {
	b, err := FS.ReadFile("levels.txt")
	return string(b), err
}

// Migrations returns the embedded migration directory rooted at sql/.
func Migrations() (fs.FS, error) {
	return fs.Sub(FS, "sql")
}
