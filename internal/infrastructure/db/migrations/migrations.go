// Package migrations holds the schema of the l2network tables.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
)

// LatestVersion is the version of the newest migration in this package.
const LatestVersion = 2

//go:embed *.sql
var files embed.FS

func AssetNames() ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func Asset(name string) ([]byte, error) {
	return files.ReadFile(name)
}
