package storage

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
)

//go:embed schema
var schemaFiles embed.FS

type migration struct {
	name       string
	statements []string
}

// loadMigrations reads the embedded schema files for dialect in filename
// order, split into single statements.
func loadMigrations(dialect string) ([]migration, error) {
	dir := path.Join("schema", dialect)
	entries, err := schemaFiles.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	migrations := make([]migration, 0, len(names))
	for _, name := range names {
		raw, err := schemaFiles.ReadFile(path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		migrations = append(migrations, migration{name: name, statements: splitStatements(string(raw))})
	}
	return migrations, nil
}

func splitStatements(sql string) []string {
	var out []string
	for _, stmt := range strings.Split(sql, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
