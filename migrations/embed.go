// Package migrations embeds the database schema migrations for the aggregator.
//
// All migrations are embedded at build time using go:embed, enabling zero-config
// deployment without external file dependencies. The storage layer applies them
// through golang-migrate's iofs source driver.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

//go:embed *.sql
var embeddedMigrations embed.FS

// Migration filename regex: 001_migration_name.up.sql or 001_migration_name.down.sql.
var migrationFilenameRegex = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

// Info contains parsed information about a migration file.
type Info struct {
	Sequence  int
	Name      string
	Direction string // "up" or "down"
	Filename  string
}

// FS returns the embedded file system containing all migration files.
func FS() fs.FS {
	return embeddedMigrations
}

// List returns all embedded migration files that conform to the strict naming
// standard, sorted lexicographically. Only files matching the format
// 001_name.(up|down).sql are included.
func List() ([]string, error) {
	entries, err := fs.ReadDir(embeddedMigrations, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations directory: %w", err)
	}

	var files []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		filename := entry.Name()
		if filepath.Ext(filename) == ".sql" && migrationFilenameRegex.MatchString(filename) {
			files = append(files, filename)
		}
	}

	// Lexicographic sort works with the naming standard:
	// 001_name.down.sql sorts before 001_name.up.sql sorts before 002_*.
	sort.Strings(files)

	return files, nil
}

// Validate performs validation of the embedded migration files: filename
// format, up/down pairing, and gap-free sequence starting at 001.
func Validate() error {
	files, err := List()
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no embedded migration files found")
	}

	for _, file := range files {
		if _, err := fs.ReadFile(embeddedMigrations, file); err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}
	}

	if err := validatePairing(files); err != nil {
		return err
	}

	return validateSequence(files)
}

// Parse parses a migration filename and extracts its components.
func Parse(filename string) (*Info, error) {
	matches := migrationFilenameRegex.FindStringSubmatch(filename)
	if len(matches) != 4 {
		return nil, fmt.Errorf(
			"invalid migration filename format: %s (expected: 001_name.up.sql or 001_name.down.sql)",
			filename,
		)
	}

	sequence, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid sequence number in filename %s: %w", filename, err)
	}

	return &Info{
		Sequence:  sequence,
		Name:      matches[2],
		Direction: matches[3],
		Filename:  filename,
	}, nil
}

// validatePairing ensures that every up migration has a corresponding down migration.
func validatePairing(files []string) error {
	directionsByKey := make(map[string]map[string]bool)

	for _, file := range files {
		migration, err := Parse(file)
		if err != nil {
			return err
		}

		key := fmt.Sprintf("%03d_%s", migration.Sequence, migration.Name)
		if directionsByKey[key] == nil {
			directionsByKey[key] = make(map[string]bool)
		}

		directionsByKey[key][migration.Direction] = true
	}

	for key, directions := range directionsByKey {
		if !directions["up"] {
			return fmt.Errorf("orphaned down migration: missing up migration for %s", key)
		}

		if !directions["down"] {
			return fmt.Errorf("orphaned up migration: missing down migration for %s", key)
		}
	}

	return nil
}

// validateSequence ensures there are no gaps in the migration sequence.
func validateSequence(files []string) error {
	sequences := make(map[int]bool)

	for _, file := range files {
		migration, err := Parse(file)
		if err != nil {
			return err
		}

		sequences[migration.Sequence] = true
	}

	var sequenceNumbers []int
	for seq := range sequences {
		sequenceNumbers = append(sequenceNumbers, seq)
	}

	sort.Ints(sequenceNumbers)

	if len(sequenceNumbers) == 0 {
		return nil
	}

	if sequenceNumbers[0] != 1 {
		return fmt.Errorf("migration sequence should start with 001, but found %03d", sequenceNumbers[0])
	}

	for i := 1; i < len(sequenceNumbers); i++ {
		expected := sequenceNumbers[i-1] + 1
		if sequenceNumbers[i] != expected {
			return fmt.Errorf(
				"gap in migration sequence: expected %03d, found %03d",
				expected,
				sequenceNumbers[i],
			)
		}
	}

	return nil
}
