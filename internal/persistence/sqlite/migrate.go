package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

var migrationFilePattern = regexp.MustCompile(`^(\d{3})_([a-z0-9_]+)\.sql$`)

// Migration is one versioned schema change.
type Migration struct {
	Version     string
	Description string
	SQL         string
	FilePath    string
	Checksum    string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// MigrationError reports the migration and step that failed.
type MigrationError struct {
	Version   string
	FilePath  string
	Operation string
	Err       error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %s (%s): %s: %v", e.Version, e.FilePath, e.Operation, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// ErrChecksumMismatch is returned when an applied migration file was edited afterwards.
var ErrChecksumMismatch = errors.New("sqlite: migration checksum mismatch")

// Migrator applies pending migrations from a filesystem in version order.
type Migrator struct {
	db     *sql.DB
	source fs.FS
	dir    string
	logger *slog.Logger
}

// NewMigrator uses the migrations embedded in the binary.
func NewMigrator(db *sql.DB, logger *slog.Logger) *Migrator {
	return NewMigratorFromFS(db, embeddedMigrations, "migrations", logger)
}

// NewMigratorFromFS reads migrations from dir inside source.
func NewMigratorFromFS(db *sql.DB, source fs.FS, dir string, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{db: db, source: source, dir: dir, logger: logger.With("component", "migrator")}
}

// ScanMigrations lists the migration files sorted by version.
func (m *Migrator) ScanMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(m.source, m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory %s: %w", m.dir, err)
	}

	var migrations []Migration
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		match := migrationFilePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			return nil, fmt.Errorf("invalid migration file name %q: want NNN_description.sql", entry.Name())
		}
		if previous, ok := seen[match[1]]; ok {
			return nil, fmt.Errorf("duplicate migration version %s in %s and %s", match[1], previous, entry.Name())
		}
		seen[match[1]] = entry.Name()

		path := m.dir + "/" + entry.Name()
		content, err := fs.ReadFile(m.source, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", path, err)
		}
		sum := sha256.Sum256(content)
		migrations = append(migrations, Migration{
			Version:     match[1],
			Description: strings.ReplaceAll(match[2], "_", " "),
			SQL:         string(content),
			FilePath:    path,
			Checksum:    hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Run creates schema_migrations if needed and applies every pending migration, each in its
// own transaction.
func (m *Migrator) Run(ctx context.Context) error {
	started := time.Now()
	if err := m.initVersionTable(ctx); err != nil {
		return err
	}

	migrations, err := m.ScanMigrations()
	if err != nil {
		return err
	}
	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	appliedByVersion := make(map[string]AppliedMigration, len(applied))
	for _, a := range applied {
		appliedByVersion[a.Version] = a
	}

	count := 0
	for _, migration := range migrations {
		if existing, ok := appliedByVersion[migration.Version]; ok {
			if existing.Checksum != "" && existing.Checksum != migration.Checksum {
				return &MigrationError{Version: migration.Version, FilePath: migration.FilePath, Operation: "verify checksum", Err: ErrChecksumMismatch}
			}
			continue
		}
		if err := m.apply(ctx, migration); err != nil {
			return err
		}
		count++
	}

	m.logger.InfoContext(ctx, "migrations complete",
		"applied", count,
		"total", len(migrations),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return nil
}

func (m *Migrator) apply(ctx context.Context, migration Migration) (err error) {
	started := time.Now()
	logger := m.logger.With("version", migration.Version, "description", migration.Description)

	statements := splitStatements(migration.SQL)
	if len(statements) == 0 {
		return &MigrationError{Version: migration.Version, FilePath: migration.FilePath, Operation: "parse SQL", Err: errors.New("no SQL statements found")}
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return &MigrationError{Version: migration.Version, FilePath: migration.FilePath, Operation: "begin transaction", Err: err}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			logger.ErrorContext(ctx, "migration failed", "error", err)
		}
	}()

	for i, stmt := range statements {
		if _, execErr := tx.ExecContext(ctx, stmt); execErr != nil {
			err = &MigrationError{Version: migration.Version, FilePath: migration.FilePath, Operation: fmt.Sprintf("execute statement %d", i+1), Err: execErr}
			return err
		}
	}

	elapsed := time.Since(started)
	if _, execErr := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`,
		migration.Version, time.Now().UTC().Format(time.RFC3339), migration.Checksum, elapsed.Milliseconds(),
	); execErr != nil {
		err = &MigrationError{Version: migration.Version, FilePath: migration.FilePath, Operation: "record migration", Err: execErr}
		return err
	}

	if commitErr := tx.Commit(); commitErr != nil {
		err = &MigrationError{Version: migration.Version, FilePath: migration.FilePath, Operation: "commit transaction", Err: commitErr}
		return err
	}

	logger.InfoContext(ctx, "migration applied", "duration_ms", elapsed.Milliseconds())
	return nil
}

func (m *Migrator) initVersionTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT,
			execution_time_ms INTEGER
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

// Applied returns the applied migrations ordered by version.
func (m *Migrator) Applied(ctx context.Context) ([]AppliedMigration, error) {
	if err := m.initVersionTable(ctx); err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx, `
		SELECT version, applied_at, COALESCE(execution_time_ms, 0), COALESCE(checksum, '')
		FROM schema_migrations
		ORDER BY version ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			a         AppliedMigration
			appliedAt string
			elapsedMs int64
		)
		if err := rows.Scan(&a.Version, &appliedAt, &elapsedMs, &a.Checksum); err != nil {
			return nil, fmt.Errorf("failed to scan applied migration: %w", err)
		}
		a.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt)
		a.ExecutionTime = time.Duration(elapsedMs) * time.Millisecond
		applied = append(applied, a)
	}
	return applied, rows.Err()
}

// splitStatements splits SQL content on semicolons and drops comment-only lines.
func splitStatements(content string) []string {
	var statements []string
	for _, chunk := range strings.Split(content, ";") {
		var lines []string
		for _, line := range strings.Split(chunk, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "--") {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) > 0 {
			statements = append(statements, strings.Join(lines, "\n"))
		}
	}
	return statements
}
