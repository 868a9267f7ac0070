package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/tuition-scheduler/internal/persistence"
	"github.com/example/tuition-scheduler/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary, migrated SQLite file
// for integration-style persistence tests.
type SQLiteHarness struct {
	Pool     *sqlite.ConnectionPool
	Students persistence.StudentRepository
	Tuitions persistence.TuitionRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates a database under tb.TempDir. Close is registered
// with tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	ctx := context.Background()
	path := filepath.Join(tb.TempDir(), "tuition.db")

	pool, err := sqlite.NewConnectionPool(ctx, sqlite.DefaultConfig(path))
	if err != nil {
		tb.Fatalf("failed to open database: %v", err)
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := sqlite.NewMigrator(pool.DB(), quiet).Run(ctx); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to migrate database: %v", err)
	}

	harness := &SQLiteHarness{
		Pool:     pool,
		Students: sqlite.NewStudentRepository(pool),
		Tuitions: sqlite.NewTuitionRepository(pool),
		cleanup: func() {
			_ = pool.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedStudent stores fixture students and fails the test on error.
func (h *SQLiteHarness) SeedStudent(tb testing.TB, fixtures ...StudentFixture) {
	tb.Helper()
	for _, f := range fixtures {
		if err := h.Students.UpsertStudent(context.Background(), f.Persistence()); err != nil {
			tb.Fatalf("failed to seed student %s: %v", f.ID, err)
		}
	}
}
