package database_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/freekieb7/go-duedate/internal/database"
)

type testMigration struct {
	id    string
	query string
}

func (m testMigration) Identifier() string {
	return m.id
}

func (m testMigration) Up() (string, []any) {
	return m.query, nil
}

func openTestDatabase(t *testing.T) database.Database {
	t.Helper()

	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUp(t *testing.T) {
	ctx := context.Background()
	db := openTestDatabase(t)
	migrator := database.NewMigrator(db, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Out of order on purpose; the second depends on the first.
	migrations := []database.Migration{
		testMigration{"20261019000001_add_index", `CREATE INDEX idx_note_body ON tbl_note (body);`},
		testMigration{"20261019000000_create_note", `CREATE TABLE tbl_note (body TEXT NOT NULL);`},
	}
	if err := migrator.Up(ctx, migrations); err != nil {
		t.Fatal(err)
	}

	history, err := migrator.History(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 recorded migrations, got %d", len(history))
	}
	if history[0].ID != "20261019000000_create_note" || history[1].ID != "20261019000001_add_index" {
		t.Errorf("migrator stored unexpected migrations: %+v", history)
	}

	// Running again is a no-op.
	if err := migrator.Up(ctx, migrations); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
}

func TestUpRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	db := openTestDatabase(t)
	migrator := database.NewMigrator(db, slog.New(slog.NewTextHandler(io.Discard, nil)))

	migrations := []database.Migration{
		testMigration{"20261019000000_create_note", `CREATE TABLE tbl_note (body TEXT NOT NULL);`},
		testMigration{"20261019000001_broken", `CREATE TABLE;`},
	}
	if err := migrator.Up(ctx, migrations); err == nil {
		t.Fatal("expected an error from the broken migration")
	}

	history, err := migrator.History(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 0 {
		t.Errorf("expected nothing recorded, got %+v", history)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	ctx := context.Background()
	db := openTestDatabase(t)

	if _, err := db.ExecContext(ctx, `CREATE TABLE tbl_key (id TEXT PRIMARY KEY);`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO tbl_key (id) VALUES ('a');`); err != nil {
		t.Fatal(err)
	}

	_, err := db.ExecContext(ctx, `INSERT INTO tbl_key (id) VALUES ('a');`)
	if !database.IsUniqueViolation(err) {
		t.Errorf("expected a unique violation, got %v", err)
	}
	if database.IsUniqueViolation(nil) {
		t.Error("nil is not a unique violation")
	}
}
