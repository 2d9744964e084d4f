package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

const (
	MigrationTableName = "tbl_migration"
)

type Migration interface {
	Identifier() string
	Up() (string, []any)
}

// MigrationEntity is one row of the migration history.
type MigrationEntity struct {
	ID          string
	PerformedAt time.Time
}

type Migrator struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewMigrator(db Database, logger *slog.Logger) *Migrator {
	return &Migrator{
		db:     db.DB,
		logger: logger,
	}
}

// Up applies, in identifier order, every migration newer than the latest one
// recorded. All of them run in one transaction.
func (m *Migrator) Up(ctx context.Context, migrations []Migration) error {
	if len(migrations) < 1 {
		return nil
	}

	current, err := m.currentVersion(ctx)
	if err != nil {
		return fmt.Errorf("getting current migration version failed: %w", err)
	}

	scheduled := make([]Migration, 0, len(migrations))
	for _, migration := range migrations {
		if migration.Identifier() > current {
			scheduled = append(scheduled, migration)
		}
	}

	if len(scheduled) < 1 {
		return nil
	}

	slices.SortFunc(scheduled, func(a, b Migration) int {
		return strings.Compare(a.Identifier(), b.Identifier())
	})

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting migration transaction failed: %w", err)
	}
	defer tx.Rollback()

	for _, migration := range scheduled {
		query, args := migration.Up()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("migration up failed for %s: %w", migration.Identifier(), err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+MigrationTableName+` (id, performed_at) VALUES (?, ?);`,
			migration.Identifier(), time.Now().UTC().Unix(),
		); err != nil {
			return fmt.Errorf("recording migration %s failed: %w", migration.Identifier(), err)
		}

		m.logger.InfoContext(ctx, "Applied migration", "id", migration.Identifier())
	}

	return tx.Commit()
}

// History lists the applied migrations, oldest first.
func (m *Migrator) History(ctx context.Context) ([]MigrationEntity, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, performed_at FROM `+MigrationTableName+` ORDER BY id ASC;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []MigrationEntity
	for rows.Next() {
		var entity MigrationEntity
		var performedAt int64
		if err := rows.Scan(&entity.ID, &performedAt); err != nil {
			return nil, err
		}
		entity.PerformedAt = time.Unix(performedAt, 0).UTC()
		history = append(history, entity)
	}

	return history, rows.Err()
}

// currentVersion returns the identifier of the latest applied migration, or ""
// when none has run yet.
func (m *Migrator) currentVersion(ctx context.Context) (string, error) {
	if err := m.setup(ctx); err != nil {
		return "", err
	}

	var current string
	row := m.db.QueryRowContext(ctx, `SELECT id FROM `+MigrationTableName+` ORDER BY id DESC LIMIT 1;`)
	if err := row.Scan(&current); err != nil {
		if errors.Is(err, ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("getting last successful migration failed: %w", err)
	}

	return current, nil
}

func (m *Migrator) setup(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + MigrationTableName + ` (
			id TEXT NOT NULL,
			performed_at INT NOT NULL,
			PRIMARY KEY (id)
		);
	`
	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("migration setup failed: %w", err)
	}

	return nil
}
