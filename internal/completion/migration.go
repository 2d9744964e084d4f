package completion

import "github.com/freekieb7/go-duedate/internal/database"

type migrationCreateCompletion struct{}

func (migrationCreateCompletion) Identifier() string {
	return "20261019000000_create_completion"
}

func (migrationCreateCompletion) Up() (string, []any) {
	return `
		CREATE TABLE tbl_completion (
			owner TEXT NOT NULL,
			event_id INTEGER NOT NULL,
			completed_at INT NOT NULL,
			PRIMARY KEY (owner, event_id)
		);
	`, nil
}

// Migrations creates the tables the Store needs.
func Migrations() []database.Migration {
	return []database.Migration{
		migrationCreateCompletion{},
	}
}
