package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// The redirect path issues one small write transaction per admitted
// visit, so the store is tuned for many short transactions: WAL keeps
// readers off the writer's back, and the busy timeout bounds how long an
// admission can wait behind a competing transaction before it errors.
var pragmas = []string{
	"journal_mode=WAL",
	"busy_timeout=5000",
	"synchronous=NORMAL",
	"foreign_keys=ON",
	"cache_size=-20000",
	"wal_autocheckpoint=1000",
}

// Open opens (creating if needed) the sqlite database at path, applies
// the connection pragmas and brings the schema up to date.
func Open(path string) (*sql.DB, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for _, p := range pragmas {
		if _, err := database.Exec("PRAGMA " + p); err != nil {
			database.Close()
			return nil, fmt.Errorf("pragma %s: %w", p, err)
		}
	}

	// sqlite permits one writer at a time; a single pooled connection
	// also keeps :memory: databases shared across a test's queries.
	database.SetMaxOpenConns(1)

	if err := Migrate(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return database, nil
}
