// Package audit records control-plane acknowledgements consumed on the
// reserved "changer.ack" source tag into an optional, embedded SQLite
// ledger. This supplements the stub trace-log-only ack bookkeeping with a
// durable record of completed-event control messages; it is not
// persistence of in-flight data messages.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Ledger records acknowledgement IDs. A Ledger with no backing store is a
// no-op, matching the original's "ack bookkeeping is a trace stub"
// default behavior when no store is configured.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite-backed ledger at path. An
// empty path disables the ledger entirely; Record then becomes a no-op.
func Open(path string) (*Ledger, error) {
	if path == "" {
		return &Ledger{}, nil
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ack store %s: %w", path, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}

	const schema = `CREATE TABLE IF NOT EXISTS acks (
		id TEXT PRIMARY KEY,
		received_at TIMESTAMP NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating acks table: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Record inserts an acknowledgement for id, ignoring duplicates. It is a
// no-op when the ledger was opened with an empty path.
func (l *Ledger) Record(id string) error {
	if l.db == nil {
		return nil
	}
	_, err := l.db.Exec(
		`INSERT OR IGNORE INTO acks (id, received_at) VALUES (?, ?)`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording ack %s: %w", id, err)
	}
	return nil
}

// Close releases the underlying database handle, if any.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}
