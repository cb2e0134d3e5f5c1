// Package history keeps an append-only journal of presence transitions in
// SQLite, so "who was online when" survives beyond the current roster.
package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/MrSnakeDoc/presence/internal/domain"

	_ "modernc.org/sqlite"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is one journaled transition.
type Entry struct {
	Seq     int64  `json:"seq"`
	CycleID string `json:"cycle_id"`
	domain.Transition
}

// Journal is the SQLite backed transition log.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at path.
func Open(path string) (*Journal, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate journal")
	}
	return j, nil
}

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

// Ping checks that the database answers.
func (j *Journal) Ping(ctx context.Context) error { return j.db.PingContext(ctx) }

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transitions (
		seq       INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle_id  TEXT NOT NULL,
		entity    TEXT NOT NULL,
		kind      TEXT NOT NULL,
		server    TEXT NOT NULL DEFAULT '',
		services  TEXT NOT NULL DEFAULT '[]',
		at        TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transitions_entity ON transitions(entity, seq);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record appends the transitions of one cycle in a single transaction.
func (j *Journal) Record(ctx context.Context, cycleID string, transitions []domain.Transition) error {
	if len(transitions) == 0 {
		return nil
	}
	return retryOp(defaultRetryConfig, func() error {
		tx, err := j.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback() //nolint:errcheck

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO transitions (cycle_id, entity, kind, server, services, at) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, t := range transitions {
			services, err := json.Marshal(nonNil(t.Services))
			if err != nil {
				return errors.Wrapf(err, "encode services of %s", t.EntityID)
			}
			if _, err := stmt.ExecContext(ctx, cycleID, t.EntityID, string(t.Kind), t.Server, string(services), t.At); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// Recent returns the latest transitions, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, cycle_id, entity, kind, server, services, at FROM transitions ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query transitions")
	}
	return scanEntries(rows)
}

// ForEntity returns the latest transitions of one entity, newest first.
func (j *Journal) ForEntity(ctx context.Context, id string, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, cycle_id, entity, kind, server, services, at FROM transitions WHERE entity = ? ORDER BY seq DESC LIMIT ?`, id, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query transitions")
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			kind     string
			services string
		)
		if err := rows.Scan(&e.Seq, &e.CycleID, &e.EntityID, &kind, &e.Server, &services, &e.At); err != nil {
			return nil, errors.Wrap(err, "scan transition")
		}
		e.Kind = domain.TransitionKind(kind)
		if err := json.Unmarshal([]byte(services), &e.Services); err != nil {
			return nil, errors.Wrapf(err, "decode services of transition %d", e.Seq)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
