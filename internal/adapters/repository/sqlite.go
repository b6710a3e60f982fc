package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/okian/pulse/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS blocks (
    height    INTEGER PRIMARY KEY,
    timestamp INTEGER NOT NULL,
    prev_hash TEXT    NOT NULL,
    hash      TEXT    NOT NULL UNIQUE,
    tx_id     TEXT,
    kind      TEXT,
    round_id  INTEGER NOT NULL DEFAULT 0,
    payload   BLOB    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_blocks_round ON blocks(round_id, height);
CREATE INDEX IF NOT EXISTS idx_blocks_tx    ON blocks(tx_id);
`

const defaultBusyTimeoutMs = 5000

// SQLiteJournal stores the journal in a SQLite database, one row per record.
type SQLiteJournal struct {
	db            *sql.DB
	log           logger.Logger
	busyTimeoutMs int

	mu   sync.Mutex
	head *Record
}

// OpenSQLite opens (or creates) the journal at path and loads its head.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteJournal, error) {
	j := &SQLiteJournal{busyTimeoutMs: defaultBusyTimeoutMs}
	for _, opt := range opts {
		opt(j)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("repository.OpenSQLite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)
	j.db = db

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", j.busyTimeoutMs),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("repository.OpenSQLite: %s: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("repository.OpenSQLite: apply schema: %w", err)
	}
	if err := j.loadHead(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if j.log != nil {
		height := int64(-1)
		if j.head != nil {
			height = int64(j.head.Height)
		}
		j.log.Info(ctx, "journal opened", logger.String("path", path), logger.Any("height", height))
	}
	return j, nil
}

func (j *SQLiteJournal) loadHead(ctx context.Context) error {
	var payload []byte
	err := j.db.QueryRowContext(ctx, `SELECT payload FROM blocks ORDER BY height DESC LIMIT 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("repository.loadHead: %w", err)
	}
	rec, err := decode(payload)
	if err != nil {
		return err
	}
	j.head = &rec
	return nil
}

// Append seals rec onto the head and inserts it in one transaction.
func (j *SQLiteJournal) Append(ctx context.Context, rec *Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return ErrClosed
	}
	if err := seal(j.head, rec); err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("repository.Append: encode: %w", err)
	}

	var txID, kind sql.NullString
	if rec.Tx != nil {
		txID = sql.NullString{String: rec.Tx.ID, Valid: rec.Tx.ID != ""}
		kind = sql.NullString{String: string(rec.Tx.Kind), Valid: true}
	}
	if _, err := j.db.ExecContext(ctx,
		`INSERT INTO blocks (height, timestamp, prev_hash, hash, tx_id, kind, round_id, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Height, rec.Timestamp, rec.PrevHash.Hex(), rec.Hash.Hex(), txID, kind, rec.RoundID(), payload,
	); err != nil {
		return fmt.Errorf("repository.Append: insert %d: %w", rec.Height, err)
	}
	stored := *rec
	j.head = &stored
	return nil
}

// Head returns the last record, or ErrEmpty.
func (j *SQLiteJournal) Head(_ context.Context) (Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.head == nil {
		return Record{}, ErrEmpty
	}
	return *j.head, nil
}

func (j *SQLiteJournal) conn() (*sql.DB, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil, ErrClosed
	}
	return j.db, nil
}

// Iterate streams every record in height order to fn.
func (j *SQLiteJournal) Iterate(ctx context.Context, fn func(Record) error) error {
	db, err := j.conn()
	if err != nil {
		return err
	}
	rows, err := db.QueryContext(ctx, `SELECT payload FROM blocks ORDER BY height`)
	if err != nil {
		return fmt.Errorf("repository.Iterate: %w", err)
	}
	defer rows.Close()

	var prev *Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("repository.Iterate: scan: %w", err)
		}
		rec, err := decode(payload)
		if err != nil {
			return err
		}
		if err := Verify(prev, &rec); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		prev = &rec
	}
	return rows.Err()
}

// Round returns the records indexed under roundID.
func (j *SQLiteJournal) Round(ctx context.Context, roundID uint64) ([]Record, error) {
	db, err := j.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT payload FROM blocks WHERE round_id = ? ORDER BY height`, roundID)
	if err != nil {
		return nil, fmt.Errorf("repository.Round: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("repository.Round: scan: %w", err)
		}
		rec, err := decode(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database. Later appends and queries return ErrClosed.
func (j *SQLiteJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

func decode(payload []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	return rec, nil
}
