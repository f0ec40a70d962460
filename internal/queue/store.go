package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SessionStore is the persistence contract for queue aggregates. Update is the
// exclusive-read mode: the callback runs while a row-level lock is held, so two
// mutators for the same passcode never interleave.
type SessionStore interface {
	Get(ctx context.Context, passcode string) (*Queue, error)
	Create(ctx context.Context, q *Queue) error
	Update(ctx context.Context, passcode string, mutate func(q *Queue) error) (*Queue, error)
	ListPlaying(ctx context.Context) ([]string, error)
}

// DB is the subset of pgxpool.Pool the store needs. Tests substitute mocks.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PGStore keeps one row per queue with the aggregate serialized as JSONB.
// is_playing is duplicated into a column so scheduler recovery can scan
// without unmarshalling every aggregate.
type PGStore struct {
	db DB
}

func NewPGStore(db DB) *PGStore {
	return &PGStore{db: db}
}

// AutoMigrate creates the queues table.
func AutoMigrate(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS queues (
          passcode   TEXT PRIMARY KEY,
          owner_id   TEXT NOT NULL,
          is_playing BOOLEAN NOT NULL DEFAULT FALSE,
          data       JSONB NOT NULL,
          created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
          updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `)
	if err != nil {
		return fmt.Errorf("migrate queues: %w", err)
	}
	_, err = db.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_queues_is_playing
      ON queues(is_playing) WHERE is_playing
    `)
	if err != nil {
		return fmt.Errorf("migrate queues index: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, passcode string) (*Queue, error) {
	var data []byte
	err := s.db.QueryRow(ctx, `SELECT data FROM queues WHERE passcode = $1`, passcode).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errSessionNotFound(passcode)
	}
	if err != nil {
		return nil, errStore(err)
	}
	q := &Queue{}
	if err := json.Unmarshal(data, q); err != nil {
		return nil, errStore(err)
	}
	return q, nil
}

func (s *PGStore) Create(ctx context.Context, q *Queue) error {
	data, err := json.Marshal(q)
	if err != nil {
		return errStore(err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO queues (passcode, owner_id, is_playing, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (passcode) DO UPDATE
		SET owner_id = $2, is_playing = $3, data = $4, updated_at = now()
	`, q.Passcode, q.Owner, q.IsPlaying, data)
	if err != nil {
		return errStore(err)
	}
	return nil
}

// Update reads the aggregate under FOR UPDATE, applies mutate and writes the
// whole row back in the same transaction. A mutate error rolls back and is
// returned untouched, so validation failures never leave partial writes.
func (s *PGStore) Update(ctx context.Context, passcode string, mutate func(q *Queue) error) (*Queue, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errStore(err)
	}
	defer tx.Rollback(ctx)

	var data []byte
	err = tx.QueryRow(ctx, `SELECT data FROM queues WHERE passcode = $1 FOR UPDATE`, passcode).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errSessionNotFound(passcode)
	}
	if err != nil {
		return nil, errStore(err)
	}

	q := &Queue{}
	if err := json.Unmarshal(data, q); err != nil {
		return nil, errStore(err)
	}

	if err := mutate(q); err != nil {
		return nil, err
	}

	out, err := json.Marshal(q)
	if err != nil {
		return nil, errStore(err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE queues SET data = $2, is_playing = $3, updated_at = now()
		WHERE passcode = $1
	`, passcode, out, q.IsPlaying)
	if err != nil {
		return nil, errStore(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, errStore(err)
	}
	return q, nil
}

func (s *PGStore) ListPlaying(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT passcode FROM queues WHERE is_playing`)
	if err != nil {
		return nil, errStore(err)
	}
	defer rows.Close()

	var passcodes []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, errStore(err)
		}
		passcodes = append(passcodes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errStore(err)
	}
	return passcodes, nil
}
