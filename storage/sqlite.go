package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/ruteri/validator-provisioning-service/interfaces"
)

const timeFormat = "2006-01-02T15:04:05.999999999Z07:00"

// SqliteStore is a RequestStore backed by a SQLite database. Every write is
// a single statement, so each status flip and key append is atomic on its
// own; the lifecycle engine orders them to keep readers consistent.
type SqliteStore struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSqliteStore opens or creates the database at path and ensures the
// schema exists. WAL mode keeps concurrent readers off the writers' path.
func NewSqliteStore(path string, log *slog.Logger) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS requests (
			request_id TEXT PRIMARY KEY,
			num_validators INTEGER NOT NULL,
			fee_recipient TEXT NOT NULL,
			status TEXT NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS keys (
			request_id TEXT NOT NULL,
			sequence_index INTEGER NOT NULL,
			key_value TEXT NOT NULL,
			fee_recipient TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (request_id, sequence_index),
			FOREIGN KEY (request_id) REFERENCES requests(request_id)
		);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SqliteStore{db: db, log: log}, nil
}

// CreateRequest inserts a new request row.
func (s *SqliteStore) CreateRequest(ctx context.Context, req *interfaces.ValidatorRequest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (request_id, num_validators, fee_recipient, status, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.ID.String(),
		req.NumValidators,
		req.FeeRecipient.String(),
		string(req.Status),
		req.ErrorMessage,
		req.CreatedAt.UTC().Format(timeFormat),
		req.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: %s", interfaces.ErrRequestExists, req.ID)
		}
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

// GetRequest loads a request row by identifier.
func (s *SqliteStore) GetRequest(ctx context.Context, id interfaces.RequestID) (*interfaces.ValidatorRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT request_id, num_validators, fee_recipient, status, error_message, created_at, updated_at
		 FROM requests WHERE request_id = ?`,
		id.String(),
	)

	var req interfaces.ValidatorRequest
	var reqID, feeRecipient, status, createdAt, updatedAt string
	err := row.Scan(&reqID, &req.NumValidators, &feeRecipient, &status, &req.ErrorMessage, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrRequestNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}

	req.ID = interfaces.RequestID(reqID)
	req.FeeRecipient = interfaces.FeeRecipient(feeRecipient)
	req.Status = interfaces.RequestStatus(status)
	if req.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if req.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &req, nil
}

// UpdateStatus transitions a request in a single guarded statement. Only
// non-terminal rows match, so a terminal status is never overwritten.
func (s *SqliteStore) UpdateStatus(ctx context.Context, id interfaces.RequestID, status interfaces.RequestStatus, errorMessage string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", interfaces.ErrInvalidArgument, status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE requests SET status = ?, error_message = ?, updated_at = ?
		 WHERE request_id = ? AND status = ?`,
		string(status),
		errorMessage,
		time.Now().UTC().Format(timeFormat),
		id.String(),
		string(interfaces.StatusStarted),
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetRequest(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", interfaces.ErrAlreadyTerminal, id)
	}
	return nil
}

// AppendKey inserts one generated key row.
func (s *SqliteStore) AppendKey(ctx context.Context, key *interfaces.GeneratedKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO keys (request_id, sequence_index, key_value, fee_recipient, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		key.RequestID.String(),
		key.SequenceIndex,
		key.KeyValue,
		key.FeeRecipient.String(),
		time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert key: %w", err)
	}
	return nil
}

// ListKeys returns all keys for a request ordered by sequence index.
func (s *SqliteStore) ListKeys(ctx context.Context, id interfaces.RequestID) ([]interfaces.GeneratedKey, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM requests WHERE request_id = ?)`, id.String(),
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check request: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrRequestNotFound, id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, sequence_index, key_value, fee_recipient, created_at
		 FROM keys WHERE request_id = ? ORDER BY sequence_index ASC`,
		id.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	var keys []interfaces.GeneratedKey
	for rows.Next() {
		var key interfaces.GeneratedKey
		var reqID, feeRecipient, createdAt string
		if err := rows.Scan(&reqID, &key.SequenceIndex, &key.KeyValue, &feeRecipient, &createdAt); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		key.RequestID = interfaces.RequestID(reqID)
		key.FeeRecipient = interfaces.FeeRecipient(feeRecipient)
		if key.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

// Ping verifies the database is reachable.
func (s *SqliteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}
