package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/xid"
)

// Conversion statuses.
const (
	StatusConverted = "converted"
	StatusFailed    = "failed"
)

// Conversion is one row of the conversion history.
type Conversion struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"request_id"`
	FileName    string    `json:"file_name"`
	OutputName  string    `json:"output_name"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	InputBytes  int64     `json:"input_bytes"`
	OutputBytes int64     `json:"output_bytes"`
	DurationMS  int64     `json:"duration_ms"`
	Backend     string    `json:"backend"`
	CreatedAt   time.Time `json:"created_at"`
}

// History writes and reads the conversions table.
type History struct {
	db *sql.DB
}

func NewHistory(db *sql.DB) *History {
	return &History{db: db}
}

// EnsureSchema creates the conversions table if it is missing.
func (h *History) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS conversions (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL DEFAULT '',
			file_name TEXT NOT NULL,
			output_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			input_bytes BIGINT NOT NULL DEFAULT 0,
			output_bytes BIGINT NOT NULL DEFAULT 0,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			backend TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_created_at ON conversions (created_at);`,
	}
	for _, stmt := range ddl {
		if _, err := h.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record inserts c, filling in ID and CreatedAt when they are empty.
func (h *History) Record(ctx context.Context, c Conversion) error {
	if c.ID == "" {
		c.ID = xid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err := h.db.ExecContext(ctx, `INSERT INTO conversions
		(id, request_id, file_name, output_name, status, error, input_bytes, output_bytes, duration_ms, backend, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`,
		c.ID, c.RequestID, c.FileName, c.OutputName, c.Status, c.Error,
		c.InputBytes, c.OutputBytes, c.DurationMS, c.Backend, c.CreatedAt,
	)
	return err
}

// Recent returns up to limit records, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]Conversion, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := h.db.QueryContext(ctx, `SELECT id, request_id, file_name, output_name, status, error,
		input_bytes, output_bytes, duration_ms, backend, created_at
		FROM conversions ORDER BY created_at DESC LIMIT $1;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Conversion, 0, limit)
	for rows.Next() {
		var c Conversion
		if err := rows.Scan(&c.ID, &c.RequestID, &c.FileName, &c.OutputName, &c.Status, &c.Error,
			&c.InputBytes, &c.OutputBytes, &c.DurationMS, &c.Backend, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
