package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	u "docx2pdf/internal/utils"
)

var (
	// ErrInvalidAPIKey signals that the provided API key is not known.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrTokenStoreNotReady signals that the token store has not been loaded yet.
	// This can happen during startup when the DB isn't ready.
	ErrTokenStoreNotReady = errors.New("token store not ready")
)

// Tokens is the in-memory view of the tokens table: token -> requests per
// rate limiter interval.
type Tokens struct {
	mu    sync.RWMutex
	cache map[string]int
}

func NewTokens() *Tokens {
	return &Tokens{}
}

// Replace swaps the whole cache for a copy of m.
func (t *Tokens) Replace(m map[string]int) {
	cache := make(map[string]int, len(m))
	for k, v := range m {
		cache[k] = v
	}
	t.mu.Lock()
	t.cache = cache
	t.mu.Unlock()
}

// Ready returns true once the cache has been loaded at least once.
func (t *Tokens) Ready() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cache != nil
}

// Valid checks whether token is known.
func (t *Tokens) Valid(token string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.cache[token]
	return ok
}

// RateLimit returns the limit for token. Unknown tokens get 0, which
// disables token rate limiting for them.
func (t *Tokens) RateLimit(token string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cache[token]
}

// Validate is the keyauth validator: it separates "not loaded yet" from
// "unknown key".
func (t *Tokens) Validate(key string) error {
	if !t.Ready() {
		return ErrTokenStoreNotReady
	}
	if !t.Valid(key) {
		return ErrInvalidAPIKey
	}
	return nil
}

// EnsureTokenSchema creates the tokens table if it is missing.
func EnsureTokenSchema(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS tokens (
			token TEXT PRIMARY KEY,
			rate_limit INTEGER NOT NULL DEFAULT 60,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			comment TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_created_at ON tokens (created_at);`,
	}
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// LoadTokens reads every token and its rate limit.
func LoadTokens(ctx context.Context, db *sql.DB) (map[string]int, error) {
	if err := EnsureTokenSchema(ctx, db); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := db.QueryContext(ctx, `SELECT token, rate_limit FROM tokens;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var token string
		var limit int
		if err := rows.Scan(&token, &limit); err != nil {
			return nil, err
		}
		out[token] = limit
	}
	return out, rows.Err()
}

// Refresh reloads the cache from db. On error the old cache stays.
func (t *Tokens) Refresh(ctx context.Context, db *sql.DB) error {
	m, err := LoadTokens(ctx, db)
	if err != nil {
		return err
	}
	t.Replace(m)
	return nil
}

// RefreshPeriodically reloads the tokens at interval until stop is closed.
func (t *Tokens) RefreshPeriodically(db *sql.DB, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := t.Refresh(context.Background(), db); err != nil {
				u.Error("Failed to reload API tokens", "error", err)
			}
		case <-stop:
			return
		}
	}
}
