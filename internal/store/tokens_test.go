package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_ReplaceAndLookups(t *testing.T) {
	tok := NewTokens()
	assert.False(t, tok.Ready())
	assert.ErrorIs(t, tok.Validate("a"), ErrTokenStoreNotReady)

	tok.Replace(map[string]int{"a": 5, "b": 10})
	assert.True(t, tok.Ready())
	assert.True(t, tok.Valid("a"))
	assert.Equal(t, 5, tok.RateLimit("a"))
	assert.Equal(t, 10, tok.RateLimit("b"))
	assert.False(t, tok.Valid("c"))
	assert.Equal(t, 0, tok.RateLimit("c"))
	assert.NoError(t, tok.Validate("a"))
	assert.ErrorIs(t, tok.Validate("c"), ErrInvalidAPIKey)

	tok.Replace(map[string]int{"a": 7, "c": 12})
	assert.Equal(t, 7, tok.RateLimit("a"))
	assert.False(t, tok.Valid("b"))
	assert.True(t, tok.Valid("c"))
}

func TestTokens_ReplaceCopiesInput(t *testing.T) {
	tok := NewTokens()
	m := map[string]int{"a": 1}
	tok.Replace(m)
	m["b"] = 2
	assert.False(t, tok.Valid("b"))
}

func TestTokens_EmptyMapIsReady(t *testing.T) {
	tok := NewTokens()
	tok.Replace(nil)
	assert.True(t, tok.Ready())
	assert.ErrorIs(t, tok.Validate("x"), ErrInvalidAPIKey)
}

func TestTokens_RefreshFromDatabase(t *testing.T) {
	st := &fakeState{
		cols: []string{"token", "rate_limit"},
		rows: [][]driver.Value{{"tok1", int64(5)}, {"tok2", int64(2)}},
	}
	db := openFakeDB(t, st)

	tok := NewTokens()
	require.NoError(t, tok.Refresh(context.Background(), db))
	assert.Equal(t, 5, tok.RateLimit("tok1"))
	assert.Equal(t, 2, tok.RateLimit("tok2"))
	assert.Len(t, st.execs, 2, "schema statements run before loading")
}

func TestTokens_RefreshKeepsCacheOnError(t *testing.T) {
	tok := NewTokens()
	tok.Replace(map[string]int{"old": 1})

	schemaFail := openFakeDB(t, &fakeState{execErr: errors.New("schema failed")})
	assert.Error(t, tok.Refresh(context.Background(), schemaFail))

	queryFail := openFakeDB(t, &fakeState{queryErr: errors.New("query failed")})
	assert.Error(t, tok.Refresh(context.Background(), queryFail))

	assert.True(t, tok.Valid("old"))
}

func TestTokens_RefreshPeriodicallyStops(t *testing.T) {
	st := &fakeState{cols: []string{"token", "rate_limit"}, rows: [][]driver.Value{{"tok", int64(3)}}}
	db := openFakeDB(t, st)
	tok := NewTokens()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		tok.RefreshPeriodically(db, 10*time.Millisecond, stop)
		close(done)
	}()

	assert.Eventually(t, func() bool { return tok.Valid("tok") }, time.Second, 5*time.Millisecond)
	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresh loop did not stop")
	}
}
