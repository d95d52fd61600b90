package breaker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupStoreDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:breaker_store_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.Exec(`CREATE TABLE circuit_breaker_states (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		circuit_name TEXT NOT NULL UNIQUE,
		state_data TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`).Error)
	return conn
}

func TestGormStoreRoundTrip(t *testing.T) {
	store := NewGormStore(setupStoreDB(t))
	ctx := context.Background()

	missing, err := store.Load(ctx, "twitter")
	require.NoError(t, err)
	assert.Nil(t, missing)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	next := now.Add(time.Minute)
	snap := Snapshot{State: StateOpen, Failures: 5, NextAttemptTime: &next, Timestamp: now}
	require.NoError(t, store.Save(ctx, "twitter", snap))

	loaded, err := store.Load(ctx, "twitter")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, StateOpen, loaded.State)
	assert.Equal(t, 5, loaded.Failures)
	require.NotNil(t, loaded.NextAttemptTime)
	assert.True(t, loaded.NextAttemptTime.Equal(next))
}

func TestGormStoreUpsertsOnConflict(t *testing.T) {
	store := NewGormStore(setupStoreDB(t))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "twitter", Snapshot{State: StateOpen, Failures: 3}))
	require.NoError(t, store.Save(ctx, "twitter", Snapshot{State: StateClosed, Failures: 0}))
	require.NoError(t, store.Save(ctx, "facebook", Snapshot{State: StateClosed}))

	rows, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, StateClosed, rows["twitter"].State)
	assert.Equal(t, 0, rows["twitter"].Failures)
}
