package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestStatusStoreRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	client, err := New(context.Background(), Options{Addr: srv.Addr()})
	require.NoError(t, err)
	defer client.Close()

	store := NewStatusStore(client)
	ctx := context.Background()

	_, ok, err := store.Last(ctx, "backup:snapshot")
	require.NoError(t, err)
	require.False(t, ok)

	finished := time.Date(2025, 3, 14, 19, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(ctx, "backup:snapshot", JobStatus{FinishedAt: finished, Success: false, Error: "relay refused"}))
	require.NoError(t, store.Record(ctx, "backup:snapshot", JobStatus{FinishedAt: finished.Add(24 * time.Hour), Success: true}))

	status, ok, err := store.Last(ctx, "backup:snapshot")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, status.Success)
	require.Empty(t, status.Error)
	require.True(t, status.FinishedAt.Equal(finished.Add(24*time.Hour)))
}

func TestNewFailsWhenRedisIsDown(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	_, err := New(context.Background(), Options{Addr: addr})
	require.Error(t, err)
}

func TestNewRequiresAddress(t *testing.T) {
	_, err := New(context.Background(), Options{})
	require.Error(t, err)
}

func TestOptionsForQueue(t *testing.T) {
	opt := Options{Addr: "redis:6379", Password: "gizli", DB: 2}.Asynq()
	require.Equal(t, "redis:6379", opt.Addr)
	require.Equal(t, "gizli", opt.Password)
	require.Equal(t, 2, opt.DB)
}
