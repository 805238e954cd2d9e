package redisbucket_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/breakerhq/breaking"
	"github.com/breakerhq/breaking/redisbucket"
)

func TestNew_RejectsInvalidParameters(t *testing.T) {
	// Validation happens before any I/O, so an unconnected client is fine.
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	cases := []struct {
		name string
		cfg  redisbucket.Config
	}{
		{"empty key base", redisbucket.Config{CapacityMax: 10, RestoreRateHz: 1}},
		{"zero capacity", redisbucket.Config{KeyBase: "t", CapacityMax: 0, RestoreRateHz: 1}},
		{"fractional rate below one", redisbucket.Config{KeyBase: "t", CapacityMax: 10, RestoreRateHz: 0.5}},
		{"NaN rate", redisbucket.Config{KeyBase: "t", CapacityMax: 10, RestoreRateHz: math.NaN()}},
		{"infinite rate", redisbucket.Config{KeyBase: "t", CapacityMax: 10, RestoreRateHz: math.Inf(1)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := redisbucket.New(client, tc.cfg)
			require.ErrorIs(t, err, breaking.ErrInvalidArgument)
			require.Nil(t, b)
		})
	}

	b, err := redisbucket.New(nil, redisbucket.Config{KeyBase: "t", CapacityMax: 10, RestoreRateHz: 1})
	require.ErrorIs(t, err, breaking.ErrInvalidArgument)
	require.Nil(t, b)
}

// newIntegrationClient connects to a local Redis server or skips the test.
// Run the integration tests against a disposable server:
//
//	docker run --rm -p 6379:6379 redis
func newIntegrationClient(t *testing.T) *redis.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Redis integration test")
	}

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // separate DB for tests
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available:", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestBucket_TakeAndReplenish(t *testing.T) {
	client := newIntegrationClient(t)
	ctx := context.Background()

	bucket, err := redisbucket.New(client, redisbucket.Config{
		KeyBase:       "breaking-test:replenish",
		CapacityMax:   10,
		RestoreRateHz: 10,
	})
	require.NoError(t, err)

	ok, err := bucket.HasTokensLeft(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok, "expected a fresh bucket to start full")

	require.NoError(t, bucket.Take(ctx, 10))

	ok, err = bucket.HasTokensLeft(ctx, 1)
	require.NoError(t, err)
	require.False(t, ok, "expected an empty bucket after draining")

	time.Sleep(250 * time.Millisecond)

	ok, err = bucket.HasTokensLeft(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok, "expected tokens back at 10 tokens/s")
}

func TestBucket_TakeBeyondCapacity(t *testing.T) {
	client := newIntegrationClient(t)
	ctx := context.Background()

	bucket, err := redisbucket.New(client, redisbucket.Config{
		KeyBase:       "breaking-test:beyond",
		CapacityMax:   5,
		RestoreRateHz: 1,
	})
	require.NoError(t, err)

	err = bucket.Take(ctx, 6)
	require.ErrorIs(t, err, breaking.ErrCapacityExceeded)

	remaining, err := bucket.Remaining(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, remaining, "expected a failed take to leave the counter unchanged")
}

func TestBucket_HasTokensLeftDoesNotConsume(t *testing.T) {
	client := newIntegrationClient(t)
	ctx := context.Background()

	bucket, err := redisbucket.New(client, redisbucket.Config{
		KeyBase:       "breaking-test:peek",
		CapacityMax:   3,
		RestoreRateHz: 1,
	})
	require.NoError(t, err)

	for n := 0; n < 10; n++ {
		ok, err := bucket.HasTokensLeft(ctx, 3)
		require.NoError(t, err)
		require.True(t, ok)
	}

	remaining, err := bucket.Remaining(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, remaining)
}

func TestBucket_StateSharedAcrossInstances(t *testing.T) {
	client := newIntegrationClient(t)
	ctx := context.Background()

	cfg := redisbucket.Config{
		KeyBase:       "breaking-test:shared",
		CapacityMax:   4,
		RestoreRateHz: 1,
	}

	first, err := redisbucket.New(client, cfg)
	require.NoError(t, err)
	second, err := redisbucket.New(client, cfg)
	require.NoError(t, err)

	require.NoError(t, first.Take(ctx, 4))

	ok, err := second.HasTokensLeft(ctx, 1)
	require.NoError(t, err)
	require.False(t, ok, "expected the second instance to see the drained counter")
}

func TestBucket_ValidatesN(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	bucket, err := redisbucket.New(client, redisbucket.Config{
		KeyBase:       "breaking-test:n",
		CapacityMax:   5,
		RestoreRateHz: 1,
	})
	require.NoError(t, err)

	_, err = bucket.HasTokensLeft(context.Background(), 0)
	require.ErrorIs(t, err, breaking.ErrInvalidArgument)

	err = bucket.Take(context.Background(), -1)
	require.ErrorIs(t, err, breaking.ErrInvalidArgument)
}
