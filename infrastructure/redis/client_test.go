package redis_test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailverse/analytics/infrastructure/redis"
)

func TestNewClient_ErrorsWhenAddressEmpty(t *testing.T) {
	t.Parallel()

	client, err := redis.NewClient(t.Context(), redis.Config{})

	require.ErrorIs(t, err, redis.ErrEmptyAddress)
	assert.Nil(t, client)
}

func TestNewClient_Connects(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	client, err := redis.NewClient(t.Context(), redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(t.Context(), "k", "v", 0).Err())
	mr.CheckGet(t, "k", "v")
}

func TestNewClient_FailsWhenUnreachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client, err := redis.NewClient(t.Context(), redis.Config{Address: addr})

	require.Error(t, err)
	assert.Nil(t, client)
}
