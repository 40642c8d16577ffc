package redis

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient("redis://" + mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	_, err = NewClient("not a url")
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "leaderboard:points", LeaderboardKey())
	assert.Equal(t, "ratelimit:user:42", RateLimitKey(42))
}
