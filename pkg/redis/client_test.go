package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Client) {
	// Create a miniredis server
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Create client with test redis
	client, err := NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)

	return mr, client
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		environment string
		expectError bool
	}{
		{
			name:        "Invalid URL",
			url:         "invalid://url",
			environment: "test",
			expectError: true,
		},
		{
			name:        "Empty URL",
			url:         "",
			environment: "test",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.url, tt.environment, zap.NewNop())

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, client)
			}
		})
	}
}

func TestClient_GetSet(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()

	err := client.Set(ctx, "election:class-3a:tally", `{"total":3}`, time.Minute)
	assert.NoError(t, err)

	value, err := client.Get(ctx, "election:class-3a:tally")
	assert.NoError(t, err)
	assert.Equal(t, `{"total":3}`, value)

	// Cache miss surfaces the nil sentinel
	_, err = client.Get(ctx, "election:class-3a:missing")
	assert.Error(t, err)
	assert.True(t, IsNil(err))

	// TTL was applied
	ttl := mr.TTL("election:class-3a:tally")
	assert.Greater(t, ttl, time.Duration(0))
}

func TestClient_SetNX(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()

	ok, err := client.SetNX(ctx, "election:class-3a:idem:voter-1", "1", TTLVoteIdem)
	assert.NoError(t, err)
	assert.True(t, ok)

	// Second acquisition within the window loses
	ok, err = client.SetNX(ctx, "election:class-3a:idem:voter-1", "1", TTLVoteIdem)
	assert.NoError(t, err)
	assert.False(t, ok)

	// After expiry the key can be taken again
	mr.FastForward(TTLVoteIdem + time.Second)
	ok, err = client.SetNX(ctx, "election:class-3a:idem:voter-1", "1", TTLVoteIdem)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestClient_Delete(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()

	mr.Set("test:key1", "value1")
	mr.Set("test:key2", "value2")

	err := client.Delete(ctx, "test:key1", "test:key2")
	assert.NoError(t, err)

	count, err := client.Exists(ctx, "test:key1", "test:key2")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// Deleting an absent key is not an error
	err = client.Delete(ctx, "test:nonexistent")
	assert.NoError(t, err)
}

func TestClient_Hash(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()

	err := client.HSet(ctx, "election:class-3a:status",
		"class_id", "class-3a",
		"voting_enabled", "true",
		"phase", "active",
	)
	assert.NoError(t, err)

	fields, err := client.HGetAll(ctx, "election:class-3a:status")
	assert.NoError(t, err)
	assert.Equal(t, "class-3a", fields["class_id"])
	assert.Equal(t, "true", fields["voting_enabled"])
	assert.Equal(t, "active", fields["phase"])

	// Absent hash yields an empty map, not an error
	fields, err = client.HGetAll(ctx, "election:class-3b:status")
	assert.NoError(t, err)
	assert.Empty(t, fields)
}

func TestClient_PubSub(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()

	sub := client.Subscribe(ctx, "election:class-3a:updates")
	defer sub.Close()

	// Wait for the subscription to be established
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	err = client.Publish(ctx, "election:class-3a:updates", `{"phase":"active"}`)
	assert.NoError(t, err)

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, `{"phase":"active"}`, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestClient_Health(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()

	// Test healthy Redis
	err := client.Health(ctx)
	assert.NoError(t, err)

	// Test unhealthy Redis (close the miniredis)
	mr.Close()
	err = client.Health(ctx)
	assert.Error(t, err)
}

func TestClient_InvalidatePattern(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()

	mr.Set("staging:election:class-3a:voter:v1:voted", "1")
	mr.Set("staging:election:class-3a:voter:v2:voted", "1")
	mr.Set("staging:election:class-3b:voter:v1:voted", "1")

	err := client.InvalidatePattern(ctx, "staging:election:class-3a:voter:*")
	assert.NoError(t, err)

	assert.False(t, mr.Exists("staging:election:class-3a:voter:v1:voted"))
	assert.False(t, mr.Exists("staging:election:class-3a:voter:v2:voted"))
	assert.True(t, mr.Exists("staging:election:class-3b:voter:v1:voted"))
}

func TestClient_Close(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer mr.Close()

	// Close should not error
	err := client.Close()
	assert.NoError(t, err)

	// After close, operations should fail
	ctx := context.Background()
	_, err = client.Get(ctx, "test:key")
	assert.Error(t, err)
}

func TestClient_KeyBuilderIntegration(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()

	assert.NotNil(t, client.KeyBuilder)

	key := client.KeyBuilder.KeyTally("class-3a")

	err := client.Set(ctx, key, `{"total":0}`, time.Hour)
	assert.NoError(t, err)

	value, err := client.Get(ctx, key)
	assert.NoError(t, err)
	assert.Equal(t, `{"total":0}`, value)

	val, _ := mr.Get(key)
	assert.Equal(t, `{"total":0}`, val)
}
