package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stockwatch/stockwatch-backend/pkg/config"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilClient_IsANoopCache(t *testing.T) {
	var c *Client
	ctx := context.Background()

	var dest []string
	slot, hit, err := c.GetJSON(ctx, "reports", "low-stock", &dest)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.SetJSON(ctx, slot, []string{"flour"}, time.Minute))
	assert.Nil(t, dest)

	assert.NoError(t, c.Invalidate(ctx, "reports"))
	assert.NoError(t, c.Close())
	assert.Equal(t, "disabled", c.Health(ctx)["status"])
}

func TestNilClient_LockIsAlwaysFree(t *testing.T) {
	var c *Client

	release, ok, err := c.TryLock(context.Background(), "alert-scan", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotNil(t, release)
	release()
}

func TestClient_KeyLayout(t *testing.T) {
	c := &Client{prefix: "stockwatch"}
	assert.Equal(t, "stockwatch:reports:gen", c.key("reports", "gen"))
	assert.Equal(t, "stockwatch:lock:alert-scan", c.key("lock", "alert-scan"))
}

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := New(context.Background(), &config.RedisConfig{Address: mr.Addr()}, "stockwatch", logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestClient_GetSetJSON(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	var dest []string
	slot, hit, err := c.GetJSON(ctx, "reports", "low-stock", &dest)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.SetJSON(ctx, slot, []string{"flour", "yeast"}, time.Minute))

	_, hit, err = c.GetJSON(ctx, "reports", "low-stock", &dest)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"flour", "yeast"}, dest)
}

func TestClient_InvalidateOrphansEntries(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	var dest string
	slot, _, err := c.GetJSON(ctx, "reports", "waste", &dest)
	require.NoError(t, err)
	require.NoError(t, c.SetJSON(ctx, slot, "12.5", time.Minute))

	require.NoError(t, c.Invalidate(ctx, "reports"))

	_, hit, err := c.GetJSON(ctx, "reports", "waste", &dest)
	require.NoError(t, err)
	assert.False(t, hit)

	gen, err := mr.Get("stockwatch:reports:gen")
	require.NoError(t, err)
	assert.Equal(t, "1", gen)
}

func TestClient_WriteStartedBeforeInvalidateIsNeverServed(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	// A report is loaded at the old generation while a ledger write commits.
	var dest string
	slot, hit, err := c.GetJSON(ctx, "reports", "low-stock", &dest)
	require.NoError(t, err)
	require.False(t, hit)

	require.NoError(t, c.Invalidate(ctx, "reports"))
	require.NoError(t, c.SetJSON(ctx, slot, "balance-before-write", time.Minute))

	_, hit, err = c.GetJSON(ctx, "reports", "low-stock", &dest)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, dest)
}

func TestClient_InvalidateIsPerNamespace(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	var dest int
	slot, _, err := c.GetJSON(ctx, "dashboard", "counts", &dest)
	require.NoError(t, err)
	require.NoError(t, c.SetJSON(ctx, slot, 3, time.Minute))

	require.NoError(t, c.Invalidate(ctx, "reports"))

	_, hit, err := c.GetJSON(ctx, "dashboard", "counts", &dest)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, dest)
}

func TestClient_UnreadableGenerationSkipsTheWrite(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("stockwatch:reports:gen", "not-a-number"))

	var dest string
	slot, hit, err := c.GetJSON(ctx, "reports", "waste", &dest)
	require.Error(t, err)
	assert.False(t, hit)

	require.NoError(t, c.SetJSON(ctx, slot, "ignored", time.Minute))
	assert.Len(t, mr.Keys(), 1)
}

func TestClient_EntriesExpire(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	var dest string
	slot, _, err := c.GetJSON(ctx, "reports", "waste", &dest)
	require.NoError(t, err)
	require.NoError(t, c.SetJSON(ctx, slot, "12.5", time.Minute))

	mr.FastForward(2 * time.Minute)

	_, hit, err := c.GetJSON(ctx, "reports", "waste", &dest)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestClient_TryLock(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	release, ok, err := c.TryLock(ctx, "alert-scan", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("stockwatch:lock:alert-scan"))

	_, ok, err = c.TryLock(ctx, "alert-scan", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "a second holder must not obtain a held lock")

	release()
	assert.False(t, mr.Exists("stockwatch:lock:alert-scan"))

	release2, ok, err := c.TryLock(ctx, "alert-scan", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	release2()
}

func TestClient_TryLockExpires(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	release, ok, err := c.TryLock(ctx, "alert-scan", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = c.TryLock(ctx, "alert-scan", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Releasing a lock that has already expired is harmless.
	release()
}

func TestClient_Health(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	assert.Equal(t, "up", c.Health(ctx)["status"])

	mr.Close()
	status := c.Health(ctx)
	assert.Equal(t, "down", status["status"])
	assert.NotEmpty(t, status["error"])
}
