package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"channel_pulse/internal/domain"
	"channel_pulse/internal/telegram"
)

type scriptedClient struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (c *scriptedClient) Me(ctx context.Context) (*telegram.UserInfo, error) {
	return &telegram.UserInfo{ID: 1}, nil
}

func (c *scriptedClient) Invoke(ctx context.Context, req telegram.Request) (*telegram.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.results) == 0 {
		return &telegram.Response{}, nil
	}
	err := c.results[0]
	c.results = c.results[1:]
	if err != nil {
		return nil, err
	}
	return &telegram.Response{}, nil
}

func (c *scriptedClient) ExportSession() (string, int)         { return "", 0 }
func (c *scriptedClient) Disconnect(ctx context.Context) error { return nil }

type fakePool struct {
	client  *scriptedClient
	evicted []string
}

func (p *fakePool) Acquire(ctx context.Context, userID string) (telegram.Client, error) {
	return p.client, nil
}

func (p *fakePool) Evict(ctx context.Context, userID string) {
	p.evicted = append(p.evicted, userID)
}

type fakeSessions struct {
	deleted []string
}

func (s *fakeSessions) Get(ctx context.Context, userID string) (*domain.Session, error) {
	return nil, nil
}
func (s *fakeSessions) Save(ctx context.Context, sess *domain.Session) error { return nil }
func (s *fakeSessions) Delete(ctx context.Context, userID string) error {
	s.deleted = append(s.deleted, userID)
	return nil
}

type fakeUsage struct {
	mu     sync.Mutex
	counts map[string]int
}

func (u *fakeUsage) Increment(ctx context.Context, userID string, day time.Time) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.counts == nil {
		u.counts = map[string]int{}
	}
	u.counts[userID]++
	return nil
}

func (u *fakeUsage) Count(ctx context.Context, userID string, day time.Time) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.counts[userID], nil
}

type harness struct {
	gw       *Gateway
	pool     *fakePool
	sessions *fakeSessions
	usage    *fakeUsage
	slept    []time.Duration
}

func newHarness(client *scriptedClient) *harness {
	h := &harness{
		pool:     &fakePool{client: client},
		sessions: &fakeSessions{},
		usage:    &fakeUsage{},
	}
	cfg := Config{CacheTTL: 10 * time.Minute, MaxAttempts: 3, RetryDelay: time.Second}
	h.gw = New(h.pool, h.sessions, h.usage, cfg, slog.New(slog.DiscardHandler))
	h.gw.sleep = func(ctx context.Context, d time.Duration) error {
		h.slept = append(h.slept, d)
		return nil
	}
	return h
}

func historyRequest() telegram.Request {
	return telegram.Request{
		Method: telegram.MethodGetHistory,
		Params: map[string]any{"channel_id": "c1", "limit": 100},
	}
}

func TestInvokeCachesRepeatedCalls(t *testing.T) {
	client := &scriptedClient{}
	h := newHarness(client)

	_, err := h.gw.Invoke(context.Background(), "u1", historyRequest())
	require.NoError(t, err)
	_, err = h.gw.Invoke(context.Background(), "u1", historyRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, client.calls)
	assert.Equal(t, 1, h.usage.counts["u1"])

	stats := h.gw.Cache().Stats()
	assert.Equal(t, 1, stats.Hits)
}

func TestInvokeNeverCachesLoginCalls(t *testing.T) {
	client := &scriptedClient{}
	h := newHarness(client)

	req := telegram.Request{
		Method: telegram.MethodSendCode,
		Params: map[string]any{"phone_number": "+15550001111"},
	}

	_, err := h.gw.Invoke(context.Background(), "u1", req)
	require.NoError(t, err)
	_, err = h.gw.Invoke(context.Background(), "u1", req)
	require.NoError(t, err)

	assert.Equal(t, 2, client.calls)
}

func TestInvokeCacheIsPerUser(t *testing.T) {
	client := &scriptedClient{}
	h := newHarness(client)

	_, err := h.gw.Invoke(context.Background(), "u1", historyRequest())
	require.NoError(t, err)
	_, err = h.gw.Invoke(context.Background(), "u2", historyRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, client.calls)
}

func TestInvokeFloodWaitDoesNotSpendAttempts(t *testing.T) {
	client := &scriptedClient{results: []error{
		&telegram.FloodWaitError{Seconds: 7},
		&telegram.TransientError{Err: errors.New("timeout")},
		&telegram.TransientError{Err: errors.New("timeout")},
		nil,
	}}
	h := newHarness(client)

	_, err := h.gw.Invoke(context.Background(), "u1", historyRequest())
	require.NoError(t, err)

	assert.Equal(t, 4, client.calls)
	require.Len(t, h.slept, 3)
	assert.Equal(t, 7*time.Second, h.slept[0])
	assert.Equal(t, time.Second, h.slept[1])
	assert.Equal(t, time.Second, h.slept[2])
}

func TestInvokeAuthExpiredPurgesSession(t *testing.T) {
	client := &scriptedClient{results: []error{
		telegram.MapRPCError("AUTH_KEY_UNREGISTERED"),
	}}
	h := newHarness(client)

	_, err := h.gw.Invoke(context.Background(), "u1", historyRequest())

	assert.ErrorIs(t, err, ErrReauthRequired)
	assert.Equal(t, []string{"u1"}, h.pool.evicted)
	assert.Equal(t, []string{"u1"}, h.sessions.deleted)
	assert.Equal(t, 1, client.calls)
}

func TestInvokeTargetUnavailableFailsFast(t *testing.T) {
	client := &scriptedClient{results: []error{
		telegram.MapRPCError("CHANNEL_INVALID"),
	}}
	h := newHarness(client)

	_, err := h.gw.Invoke(context.Background(), "u1", historyRequest())

	assert.ErrorIs(t, err, telegram.ErrTargetUnavailable)
	assert.Equal(t, 1, client.calls)
	assert.Empty(t, h.slept)
}

func TestInvokeTransientExhaustsAttempts(t *testing.T) {
	boom := &telegram.TransientError{Err: errors.New("connection reset")}
	client := &scriptedClient{results: []error{boom, boom, boom}}
	h := newHarness(client)

	_, err := h.gw.Invoke(context.Background(), "u1", historyRequest())

	require.Error(t, err)
	assert.Equal(t, 3, client.calls)
	assert.Len(t, h.slept, 2)
}

func TestInvokeCountsUsagePerWireCall(t *testing.T) {
	boom := &telegram.TransientError{Err: errors.New("timeout")}
	client := &scriptedClient{results: []error{boom, nil}}
	h := newHarness(client)

	_, err := h.gw.Invoke(context.Background(), "u1", historyRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, h.usage.counts["u1"])
}

func TestKeyIgnoresParamOrder(t *testing.T) {
	a := telegram.Request{
		Method: telegram.MethodGetHistory,
		Params: map[string]any{"channel_id": "c1", "limit": 100, "offset_id": int64(0)},
	}
	b := telegram.Request{
		Method: telegram.MethodGetHistory,
		Params: map[string]any{"offset_id": int64(0), "limit": 100, "channel_id": "c1"},
	}

	assert.Equal(t, Key("u1", a), Key("u1", b))
	assert.NotEqual(t, Key("u1", a), Key("u2", a))
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(10 * time.Minute)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Set(42, &telegram.Response{})
	_, ok := c.Get(42)
	require.True(t, ok)

	c.now = func() time.Time { return base.Add(11 * time.Minute) }
	_, ok = c.Get(42)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().Keys)
}

func TestCacheFlush(t *testing.T) {
	c := NewCache(10 * time.Minute)
	c.Set(1, &telegram.Response{})
	c.Set(2, &telegram.Response{})
	c.Get(1)

	c.Flush()

	stats := c.Stats()
	assert.Equal(t, 0, stats.Keys)
	assert.Equal(t, 0, stats.Hits)
}
