// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted replies with the next reply/error pair on each call.
type scripted struct {
	replies []string
	errs    []error
	calls   int
	systems []string
}

func (s *scripted) Call(_ context.Context, _, system string, _ float64) (string, error) {
	i := s.calls
	s.calls++
	s.systems = append(s.systems, system)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	reply := ""
	if i < len(s.replies) {
		reply = s.replies[i]
	}
	return reply, err
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("m", "s", "p"), Key("m", "s", "p"))
	assert.NotEqual(t, Key("m", "s", "p"), Key("m2", "s", "p"))
	assert.Len(t, Key("", "", ""), 32)
}

func TestFileCache(t *testing.T) {
	now := time.Date(2025, 9, 22, 12, 0, 0, 0, time.UTC)
	cache, err := NewFileCache(filepath.Join(t.TempDir(), "cache"), time.Hour)
	require.NoError(t, err)
	cache.Now = func() time.Time { return now }

	_, found := cache.Get("k")
	assert.False(t, found)
	require.NoError(t, cache.Set("k", "TEST_F(A, b) {}"))
	content, found := cache.Get("k")
	require.True(t, found)
	assert.Equal(t, "TEST_F(A, b) {}", content)

	now = now.Add(59 * time.Minute)
	_, found = cache.Get("k")
	assert.True(t, found)
	now = now.Add(time.Minute)
	_, found = cache.Get("k")
	assert.False(t, found, "expired")

	cache.TTL = 0
	_, found = cache.Get("k")
	assert.True(t, found, "no TTL")

	require.NoError(t, os.WriteFile(filepath.Join(cache.Dir, "broken.json"), []byte("{"), 0o644))
	_, found = cache.Get("broken")
	assert.False(t, found)
}

func TestFileCachePrune(t *testing.T) {
	cache, err := NewFileCache(t.TempDir(), DefaultCacheTTL)
	require.NoError(t, err)
	require.NoError(t, cache.Set("old", "a"))
	require.NoError(t, cache.Set("new", "b"))
	old := time.Now().Add(-8 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(cache.path("old"), old, old))
	require.NoError(t, os.WriteFile(filepath.Join(cache.Dir, "notes.txt"), nil, 0o644))
	require.NoError(t, os.Chtimes(filepath.Join(cache.Dir, "notes.txt"), old, old))

	removed, err := cache.Prune(7 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, found := cache.Get("old")
	assert.False(t, found)
	_, found = cache.Get("new")
	assert.True(t, found)

	removed, err = (&FileCache{Dir: filepath.Join(cache.Dir, "missing")}).Prune(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func newTestCaller(caller ModelCaller, cache Cache) *CachedCaller {
	c := NewCachedCaller(caller, cache, "test-model")
	c.Backoff = time.Millisecond
	c.MaxBackoff = 2 * time.Millisecond
	return c
}

func TestCachedCaller(t *testing.T) {
	cache, err := NewFileCache(t.TempDir(), time.Hour)
	require.NoError(t, err)
	model := &scripted{replies: []string{"  reply \n"}}
	c := newTestCaller(model, cache)

	reply, err := c.Call(context.Background(), "prompt", "", 0.7)
	require.NoError(t, err)
	assert.Equal(t, "reply", reply)
	assert.Equal(t, []string{DefaultSystemMessage}, model.systems)

	reply, err = c.Call(context.Background(), "prompt", "", 0.7)
	require.NoError(t, err)
	assert.Equal(t, "reply", reply)
	assert.Equal(t, 1, model.calls, "second call served from the cache")

	_, err = c.Call(context.Background(), "prompt", "other system", 0.7)
	require.Error(t, err, "a different system message misses the cache")
	assert.Equal(t, 1+DefaultMaxRetries, model.calls)
}

func TestCachedCallerRetries(t *testing.T) {
	model := &scripted{
		errs:    []error{errors.New("rate limited"), nil, nil},
		replies: []string{"", "   ", "finally"},
	}
	c := newTestCaller(model, nil)
	reply, err := c.Call(context.Background(), "prompt", "system", 0)
	require.NoError(t, err)
	assert.Equal(t, "finally", reply)
	assert.Equal(t, 3, model.calls)

	model = &scripted{}
	c = newTestCaller(model, nil)
	c.MaxRetries = 2
	_, err = c.Call(context.Background(), "prompt", "system", 0)
	assert.True(t, errors.Is(err, ErrEmptyReply))
	assert.Equal(t, 2, model.calls)
}

func TestCachedCallerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	model := CallerFunc(func(context.Context, string, string, float64) (string, error) {
		cancel()
		return "", errors.New("unavailable")
	})
	c := newTestCaller(model, nil)
	c.Backoff = time.Hour
	_, err := c.Call(ctx, "prompt", "system", 0)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewGenAICallerRequiresKey(t *testing.T) {
	_, err := NewGenAICaller(context.Background(), "", "")
	assert.Error(t, err)
}
