package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/retracite/internal/model"
)

func TestKey(t *testing.T) {
	k := Key("a", "bc")
	assert.True(t, strings.HasPrefix(k, "retracite:v1:"))
	assert.Equal(t, k, Key("a", "bc"))
	assert.NotEqual(t, k, Key("ab", "c"))

	assert.NotEqual(t, MatchKey("PMC1", "v1", 85, "period", "s"), MatchKey("PMC1", "v1", 86, "period", "s"))
	assert.NotEqual(t, MatchKey("PMC1", "v1", 85, "period", "s"), MatchKey("PMC1", "v1", 85, "terminator", "s"))
	assert.NotEqual(t, MatchKey("PMC1", "v1", 85, "period", "s"), MatchKey("PMC2", "v1", 85, "period", "s"))
	assert.NotEqual(t, MatchKey("PMC1", "v1", 85, "period", "s"), MatchKey("PMC1", "v2", 85, "period", "s"))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	val, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), val)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Delete("k"))
	_, ok = c.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Set("a", []byte("1"), 0))
	require.NoError(t, c.Clear())
	assert.Zero(t, c.Len())
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	require.NoError(t, c.Set("k", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestDiskCache_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, 0)
	key := Key("doc")

	require.NoError(t, c.Set(key, []byte(`{"x":1}`), 0))
	val, ok := c.Get(key)
	require.True(t, ok)
	assert.JSONEq(t, `{"x":1}`, string(val))

	// Persisted across instances
	val, ok = NewDiskCache(dir, 0).Get(key)
	require.True(t, ok)
	assert.JSONEq(t, `{"x":1}`, string(val))

	require.NoError(t, c.Delete(key))
	_, ok = c.Get(key)
	assert.False(t, ok)
	assert.NoError(t, c.Delete(key), "deleting twice is fine")
}

func TestDiskCache_RejectsNonJSON(t *testing.T) {
	c := NewDiskCache(t.TempDir(), 0)
	assert.Error(t, c.Set(Key("k"), []byte("not json"), 0))
}

func TestDiskCache_Expired(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Millisecond)
	key := Key("old")
	require.NoError(t, c.Set(key, []byte(`"v"`), 0))
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(key)
	assert.False(t, ok)
	_, err := os.Stat(c.path(key))
	assert.True(t, os.IsNotExist(err), "expired entry is removed")
}

func TestDiskCache_CorruptEntryIsMiss(t *testing.T) {
	c := NewDiskCache(t.TempDir(), 0)
	key := Key("corrupt")
	path := c.path(key)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o644))

	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestDiskCache_Clear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c := NewDiskCache(dir, 0)
	require.NoError(t, c.Set(Key("a"), []byte(`1`), 0))
	require.NoError(t, c.Clear())
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	key := Key("promote")
	require.NoError(t, NewDiskCache(dir, 0).Set(key, []byte(`"v"`), 0))

	memory := NewMemoryCache(time.Minute, time.Minute)
	layered := NewLayered(memory, NewDiskCache(dir, 0))

	val, ok := layered.Get(key)
	require.True(t, ok)
	assert.Equal(t, `"v"`, string(val))

	val, ok = memory.Get(key)
	require.True(t, ok, "disk hit is promoted to memory")
	assert.Equal(t, `"v"`, string(val))
}

func TestLayeredCache_SetDeleteClear(t *testing.T) {
	c := NewLayeredCache(time.Minute, t.TempDir(), 0)
	key := Key("k")

	require.NoError(t, c.Set(key, []byte(`true`), 0))
	_, ok := c.Get(key)
	assert.True(t, ok)

	require.NoError(t, c.Delete(key))
	_, ok = c.Get(key)
	assert.False(t, ok)

	require.NoError(t, c.Set(key, []byte(`true`), 0))
	require.NoError(t, c.Clear())
	_, ok = c.Get(key)
	assert.False(t, ok)
}

func TestMatchMemo(t *testing.T) {
	memo := NewMatchMemo(NewLayeredCache(time.Minute, t.TempDir(), 0), 0)

	matched := Resolution{
		Status: model.StatusMatched,
		Match:  model.MatchResult{Found: true, Paragraph: "P.", Score: 95, Index: 2, Sentence: 0, Scanned: 3},
	}
	key := MatchKey("PMC1", "v1", 85, "period", "sentence")

	_, ok := memo.Get(key)
	assert.False(t, ok)

	require.NoError(t, memo.Put(key, matched))
	got, ok := memo.Get(key)
	require.True(t, ok)
	assert.Equal(t, matched, got)

	hits, misses := memo.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestMatchMemo_SkipsDocumentErrors(t *testing.T) {
	memo := NewMatchMemo(NewMemoryCache(time.Minute, time.Minute), 0)

	for _, status := range []model.ResolveStatus{model.StatusNotFound, model.StatusParseError, model.StatusInvalid} {
		key := MatchKey("PMC9", "v1", 85, "period", string(status))
		require.NoError(t, memo.Put(key, Resolution{Status: status, Match: model.NoMatch(0, 0)}))
		_, ok := memo.Get(key)
		assert.False(t, ok, status)
	}

	noMatch := MatchKey("PMC9", "v1", 85, "period", "nothing")
	require.NoError(t, memo.Put(noMatch, Resolution{Status: model.StatusNoMatch, Match: model.NoMatch(40, 12)}))
	got, ok := memo.Get(noMatch)
	require.True(t, ok)
	assert.Equal(t, 40, got.Match.Score)
}

func TestMatchMemo_NilCache(t *testing.T) {
	memo := NewMatchMemo(nil, 0)
	require.NoError(t, memo.Put("k", Resolution{Status: model.StatusMatched}))
	_, ok := memo.Get("k")
	assert.False(t, ok)
}
