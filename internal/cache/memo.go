package cache

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ppiankov/retracite/internal/model"
)

// Resolution is the memoized outcome of resolving one row
type Resolution struct {
	Status model.ResolveStatus `json:"status"`
	Match  model.MatchResult   `json:"match"`
}

// MatchMemo stores resolutions keyed by MatchKey. Only outcomes that depend
// on the document's content alone are stored: a missing or unreadable
// document may be fetched again before the next run.
type MatchMemo struct {
	cache  Cache
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMatchMemo wraps c; a nil c disables memoization
func NewMatchMemo(c Cache, ttl time.Duration) *MatchMemo {
	if c == nil {
		c = Nop{}
	}
	return &MatchMemo{cache: c, ttl: ttl}
}

// Get returns the stored resolution for key
func (m *MatchMemo) Get(key string) (Resolution, bool) {
	data, ok := m.cache.Get(key)
	if !ok {
		m.misses.Add(1)
		return Resolution{}, false
	}

	var res Resolution
	if err := json.Unmarshal(data, &res); err != nil || !storable(res.Status) {
		m.misses.Add(1)
		return Resolution{}, false
	}
	m.hits.Add(1)
	return res, true
}

// Put stores res under key when its status is deterministic; other
// statuses are ignored
func (m *MatchMemo) Put(key string, res Resolution) error {
	if !storable(res.Status) {
		return nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal resolution: %w", err)
	}
	return m.cache.Set(key, data, m.ttl)
}

// Stats returns hit and miss counts since creation
func (m *MatchMemo) Stats() (hits, misses int64) {
	return m.hits.Load(), m.misses.Load()
}

func storable(s model.ResolveStatus) bool {
	return s == model.StatusMatched || s == model.StatusNoMatch
}
