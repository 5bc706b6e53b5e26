// Package cache memoizes paragraph resolution across runs.
//
// Resolving a row means parsing its document and fuzzy-scanning every
// paragraph; the layered cache keeps finished rows in memory for the run and
// on disk between runs, so an interrupted build resumes where it stopped.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// keyPrefix versions the key space; bump it when the stored value changes shape
const keyPrefix = "retracite:v1:"

// Key hashes parts into a cache key. Parts are length-prefixed so
// ("ab", "c") and ("a", "bc") never collide.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strconv.Itoa(len(p))))
		h.Write([]byte{':'})
		h.Write([]byte(p))
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// MatchKey keys a resolution by everything that determines its outcome.
// version names the document revision, so a replaced document misses.
func MatchKey(pmcid, version string, threshold int, segmenter, sentence string) string {
	return Key("match", pmcid, version, strconv.Itoa(threshold), segmenter, sentence)
}

// Nop is a Cache that stores nothing
type Nop struct{}

func (Nop) Get(string) ([]byte, bool)               { return nil, false }
func (Nop) Set(string, []byte, time.Duration) error { return nil }
func (Nop) Delete(string) error                     { return nil }
func (Nop) Clear() error                            { return nil }
