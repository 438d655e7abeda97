package trace

import (
	"bytes"
	"sync"

	"github.com/dgryski/go-farm"
	"github.com/shamaton/msgpack/v2"
)

// coverageEntry is the serialized unit CoverageStore deduplicates: one
// observed (signal, value) transition.
type coverageEntry struct {
	Signal string
	Value  string
}

// CoverageStore answers the `coverage` command's "how many distinct
// signal transitions has this run observed" question by deduplicating
// (signal, value) signatures, the same hash-and-keep-first-copy scheme
// cas.MemoryCAS uses to dedupe whole simulation states -- narrowed here
// to one entry shape, so there is no type-tag registry to maintain.
type CoverageStore struct {
	mu   sync.Mutex
	seen map[uint64][]byte
}

func NewCoverageStore() *CoverageStore {
	return &CoverageStore{seen: make(map[uint64][]byte)}
}

// Observe records signal transitioning to value and reports whether
// this exact pair had never been seen before in this store.
func (c *CoverageStore) Observe(signal, value string) (bool, error) {
	entry := coverageEntry{Signal: signal, Value: value}
	var buf bytes.Buffer
	if err := msgpack.MarshalWrite(&buf, &entry); err != nil {
		return false, err
	}
	data := buf.Bytes()
	h := farm.Hash64(data)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[h]; ok {
		return false, nil
	}
	c.seen[h] = data
	return true, nil
}

// Count reports the number of distinct transitions observed so far.
func (c *CoverageStore) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
