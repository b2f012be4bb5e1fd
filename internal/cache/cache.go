// Package cache implements the computed-value store scoped to a single
// execute_all invocation (spec §4.4). Its scope is deliberately narrow: only
// parameters the graph builder has explicitly marked cacheable are ever
// stored, so that uncertainty propagation for every other parameter stays
// independent per pathway.
package cache

import "github.com/arlobrook/paramgraph/pkg/uncertain"

// Key identifies one cached slot: a sub-record index, the parameter it
// holds, and the method that produced it.
type Key struct {
	SubRecordIndex int
	Parameter      string
	MethodID       string
}

// Cache is a per-run store. The zero value is not usable; construct with
// New. Not safe for concurrent use — execute_all is single-threaded by
// design (spec §5).
type Cache struct {
	values     map[Key]uncertain.Value
	provenance map[provenanceKey]string
	hits       int
	misses     int
}

type provenanceKey struct {
	subRecordIndex int
	parameter      string
}

// New returns an empty cache, as created at the start of every execute_all.
func New() *Cache {
	return &Cache{
		values:     make(map[Key]uncertain.Value),
		provenance: make(map[provenanceKey]string),
	}
}

// Get looks up a cached value. A lookup always counts toward hit/miss
// statistics, matching the orchestrator's "consult the cache" step.
func (c *Cache) Get(key Key) (uncertain.Value, bool) {
	v, ok := c.values[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Peek looks up a cached value without affecting hit/miss statistics, for
// callers that only want to know whether a slot is populated.
func (c *Cache) Peek(key Key) (uncertain.Value, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Put stores a computed value and records which method produced it.
func (c *Cache) Put(key Key, value uncertain.Value) {
	c.values[key] = value
	c.provenance[provenanceKey{subRecordIndex: key.SubRecordIndex, parameter: key.Parameter}] = key.MethodID
}

// Provenance reports which method populated the cached slot for
// (subRecordIndex, parameter), if any.
func (c *Cache) Provenance(subRecordIndex int, parameter string) (string, bool) {
	methodID, ok := c.provenance[provenanceKey{subRecordIndex: subRecordIndex, parameter: parameter}]
	return methodID, ok
}

// Clear discards all entries and statistics, as required at the start of
// every execute_all call.
func (c *Cache) Clear() {
	c.values = make(map[Key]uncertain.Value)
	c.provenance = make(map[provenanceKey]string)
	c.hits = 0
	c.misses = 0
}

// Stats is the {hits, misses, hit_rate} triple from spec §4.4.
type Stats struct {
	Hits    int
	Misses  int
	HitRate float64
}

// Stats returns the current hit/miss counters for this run.
func (c *Cache) Stats() Stats {
	total := c.hits + c.misses
	if total == 0 {
		return Stats{}
	}
	return Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: float64(c.hits) / float64(total),
	}
}
