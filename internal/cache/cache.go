package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"chromap/internal/model"
)

// Entry is one cached lookup's value: the candidates a minimizer
// multiset produced, plus the read-span the repetitive-seed penalty
// needs.
type Entry struct {
	Positive             []model.Candidate
	Negative             []model.Candidate
	RepetitiveSeedLength int
	SlotID               uint64
}

type shard struct {
	mu       sync.Mutex
	ll       *list.List
	table    map[uint64]*list.Element
	capacity int

	hits, misses uint64
}

type shardEntry struct {
	key   uint64
	value Entry
}

// Cache is a striped approximate-LRU cache keyed by Fingerprint. Each
// shard owns its own list+map pair and mutex (the way
// BuddyAnonymous-kv-engine's LRUList owns one list+map, generalized
// here to N-way sharding since a single global lock would serialize
// every worker's query), so readers in different shards never block
// each other. Slot ids are a monotonically increasing counter shared
// across shards rather than a reused array index, so an eviction can
// never invalidate a slot id a worker is still holding from earlier in
// the same batch.
type Cache struct {
	shards    []*shard
	shardMask uint64
	nextSlot  uint64
}

// New returns a Cache with numShards shards (rounded up to a power of
// two), each holding up to capacityPerShard entries.
func New(numShards, capacityPerShard int) *Cache {
	n := 1
	for n < numShards {
		n <<= 1
	}
	c := &Cache{shards: make([]*shard, n), shardMask: uint64(n - 1)}
	for i := range c.shards {
		c.shards[i] = &shard{
			ll:       list.New(),
			table:    make(map[uint64]*list.Element),
			capacity: capacityPerShard,
		}
	}
	return c
}

func (c *Cache) shardFor(key uint64) *shard {
	return c.shards[key&c.shardMask]
}

// Query looks up key (from Fingerprint), and on a hit appends the
// cached candidates to outPositive/outNegative, moves the entry to the
// front of its shard's LRU list, and returns its slot id.
func (c *Cache) Query(key uint64, outPositive, outNegative []model.Candidate) (slotID uint64, repetitiveSeedLength int, positive, negative []model.Candidate, hit bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.table[key]
	if !ok {
		atomic.AddUint64(&s.misses, 1)
		return 0, 0, outPositive, outNegative, false
	}
	atomic.AddUint64(&s.hits, 1)
	s.ll.MoveToFront(elem)
	e := elem.Value.(*shardEntry).value
	positive = append(outPositive, e.Positive...)
	negative = append(outNegative, e.Negative...)
	return e.SlotID, e.RepetitiveSeedLength, positive, negative, true
}

// Update inserts or refreshes the entry for key, evicting the shard's
// least-recently-used entry while over capacity, and returns the slot
// id assigned to this entry (a fresh one on insert, the existing one on
// refresh).
func (c *Cache) Update(key uint64, positive, negative []model.Candidate, repetitiveSeedLength int) uint64 {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.table[key]; ok {
		e := elem.Value.(*shardEntry)
		e.value.Positive = append(e.value.Positive[:0], positive...)
		e.value.Negative = append(e.value.Negative[:0], negative...)
		e.value.RepetitiveSeedLength = repetitiveSeedLength
		s.ll.MoveToFront(elem)
		return e.value.SlotID
	}

	slot := atomic.AddUint64(&c.nextSlot, 1)
	e := &shardEntry{key: key, value: Entry{
		Positive:             append([]model.Candidate(nil), positive...),
		Negative:             append([]model.Candidate(nil), negative...),
		RepetitiveSeedLength: repetitiveSeedLength,
		SlotID:               slot,
	}}
	elem := s.ll.PushFront(e)
	s.table[key] = elem

	for s.ll.Len() > s.capacity {
		back := s.ll.Back()
		if back == nil {
			break
		}
		s.ll.Remove(back)
		delete(s.table, back.Value.(*shardEntry).key)
	}
	return slot
}

// HitRate returns the cumulative hit rate across all shards since the
// cache was created, used by GetUpdateThreshold.
func (c *Cache) HitRate() float64 {
	var hits, total uint64
	for _, s := range c.shards {
		h := atomic.LoadUint64(&s.hits)
		m := atomic.LoadUint64(&s.misses)
		hits += h
		total += h + m
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
