// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hmap is an open-addressed, Robin-Hood hashed multimap with
// tombstones. Unlike a Swiss table it keeps exactly one 32-bit hash cell
// per bucket (no separate control-byte array) and resolves collisions by
// letting a displaced entry continue probing rather than chaining or
// quadratic group-at-a-time scanning.
//
// Three bucket states are folded into the 32-bit hash cell:
//
//	FREE:     the reserved value 0. No entry has ever occupied the slot.
//	DELETED:  the high bit (1<<31) set, low 31 bits retain the original
//	          hash so probe distance stays computable for later entries
//	          in the same chain (a tombstone).
//	OCCUPIED: any other value.
//
// Robin-Hood hashing means an inserting key that has probed farther than
// the occupant of the slot it lands on displaces that occupant and keeps
// going with it, bounding the worst-case probe length and keeping lookups
// able to stop early: if the occupant of a slot has a smaller probe
// distance than the distance we've already searched, no instance of our
// key can be further along the chain.
//
// A Map is a multimap: Insert never rejects a duplicate key, and Lookup
// takes a resumable cursor to walk every object sharing a key.
//
// A Map is NOT goroutine-safe.
package hmap

const (
	initialSize       = 8
	defaultLoadFactor = 0.8

	hashFree    uint32 = 0
	hashDeleted uint32 = 0x80000000
)

// HashFunc computes a (not yet sanitized) 32-bit hash for a key.
type HashFunc[K any] func(key K) uint32

// EqualFunc reports whether two keys are equal.
type EqualFunc[K any] func(a, b K) bool

// KeyFunc extracts the key view from an object. The returned key must
// remain stable for as long as the object is present in the map.
type KeyFunc[K any, O any] func(object O) K

// Map is an open-addressed Robin-Hood multimap from a key view embedded in
// an object to the object itself. Objects are borrowed: the Map never
// copies, owns, or frees them.
type Map[K comparable, O comparable] struct {
	hash HashFunc[K]
	eq   EqualFunc[K]
	keyOf KeyFunc[K, O]

	maxLoadFactor float64

	hashes  []uint32
	objects []O

	size      uint32
	count     uint32
	threshold uint32
}

// New constructs an empty Map. maxLoadFactor of 0 selects the default
// (0.8). Panics (via the allocation it triggers) only on allocation
// failure, which in Go's runtime is itself a fatal, unrecoverable event —
// the native equivalent of the spec's "fails fatally on allocation
// failure" for Create.
func New[K comparable, O comparable](hash HashFunc[K], eq EqualFunc[K], keyOf KeyFunc[K, O], opts ...Option[K, O]) *Map[K, O] {
	m := &Map[K, O]{
		hash:          hash,
		eq:            eq,
		keyOf:         keyOf,
		maxLoadFactor: defaultLoadFactor,
	}
	for _, opt := range opts {
		opt.apply(m)
	}
	m.reset(initialSize)
	return m
}

func (m *Map[K, O]) reset(size uint32) {
	m.size = size
	m.threshold = uint32(float64(size) * m.maxLoadFactor)
	m.hashes = make([]uint32, size)
	m.objects = make([]O, size)
}

// Count returns the number of live (non-free, non-tombstone) entries.
func (m *Map[K, O]) Count() uint32 {
	return m.count
}

// index computes the bucket index for a hash at the given probe distance.
func (m *Map[K, O]) index(hash, distance uint32) uint32 {
	return (hash + distance) & (m.size - 1)
}

// probeDistance computes how far bucket idx is from the ideal bucket of
// the hash value stored there.
func (m *Map[K, O]) probeDistance(idx, hash uint32) uint32 {
	start := m.index(hash, 0)
	return (idx + m.size - start) & (m.size - 1)
}

// sanitize clears the tombstone bit and remaps the FREE sentinel to an
// adjacent value so a live hash can never be confused with FREE or have
// its tombstone bit set from the start.
func sanitize(raw uint32) uint32 {
	h := raw &^ hashDeleted
	if h == hashFree {
		h = 1
	}
	return h
}

// Insert places object into the map under the key extracted by KeyFunc.
// object must not be nil/zero; the key view inside it must remain stable
// until the object is removed. Insert never fails to find room: it grows
// the table first whenever count has reached the load-factor threshold.
func (m *Map[K, O]) Insert(object O) {
	if m.count >= m.threshold {
		m.grow()
	}
	hash := sanitize(m.hash(m.keyOf(object)))
	m.insert(object, hash)
}

// insert runs the Robin-Hood placement loop for a (hash, object) pair
// already known to hold a sanitized hash. Used by Insert and by grow's
// re-insertion pass, which must not recompute hashes or trigger growth.
func (m *Map[K, O]) insert(object O, hash uint32) {
	for distance := uint32(0); distance < m.size; distance++ {
		idx := m.index(hash, distance)
		bucketHash := m.hashes[idx]
		bucketDistance := m.probeDistance(idx, bucketHash)
		shouldSteal := distance > bucketDistance

		switch {
		case bucketHash == hashFree, (bucketHash&hashDeleted != 0) && shouldSteal:
			m.hashes[idx] = hash
			m.objects[idx] = object
			m.count++
			return
		case shouldSteal:
			// Swap with the current occupant and keep searching a home
			// for the one we displaced; it retains its original hash.
			bucketObject := m.objects[idx]
			m.hashes[idx] = hash
			m.objects[idx] = object
			hash = bucketHash
			object = bucketObject
			distance = bucketDistance
		}
	}
	panic("hmap: insert probed the entire table without finding a slot")
}

// Lookup searches for objects whose key equals key, starting at the probe
// distance recorded in *state (zero for the first call). On a hit it
// stores distance+1 in *state so a subsequent call resumes past this
// match, supporting multimap iteration over every object sharing key.
// state may be nil for a single-result lookup.
func (m *Map[K, O]) Lookup(key K, state *uint32) (O, bool) {
	hash := sanitize(m.hash(key))
	var distance uint32
	if state != nil {
		distance = *state
	}

	for ; distance < m.size; distance++ {
		idx := m.index(hash, distance)
		bucketHash := m.hashes[idx]
		switch {
		case bucketHash == hash:
			object := m.objects[idx]
			if m.eq(key, m.keyOf(object)) {
				if state != nil {
					*state = distance + 1
				}
				return object, true
			}
		case bucketHash == hashFree, bucketHash&hashDeleted == 0 && m.probeDistance(idx, bucketHash) < distance:
			var zero O
			return zero, false
		}
	}

	var zero O
	return zero, false
}

// Remove locates object by re-deriving its key's hash and scanning from
// the ideal bucket until it finds the slot whose stored hash matches and
// whose stored object reference is object itself, then tombstones that
// slot. It panics if object is not present — the caller must pass back a
// reference previously returned by Insert/Lookup for this map.
func (m *Map[K, O]) Remove(object O) {
	hash := sanitize(m.hash(m.keyOf(object)))

	for distance := uint32(0); distance < m.size; distance++ {
		idx := m.index(hash, distance)
		bucketHash := m.hashes[idx]
		if bucketHash == hash && m.objects[idx] == object {
			m.hashes[idx] = hash | hashDeleted
			var zero O
			m.objects[idx] = zero
			m.count--
			return
		}
	}
	panic("hmap: remove called with an object not present in the map")
}

// grow doubles the table's capacity and re-inserts every live entry using
// their already-sanitized stored hashes, without recomputing hashes or
// re-checking the threshold.
func (m *Map[K, O]) grow() {
	oldHashes, oldObjects, oldSize := m.hashes, m.objects, m.size

	m.count = 0
	m.reset(oldSize * 2)

	for idx := uint32(0); idx < oldSize; idx++ {
		hash := oldHashes[idx]
		if hash != hashFree && hash&hashDeleted == 0 {
			m.insert(oldObjects[idx], hash)
		}
	}
}

// Stats summarizes the current probe-distance distribution for
// diagnostics. It is safe to call on an empty map.
type Stats struct {
	Count             uint32
	Size              uint32
	LoadFactor        float64
	MeanProbeDistance float64
	Variance          float64
}

// Stats computes diagnostic statistics about the bucket array. The spec's
// original hmap_stats divides by count unconditionally; here the empty
// map is handled explicitly instead of replicating that undefined
// division (see spec Design Notes, Open Questions).
func (m *Map[K, O]) Stats() Stats {
	stats := Stats{
		Count:      m.count,
		Size:       m.size,
		LoadFactor: float64(m.count) / float64(m.size),
	}
	if m.count == 0 {
		return stats
	}

	var sum, sumSquared float64
	for idx := uint32(0); idx < m.size; idx++ {
		bucketHash := m.hashes[idx]
		if bucketHash != hashFree && bucketHash&hashDeleted == 0 {
			d := float64(m.probeDistance(idx, bucketHash))
			sum += d
			sumSquared += d * d
		}
	}

	mean := sum / float64(m.count)
	stats.MeanProbeDistance = mean
	stats.Variance = (sumSquared - sum*mean) / float64(m.count)
	return stats
}
