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

package hmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// obj is a trivial object type: a key plus a tag so multiple objects can
// share a key (multimap) while staying individually identifiable.
type obj struct {
	key K
	tag int
}

// K is an alias so the identity hash function below reads naturally; the
// spec's concrete scenarios use the trivial hash h(x) = x.
type K = uint32

func identityHash(k K) uint32 { return k }
func keyEqual(a, b K) bool    { return a == b }
func objKey(o *obj) K         { return o.key }

func newTestMap() *Map[K, *obj] {
	return New[K, *obj](identityHash, keyEqual, objKey)
}

func TestBasic(t *testing.T) {
	m := newTestMap()
	o1 := &obj{key: 1}

	m.Insert(o1)
	require.EqualValues(t, 1, m.Count())

	got, ok := m.Lookup(1, nil)
	require.True(t, ok)
	require.Same(t, o1, got)

	m.Remove(o1)
	require.EqualValues(t, 0, m.Count())

	_, ok = m.Lookup(1, nil)
	require.False(t, ok)
}

func TestCollisionChain(t *testing.T) {
	// Keys 1 and 9 map to ideal bucket 1 in an 8-slot table (9 & 7 == 1),
	// so 9 lands in bucket 2; key 2's ideal bucket 2 is then taken by 9 at
	// a greater probe distance, so 2 moves on to bucket 3. No displacement
	// is needed: each successive insert lands on the next free slot.
	m := newTestMap()
	o1, o9, o2 := &obj{key: 1}, &obj{key: 9}, &obj{key: 2}

	m.Insert(o1)
	m.Insert(o9)
	m.Insert(o2)

	require.Equal(t, uint32(1), m.hashes[1])
	require.Same(t, o1, m.objects[1])
	require.Equal(t, uint32(9), m.hashes[2])
	require.Same(t, o9, m.objects[2])
	require.Equal(t, uint32(2), m.hashes[3])
	require.Same(t, o2, m.objects[3])

	for _, want := range []struct {
		key K
		obj *obj
	}{{1, o1}, {9, o9}, {2, o2}} {
		got, ok := m.Lookup(want.key, nil)
		require.True(t, ok)
		require.Same(t, want.obj, got)
	}
}

func TestRobinHoodDisplacement(t *testing.T) {
	// Inserting 1, 2, 9 (ideal buckets 1, 2, 1 in an 8-slot table): 1
	// settles at bucket 1, 2 settles at bucket 2. 9 also wants bucket 1;
	// at bucket 1 it ties with 1's distance (no steal) and advances to
	// bucket 2, where it has traveled farther than 2 has — it displaces
	// 2, which then finds the next free bucket, 3.
	m := newTestMap()
	o1, o2, o9 := &obj{key: 1}, &obj{key: 2}, &obj{key: 9}

	m.Insert(o1)
	m.Insert(o2)
	m.Insert(o9)

	require.Equal(t, uint32(1), m.hashes[1])
	require.Same(t, o1, m.objects[1])
	require.Equal(t, uint32(9), m.hashes[2])
	require.Same(t, o9, m.objects[2])
	require.Equal(t, uint32(2), m.hashes[3])
	require.Same(t, o2, m.objects[3])

	for _, want := range []struct {
		key K
		obj *obj
	}{{1, o1}, {2, o2}, {9, o9}} {
		got, ok := m.Lookup(want.key, nil)
		require.True(t, ok)
		require.Same(t, want.obj, got)
	}
}

func TestTombstoneBlocksNaivePlacement(t *testing.T) {
	// insert 1, 9, 17 (all ideal bucket 1); remove 9; insert 2. The
	// tombstone left by 9 at slot 2 retains hash 9, so 2 (distance 0 at
	// its ideal slot 2) may not steal it (distance 0 is not > the
	// tombstone's retained probe distance 1); 2 continues to slot 4.
	m := newTestMap()
	o1, o9, o17 := &obj{key: 1}, &obj{key: 9}, &obj{key: 17}

	m.Insert(o1)
	m.Insert(o9)
	m.Insert(o17)
	m.Remove(o9)

	o2 := &obj{key: 2}
	m.Insert(o2)

	require.Equal(t, uint32(1), m.hashes[1])
	require.Same(t, o1, m.objects[1])
	require.Equal(t, uint32(9)|hashDeleted, m.hashes[2])
	require.Equal(t, uint32(17), m.hashes[3])
	require.Same(t, o17, m.objects[3])
	require.Equal(t, uint32(2), m.hashes[4])
	require.Same(t, o2, m.objects[4])

	for _, want := range []struct {
		key K
		obj *obj
	}{{1, o1}, {17, o17}, {2, o2}} {
		got, ok := m.Lookup(want.key, nil)
		require.True(t, ok)
		require.Same(t, want.obj, got)
	}
}

func TestTombstoneDoesNotShortCircuitLookup(t *testing.T) {
	m := newTestMap()
	o1 := &obj{key: 1}
	o9 := &obj{key: 9} // collides with 1's chain in an 8-slot table

	m.Insert(o1)
	m.Insert(o9)
	m.Remove(o1)

	got, ok := m.Lookup(9, nil)
	require.True(t, ok)
	require.Same(t, o9, got)
}

func TestMultiKeyIterator(t *testing.T) {
	m := newTestMap()
	want := []*obj{{key: 1, tag: 0}, {key: 1, tag: 1}, {key: 1, tag: 2}}
	for _, o := range want {
		m.Insert(o)
	}

	seen := map[int]bool{}
	var state uint32
	for i := 0; i < 3; i++ {
		got, ok := m.Lookup(1, &state)
		require.True(t, ok)
		seen[got.tag] = true
	}
	require.Len(t, seen, 3)

	_, ok := m.Lookup(1, &state)
	require.False(t, ok)
}

func TestLoadInvariant(t *testing.T) {
	m := newTestMap()
	for i := K(0); i < 100; i++ {
		m.Insert(&obj{key: i})
		require.Less(t, m.count, m.size)
	}
}

func TestGrowthDoublesSizeKeepsCount(t *testing.T) {
	m := newTestMap()
	loadFactor := defaultLoadFactor
	threshold := uint32(float64(initialSize) * loadFactor)
	for i := K(0); i < threshold; i++ {
		m.Insert(&obj{key: i})
	}
	sizeBefore, countBefore := m.size, m.count

	m.Insert(&obj{key: 1000})

	require.Equal(t, sizeBefore*2, m.size)
	require.Equal(t, countBefore+1, m.count)
}

func TestFillAndDrain(t *testing.T) {
	const n = 10240
	m := newTestMap()
	objs := make([]*obj, n)

	for i := 0; i < n; i++ {
		o := &obj{key: K(i)}
		objs[i] = o
		m.Insert(o)
		require.EqualValues(t, i+1, m.Count())

		got, ok := m.Lookup(K(i), nil)
		require.True(t, ok)
		require.Same(t, o, got)
	}

	for i := 0; i < n; i++ {
		m.Remove(objs[i])
		require.EqualValues(t, n-i-1, m.Count())
	}
}

func TestRemoveAbsentObjectPanics(t *testing.T) {
	m := newTestMap()
	require.Panics(t, func() {
		m.Remove(&obj{key: 1})
	})
}

func TestStatsEmptyMapNoDivideByZero(t *testing.T) {
	m := newTestMap()
	stats := m.Stats()
	require.Zero(t, stats.Count)
	require.Zero(t, stats.MeanProbeDistance)
	require.Zero(t, stats.Variance)
}

func TestStatsNonEmpty(t *testing.T) {
	m := newTestMap()
	for i := K(0); i < 5; i++ {
		m.Insert(&obj{key: i})
	}
	stats := m.Stats()
	require.EqualValues(t, 5, stats.Count)
	require.GreaterOrEqual(t, stats.MeanProbeDistance, 0.0)
}
