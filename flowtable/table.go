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

package flowtable

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/twmb/murmur3"

	"github.com/netswitch/flowtable/hmap"
)

var (
	// ErrResource is returned when the pool has no free slot, or when a
	// host resource (e.g. task registration) is exhausted.
	ErrResource = errors.New("flowtable: resource exhausted")
	// ErrExists is returned by Add when an entry with the given ID is
	// already live.
	ErrExists = errors.New("flowtable: entry already exists")
	// ErrNotFound is returned when an operation names an ID with no live
	// entry.
	ErrNotFound = errors.New("flowtable: entry not found")
	// ErrUnknown wraps a collaborator failure (e.g. ObjectOps could not
	// parse a flow-add message) this package cannot diagnose further.
	ErrUnknown = errors.New("flowtable: unknown error")
)

// Config bounds a Table's entry pool.
type Config struct {
	MaxEntries int
}

// Status mirrors a Table's running counters, grounded on the original
// dataplane's per-table statistics block.
type Status struct {
	CurrentCount    int
	PendingDeletes  int
	Adds            uint64
	Deletes         uint64
	HardExpires     uint64
	IdleExpires     uint64
	Updates         uint64
	TableFullErrors uint64
	AddErrors       uint64
}

// Table is a fixed-capacity pool of flow entries indexed by ID, priority,
// and exact-match key.
type Table struct {
	config Config
	status Status

	entries []Entry
	free    []int32
	all     []int32

	idIndex       *hmap.Map[ID, *Entry]
	priorityIndex *hmap.Map[Priority, *Entry]
	matchIndex    *hmap.Map[Match, *Entry]

	objectOps  ObjectOps
	effectsOps EffectsOps
	matchOps   MatchOps

	clock  Clock
	logger logr.Logger
}

// Option configures a Table at construction time.
type Option func(*Table)

// WithLogger overrides the default no-op logger.
func WithLogger(logger logr.Logger) Option {
	return func(t *Table) { t.logger = logger }
}

// WithClock overrides the default system clock. Tests use this to inject a
// fixed or stepped clock.
func WithClock(clock Clock) Option {
	return func(t *Table) { t.clock = clock }
}

func matchHash(m Match) uint32 {
	return murmur3.SeedSum32(0, m[:])
}

func matchEqual(a, b Match) bool { return a == b }

func idHash(id ID) uint32 { return hmap.U64Hash(uint64(id)) }
func idEqual(a, b ID) bool { return a == b }

func priorityHash(p Priority) uint32 { return hmap.U16Hash(uint16(p)) }
func priorityEqual(a, b Priority) bool { return a == b }

// Create allocates a Table with a fixed-size entry pool. objectOps,
// effectsOps, and matchOps are required collaborators; options configure
// ambient behavior (logging, clock).
func Create(config Config, objectOps ObjectOps, effectsOps EffectsOps, matchOps MatchOps, opts ...Option) (*Table, error) {
	if config.MaxEntries <= 0 {
		return nil, fmt.Errorf("flowtable: max entries must be positive, got %d", config.MaxEntries)
	}

	t := &Table{
		config:     config,
		objectOps:  objectOps,
		effectsOps: effectsOps,
		matchOps:   matchOps,
		clock:      systemClock{},
		logger:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.entries = make([]Entry, config.MaxEntries)
	t.free = make([]int32, config.MaxEntries)
	for i := range t.entries {
		t.entries[i].slot = int32(i)
		t.entries[i].allPos = -1
		t.free[i] = int32(i)
	}

	t.idIndex = hmap.New[ID, *Entry](idHash, idEqual, func(e *Entry) ID { return e.ID })
	t.priorityIndex = hmap.New[Priority, *Entry](priorityHash, priorityEqual, func(e *Entry) Priority { return e.Priority })
	t.matchIndex = hmap.New[Match, *Entry](matchHash, matchEqual, func(e *Entry) Match { return e.Match })

	return t, nil
}

// Status returns a snapshot of the table's running counters.
func (t *Table) Status() Status { return t.status }

func (t *Table) popFree() (int32, bool) {
	n := len(t.free)
	if n == 0 {
		return 0, false
	}
	idx := t.free[n-1]
	t.free = t.free[:n-1]
	return idx, true
}

func (t *Table) pushFree(idx int32) {
	t.free = append(t.free, idx)
}

// Lookup finds the live entry with the given ID.
func (t *Table) Lookup(id ID) (*Entry, bool) {
	return t.idIndex.Lookup(id, nil)
}

// Add inserts a new entry for id, built from flowAdd via ObjectOps and
// EffectsOps. It fails with ErrExists if id is already live and
// ErrResource if the pool is full.
func (t *Table) Add(id ID, flowAdd any) (*Entry, error) {
	t.logger.V(2).Info("adding flow", "id", id)

	if _, ok := t.idIndex.Lookup(id, nil); ok {
		return nil, ErrExists
	}

	slot, ok := t.popFree()
	if !ok {
		t.status.TableFullErrors++
		t.logger.Error(ErrResource, "flow table full", "id", id)
		return nil, ErrResource
	}

	entry := &t.entries[slot]
	if entry.State != StateFree {
		panic("flowtable: free-list slot is not in state Free")
	}

	if err := t.setupEntry(entry, id, flowAdd); err != nil {
		t.pushFree(slot)
		t.status.AddErrors++
		return nil, err
	}

	t.link(entry)
	t.status.Adds++
	t.status.CurrentCount++
	return entry, nil
}

func (t *Table) setupEntry(entry *Entry, id ID, flowAdd any) error {
	match, err := t.objectOps.ExtractMatch(flowAdd)
	if err != nil {
		return fmt.Errorf("%w: extracting match: %v", ErrUnknown, err)
	}

	effects, ports, err := t.effectsOps.BuildEffects(flowAdd)
	if err != nil {
		return fmt.Errorf("%w: building effects: %v", ErrUnknown, err)
	}

	entry.ID = id
	entry.State = StateNew
	entry.Match = match
	entry.Cookie = t.objectOps.ExtractCookie(flowAdd)
	entry.Priority = t.objectOps.ExtractPriority(flowAdd)
	entry.TableID = t.objectOps.ExtractTableID(flowAdd)
	entry.Flags = t.objectOps.ExtractFlags(flowAdd)
	entry.IdleTimeout = t.objectOps.ExtractIdleTimeout(flowAdd)
	entry.HardTimeout = t.objectOps.ExtractHardTimeout(flowAdd)
	entry.FlowAdd = t.objectOps.Duplicate(flowAdd)
	entry.Effects = effects
	entry.OutputPorts = ports
	entry.QueuedReqs = nil
	entry.RemovedReason = 0

	now := t.clock.Now()
	entry.InsertTime = now
	entry.LastCounterChange = now
	entry.Packets = 0
	entry.Bytes = 0
	return nil
}

func (t *Table) link(entry *Entry) {
	t.all = append(t.all, entry.slot)
	entry.allPos = int32(len(t.all) - 1)
	t.idIndex.Insert(entry)
	t.priorityIndex.Insert(entry)
	t.matchIndex.Insert(entry)
}

func (t *Table) unlink(entry *Entry) {
	t.idIndex.Remove(entry)
	t.priorityIndex.Remove(entry)
	t.matchIndex.Remove(entry)

	pos := entry.allPos
	last := int32(len(t.all) - 1)
	if pos != last {
		movedSlot := t.all[last]
		t.all[pos] = movedSlot
		t.entries[movedSlot].allPos = pos
	}
	t.all = t.all[:last]
	entry.allPos = -1
}

func (t *Table) clear(entry *Entry) {
	t.effectsOps.DeleteEffects(entry.Effects)
	t.objectOps.Delete(entry.FlowAdd)

	if IsDeleted(entry.State) {
		t.status.PendingDeletes--
	}

	slot, allPos := entry.slot, entry.allPos
	*entry = Entry{}
	entry.slot = slot
	entry.allPos = allPos
	entry.ID = InvalidID
	entry.State = StateFree
}

// Delete removes entry from the table and returns its slot to the pool.
func (t *Table) Delete(entry *Entry) error {
	t.logger.V(2).Info("deleting flow", "reason", entry.RemovedReason, "id", entry.ID)

	if entry.ID == InvalidID {
		t.logger.Error(ErrUnknown, "deleting invalid flow table entry")
		return ErrUnknown
	}

	t.unlink(entry)
	t.clear(entry)
	t.pushFree(entry.slot)

	t.status.CurrentCount--
	t.status.Deletes++
	return nil
}

// DeleteID looks up id and deletes it, or reports ErrNotFound.
func (t *Table) DeleteID(id ID) error {
	entry, ok := t.idIndex.Lookup(id, nil)
	if !ok {
		t.logger.V(1).Info("delete: failed to find flow", "id", id)
		return ErrNotFound
	}
	return t.Delete(entry)
}

// ModifyEffects rebuilds entry's action/instruction list from a flow-modify
// message, replacing the old one via EffectsOps.
func (t *Table) ModifyEffects(entry *Entry, flowModify any) error {
	t.logger.V(2).Info("modifying effects of entry", "id", entry.ID)

	effects, ports, err := t.effectsOps.BuildEffects(flowModify)
	if err != nil {
		return fmt.Errorf("%w: building effects: %v", ErrUnknown, err)
	}

	t.effectsOps.DeleteEffects(entry.Effects)
	entry.Effects = effects
	entry.OutputPorts = ports
	t.status.Updates++
	return nil
}

// ModifyCookie applies a masked cookie update to entry. This reproduces the
// original dataplane's literal mask semantics verbatim, including what is
// very likely an inverted mask: bits set in mask are copied from the new
// cookie and ALSO preserved from the old one, rather than cleared before
// the new bits are OR'd in. See DESIGN.md for the open-question decision
// to keep this bug-compatible rather than silently "fix" observable
// behavior.
func (t *Table) ModifyCookie(entry *Entry, cookie, mask uint64) {
	entry.Cookie = (entry.Cookie & mask) | (cookie & mask)
	t.status.Updates++
}

// ClearCounters zeroes entry's packet and byte counters and returns their
// prior values.
func (t *Table) ClearCounters(entry *Entry) (packets, bytes uint64) {
	packets, bytes = entry.Packets, entry.Bytes
	entry.Packets = 0
	entry.Bytes = 0
	// LastCounterChange is deliberately left untouched here, matching the
	// original's own unresolved @fixme rather than fixing it ourselves.
	return packets, bytes
}

// MarkDeleted flags entry as logically removed without freeing its slot.
// It is idempotent.
func (t *Table) MarkDeleted(entry *Entry, reason uint32) {
	if IsDeleted(entry.State) {
		return
	}
	entry.State = StateDeleteMarked
	entry.RemovedReason = reason
	t.status.PendingDeletes++
}

// Destroy unlinks and clears every live entry, leaving the Table empty and
// unusable. It does not return slots to the free list, matching the
// original's teardown path of discarding the whole pool at once.
func (t *Table) Destroy() {
	live := append([]int32(nil), t.all...)
	for _, slot := range live {
		entry := &t.entries[slot]
		t.unlink(entry)
		t.clear(entry)
	}
	t.all = nil
	t.free = nil
	t.entries = nil
}
