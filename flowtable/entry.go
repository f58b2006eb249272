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

import "time"

// ID identifies a flow entry. InvalidID never names a live entry.
type ID uint64

// InvalidID is the sentinel flow ID used by cleared and not-yet-populated
// entries.
const InvalidID ID = 0

// Priority ranks entries that share an exact-match key; higher values are
// checked first by wildcard lookups in the original dataplane, but this
// package imposes no ordering of its own beyond what the priority index
// groups together.
type Priority uint16

// TableID names the logical flow table an entry belongs to. Most callers
// run one flow table per TableID and never populate this field; it exists
// so a single Table can host entries tagged for more than one OpenFlow
// table, and so query meta-match can filter on it.
type TableID int32

// AnyTableID disables the table ID filter in a query.
const AnyTableID TableID = -1

// MatchSize is the width, in bytes, of a flattened match key.
const MatchSize = 64

// Match is an opaque, fixed-width flow match key. Byte-equality between two
// Match values is the STRICT match test; wildcard containment and overlap
// are delegated to MatchOps, since they depend on a field layout this
// package does not know about.
type Match [MatchSize]byte

// OutPort names a switch output port. WildcardPort disables the out-port
// filter in a query.
type OutPort uint32

// WildcardPort disables the out-port filter in a query or meta-match.
const WildcardPort OutPort = 0xFFFFFFFF

// State is a flow entry's lifecycle state.
type State uint8

const (
	// StateFree marks a pool slot that holds no live entry.
	StateFree State = iota
	// StateNew marks a live, queryable entry.
	StateNew
	// StateDeleteMarked marks an entry that is logically gone but still
	// occupies a pool slot pending its actual removal (e.g. while a
	// forwarding-plane delete is in flight).
	StateDeleteMarked
)

// IsDeleted reports whether a state should be treated as gone by the query
// engine and the iteration task, even though the pool slot has not been
// freed yet. Table.Lookup does not check it and still returns such entries.
func IsDeleted(s State) bool { return s == StateDeleteMarked }

// Entry is one flow table row. The zero value is a free pool slot.
type Entry struct {
	ID       ID
	State    State
	Match    Match
	Priority Priority
	TableID  TableID
	Cookie   uint64
	Flags    uint32

	IdleTimeout uint16
	HardTimeout uint16

	// FlowAdd is the owned, duplicated copy of the triggering flow-add
	// message, retained so later modify/query operations can recover
	// fields this package does not itself parse.
	FlowAdd any
	// Effects is the owned, built action/instruction list produced from
	// FlowAdd or a later flow-modify by EffectsOps.
	Effects any
	// OutputPorts flattens Effects' output ports for the out-port query
	// filter, so that filter never has to re-walk Effects.
	OutputPorts []OutPort
	// QueuedReqs holds opaque handles for requests deferred until this
	// entry's forwarding-plane operation completes (e.g. barrier replies
	// waiting on a pending add).
	QueuedReqs []any

	Packets uint64
	Bytes   uint64

	InsertTime         time.Time
	LastCounterChange  time.Time
	RemovedReason      uint32

	// slot is this entry's fixed position in the owning Table's pool,
	// assigned once at Create and never reassigned.
	slot int32
	// allPos is this entry's current position in the owning Table's
	// all-entries slice while live, and -1 otherwise.
	allPos int32
}
