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

// Mode selects how Query compares an entry's match against the query's
// match.
type Mode uint8

const (
	// ModeStrict requires byte-exact match equality.
	ModeStrict Mode = iota
	// ModeNonStrict requires the entry's match to be at least as specific
	// as the query's match (wildcard containment).
	ModeNonStrict
	// ModeOverlap requires the entry's match and the query's match to
	// admit at least one common packet.
	ModeOverlap
	// ModeCookieOnly ignores match entirely; only the cookie, table ID,
	// and priority filters apply.
	ModeCookieOnly
)

// Query describes a flow lookup: a match-mode comparison plus the common
// cookie/table/priority/out-port filters the original dataplane applies to
// every flow-mod and flow-stats request.
type Query struct {
	Mode  Mode
	Match Match

	Priority      Priority
	CheckPriority bool

	Cookie     uint64
	CookieMask uint64

	TableID TableID
	OutPort OutPort
}

func entryHasOutPort(entry *Entry, port OutPort) bool {
	for _, p := range entry.OutputPorts {
		if p == port {
			return true
		}
	}
	return false
}

// metaMatch is the filter every query candidate must pass regardless of
// which index produced it: it rejects deleted entries outright, then
// applies cookie/mask, table ID, and priority filters before dispatching
// on Mode for the match-specific comparison and out-port filter.
func (t *Table) metaMatch(q *Query, entry *Entry) bool {
	if IsDeleted(entry.State) {
		return false
	}

	if q.CookieMask != 0 && (q.Cookie&q.CookieMask) != (entry.Cookie&q.CookieMask) {
		return false
	}

	if q.TableID != AnyTableID && q.TableID != entry.TableID {
		return false
	}

	if q.CheckPriority && entry.Priority != q.Priority {
		return false
	}

	switch q.Mode {
	case ModeStrict:
		if entry.Match != q.Match {
			return false
		}
		return q.OutPort == WildcardPort || entryHasOutPort(entry, q.OutPort)
	case ModeNonStrict:
		if !t.matchOps.MoreSpecific(entry.Match, q.Match) {
			return false
		}
		return q.OutPort == WildcardPort || entryHasOutPort(entry, q.OutPort)
	case ModeOverlap:
		return t.matchOps.Overlap(entry.Match, q.Match)
	case ModeCookieOnly:
		return true
	default:
		t.logger.Error(nil, "flowtable: unknown query mode", "mode", q.Mode)
		return false
	}
}

// candidates picks the cheapest index that can narrow the search: a STRICT
// query walks the match index's bucket, a priority-checked query walks the
// priority index's bucket, and everything else falls back to a linear scan
// of every live entry.
func (t *Table) candidates(q *Query, visit func(entry *Entry) bool) {
	switch {
	case q.Mode == ModeStrict:
		var state uint32
		for {
			entry, ok := t.matchIndex.Lookup(q.Match, &state)
			if !ok {
				return
			}
			if !visit(entry) {
				return
			}
		}
	case q.CheckPriority:
		var state uint32
		for {
			entry, ok := t.priorityIndex.Lookup(q.Priority, &state)
			if !ok {
				return
			}
			if !visit(entry) {
				return
			}
		}
	default:
		for _, slot := range t.all {
			if !visit(&t.entries[slot]) {
				return
			}
		}
	}
}

// FirstMatch returns the first live entry matching q, or false if none
// does.
func (t *Table) FirstMatch(q *Query) (*Entry, bool) {
	var found *Entry
	t.candidates(q, func(entry *Entry) bool {
		if t.metaMatch(q, entry) {
			found = entry
			return false
		}
		return true
	})
	return found, found != nil
}

// QueryAll returns every live entry matching q. The result order is
// unspecified and must not be relied on by callers.
func (t *Table) QueryAll(q *Query) []*Entry {
	var results []*Entry
	t.candidates(q, func(entry *Entry) bool {
		if t.metaMatch(q, entry) {
			results = append(results, entry)
		}
		return true
	})

	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}

	t.logger.V(2).Info("query generated entries", "count", len(results))
	return results
}
