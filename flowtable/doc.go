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

// Package flowtable implements a bounded pool of OpenFlow-style flow
// entries layered over three hmap.Map indexes (by flow ID, by priority,
// and by exact-match key) plus an all-entries list and a free list.
//
// A Table owns a fixed-size entry pool sized at creation time. Adding an
// entry pops a slot from the free list, populates it, and links it into
// the all-entries list and all three indexes; deleting reverses that and
// returns the slot to the free list. The query engine selects one of the
// three indexes (or falls back to a linear walk of the all-entries list)
// based on the query mode, then filters candidates with a meta-match
// predicate that combines cookie/mask, table ID, priority, and match-mode
// specific logic. A cooperative iteration task walks the entire pool in
// bounded chunks, yielding control back to a host scheduler between
// entries.
//
// A Table is NOT goroutine-safe; callers must serialize access to a given
// instance, same as hmap.Map.
package flowtable
