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

// ObjectOps adapts opaque flow-add messages (the FlowAdd any field) into
// the fields a Table needs to populate an Entry. The concrete message
// format is a dataplane concern this package deliberately knows nothing
// about.
type ObjectOps interface {
	// Duplicate returns an owned copy of flowAdd, safe to retain past the
	// caller's own lifetime of the original.
	Duplicate(flowAdd any) any
	// Delete releases a value previously returned by Duplicate.
	Delete(flowAdd any)

	ExtractMatch(flowAdd any) (Match, error)
	ExtractCookie(flowAdd any) uint64
	ExtractPriority(flowAdd any) Priority
	ExtractTableID(flowAdd any) TableID
	ExtractFlags(flowAdd any) uint32
	ExtractIdleTimeout(flowAdd any) uint16
	ExtractHardTimeout(flowAdd any) uint16
}

// EffectsOps builds and releases the action/instruction list an entry
// carries, and flattens it into an output-port list for the out-port query
// filter. flowMessage is either the original flow-add message or a later
// flow-modify message; the two OpenFlow wire versions disagree on whether
// effects live in an action list or an instruction list, and this
// interface hides that from the rest of the package.
type EffectsOps interface {
	BuildEffects(flowMessage any) (effects any, outputPorts []OutPort, err error)
	DeleteEffects(effects any)
}

// MatchOps supplies the two match comparisons this package cannot compute
// from raw bytes alone: wildcard containment (is entryMatch at least as
// specific as queryMatch) and overlap (do the two matches admit at least
// one common packet). Byte-equality, used by STRICT queries, needs no
// collaborator.
type MatchOps interface {
	MoreSpecific(entryMatch, queryMatch Match) bool
	Overlap(a, b Match) bool
}

// Clock supplies the current time for InsertTime/LastCounterChange
// stamping. The default implementation wraps time.Now; tests inject a
// fixed or stepped clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// TaskStatus is the result of one iteration task tick.
type TaskStatus int

const (
	// TaskContinue means the task yielded and expects to be resumed.
	TaskContinue TaskStatus = iota
	// TaskFinished means the task walked the entire pool and will not be
	// resumed again.
	TaskFinished
)

// Scheduler is the host's cooperative task runner. RegisterTask hands the
// host a tick function to call repeatedly at the given priority until it
// returns TaskFinished; ShouldYield tells a running tick whether it has
// used its fair share of the current turn and should return control.
type Scheduler interface {
	ShouldYield() bool
	RegisterTask(tick func() TaskStatus, priority int) error
}
