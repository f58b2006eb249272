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
	"time"
)

// fakeFlowAdd stands in for an opaque, protocol-version-specific flow-add
// or flow-modify message.
type fakeFlowAdd struct {
	match       Match
	cookie      uint64
	priority    Priority
	tableID     TableID
	flags       uint32
	idleTimeout uint16
	hardTimeout uint16
	ports       []OutPort
}

type fakeObjectOps struct {
	failExtractMatch bool
}

func (f *fakeObjectOps) Duplicate(flowAdd any) any {
	dup := *flowAdd.(*fakeFlowAdd)
	return &dup
}
func (f *fakeObjectOps) Delete(flowAdd any) {}

func (f *fakeObjectOps) ExtractMatch(flowAdd any) (Match, error) {
	if f.failExtractMatch {
		return Match{}, errors.New("fake: cannot extract match")
	}
	return flowAdd.(*fakeFlowAdd).match, nil
}
func (f *fakeObjectOps) ExtractCookie(flowAdd any) uint64 {
	return flowAdd.(*fakeFlowAdd).cookie
}
func (f *fakeObjectOps) ExtractPriority(flowAdd any) Priority {
	return flowAdd.(*fakeFlowAdd).priority
}
func (f *fakeObjectOps) ExtractTableID(flowAdd any) TableID {
	return flowAdd.(*fakeFlowAdd).tableID
}
func (f *fakeObjectOps) ExtractFlags(flowAdd any) uint32 {
	return flowAdd.(*fakeFlowAdd).flags
}
func (f *fakeObjectOps) ExtractIdleTimeout(flowAdd any) uint16 {
	return flowAdd.(*fakeFlowAdd).idleTimeout
}
func (f *fakeObjectOps) ExtractHardTimeout(flowAdd any) uint16 {
	return flowAdd.(*fakeFlowAdd).hardTimeout
}

type fakeEffects struct {
	portCount int
}

type fakeEffectsOps struct {
	failBuild bool
}

func (f *fakeEffectsOps) BuildEffects(msg any) (any, []OutPort, error) {
	if f.failBuild {
		return nil, nil, errors.New("fake: cannot build effects")
	}
	fa := msg.(*fakeFlowAdd)
	return &fakeEffects{portCount: len(fa.ports)}, fa.ports, nil
}
func (f *fakeEffectsOps) DeleteEffects(effects any) {}

// wildcardByte, when stored in a Match's first byte, makes that Match
// match-anything under fakeMatchOps — good enough to exercise NON_STRICT
// and OVERLAP dispatch without a real wildcard field layout.
const wildcardByte = 0xFF

type fakeMatchOps struct{}

func (fakeMatchOps) MoreSpecific(entryMatch, queryMatch Match) bool {
	if queryMatch[0] == wildcardByte {
		return true
	}
	return entryMatch == queryMatch
}

func (fakeMatchOps) Overlap(a, b Match) bool {
	if a[0] == wildcardByte || b[0] == wildcardByte {
		return true
	}
	return a == b
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// fakeScheduler records registered tasks and lets tests control exactly
// when ShouldYield reports true.
type fakeScheduler struct {
	yieldEvery int
	calls      int
	tasks      []func() TaskStatus
}

func (s *fakeScheduler) ShouldYield() bool {
	s.calls++
	if s.yieldEvery <= 0 {
		return false
	}
	return s.calls%s.yieldEvery == 0
}

func (s *fakeScheduler) RegisterTask(tick func() TaskStatus, priority int) error {
	s.tasks = append(s.tasks, tick)
	return nil
}

// runToCompletion drives the most recently registered task until it
// reports TaskFinished, returning how many ticks that took.
func (s *fakeScheduler) runToCompletion() int {
	tick := s.tasks[len(s.tasks)-1]
	ticks := 0
	for {
		ticks++
		if tick() == TaskFinished {
			return ticks
		}
	}
}

type failingScheduler struct{}

func (failingScheduler) ShouldYield() bool { return false }
func (failingScheduler) RegisterTask(tick func() TaskStatus, priority int) error {
	return errors.New("fake: registration refused")
}

func newTestTable(maxEntries int, opts ...Option) *Table {
	table, err := Create(Config{MaxEntries: maxEntries}, &fakeObjectOps{}, &fakeEffectsOps{}, fakeMatchOps{}, opts...)
	if err != nil {
		panic(err)
	}
	return table
}

func matchWithByte(b byte) Match {
	var m Match
	m[0] = b
	return m
}
