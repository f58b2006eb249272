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

import "fmt"

// IterCallback is invoked once per matching entry during an iteration
// task, and once more with a nil entry when the walk reaches the end of
// the pool, so callers know to release any state keyed by cookie.
type IterCallback func(cookie any, entry *Entry)

type iterTask struct {
	table     *Table
	query     *Query
	callback  IterCallback
	cookie    any
	scheduler Scheduler
	idx       int
}

func (it *iterTask) tick() TaskStatus {
	for it.idx < len(it.table.entries) {
		entry := &it.table.entries[it.idx]
		it.idx++

		if entry.State != StateFree && !IsDeleted(entry.State) {
			if it.query == nil || it.table.metaMatch(it.query, entry) {
				it.callback(it.cookie, entry)
			}
		}

		if it.scheduler.ShouldYield() {
			return TaskContinue
		}
	}

	it.callback(it.cookie, nil)
	return TaskFinished
}

// SpawnIterTask registers a cooperative task that walks every pool slot in
// order, invoking callback for each live entry that matches query (or
// every live entry, if query is nil). The task ticks until it has walked
// the whole pool, yielding back to scheduler whenever ShouldYield reports
// the current turn's budget is spent; it calls callback one final time
// with a nil entry to signal completion.
func SpawnIterTask(table *Table, query *Query, callback IterCallback, cookie any, priority int, scheduler Scheduler) error {
	task := &iterTask{
		table:     table,
		query:     query,
		callback:  callback,
		cookie:    cookie,
		scheduler: scheduler,
	}

	if err := scheduler.RegisterTask(task.tick, priority); err != nil {
		return fmt.Errorf("%w: registering iteration task: %v", ErrResource, err)
	}
	return nil
}
