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
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// NewLogger returns a logr.Logger backed by the standard library's log
// package, verbose enough to print V(verbosity) and below. Pass it to
// WithLogger; callers that want a different backend (zap, logrus, ...)
// can satisfy logr.Logger directly and skip this constructor.
func NewLogger(verbosity int) logr.Logger {
	stdr.SetVerbosity(verbosity)
	return stdr.New(nil).WithName("flowtable")
}
