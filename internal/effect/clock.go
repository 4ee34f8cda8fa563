/*
Copyright 2021 The Crossplane Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package effect

import (
	"context"
	"time"
)

// Clock abstracts a read of the wall clock (§4.1: "reads of the wall
// clock" are one of the side effects that must be dispatched through the
// executor rather than called directly, so tests can substitute canned
// values instead of racing real time).
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, backed by time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// NowIntent adapts a Clock into an Intent, so a wall-clock read can be
// dispatched through Perform/Parallel like any other effect. A nil Clock
// falls back to SystemClock.
type NowIntent struct {
	Clock Clock
}

// Perform implements Intent.
func (n NowIntent) Perform(_ context.Context) (time.Time, error) {
	clock := n.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return clock.Now(), nil
}
