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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInFlightSetSingleFlight(t *testing.T) {
	s := NewInFlightSet()

	const n = 50
	var wg sync.WaitGroup
	acquired := make([]bool, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			acquired[i] = s.TryAcquire("group-1")
		}()
	}
	wg.Wait()

	count := 0
	for _, ok := range acquired {
		if ok {
			count++
		}
	}
	assert.Equal(t, 1, count, "exactly one concurrent caller should acquire the group")
}

func TestInFlightSetReleaseAllowsReacquire(t *testing.T) {
	s := NewInFlightSet()
	assert.True(t, s.TryAcquire("g"))
	assert.False(t, s.TryAcquire("g"))
	s.Release("g")
	assert.True(t, s.TryAcquire("g"))
}

func TestInFlightSetDistinctKeysIndependent(t *testing.T) {
	s := NewInFlightSet()
	assert.True(t, s.TryAcquire("a"))
	assert.True(t, s.TryAcquire("b"))
}
