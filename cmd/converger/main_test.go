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

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scalecore/converger/internal/logspec"
)

func bigConvergenceEvent() logspec.Event {
	servers := make([]string, 50)
	for i := range servers {
		servers[i] = "server-with-a-reasonably-long-id-" + string(rune('a'+i%26))
	}
	return logspec.Event{
		"message":  []string{"execute-convergence"},
		"servers":  servers,
		"lb_nodes": []string{},
	}
}

func TestLogSpecsWiresConfiguredCap(t *testing.T) {
	specs := logSpecs(128)
	entry, ok := specs["execute-convergence"]
	assert.True(t, ok)
	assert.NotNil(t, entry.Split)

	got := entry.Split(bigConvergenceEvent())
	assert.Greater(t, len(got), 1, "a record this large should split under a 128-byte cap")
}

func TestLogSpecsFallsBackOnNonPositiveCap(t *testing.T) {
	specs := logSpecs(0)
	entry, ok := specs["execute-convergence"]
	assert.True(t, ok)
	assert.NotNil(t, entry.Split)

	small := logspec.Event{"message": []string{"execute-convergence"}, "servers": []string{"0"}, "lb_nodes": []string{}}
	got := entry.Split(small)
	assert.Len(t, got, 1, "logspec's own large default shouldn't split this small event")
}
