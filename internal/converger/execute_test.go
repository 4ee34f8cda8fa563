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

package converger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scalecore/converger/internal/effect"
	"github.com/scalecore/converger/internal/model"
)

// fixedClock is an effect.Clock stub so a test can drive server naming
// deterministically instead of racing the real wall clock.
type fixedClock struct{ at time.Time }

func (f fixedClock) Now() time.Time { return f.at }

func TestExecuteStepsNamesServersFromClock(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	c := &Converger{clock: fixedClock{at: at}, log: logr.Discard()}

	srv := &fakeServers{}
	lb := &fakeLBs{nodes: map[string][]model.CLBNode{}}

	steps := []model.Step{model.CreateServer(model.ServerTemplate{Image: "img"})}
	require.NoError(t, c.executeSteps(context.Background(), srv, lb, steps))

	require.Len(t, srv.created, 1)
	assert.Equal(t, fmt.Sprintf("as-%d", at.UnixNano()), srv.created[0])
}

func TestExecuteStepsClockIsDeterministicAcrossRuns(t *testing.T) {
	clock := fixedClock{at: time.Unix(0, 42)}
	c1 := &Converger{clock: clock, log: logr.Discard()}
	c2 := &Converger{clock: clock, log: logr.Discard()}

	srv1 := &fakeServers{}
	srv2 := &fakeServers{}
	lb := &fakeLBs{nodes: map[string][]model.CLBNode{}}
	steps := []model.Step{model.CreateServer(model.ServerTemplate{Image: "img"})}

	require.NoError(t, c1.executeSteps(context.Background(), srv1, lb, steps))
	require.NoError(t, c2.executeSteps(context.Background(), srv2, lb, steps))

	require.Len(t, srv1.created, 1)
	require.Len(t, srv2.created, 1)
	assert.Equal(t, srv1.created[0], srv2.created[0])
	assert.Equal(t, "as-42", srv1.created[0])
}

var _ effect.Clock = fixedClock{}
