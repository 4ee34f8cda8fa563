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

package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scalecore/converger/internal/model"
)

// TestReconcileMutableFieldChangeEmitsChangeCLBNode is the regression
// test the Open Question in SPEC_FULL.md §13 calls for: a weight-only
// difference must produce a ChangeCLBNode, never remove+add.
func TestReconcileMutableFieldChangeEmitsChangeCLBNode(t *testing.T) {
	s := server("s1", model.ServerActive, "10.0.0.1", map[string][]model.CLBDescription{
		"lb1": {{LBID: "lb1", Port: 80, Weight: 5, Condition: model.CLBDisabled, NodeType: model.CLBSecondary}},
	})
	observedNode := model.CLBNode{
		ID:      "n1",
		Address: "10.0.0.1",
		Description: model.CLBDescription{LBID: "lb1", Port: 80, Weight: 1, Condition: model.CLBEnabled, NodeType: model.CLBPrimary},
	}

	steps := reconcileLBs([]model.Server{s}, nil, []model.CLBNode{observedNode})
	require.Len(t, steps, 1)
	assert.Equal(t, model.StepChangeCLBNode, steps[0].Kind)
	assert.Equal(t, "n1", steps[0].NodeID)
	assert.Equal(t, 5, steps[0].NewWeight)
	assert.Equal(t, model.CLBDisabled, steps[0].NewCondition)
	assert.Equal(t, model.CLBSecondary, steps[0].NewNodeType)
}

// TestReconcileImmutableFieldChangeEmitsRemoveAndAdd covers the other
// half of the same Open Question: a port difference (immutable) forces
// remove+add rather than a Change, because the node at the old port must
// be torn down and a new one stood up at the new port.
func TestReconcileImmutableFieldChangeEmitsRemoveAndAdd(t *testing.T) {
	s := server("s1", model.ServerActive, "10.0.0.1", map[string][]model.CLBDescription{
		"lb1": {{LBID: "lb1", Port: 81, Weight: 1, Condition: model.CLBEnabled, NodeType: model.CLBPrimary}},
	})
	observedNode := model.CLBNode{
		ID:      "n1",
		Address: "10.0.0.1",
		Description: model.CLBDescription{LBID: "lb1", Port: 80, Weight: 1, Condition: model.CLBEnabled, NodeType: model.CLBPrimary},
	}

	steps := reconcileLBs([]model.Server{s}, nil, []model.CLBNode{observedNode})
	require.Len(t, steps, 2)

	var sawRemove, sawAdd bool
	for _, st := range steps {
		switch st.Kind {
		case model.StepRemoveNodesFromCLB:
			sawRemove = true
			assert.Equal(t, []string{"n1"}, st.NodeIDsToRemove)
		case model.StepAddNodesToCLB:
			sawAdd = true
			require.Len(t, st.NodesToAdd, 1)
			assert.Equal(t, 81, st.NodesToAdd[0].Description.Port)
		}
	}
	assert.True(t, sawRemove)
	assert.True(t, sawAdd)
}

// TestReconcileOOBDeletion is §8 scenario 1: a deleted node gets
// re-added with a new id but the same address.
func TestReconcileOOBDeletion(t *testing.T) {
	s := server("s1", model.ServerActive, "10.0.0.1", map[string][]model.CLBDescription{
		"lb1": {desc("lb1", 80, 1)},
	})
	// node was deleted out-of-band: no observed nodes at all.
	steps := reconcileLBs([]model.Server{s}, nil, nil)
	require.Len(t, steps, 1)
	assert.Equal(t, model.StepAddNodesToCLB, steps[0].Kind)
	assert.Equal(t, "10.0.0.1", steps[0].NodesToAdd[0].Address)
}

// TestReconcileNonAutoscaleNodesUntouched is §8 scenario 2: nodes whose
// address isn't owned by any tracked server must never be removed or
// changed, even if they sit on the same LB.
func TestReconcileNonAutoscaleNodesUntouched(t *testing.T) {
	s := server("s1", model.ServerActive, "10.0.0.2", map[string][]model.CLBDescription{
		"lb1": {desc("lb1", 80, 1)},
	})
	foreign := model.CLBNode{ID: "A", Address: "10.0.0.99", Description: desc("lb1", 80, 1)}

	steps := reconcileLBs([]model.Server{s}, nil, []model.CLBNode{foreign})
	for _, st := range steps {
		if st.Kind == model.StepRemoveNodesFromCLB {
			assert.NotContains(t, st.NodeIDsToRemove, "A")
		}
	}
}

// TestReconcileDeletingServerRemovesItsNodes covers §4.3 step 3: a node
// whose server is being deleted must be removed regardless of whether
// its description still matches.
func TestReconcileDeletingServerRemovesItsNodes(t *testing.T) {
	s := server("s1", model.ServerActive, "10.0.0.1", map[string][]model.CLBDescription{
		"lb1": {desc("lb1", 80, 1)},
	})
	node := model.CLBNode{ID: "n1", Address: "10.0.0.1", Description: desc("lb1", 80, 1)}

	steps := reconcileLBs([]model.Server{s}, map[string]struct{}{"s1": {}}, []model.CLBNode{node})
	require.Len(t, steps, 1)
	assert.Equal(t, model.StepRemoveNodesFromCLB, steps[0].Kind)
	assert.Equal(t, []string{"n1"}, steps[0].NodeIDsToRemove)
}
