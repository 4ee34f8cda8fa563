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

import "github.com/scalecore/converger/internal/model"

// Optimize merges and prunes a raw step list (§4.3 step 4). It is
// idempotent: Optimize(Optimize(steps)) == Optimize(steps), which §4.3
// requires.
//
// reconcileLBs already merges same-LB adds and same-LB removes into a
// single bulk step, so what Optimize does on top is: drop every
// ChangeCLBNode whose node is also removed by a RemoveNodesFromCLB
// anywhere in the list (a change about to be deleted is wasted work),
// then drop any exact-duplicate steps.
func Optimize(steps []model.Step) []model.Step {
	steps = dropChangeThenRemove(steps)
	steps = dedupe(steps)
	return steps
}

func dropChangeThenRemove(steps []model.Step) []model.Step {
	removedNodeIDs := map[string]struct{}{}
	for _, s := range steps {
		if s.Kind == model.StepRemoveNodesFromCLB {
			for _, id := range s.NodeIDsToRemove {
				removedNodeIDs[id] = struct{}{}
			}
		}
	}
	out := make([]model.Step, 0, len(steps))
	for _, s := range steps {
		if s.Kind == model.StepChangeCLBNode {
			if _, removed := removedNodeIDs[s.NodeID]; removed {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// dedupe removes exact-duplicate steps, keeping first occurrence order.
func dedupe(steps []model.Step) []model.Step {
	out := make([]model.Step, 0, len(steps))
	for _, s := range steps {
		dup := false
		for _, kept := range out {
			if kept.Equal(s) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}
