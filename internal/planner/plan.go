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

// Desired is a group's desired configuration: the launch template,
// desired server count, and desired LB attachments.
type Desired struct {
	Count    int
	Template model.ServerTemplate
	LBs      map[string][]model.CLBDescription
}

// Observed is what the converger fetched from the provider for a group
// (§4.5.4.b): the current servers and the current CLB nodes across every
// LB the group's servers touch.
type Observed struct {
	Servers []model.Server
	Nodes   []model.CLBNode
}

// Plan is the pure function of §4.3: given a group's desired
// configuration and what was actually observed, produce an ordered,
// deduplicated, optimized step list. Plan never performs IO and is
// deterministic and idempotent (§8).
//
// paused gates only the count-reconciliation steps (CreateServer /
// DeleteServer for non-error, non-unknown servers) per SPEC_FULL.md §12:
// a paused group still gets its LB membership reconciled and its errored
// servers cleaned up, so its divergence entry can still clear.
func Plan(desired Desired, observed Observed, paused bool) []model.Step {
	// attach the desired LB descriptions to each server so Classify and
	// reconcileLBs can work from model.Server.Desired() uniformly.
	servers := withDesiredLBs(observed.Servers, desired.LBs)

	class := Classify(servers, observed.Nodes)

	unhealthy := make([]model.Server, 0, len(class.Errored)+len(class.Unknown))
	unhealthy = append(unhealthy, class.Errored...)
	unhealthy = append(unhealthy, class.Unknown...)

	var steps []model.Step
	deletingIDs := map[string]struct{}{}
	for _, s := range unhealthy {
		deletingIDs[s.ID] = struct{}{}
	}

	if !paused {
		countSteps := reconcileCount(desired.Count, class.Active, class.Pending, desired.Template, unhealthy)
		for _, s := range countSteps {
			if s.Kind == model.StepDeleteServer {
				deletingIDs[s.ServerID] = struct{}{}
			}
		}
		steps = append(steps, countSteps...)
	} else {
		// still clean up errored/unknown servers even when paused.
		for _, s := range unhealthy {
			steps = append(steps, model.DeleteServer(s.ID))
		}
	}

	steps = append(steps, reconcileLBs(servers, deletingIDs, observed.Nodes)...)

	return Optimize(steps)
}

func withDesiredLBs(servers []model.Server, desiredLBs map[string][]model.CLBDescription) []model.Server {
	out := make([]model.Server, len(servers))
	for i, s := range servers {
		lbs := make(map[string][]model.CLBDescription, len(desiredLBs))
		for lbID, descs := range desiredLBs {
			lbs[lbID] = descs
		}
		out[i] = s.WithLBDescriptions(lbs)
	}
	return out
}

// ActiveServers returns the servers Plan's most recent Classify call
// would treat as active, for callers (the converger) that need to update
// a group's active map after a cycle (§4.5.4.d, §4.5.4.f).
func ActiveServers(desired Desired, observed Observed) []model.Server {
	servers := withDesiredLBs(observed.Servers, desired.LBs)
	return Classify(servers, observed.Nodes).Active
}
