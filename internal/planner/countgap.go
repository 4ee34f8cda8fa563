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
	"sort"

	"github.com/scalecore/converger/internal/model"
)

// reconcileCount implements §4.3 step 2: delta = desired - |active ∪
// pending|. A positive delta emits CreateServer steps from the template;
// a negative delta picks |delta| victims (BUILD before ACTIVE,
// newest-first within each bucket) and emits DeleteServer steps.
//
// errored and unknown servers are deletion candidates unconditionally —
// the caller passes them in victimPool so they are removed regardless of
// the count gap.
func reconcileCount(desired int, active, pending []model.Server, template model.ServerTemplate, victimPool []model.Server) []model.Step {
	var steps []model.Step

	for _, v := range victimPool {
		steps = append(steps, model.DeleteServer(v.ID))
	}

	delta := desired - (len(active) + len(pending))
	switch {
	case delta > 0:
		for i := 0; i < delta; i++ {
			steps = append(steps, model.CreateServer(template))
		}
	case delta < 0:
		victims := chooseVictims(active, pending, -delta)
		for _, v := range victims {
			steps = append(steps, model.DeleteServer(v.ID))
		}
	}
	return steps
}

// chooseVictims selects n servers to delete, preferring BUILD over
// ACTIVE and, within a bucket, the newest first (§4.3 step 2).
func chooseVictims(active, pending []model.Server, n int) []model.Server {
	pending = append([]model.Server{}, pending...)
	active = append([]model.Server{}, active...)
	sortNewestFirstWithinBucket(pending)
	sortNewestFirstWithinBucket(active)

	buildFirst := make([]model.Server, 0, len(pending)+len(active))
	buildFirst = append(buildFirst, pending...)
	buildFirst = append(buildFirst, active...)

	if n > len(buildFirst) {
		n = len(buildFirst)
	}
	return buildFirst[:n]
}

func sortNewestFirstWithinBucket(servers []model.Server) {
	sort.SliceStable(servers, func(i, j int) bool {
		if !servers[i].Created.Equal(servers[j].Created) {
			return servers[i].Created.After(servers[j].Created)
		}
		// deterministic tie-break when timestamps collide
		return servers[i].ID > servers[j].ID
	})
}
