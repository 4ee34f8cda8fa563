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

// Package planner is the pure function from (desired, observed) to an
// ordered, optimized step list (§4.3). Nothing in this package performs
// IO; every exported function is referentially transparent so that the
// determinism and idempotence properties of §8 hold by construction.
package planner

import (
	"sort"

	"github.com/scalecore/converger/internal/model"
)

// Classification buckets observed servers by how the planner will treat
// them (§4.3 step 1).
type Classification struct {
	Active  []model.Server
	Pending []model.Server
	Errored []model.Server
	Unknown []model.Server
}

// Classify partitions observed servers into {active, pending, errored,
// unknown} (§4.3 step 1). A server counts as active as soon as it is
// provider-ACTIVE, regardless of whether it is yet attached to every LB
// it desires — reconcileLBs, which walks the full server list
// independently of this classification, is what closes any attachment
// gap. Gating bucket membership on attachment here would make such a
// server invisible to both this classification and reconcileCount's
// count-gap formula, which is exactly the bug this function must avoid.
//
// observedNodes is unused by this classification now that attachment no
// longer gates bucket membership; it stays in the signature so callers
// don't need to change and reconcileLBs remains the single place that
// reasons about observed nodes.
func Classify(servers []model.Server, observedNodes []model.CLBNode) Classification {
	var c Classification
	for _, s := range servers {
		switch s.State {
		case model.ServerBuild:
			c.Pending = append(c.Pending, s)
		case model.ServerActive:
			c.Active = append(c.Active, s)
		case model.ServerError:
			c.Errored = append(c.Errored, s)
		case model.ServerDeleted:
			// deleted servers are not candidates for anything; the
			// provider will stop returning them eventually.
		default:
			c.Unknown = append(c.Unknown, s)
		}
	}
	sortByIDAsc(c.Active)
	sortByIDAsc(c.Pending)
	sortByIDAsc(c.Errored)
	sortByIDAsc(c.Unknown)
	return c
}

func sortByIDAsc(servers []model.Server) {
	sort.Slice(servers, func(i, j int) bool { return servers[i].ID < servers[j].ID })
}
