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
	"strconv"

	"github.com/scalecore/converger/internal/model"
)

// reconcileLBs implements §4.3 step 3: for every (server, desired LB
// description) not satisfied by an existing owned node, emit an add; for
// every owned node that no longer matches any desired description for
// its server (or whose server is being deleted), emit a remove; for
// nodes whose description differs only in mutable fields, emit a
// ChangeCLBNode instead of remove+add (§9 Open Question, resolved in
// SPEC_FULL.md §13: immutable-field differences — address or port —
// force remove+add, mutable-field-only differences force Change).
func reconcileLBs(servers []model.Server, deletingServerIDs map[string]struct{}, observedNodes []model.CLBNode) []model.Step {
	addrToServer := map[string]model.Server{}
	for _, s := range servers {
		if s.PrivateIP != "" {
			addrToServer[s.PrivateIP] = s
		}
	}

	ownedAddrs := map[string]struct{}{}
	for addr := range addrToServer {
		ownedAddrs[addr] = struct{}{}
	}

	adds := map[string][]model.CLBNodeSpec{}   // lbID -> nodes to add
	removes := map[string][]string{}           // lbID -> node ids to remove
	changes := []model.Step{}

	satisfiedByNode := map[string]bool{} // "lbID|addr|port" -> satisfied

	for _, node := range observedNodes {
		if !node.OwnedByAutoscale(ownedAddrs) {
			continue // never touch a node we don't own
		}
		server, ok := addrToServer[node.Address]
		if !ok {
			continue
		}
		key := lbAddrPortKey(node.Description.LBID, node.Address, node.Description.Port)

		if _, deleting := deletingServerIDs[server.ID]; deleting {
			removes[node.Description.LBID] = append(removes[node.Description.LBID], node.ID)
			continue
		}

		desired, found := findByIdentity(server.Desired(), node.Description)
		switch {
		case !found:
			removes[node.Description.LBID] = append(removes[node.Description.LBID], node.ID)
		case desired.Equivalent(node.Description):
			satisfiedByNode[key] = true
		default:
			changes = append(changes, model.ChangeCLBNode(node.Description.LBID, node.ID, desired.Weight, desired.Condition, desired.NodeType))
			satisfiedByNode[key] = true
		}
	}

	for _, s := range servers {
		if _, deleting := deletingServerIDs[s.ID]; deleting || s.PrivateIP == "" {
			continue
		}
		for _, desired := range s.Desired() {
			key := lbAddrPortKey(desired.LBID, s.PrivateIP, desired.Port)
			if satisfiedByNode[key] {
				continue
			}
			adds[desired.LBID] = append(adds[desired.LBID], model.CLBNodeSpec{Address: s.PrivateIP, Description: desired})
		}
	}

	return assembleLBSteps(adds, removes, changes)
}

// lbAddrPortKey is keyed on (LBID, address, port) — the identity of an
// attachment — so a node observed on the wire and a desired description
// computed from the server match up regardless of which produced the key.
func lbAddrPortKey(lbID, addr string, port int) string {
	return lbID + "|" + addr + "|" + strconv.Itoa(port)
}

func findByIdentity(descs []model.CLBDescription, node model.CLBDescription) (model.CLBDescription, bool) {
	for _, d := range descs {
		if d.SameIdentity(node) {
			return d, true
		}
	}
	return model.CLBDescription{}, false
}

func assembleLBSteps(adds map[string][]model.CLBNodeSpec, removes map[string][]string, changes []model.Step) []model.Step {
	var steps []model.Step
	steps = append(steps, changes...)

	lbIDs := map[string]struct{}{}
	for id := range adds {
		lbIDs[id] = struct{}{}
	}
	for id := range removes {
		lbIDs[id] = struct{}{}
	}
	ids := make([]string, 0, len(lbIDs))
	for id := range lbIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if rm := removes[id]; len(rm) > 0 {
			sort.Strings(rm)
			steps = append(steps, model.RemoveNodesFromCLB(id, rm))
		}
	}
	for _, id := range ids {
		if add := adds[id]; len(add) > 0 {
			sort.Slice(add, func(i, j int) bool { return add[i].Address < add[j].Address })
			steps = append(steps, model.AddNodesToCLB(id, add))
		}
	}
	return steps
}
