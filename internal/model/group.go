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

package model

import (
	"encoding/json"
	"time"

	"github.com/mitchellh/copystructure"
)

// GroupConfig is a scaling group's tenant-declared desired state.
type GroupConfig struct {
	TenantID string
	GroupID  string
	Name     string
	Desired  int
	Paused   bool
	Template ServerTemplate
	// DesiredLBs maps a load-balancer id to the descriptions every server
	// in the group should carry for that balancer.
	DesiredLBs map[string][]CLBDescription
	// Touched is an opaque policy-touch timestamp (§3); it is carried but
	// not interpreted by the converger.
	Touched time.Time
}

// ServerTemplate is the launch configuration used to create new servers.
type ServerTemplate struct {
	Image    string
	Flavor   string
	Metadata map[string]string
}

// GroupState is a scaling group's persisted runtime state. The Active map
// is authoritative for "which servers are serving" and is updated only by
// the converger; Pending holds servers that have been asked for but are
// not yet ACTIVE.
type GroupState struct {
	TenantID string
	GroupID  string
	Name     string
	// Pending maps server id to the time it was created.
	Pending map[string]time.Time
	// Active maps server id to its compact JSON representation.
	Active  map[string]json.RawMessage
	Paused  bool
	Touched time.Time
}

// Clone returns a deep, independent copy of g.
func (g GroupState) Clone() GroupState {
	v, err := copystructure.Copy(g)
	if err != nil {
		panic(err)
	}
	return v.(GroupState)
}

// WithActive returns a copy of g with Active replaced by active.
func (g GroupState) WithActive(active map[string]json.RawMessage) GroupState {
	c := g.Clone()
	c.Active = active
	return c
}

// ServerCount returns the number of servers counted as already accounted
// for toward the desired count: active union pending. §3 requires
// active ∩ pending = ∅ at rest, so this is a plain sum.
func (g GroupState) ServerCount() int {
	return len(g.Active) + len(g.Pending)
}

// DetermineActive builds the active map a convergence pass should record,
// given the servers the planner classified as active (every provider-ACTIVE
// server, whether or not it is yet attached to its desired LBs — see
// planner.Classify). This is the exact
// rule the Python original applies when a cycle produces no steps: the
// active map still gets refreshed from what was actually observed.
func DetermineActive(activeServers []Server) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(activeServers))
	for _, s := range activeServers {
		out[s.ID] = s.Compact()
	}
	return out
}
