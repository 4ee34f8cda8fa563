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

// Package model holds the immutable value types shared by the planner and
// the executor: servers, load-balancer descriptions and nodes, and group
// state. Every type here is a copy-on-write record — mutator methods return
// a new value rather than modifying the receiver.
package model

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/mitchellh/copystructure"
)

// ServerState is the lifecycle state of a provider-owned server.
type ServerState string

// Server lifecycle states.
const (
	ServerBuild   ServerState = "BUILD"
	ServerActive  ServerState = "ACTIVE"
	ServerError   ServerState = "ERROR"
	ServerDeleted ServerState = "DELETED"
	ServerUnknown ServerState = "UNKNOWN"
)

// CLBCondition is the condition of a load-balancer node.
type CLBCondition string

// Node conditions.
const (
	CLBEnabled  CLBCondition = "ENABLED"
	CLBDisabled CLBCondition = "DISABLED"
	CLBDraining CLBCondition = "DRAINING"
)

// CLBNodeType distinguishes a node's failover role on its balancer.
type CLBNodeType string

// Node types.
const (
	CLBPrimary   CLBNodeType = "PRIMARY"
	CLBSecondary CLBNodeType = "SECONDARY"
)

// CLBDescription declares how a server should be attached to one load
// balancer. Two descriptions are equivalent iff every field is equal; that
// equivalence is what the planner uses to decide whether an existing node
// already satisfies a desired attachment (see Equivalent).
type CLBDescription struct {
	LBID      string
	Port      int
	Weight    int
	Condition CLBCondition
	NodeType  CLBNodeType
}

// Equivalent reports whether d and other declare the identical attachment.
func (d CLBDescription) Equivalent(other CLBDescription) bool {
	return d == other
}

// SameIdentity reports whether d and other address the same (LBID, Port)
// pair, the immutable fields of an attachment — differing only, if at all,
// in the mutable fields (Weight, Condition, NodeType).
func (d CLBDescription) SameIdentity(other CLBDescription) bool {
	return d.LBID == other.LBID && d.Port == other.Port
}

// CLBNode is an observed load-balancer node: an opaque id, the description
// governing it, and the address it was created with.
type CLBNode struct {
	ID          string
	Description CLBDescription
	Address     string
}

// OwnedByAutoscale reports whether node's address is one of
// serverAddresses. The planner builds that set from the private IPs of
// the group's observed servers (see planner.reconcileLBs); no association
// is recorded when a node is added, so ownership rests on the address
// match alone. The planner only ever proposes mutations to nodes for
// which this holds.
func (n CLBNode) OwnedByAutoscale(serverAddresses map[string]struct{}) bool {
	_, ok := serverAddresses[n.Address]
	return ok
}

// Server is an opaque provider-owned compute instance.
type Server struct {
	ID        string
	State     ServerState
	Created   time.Time
	Image     string
	Flavor    string
	PrivateIP string // empty until the provider assigns a service-net address
	// LBDescriptions maps a load-balancer id to every description declaring
	// how this server should be attached to that balancer.
	LBDescriptions map[string][]CLBDescription
}

// Clone returns a deep, independent copy of s. Deep-copying via
// copystructure rather than a hand-rolled walk keeps the copy-on-write
// invariant (§3: "every modification produces a new value") correct as
// fields are added to Server without having to remember to extend a
// bespoke copier.
func (s Server) Clone() Server {
	v, err := copystructure.Copy(s)
	if err != nil {
		// copystructure only fails on unsupported kinds (channels, funcs);
		// Server contains neither, so this is unreachable in practice.
		panic(err)
	}
	return v.(Server)
}

// WithLBDescriptions returns a copy of s with its LBDescriptions replaced.
func (s Server) WithLBDescriptions(lbs map[string][]CLBDescription) Server {
	c := s.Clone()
	c.LBDescriptions = lbs
	return c
}

// Desired flattens LBDescriptions into a single slice, each entry paired
// with the LB id it belongs to, in ascending LB-id then slice order —
// deterministic so planner output is reproducible.
func (s Server) Desired() []CLBDescription {
	ids := make([]string, 0, len(s.LBDescriptions))
	for id := range s.LBDescriptions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]CLBDescription, 0, len(s.LBDescriptions))
	for _, id := range ids {
		out = append(out, s.LBDescriptions[id]...)
	}
	return out
}

// compactServer is the JSON shape stored in a group's active map and
// emitted to log records — deliberately small, no LB membership detail.
type compactServer struct {
	ID      string      `json:"id"`
	State   ServerState `json:"state"`
	Created time.Time   `json:"created"`
}

// Compact renders s as the compact JSON used for the active map and for
// log records (the original's server_to_json).
func (s Server) Compact() json.RawMessage {
	b, err := json.Marshal(compactServer{ID: s.ID, State: s.State, Created: s.Created})
	if err != nil {
		panic(err) // compactServer has no unmarshalable fields
	}
	return b
}
