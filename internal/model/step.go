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

// StepKind tags the variant carried by a Step.
type StepKind string

// Step kinds, one per §3 variant.
const (
	StepCreateServer            StepKind = "CreateServer"
	StepDeleteServer            StepKind = "DeleteServer"
	StepSetMetadataItemOnServer StepKind = "SetMetadataItemOnServer"
	StepAddNodesToCLB           StepKind = "AddNodesToCLB"
	StepRemoveNodesFromCLB      StepKind = "RemoveNodesFromCLB"
	StepChangeCLBNode           StepKind = "ChangeCLBNode"
	StepBulkAddToRCv3           StepKind = "BulkAddToRCv3"
	StepBulkRemoveFromRCv3      StepKind = "BulkRemoveFromRCv3"
)

// CLBNodeSpec is the payload of a single node add, used by AddNodesToCLB
// and, in bulk, merged across servers destined for the same LB.
type CLBNodeSpec struct {
	Address     string
	Description CLBDescription
}

// Step is a tagged, comparable remediation action. Exactly one of the
// payload fields is meaningful per Kind; Step is deliberately a flat
// struct (not an interface) so two Steps with identical fields compare
// equal under Equal (its slice and map fields rule out ==).
type Step struct {
	Kind StepKind

	// StepCreateServer
	Template ServerTemplate

	// StepDeleteServer, StepSetMetadataItemOnServer
	ServerID string

	// StepSetMetadataItemOnServer
	MetadataKey   string
	MetadataValue string

	// StepAddNodesToCLB, StepRemoveNodesFromCLB, StepChangeCLBNode,
	// StepBulkAddToRCv3, StepBulkRemoveFromRCv3
	LBID string

	// StepAddNodesToCLB / StepBulkAddToRCv3: nodes to add.
	NodesToAdd []CLBNodeSpec

	// StepRemoveNodesFromCLB / StepBulkRemoveFromRCv3: node ids to remove.
	NodeIDsToRemove []string

	// StepChangeCLBNode
	NodeID       string
	NewWeight    int
	NewCondition CLBCondition
	NewNodeType  CLBNodeType
}

// Equal reports whether s and other describe the identical action. Step
// carries slice fields so it cannot use Go's == operator despite §3's
// "comparable by value" invariant; Equal is that comparison.
func (s Step) Equal(other Step) bool {
	if s.Kind != other.Kind || s.ServerID != other.ServerID ||
		s.MetadataKey != other.MetadataKey || s.MetadataValue != other.MetadataValue ||
		s.LBID != other.LBID || s.NodeID != other.NodeID || s.NewWeight != other.NewWeight ||
		s.NewCondition != other.NewCondition || s.NewNodeType != other.NewNodeType {
		return false
	}
	if !templateEqual(s.Template, other.Template) {
		return false
	}
	if len(s.NodesToAdd) != len(other.NodesToAdd) || len(s.NodeIDsToRemove) != len(other.NodeIDsToRemove) {
		return false
	}
	for i, n := range s.NodesToAdd {
		if n != other.NodesToAdd[i] {
			return false
		}
	}
	for i, id := range s.NodeIDsToRemove {
		if id != other.NodeIDsToRemove[i] {
			return false
		}
	}
	return true
}

func templateEqual(a, b ServerTemplate) bool {
	if a.Image != b.Image || a.Flavor != b.Flavor || len(a.Metadata) != len(b.Metadata) {
		return false
	}
	for k, v := range a.Metadata {
		if b.Metadata[k] != v {
			return false
		}
	}
	return true
}

// CreateServer builds a StepCreateServer.
func CreateServer(t ServerTemplate) Step {
	return Step{Kind: StepCreateServer, Template: t}
}

// DeleteServer builds a StepDeleteServer.
func DeleteServer(serverID string) Step {
	return Step{Kind: StepDeleteServer, ServerID: serverID}
}

// AddNodesToCLB builds a StepAddNodesToCLB for a single LB.
func AddNodesToCLB(lbID string, nodes []CLBNodeSpec) Step {
	return Step{Kind: StepAddNodesToCLB, LBID: lbID, NodesToAdd: nodes}
}

// RemoveNodesFromCLB builds a StepRemoveNodesFromCLB for a single LB.
func RemoveNodesFromCLB(lbID string, nodeIDs []string) Step {
	return Step{Kind: StepRemoveNodesFromCLB, LBID: lbID, NodeIDsToRemove: nodeIDs}
}

// ChangeCLBNode builds a StepChangeCLBNode.
func ChangeCLBNode(lbID, nodeID string, weight int, cond CLBCondition, nt CLBNodeType) Step {
	return Step{
		Kind:         StepChangeCLBNode,
		LBID:         lbID,
		NodeID:       nodeID,
		NewWeight:    weight,
		NewCondition: cond,
		NewNodeType:  nt,
	}
}
