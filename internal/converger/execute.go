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
	"sort"

	"github.com/pkg/errors"

	"github.com/scalecore/converger/internal/effect"
	"github.com/scalecore/converger/internal/model"
	"github.com/scalecore/converger/internal/planner"
)

// fetchObserved implements §4.5.4.b: fetch the group's servers and every
// LB's current node list in parallel.
func (c *Converger) fetchObserved(ctx context.Context, servers ServerProvider, lbs LBProvider, cfg model.GroupConfig) (planner.Observed, error) {
	lbIDs := make([]string, 0, len(cfg.DesiredLBs))
	for id := range cfg.DesiredLBs {
		lbIDs = append(lbIDs, id)
	}
	sort.Strings(lbIDs)

	intents := make([]effect.Intent[any], 0, 1+len(lbIDs))
	intents = append(intents, effect.IntentFunc[any](func(ctx context.Context) (any, error) {
		return servers.GetServersDetail(ctx)
	}))
	for _, lbID := range lbIDs {
		lbID := lbID
		intents = append(intents, effect.IntentFunc[any](func(ctx context.Context) (any, error) {
			return lbs.GetNodes(ctx, lbID)
		}))
	}

	results, err := effect.Parallel(ctx, intents...)
	if err != nil {
		return planner.Observed{}, err
	}

	observed := planner.Observed{Servers: results[0].([]model.Server)}
	for _, r := range results[1:] {
		observed.Nodes = append(observed.Nodes, r.([]model.CLBNode)...)
	}
	return observed, nil
}

// executeSteps implements §4.5.4.e: creates and deletes run in parallel
// with each other (they target distinct servers by construction), and
// each load balancer's steps run as their own sequential chain — but
// different LBs' chains run in parallel with everything else. This is
// the concrete realization of "parallel where safe, sequential where
// required by intra-LB ordering."
func (c *Converger) executeSteps(ctx context.Context, servers ServerProvider, lbs LBProvider, steps []model.Step) error {
	perLB := map[string][]model.Step{}
	var lbOrder []string
	var intents []effect.Intent[any]

	for _, s := range steps {
		switch s.Kind {
		case model.StepCreateServer:
			s := s
			intents = append(intents, effect.IntentFunc[any](func(ctx context.Context) (any, error) {
				now, err := effect.NowIntent{Clock: c.clock}.Perform(ctx)
				if err != nil {
					return nil, err
				}
				name := fmt.Sprintf("as-%d", now.UnixNano())
				return servers.Create(ctx, name, s.Template)
			}))
		case model.StepDeleteServer:
			s := s
			intents = append(intents, effect.IntentFunc[any](func(ctx context.Context) (any, error) {
				return nil, servers.Delete(ctx, s.ServerID)
			}))
		default:
			if _, seen := perLB[s.LBID]; !seen {
				lbOrder = append(lbOrder, s.LBID)
			}
			perLB[s.LBID] = append(perLB[s.LBID], s)
		}
	}

	for _, lbID := range lbOrder {
		lbID, chain := lbID, perLB[lbID]
		intents = append(intents, effect.IntentFunc[any](func(ctx context.Context) (any, error) {
			return nil, c.runLBChain(ctx, lbs, lbID, chain)
		}))
	}

	_, err := effect.Parallel(ctx, intents...)
	return err
}

// runLBChain applies chain sequentially against a single load balancer,
// in the order the planner produced them (changes before removes before
// adds, per assembleLBSteps in internal/planner/reconcile.go), stopping at
// the first error.
func (c *Converger) runLBChain(ctx context.Context, lbs LBProvider, lbID string, chain []model.Step) error {
	for _, s := range chain {
		var err error
		switch s.Kind {
		case model.StepChangeCLBNode:
			err = lbs.ChangeNode(ctx, lbID, s.NodeID, s.NewWeight, s.NewCondition, s.NewNodeType)
		case model.StepRemoveNodesFromCLB:
			err = lbs.RemoveNodes(ctx, lbID, s.NodeIDsToRemove)
		case model.StepAddNodesToCLB:
			_, err = lbs.AddNodes(ctx, lbID, s.NodesToAdd)
		default:
			err = errors.Errorf("unexpected step kind %q in LB chain", s.Kind)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
