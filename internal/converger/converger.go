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

// Package converger is the tick-driven service of §4.5: on each tick it
// reads the locally owned registry buckets, fans out a
// converge-one-then-cleanup task per divergent group with single-flight
// guarantees, and runs the pure planner against freshly fetched provider
// state before executing the resulting steps.
package converger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/scalecore/converger/internal/effect"
	"github.com/scalecore/converger/internal/model"
	"github.com/scalecore/converger/internal/planner"
	"github.com/scalecore/converger/internal/registry"
)

// NoSuchScalingGroupError is raised by a GroupStore when the requested
// (tenant, group) no longer exists. §4.5.4.g requires this to surface as
// its raw type out of the first dependent fetch, never wrapped, so the
// converger can special-case it: implementations must return it bare,
// not through errors.Wrap.
type NoSuchScalingGroupError struct {
	TenantID string
	GroupID  string
}

func (e NoSuchScalingGroupError) Error() string {
	return fmt.Sprintf("no such scaling group: tenant=%s group=%s", e.TenantID, e.GroupID)
}

// GroupStore is the seam to wherever a group's declared configuration and
// runtime state actually live. The core's Non-goals disclaim an opinion
// on deployment topology or persistence; this interface is that
// disclaimer made concrete — a real implementation (Cassandra, Postgres,
// whatever) plugs in here without the converger changing.
type GroupStore interface {
	GetConfig(ctx context.Context, tenantID, groupID string) (model.GroupConfig, error)
	GetState(ctx context.Context, tenantID, groupID string) (model.GroupState, error)
	SaveActive(ctx context.Context, tenantID, groupID string, active map[string]json.RawMessage) error
}

// ServerProvider is the subset of cloudclient.CloudServers the converger
// needs; cloudclient.CloudServers satisfies it structurally.
type ServerProvider interface {
	Create(ctx context.Context, name string, t model.ServerTemplate) (string, error)
	Delete(ctx context.Context, serverID string) error
	GetServersDetail(ctx context.Context) ([]model.Server, error)
}

// LBProvider is the subset of cloudclient.CloudLoadBalancers the
// converger needs; cloudclient.CloudLoadBalancers satisfies it
// structurally.
type LBProvider interface {
	AddNodes(ctx context.Context, lbID string, nodes []model.CLBNodeSpec) ([]string, error)
	RemoveNodes(ctx context.Context, lbID string, nodeIDs []string) error
	ChangeNode(ctx context.Context, lbID, nodeID string, weight int, cond model.CLBCondition, nt model.CLBNodeType) error
	GetNodes(ctx context.Context, lbID string) ([]model.CLBNode, error)
}

// ClientFactory builds the per-tenant provider clients a convergence pass
// needs. Cloud-client construction is tenant-scoped (it carries an
// authenticated token), so the converger asks for a fresh pair per group
// rather than holding one globally.
type ClientFactory func(tenantID string) (ServerProvider, LBProvider)

// Converger drives §4.5's tick loop.
type Converger struct {
	registry    registry.Registry
	partitioner *registry.Partitioner
	store       GroupStore
	clients     ClientFactory
	inFlight    *effect.InFlightSet
	clock       effect.Clock
	log         logr.Logger
}

// New builds a Converger.
func New(reg registry.Registry, part *registry.Partitioner, store GroupStore, clients ClientFactory, log logr.Logger) *Converger {
	return &Converger{
		registry:    reg,
		partitioner: part,
		store:       store,
		clients:     clients,
		inFlight:    effect.NewInFlightSet(),
		clock:       effect.SystemClock{},
		log:         log,
	}
}

// Tick implements §4.5 steps 1-3: list the divergent groups owned by
// ownedBuckets and fan out a converge-one-then-cleanup task per entry.
// Per-entry failures are logged at the converger boundary and never
// propagate — "other groups continue" (§7) — so Tick only returns an
// error when listing the registry itself fails.
func (c *Converger) Tick(ctx context.Context, ownedBuckets map[int]struct{}) error {
	entries, err := c.partitioner.GetMyDivergentGroups(ctx, ownedBuckets)
	if err != nil {
		return errors.Wrap(err, "cannot list divergent groups")
	}

	var wg sync.WaitGroup
	for _, entry := range entries {
		entry := entry
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.convergeGroupThenCleanup(ctx, entry)
		}()
	}
	wg.Wait()
	return nil
}

// convergeGroupThenCleanup enforces the single-flight guarantee of
// §4.5.3/§8: a second convergence requested for a group already in
// flight returns immediately without executing the body.
func (c *Converger) convergeGroupThenCleanup(ctx context.Context, entry registry.Entry) {
	key := entry.Tenant + "_" + entry.Group
	if !c.inFlight.TryAcquire(key) {
		c.log.V(1).Info("already-converging", "tenant", entry.Tenant, "group", entry.Group)
		return
	}
	defer c.inFlight.Release(key)

	if err := c.convergeOne(ctx, entry); err != nil {
		c.log.Error(err, "convergence failed, leaving entry for retry", "tenant", entry.Tenant, "group", entry.Group)
	}
}

// convergeOne implements §4.5.4: fetch, plan, execute, and either clear
// the divergence entry or leave it in place for retry.
func (c *Converger) convergeOne(ctx context.Context, entry registry.Entry) error {
	cfg, _, err := c.fetchGroupInfo(ctx, entry.Tenant, entry.Group)
	if err != nil {
		var nsg NoSuchScalingGroupError
		if errors.As(err, &nsg) {
			c.log.Info("group-already-deleted", "tenant", entry.Tenant, "group", entry.Group)
			if clearErr := c.registry.ForceDelete(ctx, entry.Tenant, entry.Group); clearErr != nil {
				c.log.Error(clearErr, "cannot clear divergence entry for deleted group", "tenant", entry.Tenant, "group", entry.Group)
			}
			return nil
		}
		return err
	}

	servers, lbs := c.clients(entry.Tenant)

	observed, err := c.fetchObserved(ctx, servers, lbs, cfg)
	if err != nil {
		return err
	}

	desired := planner.Desired{Count: cfg.Desired, Template: cfg.Template, LBs: cfg.DesiredLBs}
	steps := planner.Plan(desired, observed, cfg.Paused)
	active := model.DetermineActive(planner.ActiveServers(desired, observed))

	if len(steps) == 0 {
		return c.store.SaveActive(ctx, entry.Tenant, entry.Group, active)
	}

	if err := c.executeSteps(ctx, servers, lbs, steps); err != nil {
		return err
	}

	if err := c.store.SaveActive(ctx, entry.Tenant, entry.Group, active); err != nil {
		return err
	}

	if _, err := c.registry.DeleteNode(ctx, entry.Tenant, entry.Group, entry.Version); err != nil {
		return errors.Wrap(err, "cannot clear divergence entry after successful convergence")
	}
	return nil
}

// fetchGroupInfo fetches a group's config and state in parallel (§4.5.4.a).
// The FirstError rule (§4.1.c, §8 scenario 4) means a failure out of
// GetConfig — the first argument — surfaces as its raw type, in
// particular letting a bare NoSuchScalingGroupError propagate unwrapped.
func (c *Converger) fetchGroupInfo(ctx context.Context, tenantID, groupID string) (model.GroupConfig, model.GroupState, error) {
	results, err := effect.Parallel[any](ctx,
		effect.IntentFunc[any](func(ctx context.Context) (any, error) {
			return c.store.GetConfig(ctx, tenantID, groupID)
		}),
		effect.IntentFunc[any](func(ctx context.Context) (any, error) {
			return c.store.GetState(ctx, tenantID, groupID)
		}),
	)
	if err != nil {
		return model.GroupConfig{}, model.GroupState{}, err
	}
	return results[0].(model.GroupConfig), results[1].(model.GroupState), nil
}
