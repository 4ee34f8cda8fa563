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

package registry

import (
	"context"

	"github.com/pkg/errors"
)

const errStart = "starter: mark divergent failed"

// Starter is the ConvergenceStarter façade of SPEC_FULL.md §12: the seam
// an (out-of-scope) admission API uses to mark a group divergent and
// nudge the local converger to look at it sooner than its next scheduled
// tick, without coupling the admission path to the tick loop itself.
type Starter struct {
	registry Registry
	// notify is called after a successful mark, with the (tenant, group)
	// just marked. It is optional: a nil notify still marks the group
	// divergent, it just relies on the next tick to pick it up.
	notify func(tenantID, groupID string)
}

// NewStarter builds a Starter backed by reg. notify may be nil.
func NewStarter(reg Registry, notify func(tenantID, groupID string)) *Starter {
	return &Starter{registry: reg, notify: notify}
}

// Start marks (tenantID, groupID) divergent and, if a notify callback was
// configured, invokes it so a locally running converger can react
// immediately instead of waiting for its next tick.
func (s *Starter) Start(ctx context.Context, tenantID, groupID string) error {
	if err := s.registry.CreateOrSet(ctx, tenantID, groupID); err != nil {
		return errors.Wrap(err, errStart)
	}
	if s.notify != nil {
		s.notify(tenantID, groupID)
	}
	return nil
}
