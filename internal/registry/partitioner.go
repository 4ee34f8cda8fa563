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
	"crypto/sha1" //nolint:gosec // bucket assignment, not a security boundary.
	"encoding/binary"

	"github.com/pkg/errors"
)

// DefaultBuckets is the partitioner's default bucket count (§4.4).
const DefaultBuckets = 10

// BucketFunc assigns a (tenant, group) pair to a bucket index in
// [0, numBuckets). DefaultBucketFunc implements §4.4's
// hash(tenant_id + group_id) mod N.
type BucketFunc func(tenantID, groupID string) int

// DefaultBucketFunc returns the bucket function described in §4.4: a
// SHA-1 digest of the concatenated tenant and group ids, reduced mod
// numBuckets.
func DefaultBucketFunc(numBuckets int) BucketFunc {
	return func(tenantID, groupID string) int {
		sum := sha1.Sum([]byte(tenantID + groupID))
		h := binary.BigEndian.Uint64(sum[:8])
		return int(h % uint64(numBuckets))
	}
}

const errGetDivergent = "partitioner: get divergent groups failed"

// Partitioner divides the registry's key space into a fixed number of
// buckets and, given the subset a worker currently owns (assigned by an
// external membership protocol), filters registry entries down to the
// ones that worker is responsible for converging.
type Partitioner struct {
	registry Registry
	buckets  int
	bucketFn BucketFunc
}

// NewPartitioner builds a Partitioner with numBuckets total buckets. A nil
// bucketFn defaults to DefaultBucketFunc(numBuckets).
func NewPartitioner(reg Registry, numBuckets int, bucketFn BucketFunc) *Partitioner {
	if bucketFn == nil {
		bucketFn = DefaultBucketFunc(numBuckets)
	}
	return &Partitioner{registry: reg, buckets: numBuckets, bucketFn: bucketFn}
}

// BucketOf exposes the partitioner's bucket assignment for a (tenant,
// group) pair, e.g. so the converger can tag a log record with it.
func (p *Partitioner) BucketOf(tenantID, groupID string) int {
	return p.bucketFn(tenantID, groupID)
}

// GetMyDivergentGroups implements §4.4: list the registry and return the
// entries whose bucket falls in ownedBuckets, preserving the registry's
// listing order.
func (p *Partitioner) GetMyDivergentGroups(ctx context.Context, ownedBuckets map[int]struct{}) ([]Entry, error) {
	entries, err := p.registry.GetChildrenWithStats(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errGetDivergent)
	}

	mine := make([]Entry, 0, len(entries))
	for _, e := range entries {
		bucket := p.bucketFn(e.Tenant, e.Group)
		if _, owned := ownedBuckets[bucket]; owned {
			mine = append(mine, e)
		}
	}
	return mine, nil
}
