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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRegistry returns a fixed entry list, letting partitioner tests
// exercise the filtering logic without a Redis backing store.
type stubRegistry struct {
	entries []Entry
}

func (s stubRegistry) CreateOrSet(context.Context, string, string) error { return nil }
func (s stubRegistry) GetChildrenWithStats(context.Context) ([]Entry, error) {
	return s.entries, nil
}
func (s stubRegistry) DeleteNode(context.Context, string, string, int64) (bool, error) {
	return false, nil
}
func (s stubRegistry) ForceDelete(context.Context, string, string) error { return nil }

// TestPartitionerFiltersByBucket is §8 scenario 5 verbatim: children
// {00_gr1@v0, 00_gr2@v3, 01_gr3@v5}, bucket function sha1(tenant) mod 10
// with sha1("00") mod 10 = 6 and sha1("01") mod 10 = 1,
// get_my_divergent_groups([6]) returns exactly the two tenant-"00"
// entries in listing order.
func TestPartitionerFiltersByBucket(t *testing.T) {
	reg := stubRegistry{entries: []Entry{
		{Tenant: "00", Group: "gr1", Version: 0},
		{Tenant: "00", Group: "gr2", Version: 3},
		{Tenant: "01", Group: "gr3", Version: 5},
	}}

	bucketOfTenant := map[string]int{"00": 6, "01": 1}
	bucketFn := func(tenantID, _ string) int { return bucketOfTenant[tenantID] }

	p := NewPartitioner(reg, 10, bucketFn)
	mine, err := p.GetMyDivergentGroups(context.Background(), map[int]struct{}{6: {}})
	require.NoError(t, err)

	require.Len(t, mine, 2)
	assert.Equal(t, Entry{Tenant: "00", Group: "gr1", Version: 0}, mine[0])
	assert.Equal(t, Entry{Tenant: "00", Group: "gr2", Version: 3}, mine[1])
}

func TestPartitionerOwningNoBucketsReturnsNothing(t *testing.T) {
	reg := stubRegistry{entries: []Entry{{Tenant: "00", Group: "gr1", Version: 0}}}
	p := NewPartitioner(reg, 10, func(string, string) int { return 6 })

	mine, err := p.GetMyDivergentGroups(context.Background(), map[int]struct{}{})
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestDefaultBucketFuncIsDeterministicAndInRange(t *testing.T) {
	fn := DefaultBucketFunc(DefaultBuckets)
	b1 := fn("tenant-a", "group-1")
	b2 := fn("tenant-a", "group-1")
	assert.Equal(t, b1, b2)
	assert.GreaterOrEqual(t, b1, 0)
	assert.Less(t, b1, DefaultBuckets)
}
