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

// Package registry implements the divergence registry (§4.4, §6): a
// hierarchical key-value store with ZooKeeper-compatible znode semantics —
// content plus a monotone version counter, and a conditional delete keyed
// on that version — backed by Redis rather than a ZK ensemble, since no
// ZK/etcd client exists anywhere in the retrieval pack this module was
// built from.
package registry

import (
	"context"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	errCreateOrSet  = "registry: create-or-set failed"
	errListChildren = "registry: list children failed"
	errDeleteNode   = "registry: delete node failed"
	errCorruptEntry = "registry: corrupt entry"

	fieldTenant  = "tenant"
	fieldGroup   = "group"
	fieldContent = "content"
	fieldVersion = "version"

	divergentContent = "dirty"

	membersSuffix = ":members"
)

// Entry is a single child of the registry root: the (tenant, group) pair
// it names and the version observed when it was listed.
type Entry struct {
	Tenant  string
	Group   string
	Version int64
}

// Registry is the seam between the converger and its backing store — the
// three operations of §6, nothing more. A ZK-backed implementation could
// satisfy this interface without changing any caller.
type Registry interface {
	// CreateOrSet idempotently marks (tenantID, groupID) divergent,
	// bumping its version counter.
	CreateOrSet(ctx context.Context, tenantID, groupID string) error
	// GetChildrenWithStats returns every divergent entry with the version
	// read for it, ordered by (tenant, group) ascending.
	GetChildrenWithStats(ctx context.Context) ([]Entry, error)
	// DeleteNode conditionally clears (tenantID, groupID) iff its current
	// version still equals expectedVersion. A version mismatch is a
	// no-op, not an error: it means the entry was marked divergent again
	// after it was read, and that mark must survive (§8).
	DeleteNode(ctx context.Context, tenantID, groupID string, expectedVersion int64) (deleted bool, err error)
	// ForceDelete clears (tenantID, groupID) regardless of its current
	// version. Used only for the terminal, group-is-gone case of
	// §4.5.4.g, where no future mark could ever be meaningful again.
	ForceDelete(ctx context.Context, tenantID, groupID string) error
}

// RedisRegistry is the Registry implementation described in SPEC_FULL.md
// §13: one Redis hash per entry (fields tenant, group, content, version)
// plus a set tracking live member keys so GetChildrenWithStats doesn't
// need a KEYS scan.
type RedisRegistry struct {
	rdb  *redis.Client
	root string
}

// New returns a RedisRegistry rooted at root (conventionally
// "/groups/divergent", per §6).
func New(rdb *redis.Client, root string) *RedisRegistry {
	return &RedisRegistry{rdb: rdb, root: root}
}

func (r *RedisRegistry) key(tenantID, groupID string) string {
	return r.root + "/" + tenantID + "_" + groupID
}

func (r *RedisRegistry) membersKey() string {
	return r.root + membersSuffix
}

// CreateOrSet implements §6's CreateOrSet(path, content): a HSET of the
// fixed "dirty" content plus an HINCRBY on the version field, pipelined so
// both land atomically from Redis's perspective.
func (r *RedisRegistry) CreateOrSet(ctx context.Context, tenantID, groupID string) error {
	key := r.key(tenantID, groupID)

	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, fieldTenant, tenantID, fieldGroup, groupID, fieldContent, divergentContent)
	pipe.HIncrBy(ctx, key, fieldVersion, 1)
	pipe.SAdd(ctx, r.membersKey(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, errCreateOrSet)
	}
	return nil
}

// GetChildrenWithStats implements §6's GetChildrenWithStats(path): every
// member of the tracked set, each read back as an Entry. The set and each
// entry are read with separate commands, so the listing is not one atomic
// snapshot: an entry marked or cleared while the listing runs may or may
// not appear, and each version is the one read for that entry. Members whose
// hash has already expired (raced with a delete) are skipped rather than
// surfaced as corrupt, since that race is expected under concurrent use.
func (r *RedisRegistry) GetChildrenWithStats(ctx context.Context) ([]Entry, error) {
	keys, err := r.rdb.SMembers(ctx, r.membersKey()).Result()
	if err != nil {
		return nil, errors.Wrap(err, errListChildren)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		fields, err := r.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, errors.Wrap(err, errListChildren)
		}
		if len(fields) == 0 {
			continue
		}
		version, err := strconv.ParseInt(fields[fieldVersion], 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, errCorruptEntry)
		}
		entries = append(entries, Entry{Tenant: fields[fieldTenant], Group: fields[fieldGroup], Version: version})
	}
	return entries, nil
}

// DeleteNode implements §6's DeleteNode(path, expected_version): a
// WATCH/MULTI transaction that only deletes when the stored version still
// matches expectedVersion, giving the compare-and-clear property §8
// requires.
func (r *RedisRegistry) DeleteNode(ctx context.Context, tenantID, groupID string, expectedVersion int64) (bool, error) {
	key := r.key(tenantID, groupID)
	deleted := false

	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldVersion).Result()
		if errors.Is(err, redis.Nil) {
			return nil // already gone: nothing to do, not an error.
		}
		if err != nil {
			return err
		}
		version, err := strconv.ParseInt(current, 10, 64)
		if err != nil {
			return errors.Wrap(err, errCorruptEntry)
		}
		if version != expectedVersion {
			return nil // stale read: a fresher mark must survive (§8).
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, r.membersKey(), key)
			return nil
		})
		if err == nil {
			deleted = true
		}
		return err
	}

	if err := r.rdb.Watch(ctx, txf, key); err != nil {
		return false, errors.Wrap(err, errDeleteNode)
	}
	return deleted, nil
}

// ForceDelete clears (tenantID, groupID) with no version check.
func (r *RedisRegistry) ForceDelete(ctx context.Context, tenantID, groupID string) error {
	key := r.key(tenantID, groupID)
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, r.membersKey(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, errDeleteNode)
	}
	return nil
}
