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

// Package groupstore is a reference converger.GroupStore: persistent
// group-configuration storage is an external collaborator (§1) owned by
// the admission API, not the core. Memory exists so cmd/converger has
// something to run against standalone; a real deployment points the
// converger at that external service's client instead.
package groupstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mitchellh/copystructure"

	"github.com/scalecore/converger/internal/converger"
	"github.com/scalecore/converger/internal/model"
)

// Memory is a process-local, concurrency-safe converger.GroupStore.
type Memory struct {
	mu     sync.RWMutex
	config map[string]model.GroupConfig
	state  map[string]model.GroupState
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{config: map[string]model.GroupConfig{}, state: map[string]model.GroupState{}}
}

// Put seeds cfg, making its group known to the store.
func (m *Memory) Put(cfg model.GroupConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cfg.TenantID + "/" + cfg.GroupID
	m.config[key] = cfg
	if _, ok := m.state[key]; !ok {
		m.state[key] = model.GroupState{TenantID: cfg.TenantID, GroupID: cfg.GroupID, Name: cfg.Name}
	}
}

// GetConfig implements converger.GroupStore.
func (m *Memory) GetConfig(_ context.Context, tenantID, groupID string) (model.GroupConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.config[tenantID+"/"+groupID]
	if !ok {
		return model.GroupConfig{}, converger.NoSuchScalingGroupError{TenantID: tenantID, GroupID: groupID}
	}
	v, err := copystructure.Copy(cfg)
	if err != nil {
		return model.GroupConfig{}, err
	}
	return v.(model.GroupConfig), nil
}

// GetState implements converger.GroupStore.
func (m *Memory) GetState(_ context.Context, tenantID, groupID string) (model.GroupState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.state[tenantID+"/"+groupID]
	if !ok {
		return model.GroupState{TenantID: tenantID, GroupID: groupID}, nil
	}
	return s.Clone(), nil
}

// SaveActive implements converger.GroupStore.
func (m *Memory) SaveActive(_ context.Context, tenantID, groupID string, active map[string]json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tenantID + "/" + groupID
	s := m.state[key]
	s.TenantID, s.GroupID = tenantID, groupID
	s.Active = active
	m.state[key] = s
	return nil
}
