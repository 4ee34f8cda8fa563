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

// Package auth defines the Authenticator contract (§6) and a token cache
// keyed by tenant that is safe for concurrent reads, with refreshes
// serialized per tenant (§5). The cache is not keyed by service: one
// cached token and service catalog serve every service type of a tenant.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ServiceEndpoint is one region's published URL for a catalog service.
type ServiceEndpoint struct {
	Region    string
	PublicURL string
}

// CatalogEntry is a named service and its regional endpoints.
type CatalogEntry struct {
	Name      string
	Endpoints []ServiceEndpoint
}

// ServiceCatalog is the auth-time map from service name to region → URL
// (§6).
type ServiceCatalog struct {
	Entries []CatalogEntry
}

// Endpoint looks up the public URL for serviceName in region. It is the
// base-URL resolution step of §4.2.2.
func (c ServiceCatalog) Endpoint(serviceName, region string) (string, error) {
	for _, e := range c.Entries {
		if e.Name != serviceName {
			continue
		}
		for _, ep := range e.Endpoints {
			if ep.Region == region {
				return ep.PublicURL, nil
			}
		}
		return "", errors.Errorf("service %q has no endpoint in region %q", serviceName, region)
	}
	return "", errors.Errorf("service catalog has no entry for %q", serviceName)
}

// Authenticator is the opaque auth collaborator of §6: it authenticates a
// tenant, returning a token and service catalog, and can invalidate a
// cached token on auth failure.
type Authenticator interface {
	Authenticate(ctx context.Context, tenantID string) (token string, catalog ServiceCatalog, err error)
	InvalidateToken(ctx context.Context, tenantID string)
}

// TokenSource performs the actual, implementation-specific authentication
// (network call to the identity provider). CachingAuthenticator wraps one
// of these with the cache described in §5.
type TokenSource interface {
	Authenticate(ctx context.Context, tenantID string) (token string, catalog ServiceCatalog, expiresAt time.Time, err error)
}

type cacheEntry struct {
	token     string
	catalog   ServiceCatalog
	expiresAt time.Time
}

// CachingAuthenticator caches a valid token per tenant, refreshing only
// when the cache is empty, expired, or was just invalidated (§4.2.1,
// §5). A per-tenant mutex serializes refreshes so concurrent callers
// don't stampede the identity provider.
type CachingAuthenticator struct {
	source TokenSource
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
	locks   map[string]*sync.Mutex
}

// NewCachingAuthenticator wraps source with a tenant-keyed cache. now
// defaults to time.Now.
func NewCachingAuthenticator(source TokenSource, now func() time.Time) *CachingAuthenticator {
	if now == nil {
		now = time.Now
	}
	return &CachingAuthenticator{
		source:  source,
		now:     now,
		entries: make(map[string]cacheEntry),
		locks:   make(map[string]*sync.Mutex),
	}
}

func (c *CachingAuthenticator) lockFor(tenantID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[tenantID] = l
	}
	return l
}

// Authenticate returns a cached, still-valid token when one exists,
// otherwise refreshes via the underlying TokenSource (§4.2.1).
func (c *CachingAuthenticator) Authenticate(ctx context.Context, tenantID string) (string, ServiceCatalog, error) {
	c.mu.RLock()
	entry, ok := c.entries[tenantID]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expiresAt) {
		return entry.token, entry.catalog, nil
	}

	lock := c.lockFor(tenantID)
	lock.Lock()
	defer lock.Unlock()

	// Re-check: another goroutine may have refreshed while we waited.
	c.mu.RLock()
	entry, ok = c.entries[tenantID]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expiresAt) {
		return entry.token, entry.catalog, nil
	}

	token, catalog, expiresAt, err := c.source.Authenticate(ctx, tenantID)
	if err != nil {
		return "", ServiceCatalog{}, errors.Wrap(err, "cannot authenticate tenant")
	}

	c.mu.Lock()
	c.entries[tenantID] = cacheEntry{token: token, catalog: catalog, expiresAt: expiresAt}
	c.mu.Unlock()

	return token, catalog, nil
}

// InvalidateToken drops the cached token for tenantID, forcing the next
// Authenticate to refresh (§4.2.4, on reauth-code responses).
func (c *CachingAuthenticator) InvalidateToken(_ context.Context, tenantID string) {
	c.mu.Lock()
	delete(c.entries, tenantID)
	c.mu.Unlock()
}
