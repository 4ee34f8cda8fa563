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

package auth

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls int32
}

func (s *countingSource) Authenticate(_ context.Context, tenantID string) (string, ServiceCatalog, time.Time, error) {
	atomic.AddInt32(&s.calls, 1)
	return "token-" + tenantID, ServiceCatalog{
		Entries: []CatalogEntry{{Name: "CLOUD_SERVERS", Endpoints: []ServiceEndpoint{{Region: "DFW", PublicURL: "http://dfw.example"}}}},
	}, time.Now().Add(time.Hour), nil
}

func TestCachingAuthenticatorReusesValidToken(t *testing.T) {
	src := &countingSource{}
	a := NewCachingAuthenticator(src, nil)

	tok1, _, err := a.Authenticate(context.Background(), "t1")
	require.NoError(t, err)
	tok2, _, err := a.Authenticate(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, tok1, tok2)
	assert.EqualValues(t, 1, atomic.LoadInt32(&src.calls))
}

func TestCachingAuthenticatorRefreshesAfterInvalidate(t *testing.T) {
	src := &countingSource{}
	a := NewCachingAuthenticator(src, nil)

	_, _, err := a.Authenticate(context.Background(), "t1")
	require.NoError(t, err)
	a.InvalidateToken(context.Background(), "t1")
	_, _, err = a.Authenticate(context.Background(), "t1")
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(&src.calls))
}

func TestCachingAuthenticatorRefreshesAfterExpiry(t *testing.T) {
	src := &countingSource{}
	clock := time.Now()
	a := NewCachingAuthenticator(src, func() time.Time { return clock })

	_, _, err := a.Authenticate(context.Background(), "t1")
	require.NoError(t, err)
	clock = clock.Add(2 * time.Hour)
	_, _, err = a.Authenticate(context.Background(), "t1")
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(&src.calls))
}

func TestCachingAuthenticatorIsolatesTenants(t *testing.T) {
	src := &countingSource{}
	a := NewCachingAuthenticator(src, nil)

	tok1, _, _ := a.Authenticate(context.Background(), "t1")
	tok2, _, _ := a.Authenticate(context.Background(), "t2")
	assert.NotEqual(t, tok1, tok2)
}

func TestServiceCatalogEndpointNotFound(t *testing.T) {
	c := ServiceCatalog{Entries: []CatalogEntry{{Name: "CLOUD_SERVERS", Endpoints: []ServiceEndpoint{{Region: "DFW", PublicURL: "http://dfw"}}}}}

	_, err := c.Endpoint("CLOUD_SERVERS", "ORD")
	assert.Error(t, err)

	_, err = c.Endpoint("CLOUD_LOAD_BALANCERS", "DFW")
	assert.Error(t, err)

	url, err := c.Endpoint("CLOUD_SERVERS", "DFW")
	require.NoError(t, err)
	assert.Equal(t, "http://dfw", url)
}
