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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityTokenSourceParsesTokenAndCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access": {
				"token": {"id": "abc123", "expires": "2099-01-01T00:00:00Z"},
				"serviceCatalog": [
					{"name": "CLOUD_SERVERS", "endpoints": [{"region": "DFW", "publicURL": "http://dfw.example/servers"}]}
				]
			}
		}`))
	}))
	defer srv.Close()

	src := NewIdentityTokenSource(srv.URL, "user", "key", nil)
	token, catalog, expiresAt, err := src.Authenticate(context.Background(), "tenant-1")

	require.NoError(t, err)
	assert.Equal(t, "abc123", token)
	assert.Equal(t, 2099, expiresAt.Year())
	require.Len(t, catalog.Entries, 1)
	url, err := catalog.Endpoint("CLOUD_SERVERS", "DFW")
	require.NoError(t, err)
	assert.Equal(t, "http://dfw.example/servers", url)
}

func TestIdentityTokenSourceRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	src := NewIdentityTokenSource(srv.URL, "user", "key", nil)
	_, _, _, err := src.Authenticate(context.Background(), "tenant-1")
	assert.Error(t, err)
}

func TestIdentityTokenSourceRejectsAlreadyExpiredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access": {"token": {"id": "abc123", "expires": "2000-01-01T00:00:00Z"}}}`))
	}))
	defer srv.Close()

	src := NewIdentityTokenSource(srv.URL, "user", "key", nil)
	_, _, _, err := src.Authenticate(context.Background(), "tenant-1")
	assert.Error(t, err)
}
