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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// IdentityTokenSource is the concrete TokenSource that authenticates
// against the identity service's token endpoint. It wraps each response
// in an oauth2.Token so expiry bookkeeping follows the same shape as any
// other oauth2-backed client in this codebase, even though the identity
// service's wire format predates OAuth2 and carries its own service
// catalog alongside the token.
type IdentityTokenSource struct {
	endpoint string
	username string
	apiKey   string
	http     *http.Client
}

// NewIdentityTokenSource returns a TokenSource that POSTs tenant
// credentials to endpoint (the identity service's token URL) using
// httpClient. A nil httpClient uses http.DefaultClient.
func NewIdentityTokenSource(endpoint, username, apiKey string, httpClient *http.Client) *IdentityTokenSource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &IdentityTokenSource{endpoint: endpoint, username: username, apiKey: apiKey, http: httpClient}
}

type identityAuthRequest struct {
	Auth struct {
		APIKeyCredentials struct {
			Username string `json:"username"`
			APIKey   string `json:"apiKey"`
		} `json:"RAX-KSKEY:apiKeyCredentials"`
		TenantID string `json:"tenantId,omitempty"`
	} `json:"auth"`
}

type identityAuthResponse struct {
	Access struct {
		Token struct {
			ID      string    `json:"id"`
			Expires time.Time `json:"expires"`
		} `json:"token"`
		ServiceCatalog []struct {
			Name      string `json:"name"`
			Endpoints []struct {
				Region    string `json:"region"`
				PublicURL string `json:"publicURL"`
			} `json:"endpoints"`
		} `json:"serviceCatalog"`
	} `json:"access"`
}

// Authenticate implements TokenSource by exchanging the configured
// credentials for a token and service catalog scoped to tenantID.
func (s *IdentityTokenSource) Authenticate(ctx context.Context, tenantID string) (string, ServiceCatalog, time.Time, error) {
	var body identityAuthRequest
	body.Auth.APIKeyCredentials.Username = s.username
	body.Auth.APIKeyCredentials.APIKey = s.apiKey
	body.Auth.TenantID = tenantID

	encoded, err := json.Marshal(body)
	if err != nil {
		return "", ServiceCatalog{}, time.Time{}, errors.Wrap(err, "cannot encode identity request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", ServiceCatalog{}, time.Time{}, errors.Wrap(err, "cannot build identity request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", ServiceCatalog{}, time.Time{}, errors.Wrap(err, "cannot reach identity service")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", ServiceCatalog{}, time.Time{}, errors.Errorf("identity service returned status %d", resp.StatusCode)
	}

	var parsed identityAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", ServiceCatalog{}, time.Time{}, errors.Wrap(err, "cannot decode identity response")
	}

	tok := oauth2.Token{AccessToken: parsed.Access.Token.ID, Expiry: parsed.Access.Token.Expires}
	if !tok.Valid() {
		return "", ServiceCatalog{}, time.Time{}, errors.New("identity service returned an already-expired token")
	}

	catalog := ServiceCatalog{Entries: make([]CatalogEntry, 0, len(parsed.Access.ServiceCatalog))}
	for _, e := range parsed.Access.ServiceCatalog {
		entry := CatalogEntry{Name: e.Name, Endpoints: make([]ServiceEndpoint, 0, len(e.Endpoints))}
		for _, ep := range e.Endpoints {
			entry.Endpoints = append(entry.Endpoints, ServiceEndpoint{Region: ep.Region, PublicURL: ep.PublicURL})
		}
		catalog.Entries = append(catalog.Entries, entry)
	}

	return tok.AccessToken, catalog, tok.Expiry, nil
}
