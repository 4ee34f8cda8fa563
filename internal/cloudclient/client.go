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

// Package cloudclient is the authenticated, service-typed HTTP client
// described in §4.2: given a service type, method, path, optional body
// and query, it authenticates, resolves the service's regional base URL
// from the tenant's service catalog, issues the request, and classifies
// the response — invalidating the cached token on a reauth status (401/403
// by default) and routing failures through a per-service error parser.
package cloudclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/scalecore/converger/internal/auth"
)

// ServiceType names a provider service in the tenant's service catalog.
type ServiceType string

// Service types the core consumes (§6).
const (
	CloudServers       ServiceType = "CLOUD_SERVERS"
	CloudLoadBalancers ServiceType = "CLOUD_LOAD_BALANCERS"
)

// APIError is returned for any response the success predicate rejects, or
// for a reauth-triggering status. It carries the raw response body — no
// JSON parsing is attempted on an error path regardless of JSONResponse.
type APIError struct {
	ServiceType ServiceType
	Method      string
	URL         string
	StatusCode  int
	Body        []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, string(e.Body))
}

// ErrorParser inspects an APIError and may return a more specific,
// service-typed error. If it returns nil, the original APIError is
// re-raised (§4.2).
type ErrorParser func(*APIError) error

// SuccessPredicate reports whether resp represents success. The default
// (used when Request.Success is nil) accepts exactly status 200.
type SuccessPredicate func(resp *http.Response) bool

func defaultSuccess(resp *http.Response) bool { return resp.StatusCode == http.StatusOK }

// Request describes a single provider API call (§4.2, §6).
type Request struct {
	Service      ServiceType
	Method       string
	Path         string
	Query        url.Values
	Body         any
	JSONResponse bool
	Success      SuccessPredicate
	// URLOverride supplies a literal base URL, bypassing service-catalog
	// region lookup (§4.2.2).
	URLOverride string
}

// Response is what a successful Request yields: the raw *http.Response
// (headers, status) and, if JSONResponse was set, the parsed body as
// json.RawMessage-compatible any; otherwise the raw body bytes.
type Response struct {
	HTTP   *http.Response
	Parsed any
}

// Config carries the client's tunables (§4.2.4, §10.3).
type Config struct {
	// Region selects which service-catalog endpoint entry to use.
	Region string
	// ReauthCodes lists the statuses that invalidate the cached token and
	// fail as APIError (default {401, 403}).
	ReauthCodes map[int]struct{}
	// ErrorParsers is the per-service-type error-parser table (§4.2).
	ErrorParsers map[ServiceType]ErrorParser
}

// DefaultReauthCodes is the §4.2.4 default.
func DefaultReauthCodes() map[int]struct{} {
	return map[int]struct{}{http.StatusUnauthorized: {}, http.StatusForbidden: {}}
}

// Client performs Requests against provider APIs on behalf of a tenant.
type Client struct {
	authn  auth.Authenticator
	http   *retryablehttp.Client
	cfg    Config
	tenant string
}

// New returns a Client for tenant, authenticating via authn and issuing
// requests with httpClient (a *retryablehttp.Client preconfigured with
// the caller's desired timeout and retry policy — the retry/backoff
// concern of §4.2 lives entirely in this transport, not here).
func New(tenant string, authn auth.Authenticator, httpClient *retryablehttp.Client, cfg Config) *Client {
	if cfg.ReauthCodes == nil {
		cfg.ReauthCodes = DefaultReauthCodes()
	}
	return &Client{authn: authn, http: httpClient, cfg: cfg, tenant: tenant}
}

// Do issues req, following the six steps of §4.2.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	token, catalog, err := c.authn.Authenticate(ctx, c.tenant)
	if err != nil {
		return nil, errors.Wrap(err, "cannot authenticate")
	}

	base := req.URLOverride
	if base == "" {
		base, err = catalog.Endpoint(string(req.Service), c.cfg.Region)
		if err != nil {
			return nil, errors.Wrap(err, "cannot resolve service endpoint")
		}
	}

	fullURL := base + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var bodyBytes []byte
	if req.Body != nil {
		bodyBytes, err = json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrap(err, "cannot encode request body")
		}
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, fullURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "cannot build request")
	}
	httpReq.Header.Set("X-Auth-Token", token)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "cannot perform request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read response body")
	}

	if _, reauth := c.cfg.ReauthCodes[resp.StatusCode]; reauth {
		c.authn.InvalidateToken(ctx, c.tenant)
		apiErr := &APIError{ServiceType: req.Service, Method: req.Method, URL: fullURL, StatusCode: resp.StatusCode, Body: body}
		return nil, c.parseOrRaise(req.Service, apiErr)
	}

	success := req.Success
	if success == nil {
		success = defaultSuccess
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if !success(resp) {
		apiErr := &APIError{ServiceType: req.Service, Method: req.Method, URL: fullURL, StatusCode: resp.StatusCode, Body: body}
		return nil, c.parseOrRaise(req.Service, apiErr)
	}

	out := &Response{HTTP: resp}
	if req.JSONResponse {
		var parsed any
		if len(body) > 0 {
			if err := json.Unmarshal(body, &parsed); err != nil {
				return nil, errors.Wrap(err, "cannot decode JSON response")
			}
		}
		out.Parsed = parsed
	} else {
		out.Parsed = body
	}
	return out, nil
}

// parseOrRaise consults the per-service error parser table (§4.2). If no
// parser is registered for svc, or the parser returns nil, the original
// APIError is returned unchanged.
func (c *Client) parseOrRaise(svc ServiceType, apiErr *APIError) error {
	if c.cfg.ErrorParsers == nil {
		return apiErr
	}
	parser, ok := c.cfg.ErrorParsers[svc]
	if !ok {
		return apiErr
	}
	if specific := parser(apiErr); specific != nil {
		return specific
	}
	return apiErr
}
