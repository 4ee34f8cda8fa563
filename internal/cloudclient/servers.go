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

package cloudclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/scalecore/converger/internal/model"
)

// CloudServers wraps a Client for the CLOUD_SERVERS endpoints of §6.
type CloudServers struct{ c *Client }

// NewCloudServers returns a CloudServers bound to c.
func NewCloudServers(c *Client) CloudServers { return CloudServers{c: c} }

type createServerRequest struct {
	Server struct {
		Name      string            `json:"name"`
		ImageRef  string            `json:"imageRef"`
		FlavorRef string            `json:"flavorRef"`
		Metadata  map[string]string `json:"metadata,omitempty"`
	} `json:"server"`
}

type createServerResponse struct {
	Server struct {
		ID string `json:"id"`
	} `json:"server"`
}

// Create issues POST /servers from t, returning the provider-assigned id.
func (s CloudServers) Create(ctx context.Context, name string, t model.ServerTemplate) (string, error) {
	var body createServerRequest
	body.Server.Name = name
	body.Server.ImageRef = t.Image
	body.Server.FlavorRef = t.Flavor
	body.Server.Metadata = t.Metadata

	resp, err := s.c.Do(ctx, Request{
		Service:      CloudServers,
		Method:       http.MethodPost,
		Path:         "/servers",
		Body:         body,
		JSONResponse: true,
		Success: func(r *http.Response) bool {
			return r.StatusCode == http.StatusAccepted || r.StatusCode == http.StatusOK
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "cannot create server")
	}

	m, ok := resp.Parsed.(map[string]any)
	if !ok {
		return "", errors.New("unexpected create-server response shape")
	}
	serverObj, _ := m["server"].(map[string]any)
	id, _ := serverObj["id"].(string)
	if id == "" {
		return "", errors.New("create-server response missing server id")
	}
	return id, nil
}

// Delete issues DELETE /servers/{id}.
func (s CloudServers) Delete(ctx context.Context, serverID string) error {
	_, err := s.c.Do(ctx, Request{
		Service: CloudServers,
		Method:  http.MethodDelete,
		Path:    fmt.Sprintf("/servers/%s", serverID),
		Success: func(r *http.Response) bool { return r.StatusCode == http.StatusNoContent },
	})
	return errors.Wrap(err, "cannot delete server")
}

// SetMetadataItem issues PUT /servers/{id}/metadata/{key}.
func (s CloudServers) SetMetadataItem(ctx context.Context, serverID, key, value string) error {
	body := map[string]map[string]string{"meta": {key: value}}
	_, err := s.c.Do(ctx, Request{
		Service: CloudServers,
		Method:  http.MethodPut,
		Path:    fmt.Sprintf("/servers/%s/metadata/%s", serverID, key),
		Body:    body,
	})
	return errors.Wrap(err, "cannot set server metadata item")
}

// GetServersDetail issues GET /servers/detail and converts the response
// into model.Server values. The conversion of provider status strings to
// model.ServerState and of the "private" network block to PrivateIP are
// the only provider-specific parsing the planner's caller has to do.
func (s CloudServers) GetServersDetail(ctx context.Context) ([]model.Server, error) {
	resp, err := s.c.Do(ctx, Request{
		Service:      CloudServers,
		Method:       http.MethodGet,
		Path:         "/servers/detail",
		JSONResponse: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot list servers")
	}

	m, ok := resp.Parsed.(map[string]any)
	if !ok {
		return nil, errors.New("unexpected servers-detail response shape")
	}
	raw, _ := m["servers"].([]any)
	out := make([]model.Server, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, serverFromJSON(obj))
	}
	return out, nil
}

func serverFromJSON(obj map[string]any) model.Server {
	srv := model.Server{
		ID:             asString(obj["id"]),
		State:          providerStateToModel(asString(obj["status"])),
		LBDescriptions: map[string][]model.CLBDescription{},
	}
	if img, ok := obj["image"].(map[string]any); ok {
		srv.Image = asString(img["id"])
	}
	if fl, ok := obj["flavor"].(map[string]any); ok {
		srv.Flavor = asString(fl["id"])
	}
	if addresses, ok := obj["addresses"].(map[string]any); ok {
		if priv, ok := addresses["private"].([]any); ok {
			for _, a := range priv {
				if addrObj, ok := a.(map[string]any); ok {
					if addr := asString(addrObj["addr"]); addr != "" {
						srv.PrivateIP = addr
						break
					}
				}
			}
		}
	}
	return srv
}

func providerStateToModel(status string) model.ServerState {
	switch status {
	case "BUILD":
		return model.ServerBuild
	case "ACTIVE":
		return model.ServerActive
	case "ERROR":
		return model.ServerError
	case "DELETED":
		return model.ServerDeleted
	default:
		return model.ServerUnknown
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
