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
	"net/url"

	"github.com/pkg/errors"

	"github.com/scalecore/converger/internal/model"
)

// CloudLoadBalancers wraps a Client for the CLOUD_LOAD_BALANCERS
// endpoints of §6.
type CloudLoadBalancers struct{ c *Client }

// NewCloudLoadBalancers returns a CloudLoadBalancers bound to c.
func NewCloudLoadBalancers(c *Client) CloudLoadBalancers { return CloudLoadBalancers{c: c} }

type nodePayload struct {
	Address   string             `json:"address"`
	Port      int                `json:"port"`
	Condition model.CLBCondition `json:"condition"`
	Type      model.CLBNodeType  `json:"type"`
	Weight    int                `json:"weight"`
}

type bulkAddRequest struct {
	Nodes []nodePayload `json:"nodes"`
}

// AddNodes issues the bulk POST /loadbalancers/{id}/nodes of §6,
// returning the provider-assigned node id for each added node, in the
// same order as nodes.
func (l CloudLoadBalancers) AddNodes(ctx context.Context, lbID string, nodes []model.CLBNodeSpec) ([]string, error) {
	req := bulkAddRequest{Nodes: make([]nodePayload, len(nodes))}
	for i, n := range nodes {
		req.Nodes[i] = nodePayload{
			Address:   n.Address,
			Port:      n.Description.Port,
			Condition: n.Description.Condition,
			Type:      n.Description.NodeType,
			Weight:    n.Description.Weight,
		}
	}

	resp, err := l.c.Do(ctx, Request{
		Service:      CloudLoadBalancers,
		Method:       http.MethodPost,
		Path:         fmt.Sprintf("/loadbalancers/%s/nodes", lbID),
		Body:         req,
		JSONResponse: true,
		Success:      func(r *http.Response) bool { return r.StatusCode == http.StatusAccepted },
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot add nodes to load balancer")
	}

	m, ok := resp.Parsed.(map[string]any)
	if !ok {
		return nil, errors.New("unexpected add-nodes response shape")
	}
	rawNodes, _ := m["nodes"].([]any)
	ids := make([]string, 0, len(rawNodes))
	for _, n := range rawNodes {
		obj, ok := n.(map[string]any)
		if !ok {
			continue
		}
		ids = append(ids, asString(obj["id"]))
	}
	return ids, nil
}

// RemoveNodes issues the bulk DELETE /loadbalancers/{id}/nodes?id=...
// of §6.
func (l CloudLoadBalancers) RemoveNodes(ctx context.Context, lbID string, nodeIDs []string) error {
	q := url.Values{}
	for _, id := range nodeIDs {
		q.Add("id", id)
	}
	_, err := l.c.Do(ctx, Request{
		Service: CloudLoadBalancers,
		Method:  http.MethodDelete,
		Path:    fmt.Sprintf("/loadbalancers/%s/nodes", lbID),
		Query:   q,
		Success: func(r *http.Response) bool { return r.StatusCode == http.StatusAccepted },
	})
	return errors.Wrap(err, "cannot remove nodes from load balancer")
}

// ChangeNode issues PUT /loadbalancers/{id}/nodes/{id} to update the
// mutable fields (weight, condition, type) of an existing node.
func (l CloudLoadBalancers) ChangeNode(ctx context.Context, lbID, nodeID string, weight int, cond model.CLBCondition, nt model.CLBNodeType) error {
	body := map[string]any{
		"node": map[string]any{"condition": cond, "weight": weight, "type": nt},
	}
	_, err := l.c.Do(ctx, Request{
		Service: CloudLoadBalancers,
		Method:  http.MethodPut,
		Path:    fmt.Sprintf("/loadbalancers/%s/nodes/%s", lbID, nodeID),
		Body:    body,
		Success: func(r *http.Response) bool { return r.StatusCode == http.StatusAccepted },
	})
	return errors.Wrap(err, "cannot change load balancer node")
}

// GetNodes issues GET /loadbalancers/{id}/nodes, returning the observed
// nodes for lbID.
func (l CloudLoadBalancers) GetNodes(ctx context.Context, lbID string) ([]model.CLBNode, error) {
	resp, err := l.c.Do(ctx, Request{
		Service:      CloudLoadBalancers,
		Method:       http.MethodGet,
		Path:         fmt.Sprintf("/loadbalancers/%s/nodes", lbID),
		JSONResponse: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot list load balancer nodes")
	}

	m, ok := resp.Parsed.(map[string]any)
	if !ok {
		return nil, errors.New("unexpected list-nodes response shape")
	}
	raw, _ := m["nodes"].([]any)
	out := make([]model.CLBNode, 0, len(raw))
	for _, n := range raw {
		obj, ok := n.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, model.CLBNode{
			ID:      asString(obj["id"]),
			Address: asString(obj["address"]),
			Description: model.CLBDescription{
				LBID:      lbID,
				Port:      asInt(obj["port"]),
				Weight:    asInt(obj["weight"]),
				Condition: model.CLBCondition(asString(obj["condition"])),
				NodeType:  model.CLBNodeType(asString(obj["type"])),
			},
		})
	}
	return out, nil
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
