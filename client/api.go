package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	flowise "github.com/goliatone/go-flowise"
)

// Record is a JSON object returned by the platform.
type Record map[string]any

// PredictionRequest is the body of a prediction call.
type PredictionRequest struct {
	Question       string              `json:"question"`
	OverrideConfig map[string]any      `json:"overrideConfig,omitempty"`
	History        []map[string]string `json:"history,omitempty"`
}

func (c *Client) ListChatflows(ctx context.Context) ([]Record, error) {
	var out []Record
	err := c.do(ctx, http.MethodGet, "/api/v1/chatflows", nil, &out)
	return out, err
}

func (c *Client) GetChatflow(ctx context.Context, id string) (Record, error) {
	out := Record{}
	err := c.do(ctx, http.MethodGet, "/api/v1/chatflows/"+segment(id), nil, &out)
	return out, err
}

// CreateChatflow posts a wrapped flow item (id, name, flowData, type, ...).
func (c *Client) CreateChatflow(ctx context.Context, item flowise.Item) (Record, error) {
	out := Record{}
	err := c.do(ctx, http.MethodPost, "/api/v1/chatflows", item, &out)
	return out, err
}

func (c *Client) UpdateChatflow(ctx context.Context, id string, item flowise.Item) (Record, error) {
	out := Record{}
	err := c.do(ctx, http.MethodPut, "/api/v1/chatflows/"+segment(id), item, &out)
	return out, err
}

func (c *Client) DeleteChatflow(ctx context.Context, id string) (Record, error) {
	out := Record{}
	err := c.do(ctx, http.MethodDelete, "/api/v1/chatflows/"+segment(id), nil, &out)
	return out, err
}

// ValidateChatflow runs the platform's own validation on a saved flow. Each
// item names a node and carries its issues.
func (c *Client) ValidateChatflow(ctx context.Context, id string) ([]map[string]any, error) {
	var out []map[string]any
	err := c.do(ctx, http.MethodGet, "/api/v1/validation/"+segment(id), nil, &out)
	if out == nil && err == nil {
		out = []map[string]any{}
	}
	return out, err
}

// ImportData bulk imports an envelope.
func (c *Client) ImportData(ctx context.Context, env *flowise.Envelope) (any, error) {
	if env == nil {
		env = flowise.NewEnvelope()
	}
	var out any
	err := c.do(ctx, http.MethodPost, "/api/v1/export-import/import", env, &out)
	if out == nil && err == nil {
		out = Record{}
	}
	return out, err
}

// ExportData exports the whole workspace.
func (c *Client) ExportData(ctx context.Context) (*flowise.Envelope, error) {
	env := flowise.NewEnvelope()
	if err := c.do(ctx, http.MethodPost, "/api/v1/export-import/export", nil, env); err != nil {
		return nil, err
	}
	return env, nil
}

func (c *Client) ListTools(ctx context.Context) ([]Record, error) {
	var out []Record
	err := c.do(ctx, http.MethodGet, "/api/v1/tools", nil, &out)
	return out, err
}

func (c *Client) GetTool(ctx context.Context, id string) (Record, error) {
	out := Record{}
	err := c.do(ctx, http.MethodGet, "/api/v1/tools/"+segment(id), nil, &out)
	return out, err
}

// ListNodes returns every node-type schema the platform knows. Schemas
// that fail to decode are logged and left out.
func (c *Client) ListNodes(ctx context.Context) ([]*flowise.Schema, error) {
	return c.listSchemas(ctx, "/api/v1/nodes")
}

func (c *Client) GetNode(ctx context.Context, name string) (*flowise.Schema, error) {
	var out flowise.Schema
	if err := c.do(ctx, http.MethodGet, "/api/v1/nodes/"+segment(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) NodesByCategory(ctx context.Context, category string) ([]*flowise.Schema, error) {
	return c.listSchemas(ctx, "/api/v1/nodes/category/"+segment(category))
}

func (c *Client) listSchemas(ctx context.Context, path string) ([]*flowise.Schema, error) {
	var raws []json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &raws); err != nil {
		return nil, err
	}
	out := make([]*flowise.Schema, 0, len(raws))
	for i, raw := range raws {
		schema, err := flowise.DecodeSchema(raw)
		if err != nil {
			c.logger.Warn("GET %s: skipping schema %d (%s): %v", path, i, schemaName(raw), err)
			continue
		}
		out = append(out, schema)
	}
	return out, nil
}

// schemaName pulls the name out of a schema that failed to decode.
func schemaName(raw json.RawMessage) string {
	var named struct {
		Name any `json:"name"`
	}
	if err := json.Unmarshal(raw, &named); err != nil || named.Name == nil {
		return "unnamed"
	}
	return fmt.Sprint(named.Name)
}

// CreatePrediction sends a question to a deployed flow. The answer is
// usually an object with a "text" field but some flows reply with a bare
// JSON string.
func (c *Client) CreatePrediction(ctx context.Context, chatflowID string, req PredictionRequest) (any, error) {
	var out any
	err := c.do(ctx, http.MethodPost, "/api/v1/prediction/"+segment(chatflowID), req, &out)
	if err == nil && out == nil {
		out = Record{}
	}
	return out, err
}
