package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	flowise "github.com/goliatone/go-flowise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validFlow = `{
  "nodes": [
    {"id": "a", "type": "customNode", "position": {"x": 0, "y": 0}, "data": {}},
    {"id": "b", "type": "customNode", "position": {"x": 300, "y": 0}, "data": {}}
  ],
  "edges": [{"id": "e", "source": "a", "target": "b"}]
}`

type harness struct {
	out    *bytes.Buffer
	errOut *bytes.Buffer
	env    map[string]string
	in     string
}

func newHarness() *harness {
	return &harness{
		out:    &bytes.Buffer{},
		errOut: &bytes.Buffer{},
		env:    map[string]string{},
	}
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	deps := appDeps{
		in:     strings.NewReader(h.in),
		out:    h.out,
		errOut: h.errOut,
		env: func(key string) (string, bool) {
			v, ok := h.env[key]
			return v, ok
		},
	}
	return run(context.Background(), args, deps, func(int) {})
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestEndpointsCommand(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.run(t, "endpoints"))

	var out struct {
		Endpoints []struct {
			Method string `json:"method"`
		} `json:"endpoints"`
	}
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &out))
	assert.Len(t, out.Endpoints, 11)
	assert.Equal(t, "create_chatflow", out.Endpoints[0].Method)
}

func TestValidateCommand(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.run(t, "validate", writeFile(t, "flow.json", validFlow)))
	assert.Contains(t, h.out.String(), `"valid": true`)

	h = newHarness()
	err := h.run(t, "validate", writeFile(t, "broken.json", `{"edges": []}`))
	assert.ErrorIs(t, err, errInvalid)
	assert.Contains(t, h.out.String(), "Missing 'nodes' array")
}

func TestWrapCommandWritesEnvelope(t *testing.T) {
	h := newHarness()
	output := filepath.Join(t.TempDir(), "envelope.json")
	require.NoError(t, h.run(t, "wrap", writeFile(t, "flow.json", validFlow), "--name", "Demo", "-o", output))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var env flowise.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	require.Len(t, env.ChatFlow, 1)
	assert.Equal(t, "Demo", env.ChatFlow[0]["name"])
	assert.Equal(t, "CHATFLOW", env.ChatFlow[0]["type"])
	assert.Empty(t, h.out.String())
}

func TestWrapCommandRejectsUnknownFormat(t *testing.T) {
	h := newHarness()
	err := h.run(t, "wrap", writeFile(t, "odd.json", `{"foo": 1}`))
	assert.ErrorIs(t, err, errInvalid)
	assert.Contains(t, h.out.String(), "Unknown workflow format")
}

func TestRemoteCommandWithoutEndpoint(t *testing.T) {
	h := newHarness()
	err := h.run(t, "chatflows", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FLOWISE_API_ENDPOINT must be set")
}

func TestCallCommand(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.run(t, "call", "get_node_schema", `{"node_name": "chatOllama"}`))
	assert.Contains(t, h.out.String(), "node catalog is not configured")

	h = newHarness()
	err := h.run(t, "call", "no_such_tool")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RPC_METHOD_NOT_FOUND")

	h = newHarness()
	assert.Error(t, h.run(t, "call", "list_chatflows", "{nope"))
}

func TestServeStdio(t *testing.T) {
	h := newHarness()
	h.in = strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	}, "\n") + "\n"

	require.NoError(t, h.run(t, "serve"))

	lines := strings.Split(strings.TrimSpace(h.out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"protocolVersion"`)
	assert.Contains(t, lines[0], `"flowise-mcp"`)
	assert.Contains(t, lines[1], `"validate_workflow"`)
}

func TestRemoteCommandsUseConfiguredEndpoint(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/api/v1/chatflows":
			_, _ = w.Write([]byte(`[{"id": "cf-1", "name": "Support", "deployed": true}]`))
		case "/api/v1/nodes":
			_, _ = w.Write([]byte(`[{"name": "chatOllama", "label": "ChatOllama", "category": "Chat Models"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	h := newHarness()
	h.env["FLOWISE_API_KEY"] = "secret"
	require.NoError(t, h.run(t, "--endpoint", srv.URL, "chatflows", "list"))
	assert.Contains(t, h.out.String(), `"Support"`)
	assert.Equal(t, "Bearer secret", auth)

	cfgPath := writeFile(t, "flowise.yaml", "flowise:\n  endpoint: "+srv.URL+"\n")
	h = newHarness()
	require.NoError(t, h.run(t, "--config", cfgPath, "nodes", "list", "--category", "Chat Models"))
	assert.Contains(t, h.out.String(), `"chatOllama"`)
	assert.Contains(t, h.out.String(), `"available_categories"`)
}

func TestGlobalsAreValidated(t *testing.T) {
	h := newHarness()
	err := h.run(t, "--log-format", "xml", "endpoints")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config.Log.Format")
}
