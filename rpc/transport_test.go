package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeResponse(t *testing.T, data []byte) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

func TestHandleMessageDirectMethod(t *testing.T) {
	s, p := newEchoServer(t)

	resp, ok := s.HandleMessage(context.Background(),
		[]byte(`{"jsonrpc":"2.0","id":7,"method":"echo","params":{"name":"carol"}}`),
		RequestMeta{Transport: "test"},
	)
	require.True(t, ok)
	require.Nil(t, resp.Error)
	assert.Equal(t, "echo:carol", resp.Result)
	assert.JSONEq(t, `7`, string(resp.ID))
	assert.Equal(t, "7", p.gotMeta.RequestID)
	assert.Equal(t, "test", p.gotMeta.Transport)
}

func TestHandleMessageErrors(t *testing.T) {
	s, _ := newEchoServer(t)

	tests := []struct {
		name string
		raw  string
		code int
	}{
		{"parse error", `{not json`, CodeParseError},
		{"missing method", `{"jsonrpc":"2.0","id":1}`, CodeInvalidRequest},
		{"bad version", `{"jsonrpc":"1.0","id":1,"method":"echo"}`, CodeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"nope"}`, CodeMethodNotFound},
		{"invalid params", `{"jsonrpc":"2.0","id":1,"method":"echo","params":{"name":5}}`, CodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, ok := s.HandleMessage(context.Background(), []byte(tt.raw), RequestMeta{})
			require.True(t, ok)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, JSONRPCVersion, resp.JSONRPC)
		})
	}
}

func TestHandleMessageNotificationHasNoResponse(t *testing.T) {
	s, _ := newEchoServer(t)

	resp, ok := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"echo"}`), RequestMeta{})
	assert.False(t, ok)
	assert.Nil(t, resp)

	resp, ok = s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`), RequestMeta{})
	assert.False(t, ok)
	assert.Nil(t, resp)
}

func TestHandleMessageInitializeAndToolsList(t *testing.T) {
	s, _ := newEchoServer(t, WithServerInfo("flowise", "1.2.3"))

	resp, ok := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`), RequestMeta{})
	require.True(t, ok)
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]any)
	assert.Equal(t, ServerInfo{Name: "flowise", Version: "1.2.3"}, result["serverInfo"])

	resp, ok = s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`), RequestMeta{})
	require.True(t, ok)
	tools := resp.Result.(map[string]any)["tools"].([]ToolDescriptor)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)
	assert.Equal(t, "Echoes the request name", tools[0].Description)
	assert.Equal(t, "object", tools[0].InputSchema["type"])
}

func TestHandleMessageToolsCall(t *testing.T) {
	s, _ := newEchoServer(t)

	resp, ok := s.HandleMessage(context.Background(),
		[]byte(`{"jsonrpc":"2.0","id":"a","method":"tools/call","params":{"name":"echo","arguments":{"name":"dave"}}}`),
		RequestMeta{},
	)
	require.True(t, ok)
	require.Nil(t, resp.Error)
	result := resp.Result.(ToolCallResult)
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)
	assert.Equal(t, `"echo:dave"`, result.Content[0].Text)

	resp, ok = s.HandleMessage(context.Background(),
		[]byte(`{"jsonrpc":"2.0","id":"b","method":"tools/call","params":{"name":"nope"}}`),
		RequestMeta{},
	)
	require.True(t, ok)
	result = resp.Result.(ToolCallResult)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "Unknown tool: nope")

	resp, ok = s.HandleMessage(context.Background(),
		[]byte(`{"jsonrpc":"2.0","id":"c","method":"tools/call"}`),
		RequestMeta{},
	)
	require.True(t, ok)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestLineTransportServesRequestsInOrder(t *testing.T) {
	s, _ := newEchoServer(t)

	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"echo","params":{"name":"one"}}`,
		``,
		`{"jsonrpc":"2.0","method":"echo"}`,
		`{"jsonrpc":"2.0","id":2,"method":"echo","params":{"name":"two"}}`,
		`garbage`,
	}, "\n"))
	var out bytes.Buffer

	require.NoError(t, s.ServeStdio(context.Background(), in, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)

	first := decodeResponse(t, []byte(lines[0]))
	assert.JSONEq(t, `1`, string(first.ID))
	assert.Equal(t, "echo:one", first.Result)

	second := decodeResponse(t, []byte(lines[1]))
	assert.JSONEq(t, `2`, string(second.ID))
	assert.Equal(t, "echo:two", second.Result)

	third := decodeResponse(t, []byte(lines[2]))
	require.NotNil(t, third.Error)
	assert.Equal(t, CodeParseError, third.Error.Code)
}

func TestLineTransportStopsOnCancel(t *testing.T) {
	s, _ := newEchoServer(t)
	reader, writer := io.Pipe()
	defer writer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.ServeStdio(ctx, reader, io.Discard)
	}()

	cancel()
	assert.NoError(t, <-done)

	_, err := writer.Write([]byte("{}\n"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestHTTPTransport(t *testing.T) {
	s, _ := newEchoServer(t)
	app := NewHTTPApp(s, HTTPConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/rpc",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"echo","params":{"name":"http"}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-9")
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	resp := decodeResponse(t, body)
	assert.Equal(t, "echo:http", resp.Result)

	req = httptest.NewRequest(http.MethodPost, "/api/rpc", strings.NewReader(`{bad`))
	res, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/api/endpoints", nil)
	res, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var listing struct {
		Endpoints []Endpoint `json:"endpoints"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&listing))
	require.Len(t, listing.Endpoints, 1)
	assert.Equal(t, "echo", listing.Endpoints[0].Method)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	res, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
