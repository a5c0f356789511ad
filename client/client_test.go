package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	flowise "github.com/goliatone/go-flowise"
	"github.com/goliatone/go-flowise/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithBackoff(runner.NoDelayStrategy{})}, opts...)
	c, err := New(srv.URL+"/", opts...)
	require.NoError(t, err)
	return c
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New("  ")
	require.Error(t, err)
	assert.Equal(t, ErrCodeConfig, Code(err))

	_, err = New("not a url")
	require.Error(t, err)
	assert.Equal(t, ErrCodeConfig, Code(err))
}

func TestListChatflowsSendsBearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/chatflows", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`[{"id":"a","name":"one","deployed":true}]`))
	}, WithAPIKey("secret"))

	flows, err := c.ListChatflows(context.Background())
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "one", flows[0]["name"])
}

func TestNoAuthorizationWithoutKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
	})

	flow, err := c.GetChatflow(context.Background(), "abc")
	require.NoError(t, err)
	assert.Empty(t, flow)
}

func TestCreateChatflowPostsItem(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Bot", body["name"])
		assert.Equal(t, "CHATFLOW", body["type"])
		w.Write([]byte(`{"id":"new-id","name":"Bot"}`))
	})

	out, err := c.CreateChatflow(context.Background(), flowise.Item{"name": "Bot", "type": "CHATFLOW", "flowData": "{}"})
	require.NoError(t, err)
	assert.Equal(t, "new-id", out["id"])
}

func TestNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"message":"missing"}`, http.StatusNotFound)
	}, WithMaxRetries(3))

	_, err := c.GetNode(context.Background(), "nope")

	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, Status(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	}, WithMaxRetries(2))

	tools, err := c.ListTools(context.Background())

	require.NoError(t, err)
	assert.Empty(t, tools)
	assert.Equal(t, int32(3), calls.Load())
}

func TestServerErrorAfterRetries(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}, WithMaxRetries(1))

	_, err := c.ListChatflows(context.Background())

	require.Error(t, err)
	assert.Equal(t, ErrCodeRemote, Code(err))
	assert.Equal(t, http.StatusInternalServerError, Status(err))
}

func TestBadRequestNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}, WithMaxRetries(3))

	_, err := c.CreatePrediction(context.Background(), "flow", PredictionRequest{Question: "hi"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUnreachableIsUnavailable(t *testing.T) {
	c, err := New("http://127.0.0.1:1", WithMaxRetries(0), WithTimeout(time.Second))
	require.NoError(t, err)

	_, err = c.ListChatflows(context.Background())
	require.Error(t, err)
	assert.Equal(t, ErrCodeUnavailable, Code(err))
}

func TestDecodeFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"a list"}`))
	})

	_, err := c.ListChatflows(context.Background())
	require.Error(t, err)
	assert.Equal(t, ErrCodeDecode, Code(err))
}

func TestNodesEndpointsDecodeSchemas(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.EscapedPath() {
		case "/api/v1/nodes":
			w.Write([]byte(`[{"name":"chatOllama","category":"Chat Models","baseClasses":["ChatOllama"],"icon":"x.svg","filePath":"/tmp"}]`))
		case "/api/v1/nodes/category/Chat%20Models":
			w.Write([]byte(`[{"name":"chatOllama"}]`))
		case "/api/v1/nodes/chatOllama":
			w.Write([]byte(`{"name":"chatOllama","inputs":[{"name":"temperature","type":"number"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.EscapedPath())
		}
	})
	ctx := context.Background()

	nodes, err := c.ListNodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Chat Models", nodes[0].Category)
	assert.Equal(t, "/tmp", nodes[0].Extra["filePath"])

	byCat, err := c.NodesByCategory(ctx, "Chat Models")
	require.NoError(t, err)
	assert.Len(t, byCat, 1)

	schema, err := c.GetNode(ctx, "chatOllama")
	require.NoError(t, err)
	assert.Len(t, schema.Inputs, 1)
}

func TestListNodesSkipsUndecodableSchemas(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"name":"seqLLM","inputs":[{"name":"key","type":"string","optional":{"updateStateMemory":["x"]}}]},
			{"name":"broken","inputs":"not a list"},
			{"label":"no name"},
			{"name":"ok","category":"Utilities"}
		]`))
	})

	nodes, err := c.ListNodes(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "seqLLM", nodes[0].Name)
	assert.True(t, nodes[0].Inputs[0].IsOptional())
	assert.Equal(t, "ok", nodes[1].Name)
}

func TestImportAndValidation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/export-import/import":
			data, _ := io.ReadAll(r.Body)
			var env map[string]any
			require.NoError(t, json.Unmarshal(data, &env))
			assert.Len(t, env, 15)
			assert.Equal(t, []any{}, env["Variable"])
		case "/api/v1/validation/f1":
			w.Write([]byte(`[{"id":"n1","issues":["missing model"]}]`))
		}
	})
	ctx := context.Background()

	out, err := c.ImportData(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, Record{}, out)

	items, err := c.ValidateChatflow(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "n1", items[0]["id"])
}

func TestPredictionBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/prediction/f1", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["question"])
		assert.NotContains(t, body, "history")
		assert.Equal(t, map[string]any{"temperature": 0.1}, body["overrideConfig"])
		w.Write([]byte(`{"text":"hi there"}`))
	})

	out, err := c.CreatePrediction(context.Background(), "f1", PredictionRequest{
		Question:       "hello",
		OverrideConfig: map[string]any{"temperature": 0.1},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"text": "hi there"}, out)
}
