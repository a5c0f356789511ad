package flowise

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, raw string) Document {
	t.Helper()
	doc, err := ParseDocument([]byte(raw))
	require.NoError(t, err)
	return doc
}

func TestParseDocumentKeepsNumbers(t *testing.T) {
	doc := mustDoc(t, `{"nodes":[{"id":"a","position":{"x":12.50,"y":3}}]}`)

	node := doc.list("nodes")[0].(map[string]any)
	pos := node["position"].(map[string]any)
	assert.Equal(t, json.Number("12.50"), pos["x"])
}

func TestParseDocumentRejectsNonObject(t *testing.T) {
	_, err := ParseDocument([]byte(`[1,2]`))
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeFormat))
	assert.Contains(t, err.Error(), "array")

	_, err = DecodeDocument(strings.NewReader(`{"nodes":`))
	require.Error(t, err)
	assert.Equal(t, ErrCodeFormat, ErrorCode(err))
}

func TestTruthy(t *testing.T) {
	assert.False(t, truthy(nil))
	assert.False(t, truthy(""))
	assert.False(t, truthy(json.Number("0")))
	assert.False(t, truthy([]any{}))
	assert.False(t, truthy(map[string]any{}))
	assert.True(t, truthy(json.Number("0.5")))
	assert.True(t, truthy([]any{"x"}))
	assert.True(t, truthy(true))
}

func TestDetectFlowType(t *testing.T) {
	cases := map[string]FlowKind{
		`{}`:                                      FlowKindChatflow,
		`{"nodes":"nope"}`:                        FlowKindChatflow,
		`{"nodes":[]}`:                            FlowKindChatflow,
		`{"nodes":[1,{"type":"customNode"}]}`:     FlowKindChatflow,
		`{"nodes":[{"type":"agentFlow"}]}`:        FlowKindAgentflow,
		`{"nodes":[{"type":"x"},{"type":"iteration"}]}`: FlowKindAgentflow,
	}
	for raw, want := range cases {
		assert.Equal(t, want, DetectFlowType(mustDoc(t, raw)), raw)
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, FormatTool, Classify(mustDoc(t, `{"name":"t","func":"x","schema":"[]"}`)))
	assert.Equal(t, FormatRawFlow, Classify(mustDoc(t, `{"nodes":[],"edges":[]}`)))
	assert.Equal(t, FormatWrapped, Classify(mustDoc(t, `{"flowData":"{}","nodes":[]}`)))
	assert.Equal(t, FormatUnknown, Classify(mustDoc(t, `{"edges":[]}`)))

	toolLike := mustDoc(t, `{"func":"x","schema":"[]","nodes":[]}`)
	assert.False(t, IsTool(toolLike))
	assert.False(t, IsRawFlow(toolLike))
	assert.Equal(t, FormatUnknown, Classify(toolLike))
}
