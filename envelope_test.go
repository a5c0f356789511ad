package flowise

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedID(id string) WrapOption {
	return WithIDGenerator(func() string { return id })
}

func TestNewEnvelopeMarshalsEmptyArrays(t *testing.T) {
	data, err := json.Marshal(Envelope{})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 15)
	for key, value := range decoded {
		assert.Equal(t, []any{}, value, key)
	}
	assert.Equal(t, 0, NewEnvelope().Len())
}

func TestWrapRawChatflow(t *testing.T) {
	doc := mustDoc(t, `{"nodes":[{"id":"a","type":"customNode"}],"edges":[]}`)

	result, err := Wrap(doc, fixedID("id-1"), WithName("Support Bot"))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, FlowKindChatflow, *result.DetectedType)
	require.Len(t, result.ExportData.ChatFlow, 1)
	assert.Equal(t, 1, result.ExportData.Len())

	item := result.Wrapped
	assert.Equal(t, "id-1", item["id"])
	assert.Equal(t, "Support Bot", item["name"])
	assert.Equal(t, "CHATFLOW", item["type"])
	assert.Contains(t, item["flowData"], "\n  \"edges\": []")
}

func TestWrapRawAgentflowRoundTrip(t *testing.T) {
	doc := mustDoc(t, `{"id":"keep-me","nodes":[{"id":"s","type":"agentFlow"}],"edges":[]}`)

	result, err := Wrap(doc, WithGenerateID(false))
	require.NoError(t, err)

	require.Len(t, result.ExportData.AgentFlowV2, 1)
	assert.Empty(t, result.ExportData.ChatFlow)
	assert.Equal(t, "keep-me", result.Wrapped["id"])
	assert.Equal(t, "Unnamed Workflow", result.Wrapped["name"])

	embedded, err := DecodeFlowData(result.Wrapped)
	require.NoError(t, err)
	assert.Equal(t, FlowKind(result.Wrapped["type"].(string)), DetectFlowType(embedded))
}

func TestWrapGeneratesUUIDByDefault(t *testing.T) {
	result, err := Wrap(mustDoc(t, `{"nodes":[]}`))
	require.NoError(t, err)

	id, ok := result.Wrapped["id"].(string)
	require.True(t, ok)
	assert.Len(t, id, 36)
}

func TestWrapAlreadyWrappedIsIdempotent(t *testing.T) {
	first, err := Wrap(mustDoc(t, `{"nodes":[{"id":"a","type":"iteration"}],"edges":[]}`), fixedID("w1"))
	require.NoError(t, err)

	second, err := Wrap(Document(first.Wrapped), WithGenerateID(false))
	require.NoError(t, err)

	assert.Equal(t, first.Wrapped["flowData"], second.Wrapped["flowData"])
	assert.Equal(t, "w1", second.Wrapped["id"])
	assert.Equal(t, *first.DetectedType, *second.DetectedType)
	assert.Len(t, second.ExportData.AgentFlowV2, 1)
}

func TestWrapAlreadyWrappedRouting(t *testing.T) {
	multi, err := Wrap(mustDoc(t, `{"flowData":"{}","type":"MULTIAGENT","name":"m"}`), fixedID("new"))
	require.NoError(t, err)
	assert.Equal(t, FlowKindAgentflow, *multi.DetectedType)
	assert.Len(t, multi.ExportData.AgentFlowV2, 1)
	assert.Equal(t, "new", multi.Wrapped["id"])
	assert.Equal(t, "m", multi.Wrapped["name"])

	plain, err := Wrap(mustDoc(t, `{"flowData":"{}"}`), WithName("renamed"), WithGenerateID(false))
	require.NoError(t, err)
	assert.Equal(t, FlowKindChatflow, *plain.DetectedType)
	assert.Len(t, plain.ExportData.ChatFlow, 1)
	assert.Equal(t, "renamed", plain.Wrapped["name"])
	assert.NotContains(t, plain.Wrapped, "id")
}

func TestWrapTool(t *testing.T) {
	doc := mustDoc(t, `{"name":"weather","func":"return 1","schema":"[]","color":"#fff","extra":true}`)

	result, err := Wrap(doc)
	require.NoError(t, err)

	assert.Equal(t, FlowKindTool, *result.DetectedType)
	require.Len(t, result.ExportData.Tool, 1)
	assert.Equal(t, Item{
		"name":        "weather",
		"description": "",
		"color":       "#fff",
		"iconSrc":     "",
		"schema":      "[]",
		"func":        "return 1",
	}, result.Wrapped)
}

func TestWrapUnknownFormat(t *testing.T) {
	result, err := Wrap(mustDoc(t, `{"edges":[]}`))
	require.Error(t, err)

	assert.Equal(t, ErrCodeUnknownFormat, ErrorCode(err))
	assert.False(t, result.Success)
	assert.Nil(t, result.DetectedType)
	assert.Equal(t, "Unknown workflow format: expected nodes array, flowData field, or tool definition", result.Error)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"detected_type":null,"exportdata":null,"wrapped":null,
		"error":"Unknown workflow format: expected nodes array, flowData field, or tool definition"}`, string(data))
}
