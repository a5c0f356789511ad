package flowise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func llmChainNode(t *testing.T, modelType string) *Node {
	t.Helper()
	node, err := BuildNode(&Schema{
		Name:        "llmChain",
		BaseClasses: []string{"LLMChain", "BaseChain"},
		Inputs: []Field{
			{Name: "model", Type: modelType},
			{Name: "chainName", Type: "string"},
		},
	}, WithIndex(0))
	require.NoError(t, err)
	return node
}

func TestBuildEdgeCompatible(t *testing.T) {
	source, err := BuildNode(chatOllamaSchema(), WithIndex(1))
	require.NoError(t, err)
	target := llmChainNode(t, "BaseLanguageModel | BaseChatModel")

	edge, err := BuildEdge(source, target, "model", "")
	require.NoError(t, err)

	assert.Equal(t, "chatOllama_1", edge.Source)
	assert.Equal(t, "chatOllama_1-output-chatOllama-ChatOllama|BaseChatModel", edge.SourceHandle)
	assert.Equal(t, "llmChain_0", edge.Target)
	assert.Equal(t, "llmChain_0-input-model-BaseLanguageModel | BaseChatModel", edge.TargetHandle)
	assert.Equal(t, EdgeTypeButton, edge.Type)
	assert.Equal(t, edge.Source+"-"+edge.SourceHandle+"-"+edge.Target+"-"+edge.TargetHandle, edge.ID)
}

func TestValidateConnectionIncompatible(t *testing.T) {
	source := &Node{ID: "m", Data: NodeData{
		OutputAnchors: []Anchor{{ID: "m-output-m-BaseChatModel", Name: "m", Type: "BaseChatModel"}},
	}}
	target := &Node{ID: "c", Data: NodeData{
		InputAnchors: []Field{{ID: "c-input-model-BaseLLM", Name: "model", Type: "BaseLLM"}},
	}}

	result := ValidateConnection(source, target, "model", "")

	assert.False(t, result.Valid)
	assert.False(t, result.Compatible)
	assert.Equal(t, ErrCodeIncompatibleAnchors, result.Code)
	assert.Equal(t, []string{"BaseChatModel"}, result.SourceTypes)
	assert.Equal(t, []string{"BaseLLM"}, result.TargetTypes)
	assert.Contains(t, result.Error, "Type mismatch")

	_, err := BuildEdge(source, target, "model", "")
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeIncompatibleAnchors))
	assert.False(t, IsNotFound(err))
}

func TestValidateConnectionUsesBaseClasses(t *testing.T) {
	source := &Node{ID: "s", Data: NodeData{
		BaseClasses:   []string{"ChatOpenAI", "BaseLLM"},
		OutputAnchors: []Anchor{{ID: "s-out", Name: "s", Type: "ChatOpenAI"}},
	}}
	target := &Node{ID: "t", Data: NodeData{
		InputAnchors: []Field{{ID: "t-in", Name: "model", Type: "BaseLLM"}},
	}}

	result := ValidateConnection(source, target, "model", "s")
	assert.True(t, result.Valid)
	assert.True(t, result.Compatible)
	assert.NoError(t, result.Err())
}

func TestValidateConnectionFailures(t *testing.T) {
	target := &Node{ID: "t", Data: NodeData{
		InputAnchors: []Field{{ID: "t-in", Name: "model", Type: "BaseLLM"}},
	}}

	bare := &Node{ID: "bare"}
	result := ValidateConnection(bare, target, "model", "")
	assert.Equal(t, ErrCodeNoOutputAnchors, result.Code)
	assert.True(t, IsNotFound(result.Err()))

	source := &Node{ID: "s", Data: NodeData{
		OutputAnchors: []Anchor{{ID: "s-out", Name: "s", Type: "BaseLLM"}},
	}}
	result = ValidateConnection(source, target, "model", "other")
	assert.Equal(t, ErrCodeSourceOutputNotFound, result.Code)
	assert.Equal(t, "Source output 'other' not found on node 's'", result.Error)

	result = ValidateConnection(source, target, "memory", "")
	assert.Equal(t, ErrCodeTargetInputNotFound, result.Code)
	assert.Equal(t, "Target input 'memory' not found on node 't'", result.Error)

	noHandle := &Node{ID: "n", Data: NodeData{
		OutputAnchors: []Anchor{{Name: "n", Type: "BaseLLM"}},
	}}
	result = ValidateConnection(noHandle, target, "model", "")
	assert.Equal(t, ErrCodeMalformedAnchor, result.Code)
	assert.Equal(t, "Anchor IDs not properly set on nodes", result.Error)
}

func TestTypeTokens(t *testing.T) {
	tokens := sortedKeys(typeTokens(" A|B  |C D "))
	assert.Equal(t, []string{"A", "B", "C", "D"}, tokens)
	assert.Empty(t, sortedKeys(typeTokens("")))
}
