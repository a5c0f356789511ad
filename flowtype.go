package flowise

// FlowKind classifies what a workflow document is for.
type FlowKind string

const (
	FlowKindChatflow   FlowKind = "CHATFLOW"
	FlowKindAgentflow  FlowKind = "AGENTFLOW"
	FlowKindMultiAgent FlowKind = "MULTIAGENT"
	FlowKindAssistant  FlowKind = "ASSISTANT"
	FlowKindTool       FlowKind = "TOOL"
)

// node types that only appear in agent graphs
const (
	NodeTypeAgentFlow = "agentFlow"
	NodeTypeIteration = "iteration"
	NodeTypeCustom    = "customNode"
)

func (k FlowKind) String() string { return string(k) }

// DetectFlowType returns AGENTFLOW when any node carries an agent graph
// marker type and CHATFLOW otherwise. It never fails: missing or malformed
// node lists classify as CHATFLOW.
func DetectFlowType(doc Document) FlowKind {
	for _, raw := range doc.list("nodes") {
		node, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		switch stringField(node, "type") {
		case NodeTypeAgentFlow, NodeTypeIteration:
			return FlowKindAgentflow
		}
	}
	return FlowKindChatflow
}
