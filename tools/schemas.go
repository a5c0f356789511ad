package tools

// Input schemas advertised on tools/list.

func object(required []string, props map[string]any) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

func propDefault(typ, description string, def any) map[string]any {
	p := prop(typ, description)
	p["default"] = def
	return p
}

var emptySchema = object(nil, map[string]any{})

var validateWorkflowSchema = object([]string{"workflow"}, map[string]any{
	"workflow":    prop("object", "Raw workflow JSON with nodes and edges arrays"),
	"chatflow_id": prop("string", "Optional: chatflow ID to run server-side validation (workflow must be saved first)"),
	"strict":      propDefault("boolean", "Enable strict mode for additional checks", false),
})

var wrapWorkflowSchema = object([]string{"workflow"}, map[string]any{
	"workflow":    prop("object", "Raw workflow JSON (nodes/edges) or tool definition (name/func/schema)"),
	"name":        prop("string", "Workflow name (required for raw flows)"),
	"generate_id": propDefault("boolean", "Generate new UUID for workflow", true),
})

var createChatflowSchema = object([]string{"workflow", "name"}, map[string]any{
	"workflow":       prop("object", "Workflow data - raw (nodes/edges) or wrapped (flowData)"),
	"name":           prop("string", "Workflow name"),
	"deployed":       propDefault("boolean", "Deploy immediately after creation", false),
	"validate_first": propDefault("boolean", "Run local validation before creating", true),
})

var importWorkflowSchema = object([]string{"exportdata"}, map[string]any{
	"exportdata": prop("object", "Full ExportData structure with 15 arrays (ChatFlow, AgentFlowV2, Tool, etc.)"),
})

var getChatflowSchema = object([]string{"chatflow_id"}, map[string]any{
	"chatflow_id": prop("string", "The chatflow ID to retrieve"),
})

var createPredictionSchema = object([]string{"question", "chatflow_id"}, map[string]any{
	"question":    prop("string", "The question or prompt to send to the chatflow"),
	"chatflow_id": prop("string", "The chatflow ID to query (use list_chatflows to find IDs)"),
	"history": map[string]any{
		"type":        "array",
		"description": "Optional conversation history as array of {role, content} objects",
		"items": object(nil, map[string]any{
			"role":    map[string]any{"type": "string"},
			"content": map[string]any{"type": "string"},
		}),
	},
})

var listNodeTypesSchema = object(nil, map[string]any{
	"category": prop("string", "Filter by category (e.g., 'Chat Models', 'Agents', 'Tools', 'Memory')"),
	"search":   prop("string", "Search nodes by name, label, or description"),
	"refresh":  propDefault("boolean", "Force refresh from API (default: use cache)", false),
})

var getNodeSchemaSchema = object([]string{"node_name"}, map[string]any{
	"node_name": prop("string", "Node name (e.g., 'chatOllama', 'toolAgent', 'bufferMemory')"),
	"summary":   propDefault("boolean", "Return simplified summary instead of full schema", false),
})

var createNodeSchema = object([]string{"node_name"}, map[string]any{
	"node_name": prop("string", "Node type name (e.g., 'chatOllama', 'toolAgent')"),
	"position": map[string]any{
		"type":        "object",
		"description": "Node position {x: number, y: number}",
		"properties": map[string]any{
			"x": map[string]any{"type": "number"},
			"y": map[string]any{"type": "number"},
		},
	},
	"inputs":  prop("object", "Input values to set (e.g., {modelName: 'qwen2.5:latest', temperature: 0.7})"),
	"node_id": prop("string", "Custom node ID (auto-generated if not provided)"),
	"index":   propDefault("integer", "Index for auto-generated ID (e.g., 0 for chatOllama_0)", 0),
})

var createEdgeSchema = object([]string{"source_node", "target_node", "target_input"}, map[string]any{
	"source_node":   prop("object", "Source node instance (from create_node result)"),
	"target_node":   prop("object", "Target node instance (from create_node result)"),
	"target_input":  prop("string", "Name of input anchor on target (e.g., 'model', 'tools', 'memory')"),
	"source_output": prop("string", "Name of output anchor on source (auto-detected if not provided)"),
	"validate_only": propDefault("boolean", "Only validate connection, don't create edge", false),
})
