package flowise

import (
	"fmt"
	"strings"
)

// Summary counts what the validator saw. NodeTypes is nil when validation
// stopped before the nodes were inspected.
type Summary struct {
	NodeCount int  `json:"node_count"`
	EdgeCount int  `json:"edge_count"`
	NodeTypes *int `json:"node_types,omitempty"`
}

// ValidationResult is the outcome of local structural validation, optionally
// amended with the remote service's own findings.
type ValidationResult struct {
	Valid            bool             `json:"valid"`
	FlowType         *FlowKind        `json:"flow_type"`
	LocalErrors      []string         `json:"local_errors"`
	LocalWarnings    []string         `json:"local_warnings"`
	ServerValidation []map[string]any `json:"server_validation"`
	Summary          Summary          `json:"summary"`
}

// MergeServer records the server-side validation payload. Any item that
// carries a non-empty "issues" value marks the workflow invalid.
func (r *ValidationResult) MergeServer(items []map[string]any) {
	if r == nil {
		return
	}
	if items == nil {
		items = []map[string]any{}
	}
	r.ServerValidation = items
	for _, item := range items {
		if truthy(item["issues"]) {
			r.Valid = false
			return
		}
	}
}

// MergeServerError records a failed server-side validation call without
// changing the verdict.
func (r *ValidationResult) MergeServerError(err error) {
	if r == nil || err == nil {
		return
	}
	r.ServerValidation = []map[string]any{{"error": ErrorMessage(err)}}
}

// HasServerIssues reports whether any merged server item carried issues.
func (r *ValidationResult) HasServerIssues() bool {
	if r == nil {
		return false
	}
	for _, item := range r.ServerValidation {
		if truthy(item["issues"]) {
			return true
		}
	}
	return false
}

type validation struct {
	strict   bool
	errors   []string
	warnings []string
}

func (v *validation) errorf(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validation) warnf(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validation) fatal() *ValidationResult {
	return &ValidationResult{
		Valid:         false,
		LocalErrors:   v.errors,
		LocalWarnings: v.nonNilWarnings(),
	}
}

func (v *validation) nonNilWarnings() []string {
	if v.warnings == nil {
		return []string{}
	}
	return v.warnings
}

// ValidateWorkflow checks a raw graph document for referential integrity and
// required fields. All defects are accumulated; only a missing, mistyped or
// empty nodes list stops validation early. Warnings never affect the
// verdict. In strict mode missing node types and edge ids become errors and
// missing node data becomes a warning.
func ValidateWorkflow(doc Document, strict bool) *ValidationResult {
	v := &validation{strict: strict}

	rawNodes, present := doc["nodes"]
	if !present || rawNodes == nil {
		v.errorf("Missing 'nodes' array")
		return v.fatal()
	}
	nodes, ok := rawNodes.([]any)
	if !ok {
		v.errorf("'nodes' must be an array")
		return v.fatal()
	}
	if len(nodes) == 0 {
		v.errorf("'nodes' array is empty")
		return v.fatal()
	}

	var edges []any
	rawEdges, present := doc["edges"]
	switch {
	case !present || rawEdges == nil:
		v.errorf("Missing 'edges' array")
	default:
		list, ok := rawEdges.([]any)
		if !ok {
			v.errorf("'edges' must be an array")
			break
		}
		edges = list
		if len(edges) == 0 && len(nodes) > 1 {
			v.warnf("Workflow has multiple nodes but no edges")
		}
	}

	nodeIDs := make(map[string]struct{}, len(nodes))
	nodeTypes := make(map[string]struct{})
	hasStart := false

	for i, raw := range nodes {
		node, ok := raw.(map[string]any)
		if !ok {
			v.errorf("Node at index %d is not an object", i)
			continue
		}

		id := stringField(node, "id")
		switch {
		case !truthy(node["id"]):
			v.errorf("Node at index %d missing 'id'", i)
		case id == "":
			v.errorf("Node at index %d has non-string 'id'", i)
		default:
			if _, dup := nodeIDs[id]; dup {
				v.errorf("Duplicate node ID: %s", id)
			}
			nodeIDs[id] = struct{}{}
		}
		label := nodeLabel(id, i)

		nodeType := stringField(node, "type")
		if nodeType == "" {
			if strict {
				v.errorf("Node '%s' missing 'type'", label)
			} else {
				v.warnf("Node '%s' missing 'type'", label)
			}
		} else {
			nodeTypes[nodeType] = struct{}{}
			if strings.Contains(strings.ToLower(nodeType), "start") {
				hasStart = true
			}
		}

		position := node["position"]
		if !truthy(position) {
			v.warnf("Node '%s' missing 'position'", label)
		} else if _, ok := position.(map[string]any); !ok {
			v.warnf("Node '%s' has invalid 'position' format", label)
		}

		if strict && !truthy(node["data"]) && !isStartType(nodeType) {
			v.warnf("Node '%s' missing 'data'", label)
		}
	}

	edgeIDs := make(map[string]struct{}, len(edges))
	for i, raw := range edges {
		edge, ok := raw.(map[string]any)
		if !ok {
			v.errorf("Edge at index %d is not an object", i)
			continue
		}

		id := stringField(edge, "id")
		if id == "" {
			if strict {
				v.errorf("Edge at index %d missing 'id'", i)
			}
		} else {
			if _, dup := edgeIDs[id]; dup {
				v.errorf("Duplicate edge ID: %s", id)
			}
			edgeIDs[id] = struct{}{}
		}
		label := edgeLabel(id, i)

		v.checkEndpoint(edge, "source", label, nodeIDs)
		v.checkEndpoint(edge, "target", label, nodeIDs)
	}

	kind := DetectFlowType(doc)
	if kind == FlowKindAgentflow && !hasStart {
		v.warnf("AgentFlow may be missing a Start node")
	}

	typeCount := len(nodeTypes)
	errs := v.errors
	if errs == nil {
		errs = []string{}
	}
	return &ValidationResult{
		Valid:         len(v.errors) == 0,
		FlowType:      &kind,
		LocalErrors:   errs,
		LocalWarnings: v.nonNilWarnings(),
		Summary: Summary{
			NodeCount: len(nodes),
			EdgeCount: len(edges),
			NodeTypes: &typeCount,
		},
	}
}

func (v *validation) checkEndpoint(edge map[string]any, field, label string, nodeIDs map[string]struct{}) {
	ref := stringField(edge, field)
	if ref == "" {
		v.errorf("Edge '%s' missing '%s'", label, field)
		return
	}
	if _, ok := nodeIDs[ref]; !ok {
		v.errorf("Edge '%s' references non-existent %s node: %s", label, field, ref)
	}
}

func isStartType(nodeType string) bool {
	return nodeType == "start" || nodeType == "startAgentFlow"
}

func nodeLabel(id string, index int) string {
	if id != "" {
		return id
	}
	return fmt.Sprintf("#%d", index)
}

func edgeLabel(id string, index int) string {
	if id != "" {
		return id
	}
	return fmt.Sprintf("%d", index)
}
