package flowise

import (
	"fmt"
	"sort"
	"strings"
)

// EdgeTypeButton is the display type the platform uses for editable edges.
const EdgeTypeButton = "buttonedge"

// ConnectionResult is the verdict of ValidateConnection.
type ConnectionResult struct {
	Valid        bool     `json:"valid"`
	Error        string   `json:"error,omitempty"`
	Code         string   `json:"code,omitempty"`
	SourceOutput string   `json:"source_output,omitempty"`
	SourceTypes  []string `json:"source_types,omitempty"`
	TargetInput  string   `json:"target_input,omitempty"`
	TargetTypes  []string `json:"target_types,omitempty"`
	Compatible   bool     `json:"compatible"`

	err          error
	sourceHandle string
	targetHandle string
}

// Err returns the failure as a go-errors value, or nil when valid.
func (r ConnectionResult) Err() error {
	return r.err
}

func (r ConnectionResult) fail(err error) ConnectionResult {
	r.Valid = false
	r.err = err
	r.Error = ErrorMessage(err)
	r.Code = ErrorCode(err)
	return r
}

// ValidateConnection checks that target can accept source's output on the
// named input anchor. With an empty sourceOutput the first declared output
// anchor is used.
//
// Compatibility is duck typed: the source anchor's type tokens plus the
// source node's base classes must intersect the target anchor's type
// tokens. Type strings are split on "|" and whitespace.
func ValidateConnection(source, target *Node, targetInput, sourceOutput string) ConnectionResult {
	result := ConnectionResult{TargetInput: targetInput}
	if source == nil || target == nil {
		return result.fail(raise(ErrMalformedAnchor, "source and target nodes are required", nil))
	}

	sourceAnchor, err := findSourceAnchor(source, sourceOutput)
	if err != nil {
		return result.fail(err)
	}
	result.SourceOutput = sourceAnchor.Name

	targetAnchor, ok := target.InputAnchor(targetInput)
	if !ok {
		return result.fail(raise(ErrTargetInputNotFound,
			fmt.Sprintf("Target input '%s' not found on node '%s'", targetInput, target.ID),
			map[string]any{"node_id": target.ID, "target_input": targetInput},
		))
	}

	sourceTypes := typeTokens(sourceAnchor.Type)
	for _, base := range source.Data.BaseClasses {
		if base = strings.TrimSpace(base); base != "" {
			sourceTypes[base] = struct{}{}
		}
	}
	targetTypes := typeTokens(targetAnchor.Type)

	result.SourceTypes = sortedKeys(sourceTypes)
	result.TargetTypes = sortedKeys(targetTypes)

	if sourceAnchor.ID == "" || targetAnchor.ID == "" {
		return result.fail(raise(ErrMalformedAnchor, "", map[string]any{
			"source_id": source.ID,
			"target_id": target.ID,
		}))
	}
	result.sourceHandle = sourceAnchor.ID
	result.targetHandle = targetAnchor.ID

	for t := range sourceTypes {
		if _, ok := targetTypes[t]; ok {
			result.Compatible = true
			break
		}
	}
	if !result.Compatible {
		return result.fail(raise(ErrIncompatibleAnchors,
			fmt.Sprintf("Type mismatch: source provides %v, target expects %v", result.SourceTypes, result.TargetTypes),
			map[string]any{"source_types": result.SourceTypes, "target_types": result.TargetTypes},
		))
	}

	result.Valid = true
	return result
}

// BuildEdge validates the connection and returns the edge joining the two
// anchors. Its id is "{source}-{sourceHandle}-{target}-{targetHandle}".
func BuildEdge(source, target *Node, targetInput, sourceOutput string) (*Edge, error) {
	result := ValidateConnection(source, target, targetInput, sourceOutput)
	if !result.Valid {
		return nil, result.Err()
	}
	return &Edge{
		Source:       source.ID,
		SourceHandle: result.sourceHandle,
		Target:       target.ID,
		TargetHandle: result.targetHandle,
		Type:         EdgeTypeButton,
		ID:           EdgeID(source.ID, result.sourceHandle, target.ID, result.targetHandle),
	}, nil
}

// EdgeID concatenates the endpoint ids the way the platform does.
func EdgeID(sourceID, sourceHandle, targetID, targetHandle string) string {
	return sourceID + "-" + sourceHandle + "-" + targetID + "-" + targetHandle
}

func findSourceAnchor(source *Node, name string) (Anchor, error) {
	anchors := source.Data.OutputAnchors
	if len(anchors) == 0 {
		return Anchor{}, raise(ErrNoOutputAnchors,
			fmt.Sprintf("Source node '%s' has no output anchors", source.ID),
			map[string]any{"node_id": source.ID},
		)
	}
	if name == "" {
		return anchors[0], nil
	}
	if anchor, ok := source.OutputAnchor(name); ok {
		return anchor, nil
	}
	return Anchor{}, raise(ErrSourceOutputNotFound,
		fmt.Sprintf("Source output '%s' not found on node '%s'", name, source.ID),
		map[string]any{"node_id": source.ID, "source_output": name},
	)
}

func typeTokens(typ string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, t := range strings.Fields(strings.ReplaceAll(typ, "|", " ")) {
		tokens[t] = struct{}{}
	}
	return tokens
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
