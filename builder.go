package flowise

import (
	"fmt"
	"strings"
)

const (
	nodeWidth          = 300
	nodeBaseHeight     = 100
	nodeParamHeight    = 55
	nodeAnchorHeight   = 50
	nodeMinHeight      = 143
	layoutOriginX      = 200
	layoutStepX        = 350
	layoutOriginY      = 100
	defaultSchemaName  = "unknown"
	defaultFieldType   = "string"
	defaultNodeVersion = 1
)

// primitiveTypes are the input types rendered as parameters. Anything else
// is a connection anchor. Compared case-insensitively.
var primitiveTypes = map[string]struct{}{
	"string":       {},
	"number":       {},
	"boolean":      {},
	"password":     {},
	"json":         {},
	"code":         {},
	"date":         {},
	"file":         {},
	"folder":       {},
	"options":      {},
	"multioptions": {},
	"asyncoptions": {},
	"credential":   {},
}

// agentCategories hold node types rendered as agent graph nodes.
var agentCategories = map[string]struct{}{
	"Multi Agents":      {},
	"Sequential Agents": {},
}

// IsAnchorType reports whether an input type denotes a connection anchor
// rather than a primitive parameter.
func IsAnchorType(typ string) bool {
	_, primitive := primitiveTypes[strings.ToLower(typ)]
	return !primitive
}

// SplitInputs returns the schema's parameters and input anchors. Pre-split
// lists are used as-is when either is present; otherwise the combined
// inputs list is partitioned by type. Entries without a type are
// parameters.
func SplitInputs(schema *Schema) (params []Field, anchors []Field) {
	if schema == nil {
		return nil, nil
	}
	if schema.PreSplit() {
		return schema.InputParams, schema.InputAnchors
	}
	for _, item := range schema.Inputs {
		typ := item.Type
		if typ == "" {
			typ = defaultFieldType
		}
		if IsAnchorType(typ) {
			anchors = append(anchors, item)
		} else {
			params = append(params, item)
		}
	}
	return params, anchors
}

// NodeOption customizes BuildNode.
type NodeOption func(*nodeConfig)

type nodeConfig struct {
	id       string
	position *Position
	inputs   map[string]any
	index    int
}

// WithNodeID sets an explicit node id instead of "{name}_{index}".
func WithNodeID(id string) NodeOption {
	return func(c *nodeConfig) {
		c.id = id
	}
}

// WithPosition places the node instead of using the staggered layout.
func WithPosition(pos Position) NodeOption {
	return func(c *nodeConfig) {
		c.position = &pos
	}
}

// WithInputs overrides input values by key.
func WithInputs(inputs map[string]any) NodeOption {
	return func(c *nodeConfig) {
		c.inputs = inputs
	}
}

// WithIndex sets the index used for the default id and layout.
func WithIndex(index int) NodeOption {
	return func(c *nodeConfig) {
		c.index = index
	}
}

// BuildNode instantiates a fully populated node from a node-type schema.
// Parameter and anchor ids are derived from the node id, the field name
// and the field type, so they are stable for a given node.
func BuildNode(schema *Schema, opts ...NodeOption) (*Node, error) {
	if schema == nil {
		return nil, ErrNilSchema.Clone()
	}

	cfg := &nodeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	name := schema.Name
	if name == "" {
		name = defaultSchemaName
	}
	nodeID := cfg.id
	if nodeID == "" {
		nodeID = DefaultNodeID(name, cfg.index)
	}
	position := DefaultPosition(cfg.index)
	if cfg.position != nil {
		position = *cfg.position
	}

	nodeType := NodeTypeCustom
	if _, ok := agentCategories[schema.Category]; ok {
		nodeType = NodeTypeAgentFlow
	}

	schemaParams, schemaAnchors := SplitInputs(schema)

	inputParams := make([]Field, 0, len(schemaParams))
	for _, param := range schemaParams {
		p := copyField(param)
		typ := param.Type
		if typ == "" {
			typ = defaultFieldType
		}
		p.ID = InputHandleID(nodeID, param.Name, typ)
		if p.Display == nil {
			display := !p.AdditionalParams
			p.Display = &display
		}
		inputParams = append(inputParams, p)
	}

	inputAnchors := make([]Field, 0, len(schemaAnchors))
	for _, anchor := range schemaAnchors {
		a := copyField(anchor)
		a.ID = InputHandleID(nodeID, anchor.Name, anchor.Type)
		inputAnchors = append(inputAnchors, a)
	}

	baseClasses := append([]string{}, schema.BaseClasses...)
	joined := strings.Join(baseClasses, " | ")

	outputAnchors := make([]Anchor, 0, len(schema.OutputAnchors)+1)
	for _, anchor := range schema.OutputAnchors {
		out := anchor
		out.Extra = cloneExtra(anchor.Extra)
		types := splitPipeTypes(anchor.Type)
		if len(types) == 0 {
			types = baseClasses
		}
		anchorName := anchor.Name
		if anchorName == "" {
			anchorName = name
		}
		out.ID = OutputHandleID(nodeID, anchorName, types)
		if len(baseClasses) > 0 {
			out.Type = joined
		}
		outputAnchors = append(outputAnchors, out)
	}
	if len(outputAnchors) == 0 && len(baseClasses) > 0 {
		label := schema.Label
		if label == "" {
			label = name
		}
		outputAnchors = append(outputAnchors, Anchor{
			ID:          OutputHandleID(nodeID, name, baseClasses),
			Name:        name,
			Label:       label,
			Description: schema.Description,
			Type:        joined,
		})
	}

	inputs := make(map[string]any, len(schemaParams)+len(schemaAnchors)+len(cfg.inputs))
	for _, param := range schemaParams {
		if param.Default != nil {
			inputs[param.Name] = param.Default
		} else {
			inputs[param.Name] = ""
		}
	}
	for _, anchor := range schemaAnchors {
		inputs[anchor.Name] = ""
	}
	for k, v := range cfg.inputs {
		inputs[k] = v
	}

	label := schema.Label
	if label == "" {
		label = name
	}
	dataType := schema.Type
	if dataType == "" {
		dataType = label
	}
	version := schema.Version
	if version == 0 {
		version = defaultNodeVersion
	}

	return &Node{
		ID:       nodeID,
		Position: position,
		Type:     nodeType,
		Data: NodeData{
			ID:            nodeID,
			Label:         label,
			Version:       version,
			Name:          name,
			Type:          dataType,
			BaseClasses:   baseClasses,
			Category:      schema.Category,
			Description:   schema.Description,
			InputParams:   inputParams,
			InputAnchors:  inputAnchors,
			Inputs:        inputs,
			OutputAnchors: outputAnchors,
			Outputs:       map[string]any{},
		},
		Width:            nodeWidth,
		Height:           float64(EstimateHeight(inputParams, inputAnchors)),
		PositionAbsolute: position,
	}, nil
}

// DefaultNodeID returns the platform's "{name}_{index}" id form.
func DefaultNodeID(name string, index int) string {
	return fmt.Sprintf("%s_%d", name, index)
}

// DefaultPosition staggers nodes horizontally by index.
func DefaultPosition(index int) Position {
	return Position{
		X: float64(layoutOriginX + index*layoutStepX),
		Y: layoutOriginY,
	}
}

// InputHandleID builds the id of a parameter or input anchor.
func InputHandleID(nodeID, name, typ string) string {
	return fmt.Sprintf("%s-input-%s-%s", nodeID, name, typ)
}

// OutputHandleID builds the id of an output anchor. With no types the anchor
// name stands in for the type list.
func OutputHandleID(nodeID, name string, types []string) string {
	typeStr := name
	if len(types) > 0 {
		typeStr = strings.Join(types, "|")
	}
	return fmt.Sprintf("%s-output-%s-%s", nodeID, name, typeStr)
}

// EstimateHeight approximates the rendered node height.
func EstimateHeight(params []Field, anchors []Field) int {
	height := nodeBaseHeight
	for _, p := range params {
		if !p.AdditionalParams {
			height += nodeParamHeight
		}
	}
	height += len(anchors) * nodeAnchorHeight
	if height < nodeMinHeight {
		return nodeMinHeight
	}
	return height
}

func copyField(f Field) Field {
	out := f
	out.Extra = cloneExtra(f.Extra)
	if f.Display != nil {
		display := *f.Display
		out.Display = &display
	}
	return out
}

// splitPipeTypes strips spaces and splits "A | B" into ["A", "B"].
func splitPipeTypes(typ string) []string {
	compact := strings.ReplaceAll(typ, " ", "")
	if compact == "" {
		return nil
	}
	return strings.Split(compact, "|")
}
