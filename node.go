package flowise

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Position is a point on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Field is a schema input: either a primitive parameter or an input anchor.
type Field struct {
	ID               string         `json:"id,omitempty"`
	Name             string         `json:"name"`
	Label            string         `json:"label,omitempty"`
	Type             string         `json:"type"`
	Default          any            `json:"default,omitempty"`
	Optional         any            `json:"optional,omitempty"`
	AdditionalParams bool           `json:"additionalParams,omitempty"`
	Display          *bool          `json:"display,omitempty"`
	List             bool           `json:"list,omitempty"`
	Description      string         `json:"description,omitempty"`
	Extra            map[string]any `json:"-"`
}

type fieldJSON Field

// IsOptional reports whether the field may be left empty. The platform
// sends either a bool or a map of display conditions; conditions count as
// optional.
func (f Field) IsOptional() bool {
	switch v := f.Optional.(type) {
	case bool:
		return v
	case map[string]any:
		return len(v) > 0
	default:
		return false
	}
}

func (f *Field) UnmarshalJSON(data []byte) error {
	var known fieldJSON
	extra, err := decodeWithExtra(data, &known)
	if err != nil {
		return err
	}
	*f = Field(known)
	f.Extra = extra
	return nil
}

func (f Field) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(fieldJSON(f), f.Extra)
}

// Anchor is an output connection point.
type Anchor struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Label       string         `json:"label,omitempty"`
	Description string         `json:"description,omitempty"`
	Type        string         `json:"type"`
	Extra       map[string]any `json:"-"`
}

type anchorJSON Anchor

func (a *Anchor) UnmarshalJSON(data []byte) error {
	var known anchorJSON
	extra, err := decodeWithExtra(data, &known)
	if err != nil {
		return err
	}
	*a = Anchor(known)
	a.Extra = extra
	return nil
}

func (a Anchor) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(anchorJSON(a), a.Extra)
}

// NodeData is the payload the platform renders and executes.
type NodeData struct {
	ID            string         `json:"id"`
	Label         string         `json:"label"`
	Version       float64        `json:"version"`
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	BaseClasses   []string       `json:"baseClasses"`
	Category      string         `json:"category"`
	Description   string         `json:"description"`
	InputParams   []Field        `json:"inputParams"`
	InputAnchors  []Field        `json:"inputAnchors" validate:"dive"`
	Inputs        map[string]any `json:"inputs"`
	OutputAnchors []Anchor       `json:"outputAnchors" validate:"dive"`
	Outputs       map[string]any `json:"outputs"`
	Selected      bool           `json:"selected"`
	Extra         map[string]any `json:"-"`
}

type nodeDataJSON NodeData

func (d *NodeData) UnmarshalJSON(data []byte) error {
	var known nodeDataJSON
	extra, err := decodeWithExtra(data, &known)
	if err != nil {
		return err
	}
	*d = NodeData(known)
	d.Extra = extra
	return nil
}

func (d NodeData) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(nodeDataJSON(d), d.Extra)
}

// Node is a workflow node as stored in a graph document.
type Node struct {
	ID               string         `json:"id" validate:"required"`
	Position         Position       `json:"position"`
	Type             string         `json:"type"`
	Data             NodeData       `json:"data"`
	Width            float64        `json:"width"`
	Height           float64        `json:"height"`
	Selected         bool           `json:"selected"`
	PositionAbsolute Position       `json:"positionAbsolute"`
	Extra            map[string]any `json:"-"`
}

type nodeJSON Node

func (n *Node) UnmarshalJSON(data []byte) error {
	var known nodeJSON
	extra, err := decodeWithExtra(data, &known)
	if err != nil {
		return err
	}
	*n = Node(known)
	n.Extra = extra
	return nil
}

func (n Node) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(nodeJSON(n), n.Extra)
}

// InputAnchor returns the declared input anchor with the given name.
func (n *Node) InputAnchor(name string) (Field, bool) {
	if n == nil {
		return Field{}, false
	}
	for _, anchor := range n.Data.InputAnchors {
		if anchor.Name == name {
			return anchor, true
		}
	}
	return Field{}, false
}

// OutputAnchor returns the declared output anchor with the given name.
func (n *Node) OutputAnchor(name string) (Anchor, bool) {
	if n == nil {
		return Anchor{}, false
	}
	for _, anchor := range n.Data.OutputAnchors {
		if anchor.Name == name {
			return anchor, true
		}
	}
	return Anchor{}, false
}

// Edge connects an output anchor of one node to an input anchor of another.
type Edge struct {
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
	Type         string `json:"type"`
	ID           string `json:"id"`
}

// Schema describes a node type as published by the platform's catalog.
// Inputs arrive either combined in Inputs or pre-split into InputParams and
// InputAnchors.
type Schema struct {
	Name          string         `json:"name" validate:"required"`
	Label         string         `json:"label,omitempty"`
	Category      string         `json:"category,omitempty"`
	Description   string         `json:"description,omitempty"`
	Version       float64        `json:"version,omitempty"`
	Type          string         `json:"type,omitempty"`
	Icon          string         `json:"icon,omitempty"`
	BaseClasses   []string       `json:"baseClasses,omitempty"`
	Inputs        []Field        `json:"inputs,omitempty"`
	InputParams   []Field        `json:"inputParams,omitempty"`
	InputAnchors  []Field        `json:"inputAnchors,omitempty"`
	OutputAnchors []Anchor       `json:"outputAnchors,omitempty"`
	Extra         map[string]any `json:"-"`
}

type schemaJSON Schema

func (s *Schema) UnmarshalJSON(data []byte) error {
	var known schemaJSON
	extra, err := decodeWithExtra(data, &known)
	if err != nil {
		return err
	}
	*s = Schema(known)
	s.Extra = extra
	return nil
}

func (s Schema) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(schemaJSON(s), s.Extra)
}

// PreSplit reports whether the schema carries separate parameter and anchor
// lists instead of a combined inputs list.
func (s *Schema) PreSplit() bool {
	return s != nil && (s.InputParams != nil || s.InputAnchors != nil)
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// DecodeNode converts a caller supplied value (a JSON object, raw bytes or
// a Node) into a typed Node, reporting decoding and required-field failures
// as a single format error.
func DecodeNode(raw any) (*Node, error) {
	var node Node
	if err := decodeStrict(raw, &node, "node"); err != nil {
		return nil, err
	}
	return &node, nil
}

// DecodeSchema converts a caller supplied value into a typed Schema.
func DecodeSchema(raw any) (*Schema, error) {
	var schema Schema
	if err := decodeStrict(raw, &schema, "schema"); err != nil {
		return nil, err
	}
	return &schema, nil
}

func decodeStrict(raw any, target any, what string) error {
	if raw == nil {
		return raise(ErrFormat, fmt.Sprintf("%s is required", what), nil)
	}

	var data []byte
	switch val := raw.(type) {
	case []byte:
		data = val
	case json.RawMessage:
		data = val
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return raise(ErrFormat, fmt.Sprintf("%s could not be encoded: %v", what, err), nil)
		}
		data = encoded
	}

	if err := json.Unmarshal(data, target); err != nil {
		meta := map[string]any{"target": what}
		var typeErr *json.UnmarshalTypeError
		if ok := asTypeError(err, &typeErr); ok {
			meta["fields"] = []string{typeErr.Field}
		}
		return raise(ErrFormat, fmt.Sprintf("invalid %s: %v", what, err), meta)
	}

	if err := structValidator.Struct(target); err != nil {
		fields := validationFields(err)
		return raise(ErrFormat,
			fmt.Sprintf("invalid %s: %s", what, strings.Join(fields, ", ")),
			map[string]any{"target": what, "fields": fields},
		)
	}
	return nil
}

func asTypeError(err error, target **json.UnmarshalTypeError) bool {
	te, ok := err.(*json.UnmarshalTypeError)
	if ok {
		*target = te
	}
	return ok
}

func validationFields(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if idx := strings.Index(ns, "."); idx >= 0 {
			ns = ns[idx+1:]
		}
		out = append(out, fmt.Sprintf("'%s' failed '%s'", ns, fe.Tag()))
	}
	return out
}
