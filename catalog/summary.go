package catalog

import flowise "github.com/goliatone/go-flowise"

// ParamSummary is the display form of a parameter.
type ParamSummary struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Optional bool   `json:"optional"`
	Default  any    `json:"default"`
}

// AnchorSummary is the display form of an input anchor.
type AnchorSummary struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Optional bool   `json:"optional"`
	List     bool   `json:"list"`
}

// OutputSummary is the display form of an output anchor.
type OutputSummary struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// Summary condenses a schema to what a caller needs to wire a node.
type Summary struct {
	Name          string          `json:"name"`
	Label         string          `json:"label"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	BaseClasses   []string        `json:"baseClasses"`
	Version       float64         `json:"version"`
	InputParams   []ParamSummary  `json:"inputParams"`
	InputAnchors  []AnchorSummary `json:"inputAnchors"`
	OutputAnchors []OutputSummary `json:"outputAnchors"`
}

// Summarize builds the summary of schema.
func Summarize(schema *flowise.Schema) Summary {
	out := Summary{
		BaseClasses:   []string{},
		InputParams:   []ParamSummary{},
		InputAnchors:  []AnchorSummary{},
		OutputAnchors: []OutputSummary{},
	}
	if schema == nil {
		return out
	}

	out.Name = schema.Name
	out.Label = schema.Label
	out.Category = schema.Category
	out.Description = schema.Description
	out.Version = schema.Version
	if schema.BaseClasses != nil {
		out.BaseClasses = schema.BaseClasses
	}

	params, anchors := flowise.SplitInputs(schema)
	for _, p := range params {
		out.InputParams = append(out.InputParams, ParamSummary{
			Name:     p.Name,
			Label:    p.Label,
			Type:     p.Type,
			Optional: p.IsOptional(),
			Default:  p.Default,
		})
	}
	for _, a := range anchors {
		out.InputAnchors = append(out.InputAnchors, AnchorSummary{
			Name:     a.Name,
			Label:    a.Label,
			Type:     a.Type,
			Optional: a.IsOptional(),
			List:     a.List,
		})
	}
	for _, o := range schema.OutputAnchors {
		out.OutputAnchors = append(out.OutputAnchors, OutputSummary{
			Name:  o.Name,
			Label: o.Label,
			Type:  o.Type,
		})
	}
	return out
}
