package tools

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	flowise "github.com/goliatone/go-flowise"
	"github.com/goliatone/go-flowise/client"
)

// ValidateWorkflowRequest is the validate_workflow payload.
type ValidateWorkflowRequest struct {
	Workflow   flowise.Document `json:"workflow"`
	ChatflowID string           `json:"chatflow_id"`
	Strict     bool             `json:"strict"`
}

// WrapWorkflowRequest is the wrap_workflow payload. GenerateID defaults to
// true when absent.
type WrapWorkflowRequest struct {
	Workflow   flowise.Document `json:"workflow"`
	Name       string           `json:"name"`
	GenerateID *bool            `json:"generate_id"`
}

// CreateChatflowRequest is the create_chatflow payload. ValidateFirst
// defaults to true when absent.
type CreateChatflowRequest struct {
	Workflow      flowise.Document `json:"workflow" validate:"required"`
	Name          string           `json:"name" validate:"required"`
	Deployed      bool             `json:"deployed"`
	ValidateFirst *bool            `json:"validate_first"`
}

// CreateChatflowResult reports the created flow.
type CreateChatflowResult struct {
	Success          bool                      `json:"success"`
	ChatflowID       any                       `json:"chatflow_id,omitempty"`
	APIResponse      client.Record             `json:"api_response,omitempty"`
	ValidationResult *flowise.ValidationResult `json:"validation_result,omitempty"`
	Error            string                    `json:"error,omitempty"`
}

// ImportWorkflowRequest is the import_workflow payload.
type ImportWorkflowRequest struct {
	ExportData *flowise.Envelope `json:"exportdata" validate:"required"`
}

// ImportCounts counts the importable items of an envelope.
type ImportCounts struct {
	Chatflows  int `json:"chatflows"`
	Agentflows int `json:"agentflows"`
	Tools      int `json:"tools"`
}

// Total sums the counts.
func (c ImportCounts) Total() int {
	return c.Chatflows + c.Agentflows + c.Tools
}

// ImportWorkflowResult reports an import.
type ImportWorkflowResult struct {
	Success     bool          `json:"success"`
	Imported    *ImportCounts `json:"imported,omitempty"`
	APIResponse any           `json:"api_response,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// ListChatflowsRequest is the list_chatflows payload.
type ListChatflowsRequest struct{}

// ChatflowSummary is one row of list_chatflows.
type ChatflowSummary struct {
	ID          any `json:"id"`
	Name        any `json:"name"`
	Type        any `json:"type"`
	Deployed    any `json:"deployed"`
	CreatedDate any `json:"createdDate"`
}

// ListChatflowsResult lists the platform's flows. Count and Chatflows are
// always present.
type ListChatflowsResult struct {
	Success   bool              `json:"success"`
	Count     int               `json:"count"`
	Chatflows []ChatflowSummary `json:"chatflows"`
	Error     string            `json:"error,omitempty"`
}

// GetChatflowRequest is the get_chatflow payload.
type GetChatflowRequest struct {
	ChatflowID string `json:"chatflow_id" validate:"required"`
}

// GetChatflowResult carries one flow.
type GetChatflowResult struct {
	Success  bool          `json:"success"`
	Chatflow client.Record `json:"chatflow,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// CreatePredictionRequest is the create_prediction payload.
type CreatePredictionRequest struct {
	Question   string              `json:"question" validate:"required"`
	ChatflowID string              `json:"chatflow_id" validate:"required"`
	History    []map[string]string `json:"history"`
}

// CreatePredictionResult carries the flow's answer.
type CreatePredictionResult struct {
	Success         bool   `json:"success"`
	Text            string `json:"text,omitempty"`
	SourceDocuments any    `json:"sourceDocuments,omitempty"`
	Error           string `json:"error,omitempty"`
}

// ListNodeTypesRequest is the list_node_types payload. Search wins over
// Category; Refresh only applies to the unfiltered listing.
type ListNodeTypesRequest struct {
	Category string `json:"category"`
	Search   string `json:"search"`
	Refresh  bool   `json:"refresh"`
}

// NodeTypeSummary is one row of list_node_types.
type NodeTypeSummary struct {
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Version     float64  `json:"version"`
	BaseClasses []string `json:"baseClasses"`
}

// ListNodeTypesResult lists node types. Count, Nodes and
// AvailableCategories are always present.
type ListNodeTypesResult struct {
	Success             bool              `json:"success"`
	Count               int               `json:"count"`
	Nodes               []NodeTypeSummary `json:"nodes"`
	AvailableCategories []string          `json:"available_categories"`
	Error               string            `json:"error,omitempty"`
}

// GetNodeSchemaRequest is the get_node_schema payload.
type GetNodeSchemaRequest struct {
	NodeName string `json:"node_name" validate:"required"`
	Summary  bool   `json:"summary"`
}

// GetNodeSchemaResult carries either the full schema or its summary.
type GetNodeSchemaResult struct {
	Success bool   `json:"success"`
	Schema  any    `json:"schema,omitempty"`
	Error   string `json:"error,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// CreateNodeRequest is the create_node payload.
type CreateNodeRequest struct {
	NodeName string            `json:"node_name" validate:"required"`
	Position *flowise.Position `json:"position"`
	Inputs   map[string]any    `json:"inputs"`
	NodeID   string            `json:"node_id"`
	Index    int               `json:"index" validate:"min=0"`
}

// CreateNodeResult carries the built node.
type CreateNodeResult struct {
	Success   bool          `json:"success"`
	Node      *flowise.Node `json:"node,omitempty"`
	NodeID    string        `json:"node_id,omitempty"`
	UsageHint string        `json:"usage_hint,omitempty"`
	Error     string        `json:"error,omitempty"`
	Hint      string        `json:"hint,omitempty"`
}

// CreateEdgeRequest is the create_edge payload.
type CreateEdgeRequest struct {
	SourceNode   map[string]any `json:"source_node" validate:"required,min=1"`
	TargetNode   map[string]any `json:"target_node" validate:"required,min=1"`
	TargetInput  string         `json:"target_input" validate:"required"`
	SourceOutput string         `json:"source_output"`
	ValidateOnly bool           `json:"validate_only"`
}

// CreateEdgeResult carries the built edge and the connection verdict.
type CreateEdgeResult struct {
	Success    bool                      `json:"success"`
	Edge       *flowise.Edge             `json:"edge,omitempty"`
	Validation *flowise.ConnectionResult `json:"validation,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkRequest returns the first violated field rule in the tool's own
// wording, or "" when req is valid.
func checkRequest(req any) string {
	err := requestValidator.Struct(req)
	if err == nil {
		return ""
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		if fe.Kind() == reflect.Map || fe.Kind() == reflect.Slice || fe.Kind() == reflect.String {
			return fmt.Sprintf("%s is required", fe.Field())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed '%s'", fe.Field(), fe.Tag())
	}
}
