package tools

import (
	"context"
	"fmt"

	flowise "github.com/goliatone/go-flowise"
	"github.com/goliatone/go-flowise/catalog"
	"github.com/goliatone/go-flowise/rpc"
)

const (
	descriptionLimit = 100
	listNodesHint    = "Use list_node_types to see available nodes"
	createNodeHint   = "Pass this node to create_edge to connect it to other nodes"
	errNoCatalog     = "node catalog is not configured"
)

func (s *Service) listNodeTypes(ctx context.Context, req rpc.RequestEnvelope[ListNodeTypesRequest]) (rpc.ResponseEnvelope[*ListNodeTypesResult], error) {
	in := req.Data
	result := &ListNodeTypesResult{
		Nodes:               []NodeTypeSummary{},
		AvailableCategories: []string{},
	}
	if s.catalog == nil {
		result.Error = errNoCatalog
		return respond(result)
	}

	var (
		schemas []*flowise.Schema
		err     error
	)
	switch {
	case in.Search != "":
		schemas, err = s.catalog.Search(ctx, in.Search)
	case in.Category != "":
		schemas, err = s.catalog.ByCategory(ctx, in.Category)
	default:
		schemas, err = s.catalog.All(ctx, in.Refresh)
	}
	if err != nil {
		s.log(ctx, MethodListNodeTypes).Error("node catalog unavailable: %v", err)
		result.Error = flowise.ErrorMessage(err)
		return respond(result)
	}

	for _, schema := range schemas {
		if schema == nil {
			continue
		}
		baseClasses := schema.BaseClasses
		if baseClasses == nil {
			baseClasses = []string{}
		}
		result.Nodes = append(result.Nodes, NodeTypeSummary{
			Name:        schema.Name,
			Label:       schema.Label,
			Category:    schema.Category,
			Description: truncate(schema.Description, descriptionLimit),
			Version:     schema.Version,
			BaseClasses: baseClasses,
		})
	}

	categories, err := s.catalog.Categories(ctx)
	if err != nil {
		result.Error = flowise.ErrorMessage(err)
		return respond(result)
	}
	if categories != nil {
		result.AvailableCategories = categories
	}

	result.Success = true
	result.Count = len(result.Nodes)
	return respond(result)
}

func (s *Service) getNodeSchema(ctx context.Context, req rpc.RequestEnvelope[GetNodeSchemaRequest]) (rpc.ResponseEnvelope[*GetNodeSchemaResult], error) {
	in := req.Data
	result := &GetNodeSchemaResult{}
	if msg := checkRequest(in); msg != "" {
		result.Error = msg
		return respond(result)
	}

	schema, msg, hint := s.lookup(ctx, in.NodeName)
	if schema == nil {
		result.Error = msg
		result.Hint = hint
		return respond(result)
	}

	result.Success = true
	if in.Summary {
		result.Schema = catalog.Summarize(schema)
	} else {
		result.Schema = schema
	}
	return respond(result)
}

func (s *Service) createNode(ctx context.Context, req rpc.RequestEnvelope[CreateNodeRequest]) (rpc.ResponseEnvelope[*CreateNodeResult], error) {
	in := req.Data
	result := &CreateNodeResult{}
	if msg := checkRequest(in); msg != "" {
		result.Error = msg
		return respond(result)
	}

	schema, msg, hint := s.lookup(ctx, in.NodeName)
	if schema == nil {
		result.Error = msg
		result.Hint = hint
		return respond(result)
	}

	opts := []flowise.NodeOption{flowise.WithIndex(in.Index)}
	if in.NodeID != "" {
		opts = append(opts, flowise.WithNodeID(in.NodeID))
	}
	if in.Position != nil {
		opts = append(opts, flowise.WithPosition(*in.Position))
	}
	if in.Inputs != nil {
		opts = append(opts, flowise.WithInputs(in.Inputs))
	}

	node, err := flowise.BuildNode(schema, opts...)
	if err != nil {
		result.Error = flowise.ErrorMessage(err)
		return respond(result)
	}

	result.Success = true
	result.Node = node
	result.NodeID = node.ID
	result.UsageHint = createNodeHint
	return respond(result)
}

func (s *Service) createEdge(_ context.Context, req rpc.RequestEnvelope[CreateEdgeRequest]) (rpc.ResponseEnvelope[*CreateEdgeResult], error) {
	in := req.Data
	result := &CreateEdgeResult{}
	if msg := checkRequest(in); msg != "" {
		result.Error = msg
		return respond(result)
	}

	source, err := flowise.DecodeNode(in.SourceNode)
	if err != nil {
		result.Error = "source_node: " + flowise.ErrorMessage(err)
		return respond(result)
	}
	target, err := flowise.DecodeNode(in.TargetNode)
	if err != nil {
		result.Error = "target_node: " + flowise.ErrorMessage(err)
		return respond(result)
	}

	validation := flowise.ValidateConnection(source, target, in.TargetInput, in.SourceOutput)
	result.Validation = &validation

	if in.ValidateOnly {
		result.Success = true
		return respond(result)
	}
	if !validation.Valid {
		result.Error = validation.Error
		if result.Error == "" {
			result.Error = "Connection not valid"
		}
		return respond(result)
	}

	edge, err := flowise.BuildEdge(source, target, in.TargetInput, in.SourceOutput)
	if err != nil {
		result.Error = flowise.ErrorMessage(err)
		return respond(result)
	}
	result.Success = true
	result.Edge = edge
	return respond(result)
}

// lookup resolves a schema, returning the failure message and hint when it
// is absent.
func (s *Service) lookup(ctx context.Context, name string) (*flowise.Schema, string, string) {
	if s.catalog == nil {
		return nil, errNoCatalog, ""
	}
	schema, ok, err := s.catalog.Lookup(ctx, name)
	if err != nil {
		s.log(ctx, "lookup").Error("node catalog unavailable: %v", err)
		return nil, flowise.ErrorMessage(err), ""
	}
	if !ok || schema == nil {
		return nil, fmt.Sprintf("Node '%s' not found", name), listNodesHint
	}
	return schema, "", ""
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
