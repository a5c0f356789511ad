package tools

import (
	"context"

	flowise "github.com/goliatone/go-flowise"
	"github.com/goliatone/go-flowise/client"
	"github.com/goliatone/go-flowise/logging"
	"github.com/goliatone/go-flowise/rpc"
)

// Remote is the subset of the platform API the tools call.
type Remote interface {
	ListChatflows(ctx context.Context) ([]client.Record, error)
	GetChatflow(ctx context.Context, id string) (client.Record, error)
	CreateChatflow(ctx context.Context, item flowise.Item) (client.Record, error)
	ValidateChatflow(ctx context.Context, id string) ([]map[string]any, error)
	ImportData(ctx context.Context, env *flowise.Envelope) (any, error)
	CreatePrediction(ctx context.Context, chatflowID string, req client.PredictionRequest) (any, error)
}

// Catalog resolves node-type schemas.
type Catalog interface {
	All(ctx context.Context, forceRefresh bool) ([]*flowise.Schema, error)
	Lookup(ctx context.Context, name string) (*flowise.Schema, bool, error)
	Categories(ctx context.Context) ([]string, error)
	ByCategory(ctx context.Context, category string) ([]*flowise.Schema, error)
	Search(ctx context.Context, query string) ([]*flowise.Schema, error)
}

// Option configures a Service.
type Option func(*Service)

// WithRemote sets the platform client. Without one every remote operation
// reports the configuration error.
func WithRemote(r Remote) Option {
	return func(s *Service) {
		s.remote = r
	}
}

// WithCatalog sets the schema catalog used by the node tools.
func WithCatalog(c Catalog) Option {
	return func(s *Service) {
		s.catalog = c
	}
}

// WithLogger sets the service logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWrapOptions appends options applied to every wrap, e.g. a fixed id
// generator.
func WithWrapOptions(opts ...flowise.WrapOption) Option {
	return func(s *Service) {
		s.wrapOpts = append(s.wrapOpts, opts...)
	}
}

// Service implements the workflow tools on top of the core package, the
// platform client and the schema catalog.
type Service struct {
	remote   Remote
	catalog  Catalog
	logger   logging.Logger
	wrapOpts []flowise.WrapOption
}

// New returns a Service.
func New(opts ...Option) *Service {
	s := &Service{logger: logging.Discard()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// RPCEndpoints exposes every tool as a named method.
func (s *Service) RPCEndpoints() []rpc.EndpointDefinition {
	return []rpc.EndpointDefinition{
		rpc.NewEndpoint(rpc.EndpointSpec{
			Method:      MethodValidateWorkflow,
			Kind:        rpc.MethodKindQuery,
			Summary:     "Validate a workflow",
			Description: "Validate a Flowise workflow. Performs local structural validation (nodes, edges, references) and optionally server-side validation if chatflow_id provided.",
			Tags:        []string{"workflow"},
			Idempotent:  true,
			InputSchema: validateWorkflowSchema,
		}, s.validateWorkflow),
		rpc.NewEndpoint(rpc.EndpointSpec{
			Method:      MethodWrapWorkflow,
			Kind:        rpc.MethodKindQuery,
			Summary:     "Wrap a workflow for import",
			Description: "Convert a raw Flowise workflow (nodes/edges) to ExportData format for import. Auto-detects CHATFLOW vs AGENTFLOW vs Tool.",
			Tags:        []string{"workflow"},
			InputSchema: wrapWorkflowSchema,
		}, s.wrapWorkflow),
		rpc.NewEndpoint(rpc.EndpointSpec{
			Method:      MethodCreateChatflow,
			Kind:        rpc.MethodKindCommand,
			Summary:     "Create a chatflow",
			Description: "Create a new workflow in Flowise via API. Can accept raw workflow (nodes/edges) or pre-wrapped format. Optionally validates before creating.",
			Tags:        []string{"workflow", "remote"},
			InputSchema: createChatflowSchema,
		}, s.createChatflow),
		rpc.NewEndpoint(rpc.EndpointSpec{
			Method:      MethodImportWorkflow,
			Kind:        rpc.MethodKindCommand,
			Summary:     "Import an envelope",
			Description: "Import workflows/tools via Flowise API using ExportData format. Use wrap_workflow first if you have raw workflow JSON.",
			Tags:        []string{"workflow", "remote"},
			InputSchema: importWorkflowSchema,
		}, s.importWorkflow),
		rpc.NewEndpoint(rpc.EndpointSpec{
			Method:      MethodListChatflows,
			Kind:        rpc.MethodKindQuery,
			Summary:     "List chatflows",
			Description: "List all chatflows in Flowise.",
			Tags:        []string{"chatflow", "remote"},
			Idempotent:  true,
			InputSchema: emptySchema,
		}, s.listChatflows),
		rpc.NewEndpoint(rpc.EndpointSpec{
			Method:      MethodGetChatflow,
			Kind:        rpc.MethodKindQuery,
			Summary:     "Get a chatflow",
			Description: "Get detailed information about a specific chatflow.",
			Tags:        []string{"chatflow", "remote"},
			Idempotent:  true,
			InputSchema: getChatflowSchema,
		}, s.getChatflow),
		rpc.NewEndpoint(rpc.EndpointSpec{
			Method:      MethodCreatePrediction,
			Kind:        rpc.MethodKindCommand,
			Summary:     "Ask a chatflow",
			Description: "Send a question to a Flowise chatflow and get an AI response. Use list_chatflows to find available chatflow IDs.",
			Tags:        []string{"chatflow", "remote"},
			InputSchema: createPredictionSchema,
		}, s.createPrediction),
		rpc.NewEndpoint(rpc.EndpointSpec{
			Method:      MethodListNodeTypes,
			Kind:        rpc.MethodKindQuery,
			Summary:     "List node types",
			Description: "Get catalog of available Flowise node types with basic metadata. Use to discover what nodes are available for building workflows.",
			Tags:        []string{"nodes"},
			Idempotent:  true,
			InputSchema: listNodeTypesSchema,
		}, s.listNodeTypes),
		rpc.NewEndpoint(rpc.EndpointSpec{
			Method:      MethodGetNodeSchema,
			Kind:        rpc.MethodKindQuery,
			Summary:     "Get a node schema",
			Description: "Get complete schema for a specific Flowise node type. Returns inputParams, inputAnchors, outputAnchors needed for building nodes.",
			Tags:        []string{"nodes"},
			Idempotent:  true,
			InputSchema: getNodeSchemaSchema,
		}, s.getNodeSchema),
		rpc.NewEndpoint(rpc.EndpointSpec{
			Method:      MethodCreateNode,
			Kind:        rpc.MethodKindQuery,
			Summary:     "Build a node",
			Description: "Build a properly structured Flowise node instance from schema. Creates a complete node with all required fields for UI rendering.",
			Tags:        []string{"nodes"},
			InputSchema: createNodeSchema,
		}, s.createNode),
		rpc.NewEndpoint(rpc.EndpointSpec{
			Method:      MethodCreateEdge,
			Kind:        rpc.MethodKindQuery,
			Summary:     "Build an edge",
			Description: "Build a properly structured edge connecting two Flowise nodes. Validates anchor compatibility and generates proper handle IDs.",
			Tags:        []string{"nodes"},
			Idempotent:  true,
			InputSchema: createEdgeSchema,
		}, s.createEdge),
	}
}

// Method names.
const (
	MethodValidateWorkflow = "validate_workflow"
	MethodWrapWorkflow     = "wrap_workflow"
	MethodCreateChatflow   = "create_chatflow"
	MethodImportWorkflow   = "import_workflow"
	MethodListChatflows    = "list_chatflows"
	MethodGetChatflow      = "get_chatflow"
	MethodCreatePrediction = "create_prediction"
	MethodListNodeTypes    = "list_node_types"
	MethodGetNodeSchema    = "get_node_schema"
	MethodCreateNode       = "create_node"
	MethodCreateEdge       = "create_edge"
)

func (s *Service) log(ctx context.Context, method string) logging.Logger {
	return logging.With(s.logger.WithContext(ctx), map[string]any{"tool": method})
}

func respond[T any](data T) (rpc.ResponseEnvelope[T], error) {
	return rpc.ResponseEnvelope[T]{Data: data}, nil
}
