package tools

import (
	"context"

	flowise "github.com/goliatone/go-flowise"
	"github.com/goliatone/go-flowise/client"
	"github.com/goliatone/go-flowise/rpc"
)

func (s *Service) validateWorkflow(ctx context.Context, req rpc.RequestEnvelope[ValidateWorkflowRequest]) (rpc.ResponseEnvelope[*flowise.ValidationResult], error) {
	in := req.Data
	doc := in.Workflow
	if doc == nil {
		doc = flowise.Document{}
	}

	result := flowise.ValidateWorkflow(doc, in.Strict)
	if in.ChatflowID == "" || !result.Valid {
		return respond(result)
	}

	log := s.log(ctx, MethodValidateWorkflow)
	remote, err := s.requireRemote()
	if err != nil {
		result.MergeServerError(err)
		return respond(result)
	}
	items, err := remote.ValidateChatflow(ctx, in.ChatflowID)
	if err != nil {
		log.Warn("server validation of %s failed: %v", in.ChatflowID, err)
		result.MergeServerError(err)
		return respond(result)
	}
	result.MergeServer(items)
	return respond(result)
}

func (s *Service) wrapWorkflow(_ context.Context, req rpc.RequestEnvelope[WrapWorkflowRequest]) (rpc.ResponseEnvelope[*flowise.WrapResult], error) {
	in := req.Data
	result, _ := flowise.Wrap(in.Workflow, s.wrapOptions(in.Name, boolOr(in.GenerateID, true))...)
	return respond(result)
}

func (s *Service) createChatflow(ctx context.Context, req rpc.RequestEnvelope[CreateChatflowRequest]) (rpc.ResponseEnvelope[*CreateChatflowResult], error) {
	in := req.Data
	result := &CreateChatflowResult{}
	if msg := checkRequest(in); msg != "" {
		result.Error = msg
		return respond(result)
	}

	raw := in.Workflow.Has("nodes") && !in.Workflow.Has("flowData")

	if raw && boolOr(in.ValidateFirst, true) {
		validation := flowise.ValidateWorkflow(in.Workflow, false)
		result.ValidationResult = validation
		if !validation.Valid {
			result.Error = "Validation failed - see validation_result"
			return respond(result)
		}
	}

	var item flowise.Item
	if raw {
		wrapped, err := flowise.Wrap(in.Workflow, s.wrapOptions(in.Name, true)...)
		if err != nil {
			result.Error = wrapped.Error
			return respond(result)
		}
		item = wrapped.Wrapped
	} else {
		item = flowise.Item(in.Workflow.Clone())
		item["name"] = in.Name
	}
	item["deployed"] = in.Deployed

	remote, err := s.requireRemote()
	if err != nil {
		result.Error = flowise.ErrorMessage(err)
		return respond(result)
	}
	created, err := remote.CreateChatflow(ctx, item)
	if err != nil {
		s.log(ctx, MethodCreateChatflow).Error("create chatflow %q failed: %v", in.Name, err)
		result.Error = flowise.ErrorMessage(err)
		return respond(result)
	}

	result.Success = true
	result.ChatflowID = created["id"]
	result.APIResponse = created
	return respond(result)
}

func (s *Service) importWorkflow(ctx context.Context, req rpc.RequestEnvelope[ImportWorkflowRequest]) (rpc.ResponseEnvelope[*ImportWorkflowResult], error) {
	in := req.Data
	result := &ImportWorkflowResult{}

	env := in.ExportData
	if env == nil {
		env = flowise.NewEnvelope()
	}
	counts := ImportCounts{
		Chatflows:  len(env.ChatFlow),
		Agentflows: len(env.AgentFlowV2),
		Tools:      len(env.Tool),
	}
	if counts.Total() == 0 {
		result.Error = "ExportData is empty - no items to import"
		return respond(result)
	}

	remote, err := s.requireRemote()
	if err != nil {
		result.Error = flowise.ErrorMessage(err)
		return respond(result)
	}
	resp, err := remote.ImportData(ctx, env)
	if err != nil {
		s.log(ctx, MethodImportWorkflow).Error("import failed: %v", err)
		result.Error = flowise.ErrorMessage(err)
		return respond(result)
	}

	result.Success = true
	result.Imported = &counts
	result.APIResponse = resp
	return respond(result)
}

func (s *Service) wrapOptions(name string, generateID bool) []flowise.WrapOption {
	opts := append([]flowise.WrapOption{}, s.wrapOpts...)
	return append(opts, flowise.WithName(name), flowise.WithGenerateID(generateID))
}

func (s *Service) requireRemote() (Remote, error) {
	if s.remote == nil {
		return nil, client.ErrConfig.Clone()
	}
	return s.remote, nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
