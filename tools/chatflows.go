package tools

import (
	"context"
	"fmt"

	flowise "github.com/goliatone/go-flowise"
	"github.com/goliatone/go-flowise/client"
	"github.com/goliatone/go-flowise/rpc"
)

func (s *Service) listChatflows(ctx context.Context, _ rpc.RequestEnvelope[ListChatflowsRequest]) (rpc.ResponseEnvelope[*ListChatflowsResult], error) {
	result := &ListChatflowsResult{Chatflows: []ChatflowSummary{}}

	remote, err := s.requireRemote()
	if err != nil {
		result.Error = flowise.ErrorMessage(err)
		return respond(result)
	}
	flows, err := remote.ListChatflows(ctx)
	if err != nil {
		s.log(ctx, MethodListChatflows).Error("list chatflows failed: %v", err)
		result.Error = flowise.ErrorMessage(err)
		return respond(result)
	}

	for _, flow := range flows {
		result.Chatflows = append(result.Chatflows, ChatflowSummary{
			ID:          flow["id"],
			Name:        flow["name"],
			Type:        valueOr(flow, "type", string(flowise.FlowKindChatflow)),
			Deployed:    valueOr(flow, "deployed", false),
			CreatedDate: flow["createdDate"],
		})
	}
	result.Success = true
	result.Count = len(flows)
	return respond(result)
}

func (s *Service) getChatflow(ctx context.Context, req rpc.RequestEnvelope[GetChatflowRequest]) (rpc.ResponseEnvelope[*GetChatflowResult], error) {
	result := &GetChatflowResult{}
	if msg := checkRequest(req.Data); msg != "" {
		result.Error = msg
		return respond(result)
	}

	remote, err := s.requireRemote()
	if err != nil {
		result.Error = flowise.ErrorMessage(err)
		return respond(result)
	}
	flow, err := remote.GetChatflow(ctx, req.Data.ChatflowID)
	if err != nil {
		log := s.log(ctx, MethodGetChatflow)
		if client.IsNotFound(err) {
			log.Debug("chatflow %s not found", req.Data.ChatflowID)
		} else {
			log.Error("get chatflow %s failed: %v", req.Data.ChatflowID, err)
		}
		result.Error = flowise.ErrorMessage(err)
		return respond(result)
	}

	result.Success = true
	result.Chatflow = flow
	return respond(result)
}

func (s *Service) createPrediction(ctx context.Context, req rpc.RequestEnvelope[CreatePredictionRequest]) (rpc.ResponseEnvelope[*CreatePredictionResult], error) {
	in := req.Data
	result := &CreatePredictionResult{}
	if msg := checkRequest(in); msg != "" {
		result.Error = msg
		return respond(result)
	}

	remote, err := s.requireRemote()
	if err != nil {
		result.Error = flowise.ErrorMessage(err)
		return respond(result)
	}
	answer, err := remote.CreatePrediction(ctx, in.ChatflowID, client.PredictionRequest{
		Question: in.Question,
		History:  in.History,
	})
	if err != nil {
		s.log(ctx, MethodCreatePrediction).Error("prediction on %s failed: %v", in.ChatflowID, err)
		result.Error = flowise.ErrorMessage(err)
		return respond(result)
	}

	result.Success = true
	switch v := answer.(type) {
	case map[string]any:
		result.Text = predictionText(v)
		if docs, ok := v["sourceDocuments"]; ok {
			result.SourceDocuments = docs
		}
	case client.Record:
		result.Text = predictionText(v)
		if docs, ok := v["sourceDocuments"]; ok {
			result.SourceDocuments = docs
		}
	case string:
		result.Text = v
	default:
		result.Text = fmt.Sprint(v)
	}
	return respond(result)
}

// predictionText picks the answer text: "text", then "response", then the
// whole object.
func predictionText(answer map[string]any) string {
	for _, key := range []string{"text", "response"} {
		if v, ok := answer[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			return fmt.Sprint(v)
		}
	}
	return fmt.Sprint(answer)
}

func valueOr(record client.Record, key string, fallback any) any {
	if v, ok := record[key]; ok {
		return v
	}
	return fallback
}
