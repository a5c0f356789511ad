package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// JSONRPCVersion is the protocol version written on every response.
const JSONRPCVersion = "2.0"

// JSON-RPC 2.0 error codes.
const (
	CodeParseError       = -32700
	CodeInvalidRequest   = -32600
	CodeMethodNotFound   = -32601
	CodeInvalidParams    = -32602
	CodeInvocationFailed = -32000
)

// Tool-calling protocol methods answered by the dispatcher itself.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
)

const protocolVersion = "2024-11-05"

// Request is a JSON-RPC 2.0 request. A request without an id is a
// notification and gets no response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no id.
func (r Request) IsNotification() bool {
	return len(bytes.TrimSpace(r.ID)) == 0
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is the JSON-RPC error object.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ServerInfo identifies the server in the initialize handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// WithServerInfo sets the name and version reported on initialize.
func WithServerInfo(name, version string) Option {
	return func(s *Server) {
		s.info = ServerInfo{Name: name, Version: version}
	}
}

// ToolDescriptor is one entry of a tools/list result.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolContent is one content block of a tools/call result.
type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolCallResult is the tools/call result: the method output rendered as
// indented JSON text.
type ToolCallResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// HandleMessage decodes and dispatches a single JSON-RPC message. The second
// return value is false when nothing must be written back.
func (s *Server) HandleMessage(ctx context.Context, raw []byte, meta RequestMeta) (*Response, bool) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(nil, CodeParseError, "invalid JSON payload", err.Error()), true
	}
	return s.Dispatch(ctx, req, meta)
}

// Dispatch runs req against the registered endpoints. Methods are addressed
// either directly by name or through tools/call.
func (s *Server) Dispatch(ctx context.Context, req Request, meta RequestMeta) (*Response, bool) {
	if req.JSONRPC != "" && req.JSONRPC != JSONRPCVersion {
		return errorResponse(req.ID, CodeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC), true
	}
	if req.Method == "" {
		return errorResponse(req.ID, CodeInvalidRequest, "method is required", nil), true
	}
	if meta.RequestID == "" && !req.IsNotification() {
		meta.RequestID = string(bytes.Trim(req.ID, `"`))
	}

	var resp *Response
	switch req.Method {
	case MethodInitialized:
		return nil, false
	case MethodInitialize:
		resp = resultResponse(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo":      s.serverInfo(),
			"capabilities":    map[string]any{"tools": map[string]any{}},
		})
	case MethodPing:
		resp = resultResponse(req.ID, map[string]any{})
	case MethodToolsList:
		resp = resultResponse(req.ID, map[string]any{"tools": s.Tools()})
	case MethodToolsCall:
		resp = s.dispatchToolCall(ctx, req, meta)
	default:
		resp = s.dispatchMethod(ctx, req, meta)
	}

	if req.IsNotification() {
		return nil, false
	}
	return resp, true
}

// Tools lists the registered endpoints as tool descriptors.
func (s *Server) Tools() []ToolDescriptor {
	endpoints := s.Endpoints()
	out := make([]ToolDescriptor, 0, len(endpoints))
	for _, endpoint := range endpoints {
		schema := endpoint.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		description := endpoint.Description
		if description == "" {
			description = endpoint.Summary
		}
		out = append(out, ToolDescriptor{
			Name:        endpoint.Method,
			Description: description,
			InputSchema: schema,
		})
	}
	return out
}

func (s *Server) dispatchMethod(ctx context.Context, req Request, meta RequestMeta) *Response {
	payload, err := s.Decode(req.Method, req.Params, meta)
	if err != nil {
		return errorFromInvoke(req.ID, err)
	}
	out, err := s.Invoke(ctx, req.Method, payload)
	if err != nil {
		return errorFromInvoke(req.ID, err)
	}
	data, rpcErr := Unwrap(out)
	if rpcErr != nil {
		return errorResponse(req.ID, CodeInvocationFailed, rpcErr.Message, rpcErr)
	}
	return resultResponse(req.ID, data)
}

func (s *Server) dispatchToolCall(ctx context.Context, req Request, meta RequestMeta) *Response {
	var params toolCallParams
	if !hasPayload(req.Params) {
		return errorResponse(req.ID, CodeInvalidParams, "tool name is required", nil)
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid tool call params", err.Error())
	}
	if params.Name == "" {
		return errorResponse(req.ID, CodeInvalidParams, "tool name is required", nil)
	}
	if _, ok := s.Endpoint(params.Name); !ok {
		return resultResponse(req.ID, toolText(map[string]any{
			"error": fmt.Sprintf("Unknown tool: %s", params.Name),
		}, true))
	}

	out, err := s.Call(ctx, params.Name, params.Arguments, meta)
	if err != nil {
		if ErrorCode(err) == ErrCodeInvalidPayload {
			return errorFromInvoke(req.ID, err)
		}
		return resultResponse(req.ID, toolText(map[string]any{
			"error": ToError(err).Message,
			"tool":  params.Name,
		}, true))
	}
	data, rpcErr := Unwrap(out)
	if rpcErr != nil {
		return resultResponse(req.ID, toolText(map[string]any{
			"error": rpcErr.Message,
			"tool":  params.Name,
		}, true))
	}
	return resultResponse(req.ID, toolText(data, false))
}

func (s *Server) serverInfo() ServerInfo {
	info := s.info
	if info.Name == "" {
		info.Name = "go-flowise"
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	return info
}

func toolText(data any, isError bool) ToolCallResult {
	text, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		text = []byte(fmt.Sprintf(`{"error": %q}`, err.Error()))
		isError = true
	}
	return ToolCallResult{
		Content: []ToolContent{{Type: "text", Text: string(text)}},
		IsError: isError,
	}
}

func errorFromInvoke(id json.RawMessage, err error) *Response {
	rpcErr := ToError(err)
	switch ErrorCode(err) {
	case ErrCodeMethodNotFound:
		return errorResponse(id, CodeMethodNotFound, "method not found", rpcErr)
	case ErrCodeInvalidPayload, ErrCodeMethodRequired:
		return errorResponse(id, CodeInvalidParams, "invalid method params", rpcErr)
	default:
		return errorResponse(id, CodeInvocationFailed, "rpc invocation failed", rpcErr)
	}
}

func resultResponse(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string, data any) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &ResponseError{Code: code, Message: message, Data: data},
	}
}
