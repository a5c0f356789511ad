package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-flowise/logging"
)

// Endpoint describes a registered RPC method.
type Endpoint struct {
	Method       string         `json:"method"`
	MessageType  string         `json:"messageType"`
	HandlerKind  string         `json:"handlerKind"`
	RequestType  *TypeRef       `json:"requestType,omitempty"`
	ResponseType *TypeRef       `json:"responseType,omitempty"`
	Timeout      time.Duration  `json:"timeout"`
	Idempotent   bool           `json:"idempotent"`
	Summary      string         `json:"summary,omitempty"`
	Description  string         `json:"description,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	Deprecated   bool           `json:"deprecated,omitempty"`
	InputSchema  map[string]any `json:"inputSchema,omitempty"`
}

type endpointEntry struct {
	endpoint Endpoint
	msgType  reflect.Type
	resType  reflect.Type
	newReq   func() any
	invoke   func(context.Context, any) (any, error)
}

// TypeRef describes a Go type in endpoint metadata for discovery.
type TypeRef struct {
	GoType  string `json:"goType"`
	PkgPath string `json:"pkgPath,omitempty"`
	Name    string `json:"name,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Pointer bool   `json:"pointer,omitempty"`
}

const (
	HandlerKindExecute = "execute"
	HandlerKindQuery   = "query"
)

// FailureStage identifies where a failure happened.
type FailureStage string

const (
	FailureStageRegister FailureStage = "register"
	FailureStageInvoke   FailureStage = "invoke"
)

// FailureMode controls how the server reacts to registration/invocation failures.
type FailureMode int

const (
	// FailureModeReject returns registration errors and re-panics invoke panics.
	FailureModeReject FailureMode = iota
	// FailureModeRecover returns registration errors and converts invoke panics to errors.
	FailureModeRecover
	// FailureModeLogAndContinue suppresses failures after logging them.
	// For register, the endpoint is skipped. For invoke panic, call returns an error.
	FailureModeLogAndContinue
)

// FailureEvent carries context for strategy/logging decisions.
type FailureEvent struct {
	Stage  FailureStage
	Method string
	Err    error
	Panic  any
}

// FailureStrategy decides how to handle a failure event.
type FailureStrategy func(FailureEvent) FailureMode

// FailureLogger receives failure events when configured.
type FailureLogger func(FailureEvent)

// Option customizes server behavior.
type Option func(*Server)

// WithFailureStrategy sets a custom failure strategy function.
func WithFailureStrategy(strategy FailureStrategy) Option {
	return func(s *Server) {
		if strategy != nil {
			s.failureStrategy = strategy
		}
	}
}

// WithFailureMode sets a fixed strategy mode.
func WithFailureMode(mode FailureMode) Option {
	return WithFailureStrategy(func(FailureEvent) FailureMode {
		return mode
	})
}

// WithFailureLogger sets an optional callback for failure events.
func WithFailureLogger(logger FailureLogger) Option {
	return func(s *Server) {
		s.failureLogger = logger
	}
}

// WithLogger sets the logger used by the server and its transports. Failure
// events are reported through it unless a FailureLogger is set.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMiddleware appends invoke middleware in registration order.
func WithMiddleware(mw ...Middleware) Option {
	return func(s *Server) {
		if s == nil {
			return
		}
		for _, m := range mw {
			if m != nil {
				s.middleware = append(s.middleware, m)
			}
		}
	}
}

// Server is an in memory registry of named methods and their invoker.
// Transport adapters decode a request with Decode and run it with Invoke.
type Server struct {
	mu              sync.RWMutex
	endpoints       map[string]endpointEntry
	middleware      []Middleware
	failureStrategy FailureStrategy
	failureLogger   FailureLogger
	logger          logging.Logger
	info            ServerInfo
}

// NewServer creates an empty RPC server registry.
func NewServer(opts ...Option) *Server {
	server := &Server{
		endpoints: make(map[string]endpointEntry),
		failureStrategy: func(FailureEvent) FailureMode {
			return FailureModeReject
		},
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(server)
		}
	}
	return server
}

// Logger returns the server logger.
func (s *Server) Logger() logging.Logger {
	if s == nil || s.logger == nil {
		return logging.Discard()
	}
	return s.logger
}

// Register stores the endpoints exposed by each provider.
func (s *Server) Register(providers ...EndpointsProvider) error {
	for _, provider := range providers {
		if provider == nil {
			continue
		}
		if err := s.RegisterEndpoints(provider.RPCEndpoints()...); err != nil {
			return err
		}
	}
	return nil
}

// RegisterEndpoint stores an explicit endpoint definition.
func (s *Server) RegisterEndpoint(def EndpointDefinition) error {
	if s == nil {
		return ErrNotConfigured.Clone()
	}
	if def == nil {
		return s.handleRegisterFailure("", raise(ErrInvalidPayload, "rpc endpoint definition required", nil))
	}

	spec := def.Spec()
	if spec.Method == "" {
		return s.handleRegisterFailure(spec.Method, ErrMethodRequired.Clone())
	}

	reqType := def.RequestType()
	resType := def.ResponseType()
	handlerKind := string(spec.Kind)
	if handlerKind == "" {
		handlerKind = HandlerKindQuery
	}

	msgName := spec.MessageType
	if msgName == "" {
		msgName = typeName(reqType)
	}

	entry := endpointEntry{
		endpoint: Endpoint{
			Method:       spec.Method,
			MessageType:  msgName,
			HandlerKind:  handlerKind,
			RequestType:  typeRef(reqType),
			ResponseType: typeRef(resType),
			Timeout:      spec.Timeout,
			Idempotent:   spec.Idempotent,
			Summary:      spec.Summary,
			Description:  spec.Description,
			Tags:         cloneStrings(spec.Tags),
			Deprecated:   spec.Deprecated,
			InputSchema:  cloneMap(spec.InputSchema),
		},
		msgType: reqType,
		resType: resType,
		newReq: func() any {
			return def.NewRequest()
		},
		invoke: def.Invoke,
	}

	if err := s.registerEndpointEntry(spec.Method, entry); err != nil {
		return s.handleRegisterFailure(spec.Method, err)
	}
	return nil
}

// RegisterEndpoints stores explicit endpoint definitions in registration order.
func (s *Server) RegisterEndpoints(defs ...EndpointDefinition) error {
	for _, def := range defs {
		if err := s.RegisterEndpoint(def); err != nil {
			return err
		}
	}
	return nil
}

// Invoke executes a registered RPC method using the provided payload.
// payload should already be decoded into the method's request envelope,
// see Decode.
func (s *Server) Invoke(ctx context.Context, method string, payload any) (any, error) {
	if s == nil {
		return nil, ErrNotConfigured.Clone()
	}
	if method == "" {
		return nil, ErrMethodRequired.Clone()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.RLock()
	entry, ok := s.endpoints[method]
	middleware := cloneMiddleware(s.middleware)
	s.mu.RUnlock()
	if !ok {
		return nil, methodNotFound(method)
	}

	if entry.endpoint.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, entry.endpoint.Timeout)
		defer cancel()
	}

	var (
		out any
		err error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				panErr := raise(ErrInvokePanic,
					fmt.Sprintf("rpc invoke panic for method %q: %v", method, p),
					map[string]any{"method": method},
				)
				event := FailureEvent{
					Stage:  FailureStageInvoke,
					Method: method,
					Err:    panErr,
					Panic:  p,
				}
				switch s.failureMode(event) {
				case FailureModeLogAndContinue, FailureModeRecover:
					s.logFailure(event)
					out = nil
					err = panErr
				default:
					panic(p)
				}
			}
		}()
		req := InvokeRequest{
			Method:   method,
			Endpoint: cloneEndpoint(entry.endpoint),
			Payload:  payload,
		}
		out, err = applyMiddleware(middleware, entry.invoke)(ctx, req)
	}()

	if err != nil && stderrors.Is(ctx.Err(), context.DeadlineExceeded) && ErrorCode(err) == "" {
		err = raise(ErrTimeout,
			fmt.Sprintf("rpc method %q timed out after %s", method, entry.endpoint.Timeout),
			map[string]any{"method": method},
		)
	}
	return out, err
}

// Decode builds the request envelope for method from raw JSON params. The
// params populate the envelope data; meta is attached as given. Empty or
// null params leave the data at its zero value.
func (s *Server) Decode(method string, params json.RawMessage, meta RequestMeta) (any, error) {
	req, err := s.NewRequestForMethod(method)
	if err != nil {
		return nil, err
	}
	value := reflect.ValueOf(req)
	if value.Kind() != reflect.Ptr || value.Elem().Kind() != reflect.Struct {
		return nil, raise(ErrInvalidPayload, fmt.Sprintf("rpc method %q has no request envelope", method), nil)
	}

	if hasPayload(params) {
		data := value.Elem().FieldByName("Data")
		if !data.IsValid() || !data.CanAddr() {
			return nil, raise(ErrInvalidPayload, fmt.Sprintf("rpc method %q does not accept params", method), nil)
		}
		dec := json.NewDecoder(bytes.NewReader(params))
		dec.UseNumber()
		if err := dec.Decode(data.Addr().Interface()); err != nil {
			return nil, raise(ErrInvalidPayload,
				fmt.Sprintf("invalid params for %q: %v", method, err),
				map[string]any{"method": method},
			)
		}
	}

	if field := value.Elem().FieldByName("Meta"); field.IsValid() && field.CanSet() {
		field.Set(reflect.ValueOf(meta))
	}
	return req, nil
}

// Call decodes params and invokes method in one step.
func (s *Server) Call(ctx context.Context, method string, params json.RawMessage, meta RequestMeta) (any, error) {
	payload, err := s.Decode(method, params, meta)
	if err != nil {
		return nil, err
	}
	return s.Invoke(ctx, method, payload)
}

// Endpoint returns endpoint metadata for the method.
func (s *Server) Endpoint(method string) (Endpoint, bool) {
	if s == nil {
		return Endpoint{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.endpoints[method]
	if !ok {
		return Endpoint{}, false
	}
	return cloneEndpoint(entry.endpoint), true
}

// Endpoints returns all endpoint metadata sorted by method.
func (s *Server) Endpoints() []Endpoint {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Endpoint, 0, len(s.endpoints))
	for _, entry := range s.endpoints {
		out = append(out, cloneEndpoint(entry.endpoint))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Method < out[j].Method
	})
	return out
}

// NewRequestForMethod creates a zero-value request envelope instance for transport decoding.
func (s *Server) NewRequestForMethod(method string) (any, error) {
	if s == nil {
		return nil, ErrNotConfigured.Clone()
	}
	if method == "" {
		return nil, ErrMethodRequired.Clone()
	}

	s.mu.RLock()
	entry, ok := s.endpoints[method]
	s.mu.RUnlock()
	if !ok {
		return nil, methodNotFound(method)
	}
	if entry.newReq != nil {
		return entry.newReq(), nil
	}
	return messageValue(entry.msgType), nil
}

// Unwrap extracts the data and error of a ResponseEnvelope returned by
// Invoke. Any other value is returned as data.
func Unwrap(out any) (any, *Error) {
	if p, ok := out.(payloader); ok {
		return p.Payload()
	}
	return out, nil
}

func payloadValue(msgType reflect.Type, payload any) (reflect.Value, error) {
	if msgType == nil {
		return reflect.Value{}, raise(ErrNotConfigured, "rpc message type not configured", nil)
	}
	if payload == nil {
		return reflect.Zero(msgType), nil
	}

	value := reflect.ValueOf(payload)
	if value.Type().AssignableTo(msgType) {
		return value, nil
	}
	if value.Type().ConvertibleTo(msgType) {
		return value.Convert(msgType), nil
	}

	// value -> pointer target
	if msgType.Kind() == reflect.Ptr && value.Type().AssignableTo(msgType.Elem()) {
		ptr := reflect.New(msgType.Elem())
		ptr.Elem().Set(value)
		return ptr, nil
	}

	return reflect.Value{}, raise(ErrInvalidPayload,
		fmt.Sprintf("invalid payload type: expected %s got %s", msgType.String(), value.Type().String()),
		nil,
	)
}

func messageValue(msgType reflect.Type) any {
	if msgType == nil {
		return nil
	}
	if msgType.Kind() == reflect.Ptr {
		return reflect.New(msgType.Elem()).Interface()
	}
	return reflect.New(msgType).Elem().Interface()
}

func typeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

func hasPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func typeRef(t reflect.Type) *TypeRef {
	if t == nil {
		return nil
	}
	base := t
	pointer := false
	if base.Kind() == reflect.Ptr {
		base = base.Elem()
		pointer = true
	}
	return &TypeRef{
		GoType:  t.String(),
		PkgPath: base.PkgPath(),
		Name:    base.Name(),
		Kind:    t.Kind().String(),
		Pointer: pointer,
	}
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return slices.Clone(values)
}

func cloneMap(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

func cloneMiddleware(values []Middleware) []Middleware {
	if len(values) == 0 {
		return nil
	}
	return slices.Clone(values)
}

func cloneEndpoint(endpoint Endpoint) Endpoint {
	endpoint.Tags = cloneStrings(endpoint.Tags)
	endpoint.InputSchema = cloneMap(endpoint.InputSchema)
	endpoint.RequestType = cloneTypeRef(endpoint.RequestType)
	endpoint.ResponseType = cloneTypeRef(endpoint.ResponseType)
	return endpoint
}

func cloneTypeRef(ref *TypeRef) *TypeRef {
	if ref == nil {
		return nil
	}
	copyRef := *ref
	return &copyRef
}

func (s *Server) handleRegisterFailure(method string, err error) error {
	event := FailureEvent{
		Stage:  FailureStageRegister,
		Method: method,
		Err:    err,
	}
	switch s.failureMode(event) {
	case FailureModeLogAndContinue:
		s.logFailure(event)
		return nil
	default:
		return err
	}
}

func (s *Server) failureMode(event FailureEvent) FailureMode {
	if s == nil || s.failureStrategy == nil {
		return FailureModeReject
	}
	return s.failureStrategy(event)
}

func (s *Server) logFailure(event FailureEvent) {
	if s == nil {
		return
	}
	if s.failureLogger != nil {
		s.failureLogger(event)
		return
	}
	logging.With(s.Logger(), map[string]any{
		"stage":  string(event.Stage),
		"method": event.Method,
	}).Error("rpc %s failure: %v", event.Stage, event.Err)
}

func (s *Server) registerEndpointEntry(method string, entry endpointEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.endpoints[method]; exists {
		return raise(ErrDuplicateMethod,
			fmt.Sprintf("rpc method %q already registered", method),
			map[string]any{"method": method},
		)
	}
	s.endpoints[method] = entry
	return nil
}
