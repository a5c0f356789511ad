package flowise

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

const (
	defaultWorkflowName = "Unnamed Workflow"
	defaultToolName     = "Unnamed Tool"
)

// Item is a single wrapped entry of an envelope collection.
type Item map[string]any

// Envelope is the platform's bulk import/export structure. Every collection
// is always present, and encodes as an empty array when it holds nothing.
type Envelope struct {
	AgentFlow              []Item `json:"AgentFlow"`
	AgentFlowV2            []Item `json:"AgentFlowV2"`
	AssistantFlow          []Item `json:"AssistantFlow"`
	AssistantCustom        []Item `json:"AssistantCustom"`
	AssistantOpenAI        []Item `json:"AssistantOpenAI"`
	AssistantAzure         []Item `json:"AssistantAzure"`
	ChatFlow               []Item `json:"ChatFlow"`
	ChatMessage            []Item `json:"ChatMessage"`
	ChatMessageFeedback    []Item `json:"ChatMessageFeedback"`
	CustomTemplate         []Item `json:"CustomTemplate"`
	DocumentStore          []Item `json:"DocumentStore"`
	DocumentStoreFileChunk []Item `json:"DocumentStoreFileChunk"`
	Execution              []Item `json:"Execution"`
	Tool                   []Item `json:"Tool"`
	Variable               []Item `json:"Variable"`
}

// NewEnvelope returns an envelope with every collection empty.
func NewEnvelope() *Envelope {
	e := &Envelope{}
	e.normalize()
	return e
}

// Len returns the number of items across all collections.
func (e *Envelope) Len() int {
	if e == nil {
		return 0
	}
	total := 0
	for _, c := range e.collections() {
		total += len(*c)
	}
	return total
}

// MarshalJSON encodes nil collections as empty arrays.
func (e Envelope) MarshalJSON() ([]byte, error) {
	e.normalize()
	type envelopeJSON Envelope
	return json.Marshal(envelopeJSON(e))
}

func (e *Envelope) normalize() {
	for _, c := range e.collections() {
		if *c == nil {
			*c = []Item{}
		}
	}
}

func (e *Envelope) collections() []*[]Item {
	return []*[]Item{
		&e.AgentFlow, &e.AgentFlowV2, &e.AssistantFlow, &e.AssistantCustom,
		&e.AssistantOpenAI, &e.AssistantAzure, &e.ChatFlow, &e.ChatMessage,
		&e.ChatMessageFeedback, &e.CustomTemplate, &e.DocumentStore,
		&e.DocumentStoreFileChunk, &e.Execution, &e.Tool, &e.Variable,
	}
}

// WrapResult reports the outcome of Wrap.
type WrapResult struct {
	Success      bool      `json:"success"`
	DetectedType *FlowKind `json:"detected_type"`
	ExportData   *Envelope `json:"exportdata"`
	Wrapped      Item      `json:"wrapped"`
	Error        string    `json:"error,omitempty"`
}

// WrapOption customizes Wrap.
type WrapOption func(*wrapConfig)

type wrapConfig struct {
	name       string
	generateID bool
	newID      func() string
}

// WithName overrides the wrapped item's name.
func WithName(name string) WrapOption {
	return func(c *wrapConfig) {
		c.name = name
	}
}

// WithGenerateID controls whether the wrapped item gets a fresh id. It is
// enabled by default.
func WithGenerateID(generate bool) WrapOption {
	return func(c *wrapConfig) {
		c.generateID = generate
	}
}

// WithIDGenerator replaces the random id source.
func WithIDGenerator(fn func() string) WrapOption {
	return func(c *wrapConfig) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// Wrap converts a raw graph, a tool definition or an already wrapped item
// into an import envelope holding exactly one item. Documents of no
// recognizable shape fail with ErrUnknownFormat; the returned result then
// carries success false and the message.
func Wrap(doc Document, opts ...WrapOption) (*WrapResult, error) {
	cfg := &wrapConfig{generateID: true, newID: uuid.NewString}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	env := NewEnvelope()
	var (
		kind FlowKind
		item Item
		err  error
	)

	switch Classify(doc) {
	case FormatTool:
		kind = FlowKindTool
		item = wrapTool(doc, cfg)
		env.Tool = append(env.Tool, item)

	case FormatRawFlow:
		kind = DetectFlowType(doc)
		item, err = wrapRawFlow(doc, kind, cfg)
		if err != nil {
			return &WrapResult{Error: ErrorMessage(err)}, err
		}
		if kind == FlowKindAgentflow {
			env.AgentFlowV2 = append(env.AgentFlowV2, item)
		} else {
			env.ChatFlow = append(env.ChatFlow, item)
		}

	case FormatWrapped:
		item = Item(doc.Clone())
		if cfg.name != "" {
			item["name"] = cfg.name
		}
		if cfg.generateID {
			item["id"] = cfg.newID()
		}
		switch FlowKind(doc.String("type")) {
		case FlowKindAgentflow, FlowKindMultiAgent:
			kind = FlowKindAgentflow
			env.AgentFlowV2 = append(env.AgentFlowV2, item)
		default:
			kind = FlowKindChatflow
			env.ChatFlow = append(env.ChatFlow, item)
		}

	default:
		err := ErrUnknownFormat.Clone()
		return &WrapResult{Error: ErrorMessage(err)}, err
	}

	return &WrapResult{
		Success:      true,
		DetectedType: &kind,
		ExportData:   env,
		Wrapped:      item,
	}, nil
}

func wrapTool(doc Document, cfg *wrapConfig) Item {
	item := Item{}
	for _, key := range []string{"name", "description", "color", "iconSrc", "schema", "func"} {
		if v, ok := doc[key]; ok {
			item[key] = v
		} else {
			item[key] = ""
		}
	}
	switch {
	case cfg.name != "":
		item["name"] = cfg.name
	case !doc.Has("name"):
		item["name"] = defaultToolName
	}
	return item
}

func wrapRawFlow(doc Document, kind FlowKind, cfg *wrapConfig) (Item, error) {
	flowData, err := EncodeFlowData(doc)
	if err != nil {
		return nil, err
	}

	var id any
	switch {
	case cfg.generateID:
		id = cfg.newID()
	case doc.Has("id"):
		id = doc["id"]
	default:
		id = cfg.newID()
	}

	name := cfg.name
	if name == "" {
		name = defaultWorkflowName
	}

	return Item{
		"id":       id,
		"name":     name,
		"flowData": flowData,
		"type":     string(kind),
	}, nil
}

// EncodeFlowData renders a graph document as the indented JSON text stored
// in a wrapped item's flowData field.
func EncodeFlowData(doc Document) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return "", raise(ErrFormat, "flow document could not be encoded: "+err.Error(), nil)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// DecodeFlowData parses a wrapped item's flowData text back into a graph
// document.
func DecodeFlowData(item Item) (Document, error) {
	text, ok := item["flowData"].(string)
	if !ok {
		return nil, raise(ErrFormat, "flowData must be a JSON string", nil)
	}
	return ParseDocument([]byte(text))
}
