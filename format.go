package flowise

// Format names the shape of an incoming document.
type Format string

const (
	FormatUnknown Format = "unknown"
	FormatRawFlow Format = "raw_flow"
	FormatWrapped Format = "wrapped"
	FormatTool    Format = "tool"
)

// IsWrapped reports whether the document is an already wrapped flow item.
func IsWrapped(doc Document) bool {
	return doc.Has("flowData")
}

// IsTool reports whether the document is a custom tool definition.
func IsTool(doc Document) bool {
	return doc.Has("func") && doc.Has("schema") && doc.Has("name")
}

// IsRawFlow reports whether the document is a bare nodes/edges graph.
// A document with func and schema is treated as tool-like even without a
// name, so it is never a raw flow.
func IsRawFlow(doc Document) bool {
	if IsWrapped(doc) {
		return false
	}
	if doc.Has("func") && doc.Has("schema") {
		return false
	}
	return doc.Has("nodes")
}

// Classify applies the predicates in caller priority: tool, raw flow,
// wrapped.
func Classify(doc Document) Format {
	switch {
	case IsTool(doc):
		return FormatTool
	case IsRawFlow(doc):
		return FormatRawFlow
	case IsWrapped(doc):
		return FormatWrapped
	default:
		return FormatUnknown
	}
}
