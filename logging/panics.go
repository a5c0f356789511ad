package logging

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// PanicLogger receives a recovered panic value with a trimmed stack.
type PanicLogger func(funcName string, err any, stack []byte, fields ...map[string]any)

// MakePanicHandler returns a function meant to be deferred. It recovers,
// trims the runtime frames above the panic and hands the result to logger.
//
//	defer handle("rpc.stdio", map[string]any{"method": method})
func MakePanicHandler(logger PanicLogger) func(funcName string, fields ...map[string]any) {
	return func(funcName string, fields ...map[string]any) {
		if err := recover(); err != nil {
			stack := make([]byte, 8096)
			n := runtime.Stack(stack, false)
			logger(funcName, err, cleanStackTrace(stack[:n]), fields...)
		}
	}
}

// LoggerPanicLogger reports panics through logger at error level.
func LoggerPanicLogger(logger Logger) PanicLogger {
	logger = Normalize(logger)
	return func(funcName string, err any, stack []byte, fields ...map[string]any) {
		l := logger
		if len(fields) > 0 && fields[0] != nil {
			l = With(logger, fields[0])
		}
		l.Error("recovered from panic in %s: %v (%T)\n%s", funcName, err, err, stack)
	}
}

// FormatPanic renders a recovered panic the way the fallback logger prints it.
func FormatPanic(funcName string, err any, stack []byte, fields ...map[string]any) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[FATAL] recovered from panic in %s\n", funcName)
	fmt.Fprintf(&sb, "Error: %v\n", err)
	fmt.Fprintf(&sb, "Error Type: %T\n", err)

	if len(fields) > 0 && fields[0] != nil {
		sb.WriteString("Context:\n")
		keys := make([]string, 0, len(fields[0]))
		for k := range fields[0] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %v\n", k, fields[0][k])
		}
	}

	sb.WriteString("Stack Trace:\n")
	sb.Write(stack)
	return sb.String()
}

func cleanStackTrace(stack []byte) []byte {
	lines := strings.Split(string(stack), "\n")

	panicLine := -1
	for i, line := range lines {
		if strings.Contains(line, "panic(") {
			panicLine = i
			break
		}
	}
	// drop the panic() call and its file reference
	if panicLine >= 0 && panicLine+2 < len(lines) {
		lines = lines[panicLine+2:]
	}
	return []byte(strings.Join(lines, "\n"))
}
