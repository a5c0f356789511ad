package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFmtLoggerWritesLevelAndFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewFmtLogger(buf)

	With(logger, map[string]any{"method": "wrap_workflow", "b": 2}).Info("handled %d items", 3)

	line := buf.String()
	assert.Contains(t, line, "INFO")
	assert.Contains(t, line, "handled 3 items")
	assert.Contains(t, line, "b=2 method=wrap_workflow")
}

func TestFmtLoggerWithContextKeepsWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewFmtLogger(buf).WithContext(context.Background())

	logger.Warn("careful")

	assert.Contains(t, buf.String(), "WARN")
}

func TestNewUsesGoLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(Options{Level: "trace", Format: "json", Writer: buf})

	With(logger, map[string]any{"node_id": "chatOllama_0"}).Info("built node")

	out := strings.TrimSpace(buf.String())
	require.NotEmpty(t, out)
	assert.Contains(t, out, "built node")
}

func TestNormalizeNil(t *testing.T) {
	assert.NotNil(t, Normalize(nil))
}

func TestMakePanicHandlerRecovers(t *testing.T) {
	var (
		gotName  string
		gotErr   any
		gotField map[string]any
	)
	handler := MakePanicHandler(func(funcName string, err any, stack []byte, fields ...map[string]any) {
		gotName = funcName
		gotErr = err
		if len(fields) > 0 {
			gotField = fields[0]
		}
	})

	func() {
		defer handler("worker", map[string]any{"line": 4})
		panic("boom")
	}()

	assert.Equal(t, "worker", gotName)
	assert.Equal(t, "boom", gotErr)
	assert.Equal(t, 4, gotField["line"])
}

func TestFormatPanicSortsContext(t *testing.T) {
	out := FormatPanic("fn", "bad", []byte("stack"), map[string]any{"z": 1, "a": 2})

	assert.Contains(t, out, "recovered from panic in fn")
	assert.Less(t, strings.Index(out, "a: 2"), strings.Index(out, "z: 1"))
	assert.True(t, strings.HasSuffix(out, "stack"))
}

func TestLoggerPanicLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	report := LoggerPanicLogger(NewFmtLogger(buf))

	report("transport", "oops", []byte("trace"))

	assert.Contains(t, buf.String(), "recovered from panic in transport: oops")
}
