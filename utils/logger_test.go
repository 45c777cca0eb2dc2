package utils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOptions(LogOptions{Level: "warn", Format: "json", Output: &buf})

	l.Info("[test] hidden %d", 1)
	l.Warn("[test] shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[test] shown 2")
	assert.Contains(t, out, `"level":"warn"`)
}

func TestNopLoggerDiscards(t *testing.T) {
	l := NewNopLogger()
	l.Error("[test] %s", "nothing")
	assert.NotNil(t, l.Zerolog())
}
