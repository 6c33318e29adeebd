package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	n, ok := ParseLevel("debug")
	assert.True(t, ok)
	assert.Equal(t, LevelDebug, n)

	n, ok = ParseLevel("4")
	assert.True(t, ok)
	assert.Equal(t, LevelError, n)

	_, ok = ParseLevel("9")
	assert.False(t, ok)
	_, ok = ParseLevel("loud")
	assert.False(t, ok)
}

func TestLoggerRespectsLevel(t *testing.T) {
	old := Level()
	defer SetLevel(old)
	DisableColor(true)
	defer DisableColor(false)

	var out bytes.Buffer
	l := New("registrar", &out)

	SetLevel(LevelWarn)
	l.Infof("hidden %d", 1)
	assert.Equal(t, 0, out.Len())

	l.Warnf("shown %d", 2)
	line := out.String()
	assert.True(t, strings.HasPrefix(line, "Warn "), line)
	assert.Contains(t, line, "logging_test.go:")
	assert.Contains(t, line, "registrar shown 2")

	SetLevel(99)
	assert.Equal(t, LevelWarn, Level())
}
