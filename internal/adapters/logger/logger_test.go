package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/ybt/internal/adapters/logger"
	"go.trai.ch/zerr"
)

func newBuffered(t *testing.T) (*logger.Logger, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	lg := logger.New()
	lg.SetOutput(&buf)
	return lg, &buf
}

func TestLogger_Levels(t *testing.T) {
	lg, buf := newBuffered(t)

	lg.Debug("hidden")
	lg.Info("some message", "target", "//lib:hello")
	lg.Warn("some warning")

	assert.Equal(t, "some message target=//lib:hello\n! some warning\n", buf.String())
}

func TestLogger_SetVerbose(t *testing.T) {
	lg, buf := newBuffered(t)

	lg.SetVerbose(true)
	lg.Debug("cache miss", "key", "sha256:ab")
	lg.SetVerbose(false)
	lg.Debug("hidden")

	assert.Equal(t, "● cache miss key=sha256:ab\n", buf.String())
}

func TestLogger_Error(t *testing.T) {
	lg, buf := newBuffered(t)

	lg.Error(zerr.Wrap(os.ErrPermission, "failed to write entry"))

	assert.Equal(t, "✗ Error: failed to write entry\n\n  Caused by:\n    → permission denied\n", buf.String())
}

func TestLogger_ErrorNil(t *testing.T) {
	lg, buf := newBuffered(t)
	lg.Error(nil)
	assert.Empty(t, buf.String())
}

func TestLogger_JSON(t *testing.T) {
	lg, buf := newBuffered(t)
	lg.SetJSON(true)

	lg.Info("target finished", "target", "app", "state", "built")
	lg.Error(errors.New("boom"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "target finished", rec["msg"])
	assert.Equal(t, "app", rec["target"])

	require.NoError(t, json.Unmarshal(lines[1], &rec))
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "boom", rec["error"])
}

func TestLogger_SetOutputKeepsMode(t *testing.T) {
	lg, _ := newBuffered(t)
	lg.SetJSON(true)

	var other bytes.Buffer
	lg.SetOutput(&other)
	lg.Info("moved")

	assert.True(t, json.Valid(bytes.TrimSpace(other.Bytes())))
}
