package logger_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/ybt/internal/adapters/logger"
	"go.trai.ch/zerr"
)

func TestCollectErrorEntries(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantMessages []string
		wantMetadata []map[string]any
	}{
		{
			name:         "single standard error",
			err:          errors.New("simple error"),
			wantMessages: []string{"simple error"},
			wantMetadata: []map[string]any{nil},
		},
		{
			name:         "wrapped chain",
			err:          zerr.Wrap(zerr.Wrap(errors.New("root cause"), "middle layer"), "outer layer"),
			wantMessages: []string{"outer layer", "middle layer", "root cause"},
			wantMetadata: []map[string]any{{}, {}, nil},
		},
		{
			name:         "metadata on one level",
			err:          zerr.With(zerr.With(zerr.New("base error"), "key1", "value1"), "key2", 42),
			wantMessages: []string{"base error"},
			wantMetadata: []map[string]any{{"key1": "value1", "key2": 42}},
		},
		{
			name:         "metadata on a standard error moves to the next level",
			err:          zerr.Wrap(zerr.With(errors.New("exit status 2"), "exit_code", 2), "command failed"),
			wantMessages: []string{"command failed", "exit status 2"},
			wantMetadata: []map[string]any{{}, {"exit_code": 2}},
		},
		{
			name:         "nil error",
			err:          nil,
			wantMessages: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := logger.CollectErrorEntries(tt.err)
			if tt.err == nil {
				assert.Empty(t, entries)
				return
			}

			assert.Len(t, entries, len(tt.wantMessages))
			for i, want := range tt.wantMessages {
				assert.Equal(t, want, entries[i].Message, "message at %d", i)
				assert.Equal(t, tt.wantMetadata[i], entries[i].Metadata, "metadata at %d", i)
			}
		})
	}
}

func TestFormatErrorEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []logger.ErrorEntry
		want    string
	}{
		{"single entry", []logger.ErrorEntry{{Message: "single error"}}, "Error: single error"},
		{
			"caused by",
			[]logger.ErrorEntry{{Message: "first"}, {Message: "second"}, {Message: "third"}},
			"Error: first\n\n  Caused by:\n    → second\n    → third",
		},
		{
			"metadata sorted",
			[]logger.ErrorEntry{{Message: "error", Metadata: map[string]any{"zebra": "z", "alpha": "a"}}},
			"Error: error\n       alpha: a\n       zebra: z",
		},
		{
			"metadata on cause",
			[]logger.ErrorEntry{{Message: "main"}, {Message: "cause", Metadata: map[string]any{"target": "app"}}},
			"Error: main\n\n  Caused by:\n    → cause\n      target: app",
		},
		{
			"multiline message",
			[]logger.ErrorEntry{{Message: "line1\nline2"}},
			"Error: line1\n       line2",
		},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, logger.FormatErrorEntries(tt.entries))
		})
	}
}

func TestFormatError_Joined(t *testing.T) {
	err := errors.Join(errors.New("a failed"), errors.New("b failed"))
	assert.Equal(t, "Error: a failed\n\nError: b failed", logger.FormatError(err))
}
