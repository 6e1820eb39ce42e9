package chat

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "transcript.json")

	original := Transcript{
		{Role: RoleSystem, Content: "You are a helpful assistant."},
		{Role: RoleUser, Content: "list my tasks"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "call_1", Name: "query_todos", Arguments: `{}`},
		}},
		{Role: RoleTool, Content: "no todo list exists for this session", ToolCallID: "call_1"},
		{Role: RoleAssistant, Content: "You have no tasks yet."},
	}

	require.NoError(t, original.Save(path))

	loaded, err := LoadTranscript(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestTranscriptSaveRequiresPath(t *testing.T) {
	err := Transcript{}.Save("")
	assert.ErrorContains(t, err, "path is required")
}

func TestLoadTranscriptMissingFile(t *testing.T) {
	_, err := LoadTranscript(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
