package chat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Transcript is the ordered message history of one conversation.
type Transcript []Message

// DefaultTranscriptPath returns the default persistence location for a
// session's transcript.
func DefaultTranscriptPath(sessionID string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".agentkit", "transcripts", sessionID+".json"), nil
}

// Save writes the transcript as an ordered JSON array of message objects.
func (t Transcript) Save(path string) error {
	if path == "" {
		return fmt.Errorf("transcript path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create transcript directory: %w", err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

// LoadTranscript reads a transcript previously written by Save.
func LoadTranscript(path string) (Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode transcript: %w", err)
	}
	return t, nil
}
