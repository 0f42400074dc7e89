package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

const (
	stateDir  = ".parley"
	stateFile = "current_conversation"
)

// StateFilePath returns the full path to the current conversation state file.
// Creates the state directory (~/.parley) if it doesn't exist.
func StateFilePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	stateDirPath := filepath.Join(homeDir, stateDir)
	if err := os.MkdirAll(stateDirPath, 0o750); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}

	return filepath.Join(stateDirPath, stateFile), nil
}

// LoadCurrentConversationID loads the active conversation ID from the local
// state file, so separate CLI invocations resume the same conversation.
//
// Returns ("", nil) if no current conversation is recorded - this is not an
// error.
func LoadCurrentConversationID() (string, error) {
	filePath, err := StateFilePath()
	if err != nil {
		return "", err
	}

	lock := flock.New(filePath + ".lock")
	if err := lock.RLock(); err != nil {
		return "", fmt.Errorf("failed to lock state file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil // No current conversation is not an error
		}
		return "", fmt.Errorf("failed to read state file: %w", err)
	}

	id := strings.TrimSpace(string(data))
	if strings.ContainsAny(id, " \t\n") {
		return "", fmt.Errorf("invalid conversation ID in state file: %q", id)
	}
	return id, nil
}

// SaveCurrentConversationID saves the active conversation ID to the local
// state file. The write is atomic (temp file + rename) under an advisory
// file lock, so concurrent CLI invocations never observe a torn state file.
func SaveCurrentConversationID(id string) error {
	if id == "" {
		return fmt.Errorf("conversation ID must not be empty")
	}

	filePath, err := StateFilePath()
	if err != nil {
		return err
	}

	lock := flock.New(filePath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock state file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(filepath.Dir(filePath), stateFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(id); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, filePath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// ClearCurrentConversationID removes the current conversation state file.
//
// Idempotent - clearing when no current conversation exists is not an error.
func ClearCurrentConversationID() error {
	filePath, err := StateFilePath()
	if err != nil {
		return err
	}

	lock := flock.New(filePath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock state file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}
