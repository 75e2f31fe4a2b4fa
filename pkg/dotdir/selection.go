package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	selectionFile = "selection.json"
)

// Selection is the conversation the chat command resumes. An absent selection
// means the next turn starts a new conversation.
type Selection struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id,omitempty"`
	Title          string `json:"title,omitempty"`
}

// LoadSelection loads the selection from a target .koinonia/selection.json.
// Returns nil, nil if nothing is selected.
func (m *Manager) LoadSelection(overrideDir string) (*Selection, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, selectionFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading selection: %w", err)
	}

	sel := &Selection{}
	if err := json.Unmarshal(data, sel); err != nil {
		return nil, fmt.Errorf("parsing selection: %w", err)
	}

	return sel, nil
}

// SaveSelection persists the selection to a target .koinonia/selection.json.
func (m *Manager) SaveSelection(sel *Selection, overrideDir string) error {
	if sel == nil || sel.ConversationID == "" {
		return errors.New("cannot save empty selection")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(sel, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling selection: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, selectionFile), data, 0o600); err != nil {
		return fmt.Errorf("writing selection: %w", err)
	}

	return nil
}

// ClearSelection removes the selection file so the next turn starts a new
// conversation. Returns nil if nothing was selected.
func (m *Manager) ClearSelection(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, selectionFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing selection: %w", err)
	}

	return nil
}
