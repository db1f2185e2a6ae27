package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"docharvest/pkg/logger"
)

const currentVersion = 1

// Checkpoint records how far listing collection got
type Checkpoint struct {
	ListingURLTemplate string    `json:"listing_url_template"`
	FirstPage          int       `json:"first_page"`
	LastCompletedPage  int       `json:"last_completed_page"`
	Filenames          []string  `json:"filenames"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	Version            int       `json:"version"`
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a checkpoint manager writing to path
func NewManager(path string, log logger.Logger) (*Manager, error) {
	if path == "" {
		return nil, fmt.Errorf("checkpoint path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Manager{
		checkpointPath: path,
		logger:         log,
	}, nil
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create starts a fresh checkpoint for a listing run. Nothing is written
// until the first page completes.
func (m *Manager) Create(listingURLTemplate string, firstPage int) *Checkpoint {
	now := time.Now()
	return &Checkpoint{
		ListingURLTemplate: listingURLTemplate,
		FirstPage:          firstPage,
		LastCompletedPage:  firstPage - 1,
		Filenames:          []string{},
		CreatedAt:          now,
		UpdatedAt:          now,
		Version:            currentVersion,
	}
}

// Load loads an existing checkpoint. A missing file yields (nil, nil).
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.Version != currentVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", checkpoint.Version)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"last_completed_page": checkpoint.LastCompletedPage,
		"filenames":           len(checkpoint.Filenames),
		"updated_at":          checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// Matches reports whether the checkpoint belongs to the same listing run
func (c *Checkpoint) Matches(listingURLTemplate string, firstPage int) bool {
	return c != nil && c.ListingURLTemplate == listingURLTemplate && c.FirstPage == firstPage
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"last_completed_page": checkpoint.LastCompletedPage,
		"filenames":           len(checkpoint.Filenames),
	})

	return nil
}

// UpdateProgress records a completed page and the full ordered filename list so far
func (m *Manager) UpdateProgress(checkpoint *Checkpoint, page int, filenames []string) error {
	checkpoint.LastCompletedPage = page
	checkpoint.Filenames = append(checkpoint.Filenames[:0], filenames...)
	return m.Save(checkpoint)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}
