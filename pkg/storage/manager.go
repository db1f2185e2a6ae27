package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	errs "docharvest/pkg/errors"
)

// ErrEmptyDocument is returned by Save when the reader produced no bytes
var ErrEmptyDocument = errors.New("empty document")

// Manager owns the flat output directory. A non-empty file in it counts as
// already downloaded.
type Manager struct {
	outputDir string
}

// NewManager creates a new storage manager
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{outputDir: outputDir}, nil
}

// Path returns the on-disk path for a document name
func (m *Manager) Path(name string) string {
	return filepath.Join(m.outputDir, name)
}

// IsDownloaded reports whether a non-empty file for name exists
func (m *Manager) IsDownloaded(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	return NonEmptyFile(m.Path(name))
}

// Save writes the document atomically and returns the number of bytes written.
// Nothing is left behind when the copy fails or produces an empty file.
func (m *Manager) Save(r io.Reader, name string) (int64, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}

	filename := m.Path(name)
	tempFile := filename + ".part"
	out, err := os.Create(tempFile)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeStorage, err, "failed to create temporary file")
	}

	n, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		var typed *errs.Error
		if errors.As(err, &typed) {
			// the reader already classified its failure
			return 0, err
		}
		return 0, errs.Wrap(errs.ErrorTypeStorage, err, "failed to write document data")
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return 0, errs.Wrap(errs.ErrorTypeStorage, closeErr, "failed to close file")
	}

	if n == 0 {
		os.Remove(tempFile)
		return 0, ErrEmptyDocument
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return 0, errs.Wrap(errs.ErrorTypeStorage, err, "failed to rename temporary file")
	}

	return n, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// ValidateName rejects names that would escape the flat output directory
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return errs.New(errs.ErrorTypeStorage, 0, fmt.Sprintf("unsafe document name %q", name))
	}
	return nil
}

// NonEmptyFile reports whether path is a regular file with size > 0
func NonEmptyFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
