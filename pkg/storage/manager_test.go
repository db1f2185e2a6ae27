package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	errs "docharvest/pkg/errors"
)

func TestManager(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(filepath.Join(tempDir, "docs"))
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if manager.IsDownloaded("EFTA0001.pdf") {
		t.Error("Expected IsDownloaded to return false for non-existent file")
	}

	testData := []byte("%PDF-1.7 test")
	n, err := manager.Save(bytes.NewReader(testData), "EFTA0001.pdf")
	if err != nil {
		t.Fatalf("Failed to save document: %v", err)
	}
	if n != int64(len(testData)) {
		t.Errorf("Expected %d bytes written, got %d", len(testData), n)
	}

	content, err := os.ReadFile(manager.Path("EFTA0001.pdf"))
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if !bytes.Equal(content, testData) {
		t.Error("File content does not match expected data")
	}

	if !manager.IsDownloaded("EFTA0001.pdf") {
		t.Error("Expected IsDownloaded to return true for existing file")
	}

	if _, err := os.Stat(manager.Path("EFTA0001.pdf") + ".part"); !os.IsNotExist(err) {
		t.Error("Expected temporary file to be gone after save")
	}
}

func TestEmptyFileIsNotDownloaded(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if err := os.WriteFile(manager.Path("empty.pdf"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	if manager.IsDownloaded("empty.pdf") {
		t.Error("Expected empty file to be treated as not downloaded")
	}
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) { return 0, errors.New("connection reset") }

func TestSaveFailureLeavesNothing(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if _, err := manager.Save(failingReader{}, "broken.pdf"); err == nil {
		t.Fatal("Expected save to fail")
	} else if errs.TypeOf(err) != errs.ErrorTypeStorage {
		t.Errorf("Expected storage error, got %v", err)
	}

	entries, _ := os.ReadDir(manager.GetOutputDir())
	if len(entries) != 0 {
		t.Errorf("Expected empty output directory, found %d entries", len(entries))
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"a.pdf", "EFTA 0001.PDF", "report (1).pdf"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("Expected %q to be valid, got %v", name, err)
		}
	}

	invalid := []string{"", ".", "..", "../etc/passwd.pdf", `dir\x.pdf`, "sub/x.pdf"}
	for _, name := range invalid {
		if err := ValidateName(name); err == nil {
			t.Errorf("Expected %q to be rejected", name)
		}
	}
}

func TestSaveRejectsEmptyDocument(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	n, err := manager.Save(bytes.NewReader(nil), "empty.pdf")
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("Expected ErrEmptyDocument, got %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 bytes, got %d", n)
	}

	for _, path := range []string{manager.Path("empty.pdf"), manager.Path("empty.pdf") + ".part"} {
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			t.Errorf("Expected %s to be absent", path)
		}
	}
}
