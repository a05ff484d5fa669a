package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lherron/incsync/internal/db"
)

// TempLedger creates a migrated ledger database in a temporary directory
func TempLedger(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test ledger: %v", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}

// Increment writes the given files into <root>/.specweave/increments/<id>/.
// Keys are file names (spec.md, tasks.md, metadata.json ...).
func Increment(t *testing.T, root, id string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(root, ".specweave", "increments", id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create increment %s: %v", id, err)
	}
	for name, content := range files {
		WriteFile(t, dir, name, content)
	}
	return dir
}

// Metadata renders a minimal metadata.json
func Metadata(id, status, typ string) string {
	if typ == "" {
		typ = "feature"
	}
	return `{"id":"` + id + `","status":"` + status + `","type":"` + typ + `","created":"2025-11-01T09:00:00Z","lastActivity":"2025-11-01T09:00:00Z"}`
}

// Spec renders a spec.md with the given frontmatter status and body
func Spec(status, body string) string {
	return "---\nstatus: " + status + "\n---\n\n" + body
}

// WriteFile writes content to dir/filename, creating dir if needed
func WriteFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}

// ReadFile reads content from a file
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(data)
}

// AssertNoError asserts that an error is nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
}

// AssertStringContains asserts that a string contains a substring
func AssertStringContains(t *testing.T, str, substr string) {
	t.Helper()
	if !strings.Contains(str, substr) {
		t.Fatalf("Expected string to contain %q, got %q", substr, str)
	}
}
