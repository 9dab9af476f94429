// Package testutil holds shared fixtures for engine and integration
// tests.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantomvault/vaultcore/internal/config"
	"github.com/phantomvault/vaultcore/internal/crypto"
)

// TestConfigWithDir creates an engine configuration rooted in dataDir
// with test-friendly crypto parameters.
func TestConfigWithDir(dataDir string) *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{
			DataDir:    dataDir,
			RecordsDir: filepath.Join(dataDir, "records"),
		},
		Crypto: config.CryptoConfig{
			Iterations: crypto.MinIterations,
		},
		Recovery: config.RecoveryConfig{
			MaxAttempts:    3,
			FoldAnswerCase: false,
		},
		Log: config.LogConfig{
			Level:  "error",
			Format: "json",
		},
	}
}

// TestHelpers provides common file fixtures for a test.
type TestHelpers struct {
	t       *testing.T
	tempDir string
}

// NewTestHelpers creates test helpers rooted in a per-test temp dir.
func NewTestHelpers(t *testing.T) *TestHelpers {
	return &TestHelpers{
		t:       t,
		tempDir: t.TempDir(),
	}
}

// TempDir returns the temporary directory for this test.
func (h *TestHelpers) TempDir() string {
	return h.tempDir
}

// CreateTempFile creates a temporary file with content.
func (h *TestHelpers) CreateTempFile(name, content string) string {
	return h.CreateTempBinaryFile(name, []byte(content))
}

// CreateTempBinaryFile creates a temporary binary file.
func (h *TestHelpers) CreateTempBinaryFile(name string, content []byte) string {
	path := filepath.Join(h.tempDir, name)

	err := os.MkdirAll(filepath.Dir(path), 0755)
	require.NoError(h.t, err)

	err = os.WriteFile(path, content, 0644)
	require.NoError(h.t, err)

	return path
}

// AssertFileExists checks that a file exists.
func (h *TestHelpers) AssertFileExists(path string) {
	_, err := os.Stat(path)
	assert.NoError(h.t, err, "File should exist: %s", path)
}

// AssertFileNotExists checks that a file does not exist.
func (h *TestHelpers) AssertFileNotExists(path string) {
	_, err := os.Stat(path)
	assert.True(h.t, os.IsNotExist(err), "File should not exist: %s", path)
}

// AssertFileContent checks file content matches expected.
func (h *TestHelpers) AssertFileContent(path, expectedContent string) {
	content, err := os.ReadFile(path)
	require.NoError(h.t, err)
	assert.Equal(h.t, expectedContent, string(content))
}

// CompareFiles compares two files for equality.
func CompareFiles(t *testing.T, path1, path2 string) {
	content1, err := os.ReadFile(path1)
	require.NoError(t, err, "Failed to read %s", path1)

	content2, err := os.ReadFile(path2)
	require.NoError(t, err, "Failed to read %s", path2)

	assert.Equal(t, content1, content2, "Files should be identical")
}

// LogEntry represents a captured JSON log line.
type LogEntry struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"msg"`
}

// LogOutput captures JSON log output for assertions.
type LogOutput struct {
	mu      sync.RWMutex
	entries []LogEntry
}

// NewLogOutput creates a new log output capturer.
func NewLogOutput() *LogOutput {
	return &LogOutput{}
}

// Write implements io.Writer to capture log output.
func (lo *LogOutput) Write(p []byte) (n int, err error) {
	var entry LogEntry
	if err := json.Unmarshal(p, &entry); err == nil {
		lo.mu.Lock()
		lo.entries = append(lo.entries, entry)
		lo.mu.Unlock()
	}
	return len(p), nil
}

// Entries returns captured log entries.
func (lo *LogOutput) Entries() []LogEntry {
	lo.mu.RLock()
	defer lo.mu.RUnlock()

	entries := make([]LogEntry, len(lo.entries))
	copy(entries, lo.entries)
	return entries
}

// HasMessage checks if any log entry matches the message exactly.
func (lo *LogOutput) HasMessage(message string) bool {
	lo.mu.RLock()
	defer lo.mu.RUnlock()

	for _, entry := range lo.entries {
		if entry.Message == message {
			return true
		}
	}
	return false
}

// SkipIfShort skips test if testing.Short() is true.
func SkipIfShort(t *testing.T, reason string) {
	if testing.Short() {
		t.Skipf("Skipping test in short mode: %s", reason)
	}
}
