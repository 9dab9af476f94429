package testutil

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phantomvault/vaultcore/internal/events"
	"github.com/phantomvault/vaultcore/internal/vault"
)

// NewTestLogger returns a quiet logger for tests.
func NewTestLogger() *events.Logger {
	return events.NewTestLogger(events.ErrorLevel, "text", io.Discard)
}

// EngineFixture is a ready-to-use engine backed by a real filesystem
// store, plus one created vault.
type EngineFixture struct {
	Engine   *vault.Engine
	VaultID  string
	Password string
	DataDir  string
}

// NewEngineFixture builds an engine in a per-test temp directory and
// creates one vault in it.
func NewEngineFixture(t *testing.T) *EngineFixture {
	t.Helper()

	dataDir := t.TempDir()
	engine, err := vault.New(TestConfigWithDir(dataDir), NewTestLogger())
	require.NoError(t, err)

	const password = "fixture-password"
	meta, err := engine.CreateVault("Fixture", "integration fixture", "", password)
	require.NoError(t, err)

	return &EngineFixture{
		Engine:   engine,
		VaultID:  meta.ID,
		Password: password,
		DataDir:  dataDir,
	}
}

// Unlock opens a session for the fixture vault and registers cleanup.
func (f *EngineFixture) Unlock(t *testing.T) *vault.Session {
	t.Helper()
	session, err := f.Engine.OpenSession(f.VaultID, f.Password)
	require.NoError(t, err)
	t.Cleanup(session.Close)
	return session
}
