//go:build integration
// +build integration

package integration_test

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantomvault/vaultcore/internal/crypto"
	"github.com/phantomvault/vaultcore/internal/events"
	"github.com/phantomvault/vaultcore/internal/models"
	"github.com/phantomvault/vaultcore/internal/recovery"
	"github.com/phantomvault/vaultcore/internal/vault"
	"github.com/phantomvault/vaultcore/test/testutil"
)

// TestVaultLifecycle drives the full engine against a real filesystem:
// create, unlock, store records, seal files, recover, and delete.
func TestVaultLifecycle(t *testing.T) {
	testutil.SkipIfShort(t, "full lifecycle runs the KDF repeatedly")

	fixture := testutil.NewEngineFixture(t)
	helpers := testutil.NewTestHelpers(t)

	session := fixture.Unlock(t)

	// Metadata round-trip.
	require.NoError(t, session.UpdateMetadata("Renamed", "updated"))
	meta, err := session.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "Renamed", meta.Name)

	// Config round-trip.
	cfg, err := session.Config()
	require.NoError(t, err)
	cfg.LockTimeout = 900
	require.NoError(t, session.SetConfig(cfg))

	// File sealing on disk.
	payload := make([]byte, 3*crypto.StreamChunkSize+7)
	_, err = rand.Read(payload)
	require.NoError(t, err)

	src := helpers.CreateTempBinaryFile("doc.bin", payload)
	sealed := filepath.Join(helpers.TempDir(), "doc.bin.sealed")
	restored := filepath.Join(helpers.TempDir(), "doc.bin.restored")

	require.NoError(t, session.SealFile(src, sealed))
	helpers.AssertFileExists(sealed)

	sealedBytes, err := os.ReadFile(sealed)
	require.NoError(t, err)
	assert.NotContains(t, string(sealedBytes), string(payload[:64]))

	require.NoError(t, session.OpenFile(sealed, restored))
	testutil.CompareFiles(t, src, restored)

	// Recovery escrow and password reset.
	require.NoError(t, session.SetupRecovery([]recovery.QA{
		{Question: "First pet's name?", Answer: "Rex"},
	}))
	session.Close()

	recovered, err := fixture.Engine.Recover(fixture.VaultID, []string{"Rex"})
	require.NoError(t, err)
	require.NoError(t, recovered.ChangePassword("rotated-password"))
	recovered.Close()

	reopened, err := fixture.Engine.OpenSession(fixture.VaultID, "rotated-password")
	require.NoError(t, err)

	// Everything written before the reset is still readable.
	meta, err = reopened.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "Renamed", meta.Name)

	cfg, err = reopened.Config()
	require.NoError(t, err)
	assert.Equal(t, int64(900), cfg.LockTimeout)
	reopened.Close()

	// Delete removes every trace.
	require.NoError(t, fixture.Engine.DeleteVault(fixture.VaultID, "rotated-password"))
	ids, err := fixture.Engine.ListVaults()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

// TestEnginePersistence reopens the data directory with a fresh engine
// and verifies everything survives a process restart.
func TestEnginePersistence(t *testing.T) {
	testutil.SkipIfShort(t, "builds two engines")

	fixture := testutil.NewEngineFixture(t)

	session := fixture.Unlock(t)
	envelope, err := session.SealData([]byte("durable"))
	require.NoError(t, err)
	session.Close()

	// Fresh engine over the same directory.
	engine, err := vault.New(testutil.TestConfigWithDir(fixture.DataDir), testutil.NewTestLogger())
	require.NoError(t, err)

	ids, err := engine.ListVaults()
	require.NoError(t, err)
	assert.Equal(t, []string{fixture.VaultID}, ids)

	reopened, err := engine.OpenSession(fixture.VaultID, fixture.Password)
	require.NoError(t, err)
	defer reopened.Close()

	plaintext, err := reopened.OpenData(envelope)
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), plaintext)
}

// TestEngineEmitsAuditLog verifies lifecycle operations show up in the
// structured log output.
func TestEngineEmitsAuditLog(t *testing.T) {
	logOutput := testutil.NewLogOutput()
	logger := events.NewTestLogger(events.InfoLevel, "json", logOutput)

	engine, err := vault.New(testutil.TestConfigWithDir(t.TempDir()), logger)
	require.NoError(t, err)

	meta, err := engine.CreateVault("Audited", "", "", "pw")
	require.NoError(t, err)
	require.NoError(t, engine.DeleteVault(meta.ID, "pw"))

	assert.True(t, logOutput.HasMessage("Vault created"))
	assert.True(t, logOutput.HasMessage("Vault deleted"))
}

// TestRecoveryAttemptsPersist verifies the attempt counter survives an
// engine restart, so killing the process cannot refund attempts.
func TestRecoveryAttemptsPersist(t *testing.T) {
	testutil.SkipIfShort(t, "builds two engines")

	fixture := testutil.NewEngineFixture(t)

	session := fixture.Unlock(t)
	require.NoError(t, session.SetupRecovery([]recovery.QA{
		{Question: "Q?", Answer: "right"},
	}))
	session.Close()

	_, err := fixture.Engine.Recover(fixture.VaultID, []string{"wrong"})
	require.ErrorIs(t, err, models.ErrIncorrectAnswers)

	engine, err := vault.New(testutil.TestConfigWithDir(fixture.DataDir), testutil.NewTestLogger())
	require.NoError(t, err)

	remaining, err := engine.RecoveryAttemptsRemaining(fixture.VaultID)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}
