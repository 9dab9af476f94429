package vault_test

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantomvault/vaultcore/internal/crypto"
	"github.com/phantomvault/vaultcore/internal/models"
	"github.com/phantomvault/vaultcore/internal/recovery"
	"github.com/phantomvault/vaultcore/internal/vault"
)

func openTestSession(t *testing.T) (*vault.Engine, *vault.Session) {
	t.Helper()
	e := newTestEngine(t)
	meta, err := e.CreateVault("Personal", "desc", "/tmp/p", "hunter22")
	require.NoError(t, err)
	session, err := e.OpenSession(meta.ID, "hunter22")
	require.NoError(t, err)
	t.Cleanup(session.Close)
	return e, session
}

func TestSession_UpdateMetadata(t *testing.T) {
	_, session := openTestSession(t)

	require.NoError(t, session.UpdateMetadata("Renamed", "new description"))

	meta, err := session.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "Renamed", meta.Name)
	assert.Equal(t, "new description", meta.Description)
	assert.Equal(t, "/tmp/p", meta.Location)
}

func TestSession_ConfigDefaults(t *testing.T) {
	_, session := openTestSession(t)

	cfg, err := session.Config()
	require.NoError(t, err)
	assert.Equal(t, models.DefaultVaultConfig(), cfg)

	cfg.AutoLock = false
	cfg.LockTimeout = 900
	require.NoError(t, session.SetConfig(cfg))

	loaded, err := session.Config()
	require.NoError(t, err)
	assert.False(t, loaded.AutoLock)
	assert.Equal(t, int64(900), loaded.LockTimeout)
}

func TestSession_SetConfigValidates(t *testing.T) {
	_, session := openTestSession(t)

	cfg := models.DefaultVaultConfig()
	cfg.LockTimeout = -1
	assert.Error(t, session.SetConfig(cfg))
}

func TestSession_SealOpenData(t *testing.T) {
	_, session := openTestSession(t)

	envelope, err := session.SealData([]byte("payload"))
	require.NoError(t, err)
	assert.NotContains(t, string(envelope), "payload")

	plaintext, err := session.OpenData(envelope)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), plaintext)
}

func TestSession_StreamRoundTrip(t *testing.T) {
	_, session := openTestSession(t)

	payload := make([]byte, 3*crypto.StreamChunkSize+17)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	var sealed bytes.Buffer
	require.NoError(t, session.SealStream(bytes.NewReader(payload), &sealed))

	var opened bytes.Buffer
	require.NoError(t, session.OpenStream(bytes.NewReader(sealed.Bytes()), &opened))
	assert.Equal(t, payload, opened.Bytes())
}

func TestSession_FileRoundTrip(t *testing.T) {
	_, session := openTestSession(t)
	dir := t.TempDir()

	src := filepath.Join(dir, "plain.txt")
	sealed := filepath.Join(dir, "plain.txt.sealed")
	restored := filepath.Join(dir, "restored.txt")
	require.NoError(t, os.WriteFile(src, []byte("file contents"), 0600))

	require.NoError(t, session.SealFile(src, sealed))
	require.NoError(t, session.OpenFile(sealed, restored))

	got, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, []byte("file contents"), got)
}

func TestSession_ChangePassword(t *testing.T) {
	e, session := openTestSession(t)

	envelope, err := session.SealData([]byte("kept"))
	require.NoError(t, err)

	require.NoError(t, session.ChangePassword("new-password"))
	session.Close()

	_, err = e.OpenSession("vault-1", "hunter22")
	assert.ErrorIs(t, err, crypto.ErrAuthenticationFailed)

	reopened, err := e.OpenSession("vault-1", "new-password")
	require.NoError(t, err)
	defer reopened.Close()

	// The master key did not change, so existing data still opens.
	plaintext, err := reopened.OpenData(envelope)
	require.NoError(t, err)
	assert.Equal(t, []byte("kept"), plaintext)
}

func TestSession_ChangePassword_EmptyPassword(t *testing.T) {
	_, session := openTestSession(t)
	assert.ErrorIs(t, session.ChangePassword(""), crypto.ErrInvalidArgument)
}

func TestSession_Close(t *testing.T) {
	_, session := openTestSession(t)

	session.Close()
	session.Close() // safe to repeat

	_, err := session.Metadata()
	assert.ErrorIs(t, err, models.ErrSessionClosed)

	_, err = session.SealData([]byte("x"))
	assert.ErrorIs(t, err, models.ErrSessionClosed)

	assert.ErrorIs(t, session.ChangePassword("pw"), models.ErrSessionClosed)
}

func TestSession_RemoveRecovery(t *testing.T) {
	e, session := openTestSession(t)

	require.NoError(t, session.RemoveRecovery()) // nothing configured yet

	require.NoError(t, session.SetupRecovery([]recovery.QA{{Question: "Q?", Answer: "a"}}))
	configured, err := e.HasRecovery(session.VaultID())
	require.NoError(t, err)
	assert.True(t, configured)

	require.NoError(t, session.RemoveRecovery())
	configured, err = e.HasRecovery(session.VaultID())
	require.NoError(t, err)
	assert.False(t, configured)
}
