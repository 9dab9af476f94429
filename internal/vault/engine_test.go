package vault_test

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantomvault/vaultcore/internal/config"
	"github.com/phantomvault/vaultcore/internal/crypto"
	"github.com/phantomvault/vaultcore/internal/events"
	"github.com/phantomvault/vaultcore/internal/models"
	"github.com/phantomvault/vaultcore/internal/recovery"
	"github.com/phantomvault/vaultcore/internal/storage"
	"github.com/phantomvault/vaultcore/internal/vault"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Crypto.Iterations = crypto.MinIterations
	return cfg
}

func newTestEngine(t *testing.T, opts ...vault.Option) *vault.Engine {
	t.Helper()

	var next int
	base := []vault.Option{
		vault.WithBlobStore(storage.NewMockStore()),
		vault.WithClock(func() time.Time { return testTime }),
		vault.WithIDGenerator(func() string {
			next++
			return fmt.Sprintf("vault-%d", next)
		}),
	}
	logger := events.NewTestLogger(events.ErrorLevel, "text", io.Discard)
	engine, err := vault.New(testConfig(), logger, append(base, opts...)...)
	require.NoError(t, err)
	return engine
}

func TestEngine_CreateVault(t *testing.T) {
	e := newTestEngine(t)

	meta, err := e.CreateVault("Personal", "my stuff", "/tmp/personal", "hunter22")
	require.NoError(t, err)

	assert.Equal(t, "vault-1", meta.ID)
	assert.Equal(t, "Personal", meta.Name)
	assert.Equal(t, "my stuff", meta.Description)
	assert.Equal(t, "/tmp/personal", meta.Location)
	assert.Equal(t, testTime, meta.CreatedAt)
	assert.Equal(t, testTime, meta.ModifiedAt)
	assert.Len(t, meta.Salt, crypto.SaltSize)
	assert.Equal(t, crypto.MinIterations, meta.Iterations)
	assert.NotEmpty(t, meta.KeyProof)
}

func TestEngine_CreateVault_EmptyPassword(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.CreateVault("Personal", "", "", "")
	assert.ErrorIs(t, err, crypto.ErrInvalidArgument)
}

func TestEngine_CreateVault_InvalidNameLeavesNoTrace(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.CreateVault("   ", "", "", "hunter22")
	require.Error(t, err)

	// A rejected create must not leave key parameters behind.
	ids, err := e.ListVaults()
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = e.OpenSession("vault-1", "hunter22")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEngine_OpenSession(t *testing.T) {
	e := newTestEngine(t)

	created, err := e.CreateVault("Personal", "", "", "hunter22")
	require.NoError(t, err)

	session, err := e.OpenSession(created.ID, "hunter22")
	require.NoError(t, err)
	defer session.Close()

	meta, err := session.Metadata()
	require.NoError(t, err)
	assert.Equal(t, created.ID, meta.ID)
	assert.Equal(t, "Personal", meta.Name)
}

func TestEngine_OpenSession_WrongPassword(t *testing.T) {
	e := newTestEngine(t)

	created, err := e.CreateVault("Personal", "", "", "hunter22")
	require.NoError(t, err)

	_, err = e.OpenSession(created.ID, "hunter23")
	assert.ErrorIs(t, err, crypto.ErrAuthenticationFailed)
}

func TestEngine_OpenSession_UnknownVault(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.OpenSession("ghost", "whatever")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEngine_ListVaults(t *testing.T) {
	e := newTestEngine(t)

	ids, err := e.ListVaults()
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = e.CreateVault("One", "", "", "pw-one")
	require.NoError(t, err)
	_, err = e.CreateVault("Two", "", "", "pw-two")
	require.NoError(t, err)

	ids, err = e.ListVaults()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"vault-1", "vault-2"}, ids)
}

func TestEngine_DeleteVault(t *testing.T) {
	e := newTestEngine(t)

	created, err := e.CreateVault("Personal", "", "", "hunter22")
	require.NoError(t, err)

	t.Run("wrong password refused", func(t *testing.T) {
		err := e.DeleteVault(created.ID, "wrong")
		assert.ErrorIs(t, err, crypto.ErrAuthenticationFailed)
	})

	t.Run("correct password deletes everything", func(t *testing.T) {
		require.NoError(t, e.DeleteVault(created.ID, "hunter22"))

		ids, err := e.ListVaults()
		require.NoError(t, err)
		assert.Empty(t, ids)

		_, err = e.OpenSession(created.ID, "hunter22")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestEngine_VaultKeyIsolation(t *testing.T) {
	e := newTestEngine(t)

	one, err := e.CreateVault("One", "", "", "same-password")
	require.NoError(t, err)
	two, err := e.CreateVault("Two", "", "", "same-password")
	require.NoError(t, err)

	s1, err := e.OpenSession(one.ID, "same-password")
	require.NoError(t, err)
	defer s1.Close()
	s2, err := e.OpenSession(two.ID, "same-password")
	require.NoError(t, err)
	defer s2.Close()

	// Same password, but independent master keys: data sealed in one
	// vault must not open in the other.
	envelope, err := s1.SealData([]byte("secret"))
	require.NoError(t, err)
	_, err = s2.OpenData(envelope)
	assert.ErrorIs(t, err, crypto.ErrAuthenticationFailed)
}

func TestEngine_RecoveryRoundTrip(t *testing.T) {
	e := newTestEngine(t)

	created, err := e.CreateVault("Personal", "", "", "hunter22")
	require.NoError(t, err)

	configured, err := e.HasRecovery(created.ID)
	require.NoError(t, err)
	assert.False(t, configured)

	session, err := e.OpenSession(created.ID, "hunter22")
	require.NoError(t, err)
	require.NoError(t, session.SetupRecovery([]recovery.QA{
		{Question: "First pet's name?", Answer: "Rex"},
		{Question: "City you were born in?", Answer: "Lisbon"},
	}))
	envelope, err := session.SealData([]byte("survives recovery"))
	require.NoError(t, err)
	session.Close()

	// Questions are readable without the password.
	questions, err := e.RecoveryQuestions(created.ID)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "First pet's name?", questions[0].Text)

	recovered, err := e.Recover(created.ID, []string{"Rex", "Lisbon"})
	require.NoError(t, err)
	defer recovered.Close()

	plaintext, err := recovered.OpenData(envelope)
	require.NoError(t, err)
	assert.Equal(t, []byte("survives recovery"), plaintext)
}

func TestEngine_RecoveryAttemptLimit(t *testing.T) {
	e := newTestEngine(t)

	created, err := e.CreateVault("Personal", "", "", "hunter22")
	require.NoError(t, err)

	session, err := e.OpenSession(created.ID, "hunter22")
	require.NoError(t, err)
	require.NoError(t, session.SetupRecovery([]recovery.QA{
		{Question: "Q?", Answer: "right"},
	}))
	session.Close()

	for i := 0; i < 3; i++ {
		_, err := e.Recover(created.ID, []string{"wrong"})
		assert.ErrorIs(t, err, models.ErrIncorrectAnswers)
	}

	_, err = e.Recover(created.ID, []string{"right"})
	assert.ErrorIs(t, err, models.ErrRecoveryExhausted)

	// The password path is unaffected by recovery exhaustion.
	s, err := e.OpenSession(created.ID, "hunter22")
	require.NoError(t, err)
	s.Close()
}

func TestEngine_RecoveryNotConfigured(t *testing.T) {
	e := newTestEngine(t)

	created, err := e.CreateVault("Personal", "", "", "hunter22")
	require.NoError(t, err)

	_, err = e.RecoveryQuestions(created.ID)
	assert.ErrorIs(t, err, models.ErrNoRecovery)

	_, err = e.Recover(created.ID, []string{"anything"})
	assert.ErrorIs(t, err, models.ErrNoRecovery)
}

func TestEngine_RecoverySurvivesPasswordChange(t *testing.T) {
	e := newTestEngine(t)

	created, err := e.CreateVault("Personal", "", "", "old-password")
	require.NoError(t, err)

	session, err := e.OpenSession(created.ID, "old-password")
	require.NoError(t, err)
	require.NoError(t, session.SetupRecovery([]recovery.QA{
		{Question: "Q?", Answer: "answer"},
	}))
	require.NoError(t, session.ChangePassword("new-password"))
	session.Close()

	recovered, err := e.Recover(created.ID, []string{"answer"})
	require.NoError(t, err)
	recovered.Close()
}
