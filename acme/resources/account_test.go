package resources

import (
	"crypto/ecdsa"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certmason/certmason/acme/keys"
)

func TestNewAccount(t *testing.T) {
	assert := assert.New(t)

	acct, err := NewAccount([]string{"", "admin@example.com"}, nil)
	require.NoError(t, err)

	assert.Empty(acct.ID)
	assert.Equal([]string{"mailto:admin@example.com"}, acct.Contact)
	require.NotNil(t, acct.Signer)
	_, ok := acct.Signer.(*ecdsa.PrivateKey)
	assert.True(ok, "default account key should be ECDSA")
}

func TestNewAccountExplicitKey(t *testing.T) {
	signer, err := keys.NewSigner("rsa")
	require.NoError(t, err)

	acct, err := NewAccount(nil, signer)
	require.NoError(t, err)

	assert.Equal(t, signer, acct.Signer)
	assert.Empty(t, acct.Contact)
}

func TestSaveRestoreAccount(t *testing.T) {
	assert := assert.New(t)

	acct, err := NewAccount([]string{"admin@example.com"}, nil)
	require.NoError(t, err)
	acct.ID = "https://ca.example.com/acme/acct/1"

	path := filepath.Join(t.TempDir(), "account.json")
	require.NoError(t, SaveAccount(path, acct))

	restored, err := RestoreAccount(path)
	require.NoError(t, err)

	assert.Equal(acct.ID, restored.ID)
	assert.Equal(acct.Contact, restored.Contact)

	origKey, ok := acct.Signer.(*ecdsa.PrivateKey)
	require.True(t, ok)
	restoredKey, ok := restored.Signer.(*ecdsa.PrivateKey)
	require.True(t, ok)
	assert.Equal(0, origKey.D.Cmp(restoredKey.D), "restored key must match saved key")
}

func TestSaveAccountNil(t *testing.T) {
	err := SaveAccount(filepath.Join(t.TempDir(), "account.json"), nil)
	assert.Error(t, err)
}

func TestRestoreAccountMissingFile(t *testing.T) {
	acct, err := RestoreAccount(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
	assert.Nil(t, acct)
}
