package keys

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacesprotocol/subspacer/types"
)

func TestGenerateSaveLoad(t *testing.T) {
	priv, err := Generate()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "k.priv")
	require.NoError(t, Save(path, priv))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, priv.Serialize(), loaded.Serialize())
	require.Equal(t, OwnerKey(priv), OwnerKey(loaded))
}

func TestLoadRejectsBadKeyFile(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.priv"))
	require.Error(t, err)
}

func TestSignVerify(t *testing.T) {
	priv, err := Generate()
	require.NoError(t, err)
	owner := OwnerKey(priv)

	msg := []byte("canonical signing message")
	sig := Sign(priv, msg)

	require.NoError(t, Verify(owner[:], msg, sig[:]))
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	priv, err := Generate()
	require.NoError(t, err)
	other, err := Generate()
	require.NoError(t, err)

	owner := OwnerKey(priv)
	msg := []byte("message")
	sig := Sign(other, msg)

	require.ErrorIs(t, Verify(owner[:], msg, sig[:]), types.ErrInvalidSignature)
}

func TestVerifyRejectsMutatedMessage(t *testing.T) {
	priv, err := Generate()
	require.NoError(t, err)
	owner := OwnerKey(priv)

	sig := Sign(priv, []byte("message"))
	require.ErrorIs(t, Verify(owner[:], []byte("messagE"), sig[:]), types.ErrInvalidSignature)
}

func TestVerifyRejectsMalformedInputs(t *testing.T) {
	priv, err := Generate()
	require.NoError(t, err)
	owner := OwnerKey(priv)
	msg := []byte("message")
	sig := Sign(priv, msg)

	require.ErrorIs(t, Verify(owner[:10], msg, sig[:]), types.ErrInvalidOwnerKey)
	require.ErrorIs(t, Verify(owner[:], msg, sig[:30]), types.ErrInvalidSignature)
}
