package vault

import (
	"strings"
	"testing"

	"tron-custody-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilVaultPassesThrough(t *testing.T) {
	v, err := New("")
	require.NoError(t, err)
	require.Nil(t, v)

	sealed, err := v.Seal("secret")
	require.NoError(t, err)
	assert.Equal(t, "secret", sealed)

	_, err = v.Open(sealedPrefix + "00")
	assert.Error(t, err)
}

func TestSealOpenMultisig(t *testing.T) {
	v, err := New("correct horse battery staple")
	require.NoError(t, err)

	w := &models.MultisigWallet{
		Id:         "w1",
		Address:    "TAddr",
		PrivateKey: "aa11",
		Mnemonic:   "abandon abandon",
		Signers: []models.Signer{
			{Address: "TS1", PrivateKey: "bb22", Passphrase: "p1"},
			{Address: "TS2", PrivateKey: "cc33", Passphrase: "p2"},
		},
	}

	sealed, err := v.SealMultisig(w)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed.PrivateKey, sealedPrefix))
	assert.True(t, strings.HasPrefix(sealed.Signers[1].Passphrase, sealedPrefix))
	assert.Equal(t, "aa11", w.PrivateKey, "input must not be modified")
	assert.Equal(t, "p2", w.Signers[1].Passphrase, "input signers must not be modified")
	assert.Equal(t, "TAddr", sealed.Address)

	require.NoError(t, v.OpenMultisig(sealed))
	assert.Equal(t, w, sealed)
}

func TestOpenPlaintextIsUnchanged(t *testing.T) {
	v, err := New("k")
	require.NoError(t, err)
	plain, err := v.Open("not-sealed")
	require.NoError(t, err)
	assert.Equal(t, "not-sealed", plain)
}

func TestOpenWithWrongSecretFails(t *testing.T) {
	a, err := New("one")
	require.NoError(t, err)
	b, err := New("two")
	require.NoError(t, err)

	sealed, err := a.Seal("private")
	require.NoError(t, err)
	_, err = b.Open(sealed)
	assert.Error(t, err)
}
