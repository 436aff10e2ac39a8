package keys

import (
	"strings"
	"testing"

	"tron-custody-go/internal/tron"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestAccountFromMnemonicIsDeterministic(t *testing.T) {
	a, err := AccountFromMnemonic(testMnemonic)
	require.NoError(t, err)
	b, err := AccountFromMnemonic(testMnemonic)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	addr, err := tron.AddressFromPrivateKeyHex(a.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, a.Address, addr)
	assert.True(t, tron.IsValidAddress(a.Address))
	assert.Len(t, a.PublicKey, 130)
}

func TestAccountFromMnemonicRejectsGarbage(t *testing.T) {
	_, err := AccountFromMnemonic("not a mnemonic")
	assert.Error(t, err)

	_, err = AccountFromMnemonic(strings.Replace(testMnemonic, "about", "abandon", 1))
	assert.Error(t, err, "checksum word is wrong")
}

func TestNewMultisigWallet(t *testing.T) {
	w, err := NewMultisigWallet()
	require.NoError(t, err)

	assert.NotEmpty(t, w.Id)
	assert.Len(t, strings.Fields(w.Mnemonic), 12)
	require.Len(t, w.Signers, 2)
	assert.NotEqual(t, w.Signers[0].Passphrase, w.Signers[1].Passphrase)
	assert.NotEqual(t, w.Signers[0].Address, w.Signers[1].Address)
	assert.False(t, w.PermissionUpdated())

	derived, err := AccountFromMnemonic(w.Mnemonic)
	require.NoError(t, err)
	assert.Equal(t, derived.Address, w.Address)

	for _, s := range w.Signers {
		addr, err := tron.AddressFromPrivateKeyHex(s.PrivateKey)
		require.NoError(t, err)
		assert.Equal(t, s.Address, addr)
		assert.NotEqual(t, w.Address, s.Address)
	}
}

func TestNewCollectionWallet(t *testing.T) {
	w, err := NewCollectionWallet()
	require.NoError(t, err)

	derived, err := AccountFromMnemonic(w.Mnemonic)
	require.NoError(t, err)
	assert.Equal(t, derived.Address, w.Address)
	assert.Equal(t, derived.PrivateKey, w.PrivateKey)
}

func TestParseDerivationPath(t *testing.T) {
	indices, err := parseDerivationPath(TronPath)
	require.NoError(t, err)
	assert.Equal(t, []uint32{
		44 + hdkeychain.HardenedKeyStart,
		195 + hdkeychain.HardenedKeyStart,
		hdkeychain.HardenedKeyStart,
		0,
		0,
	}, indices)

	_, err = parseDerivationPath("44'/195'")
	assert.Error(t, err)
	_, err = parseDerivationPath("m/-1")
	assert.Error(t, err)
}
