package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"tron-custody-go/internal/models"

	"golang.org/x/crypto/pbkdf2"
)

const (
	sealedPrefix  = "enc:v1:"
	kdfIterations = 310_000
	keySalt       = "tron-custody-go/vault/v1"
)

// Vault encrypts key material at rest with AES-256-GCM. A nil *Vault stores
// values unchanged, and Open passes through values that were never sealed.
type Vault struct {
	aead cipher.AEAD
}

// New derives the data key from secret. An empty secret returns nil.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, nil
	}
	key := pbkdf2.Key([]byte(secret), []byte(keySalt), kdfIterations, 32, sha256.New)
	defer clearBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("unable to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("unable to create gcm: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Seal encrypts plain. Empty values stay empty.
func (v *Vault) Seal(plain string) (string, error) {
	if v == nil || plain == "" {
		return plain, nil
	}
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("unable to read nonce: %w", err)
	}
	out := v.aead.Seal(nonce, nonce, []byte(plain), nil)
	return sealedPrefix + hex.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal.
func (v *Vault) Open(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return sealed, nil
	}
	if v == nil {
		return "", errors.New("value is encrypted but no vault secret is configured")
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("malformed sealed value: %w", err)
	}
	ns := v.aead.NonceSize()
	if len(raw) < ns {
		return "", errors.New("sealed value too short")
	}
	plain, err := v.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("unable to decrypt value: %w", err)
	}
	return string(plain), nil
}

// SealMultisig returns a copy of w with every secret field sealed.
func (v *Vault) SealMultisig(w *models.MultisigWallet) (*models.MultisigWallet, error) {
	out := *w
	out.Signers = append([]models.Signer(nil), w.Signers...)
	fields := []*string{&out.PrivateKey, &out.Mnemonic}
	for i := range out.Signers {
		fields = append(fields, &out.Signers[i].PrivateKey, &out.Signers[i].Passphrase)
	}
	if err := v.apply(fields, v.Seal); err != nil {
		return nil, err
	}
	return &out, nil
}

// OpenMultisig decrypts the secret fields of w in place.
func (v *Vault) OpenMultisig(w *models.MultisigWallet) error {
	fields := []*string{&w.PrivateKey, &w.Mnemonic}
	for i := range w.Signers {
		fields = append(fields, &w.Signers[i].PrivateKey, &w.Signers[i].Passphrase)
	}
	return v.apply(fields, v.Open)
}

// SealCollection returns a copy of w with every secret field sealed.
func (v *Vault) SealCollection(w *models.CollectionWallet) (*models.CollectionWallet, error) {
	out := *w
	if err := v.apply([]*string{&out.PrivateKey, &out.Mnemonic}, v.Seal); err != nil {
		return nil, err
	}
	return &out, nil
}

// OpenCollection decrypts the secret fields of w in place.
func (v *Vault) OpenCollection(w *models.CollectionWallet) error {
	return v.apply([]*string{&w.PrivateKey, &w.Mnemonic}, v.Open)
}

func (v *Vault) apply(fields []*string, fn func(string) (string, error)) error {
	for _, f := range fields {
		s, err := fn(*f)
		if err != nil {
			return err
		}
		*f = s
	}
	return nil
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
