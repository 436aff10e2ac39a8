package tron

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the version byte of mainnet Tron addresses.
const AddressPrefix byte = 0x41

// AddressFromPublicKey returns the base58check address of a secp256k1 key.
func AddressFromPublicKey(pub *ecdsa.PublicKey) string {
	return base58.CheckEncode(crypto.PubkeyToAddress(*pub).Bytes(), AddressPrefix)
}

// AddressFromPrivateKeyHex returns the address controlled by a hex private key.
func AddressFromPrivateKeyHex(privateKeyHex string) (string, error) {
	key, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return "", err
	}
	return AddressFromPublicKey(&key.PublicKey), nil
}

// ParsePrivateKey decodes a hex secp256k1 private key, with or without 0x.
func ParsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// DecodeAddress returns the 21-byte form (0x41 || 20 bytes) of a base58 address.
func DecodeAddress(address string) ([]byte, error) {
	payload, version, err := base58.CheckDecode(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}
	if version != AddressPrefix || len(payload) != 20 {
		return nil, fmt.Errorf("invalid address %q: not a tron address", address)
	}
	return append([]byte{AddressPrefix}, payload...), nil
}

// IsValidAddress reports whether address is a well-formed base58 Tron address.
func IsValidAddress(address string) bool {
	_, err := DecodeAddress(address)
	return err == nil
}

// ToHexAddress converts a base58 address to its 41-prefixed hex form.
func ToHexAddress(address string) (string, error) {
	raw, err := DecodeAddress(address)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// FromHexAddress converts a 41-prefixed (or bare 20-byte) hex address to base58.
func FromHexAddress(hexAddress string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(hexAddress, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid hex address %q: %w", hexAddress, err)
	}
	switch {
	case len(raw) == 21 && raw[0] == AddressPrefix:
		raw = raw[1:]
	case len(raw) == 20:
	default:
		return "", fmt.Errorf("invalid hex address %q: unexpected length %d", hexAddress, len(raw))
	}
	return base58.CheckEncode(raw, AddressPrefix), nil
}
