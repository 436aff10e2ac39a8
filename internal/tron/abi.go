package tron

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	selectorTransfer  = "transfer(address,uint256)"
	selectorBalanceOf = "balanceOf(address)"
)

// encodeAddressParam ABI-encodes a base58 address as a 32-byte word.
func encodeAddressParam(address string) ([]byte, error) {
	raw, err := DecodeAddress(address)
	if err != nil {
		return nil, err
	}
	return common.LeftPadBytes(raw[1:], 32), nil
}

// encodeTransferParams returns the hex parameter for transfer(address,uint256).
func encodeTransferParams(to string, amount *big.Int) (string, error) {
	if amount == nil || amount.Sign() <= 0 {
		return "", errors.New("token amount must be positive")
	}
	if amount.BitLen() > 256 {
		return "", errors.New("token amount overflows uint256")
	}
	addr, err := encodeAddressParam(to)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(addr) + hex.EncodeToString(common.LeftPadBytes(amount.Bytes(), 32)), nil
}

// encodeBalanceOfParams returns the hex parameter for balanceOf(address).
func encodeBalanceOfParams(owner string) (string, error) {
	addr, err := encodeAddressParam(owner)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(addr), nil
}

// decodeUint256 parses a 32-byte hex word.
func decodeUint256(word string) (*big.Int, error) {
	raw, err := hex.DecodeString(word)
	if err != nil {
		return nil, fmt.Errorf("invalid uint256 word: %w", err)
	}
	if len(raw) == 0 {
		return new(big.Int), nil
	}
	if len(raw) > 32 {
		raw = raw[:32]
	}
	return new(big.Int).SetBytes(raw), nil
}
