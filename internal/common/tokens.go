package common

import (
	"fmt"
	"os"
	"path/filepath"

	"tron-custody-go/internal/tron"

	"gopkg.in/yaml.v2"
)

type TokenConfig struct {
	Symbol   string `yaml:"symbol"`
	Contract string `yaml:"contract"`
}

type TokensConfig struct {
	Tokens []TokenConfig `yaml:"tokens"`
}

func LoadTokenConfig(tokensFile string) ([]TokenConfig, error) {
	var tokensPath string
	if filepath.IsAbs(tokensFile) {
		tokensPath = tokensFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		tokensPath = filepath.Join(wd, tokensFile)
	}

	data, err := os.ReadFile(tokensPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", tokensFile, err)
	}

	var config TokensConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", tokensFile, err)
	}

	for i, token := range config.Tokens {
		if token.Symbol == "" {
			return nil, fmt.Errorf("token at index %d missing symbol", i)
		}
		if !tron.IsValidAddress(token.Contract) {
			return nil, fmt.Errorf("token %s has invalid contract address %q", token.Symbol, token.Contract)
		}
	}

	return config.Tokens, nil
}

// LoadTokenContracts returns the contract addresses listed in tokensFile.
func LoadTokenContracts(tokensFile string) ([]string, error) {
	tokens, err := LoadTokenConfig(tokensFile)
	if err != nil {
		return nil, err
	}

	contracts := make([]string, len(tokens))
	for i, token := range tokens {
		contracts[i] = token.Contract
	}

	return contracts, nil
}
