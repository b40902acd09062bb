package modelconfig

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/adishahh/indian-market-ml-platform/pkg/validate"
)

// Default returns a Config populated only from default tags
func Default() *Config {
	cfg := &Config{}
	// tags are static; a failure here is a programming error
	if err := validate.Defaults(cfg); err != nil {
		panic(err)
	}
	return cfg
}

// Load reads a YAML file and returns Config with raw bytes.
// Unknown fields fail immediately (KnownFields).
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, data, nil
}

// LoadOrDefault behaves like Load but falls back to Default for a missing file
func LoadOrDefault(path string) (*Config, error) {
	cfg, _, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes YAML over the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks tag rules and cross-field constraints
func Validate(cfg *Config) error {
	if err := validate.Struct(context.Background(), cfg); err != nil {
		return err
	}
	if cfg.Simulation.SellThreshold > cfg.Simulation.BuyThreshold {
		return fmt.Errorf("simulation.sell_threshold %.2f exceeds buy_threshold %.2f",
			cfg.Simulation.SellThreshold, cfg.Simulation.BuyThreshold)
	}
	if cfg.Simulation.TradeAmount > cfg.Simulation.InitialCapital {
		return fmt.Errorf("simulation.trade_amount exceeds initial_capital")
	}
	return nil
}

// Hash generates a SHA256 hash from Config (canonical JSON).
// Struct fields keep a fixed order so the hash is reproducible.
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
