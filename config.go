// config.go: Engine configuration loaded from TOML
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	goerrors "github.com/agilira/go-errors"
)

// Config is the complete engine configuration.
type Config struct {
	Features FeaturesConfig `toml:"features"`
	KeyStore StoreConfig    `toml:"keystore"`
	Hardware HardwareConfig `toml:"hardware"`
	Log      LogConfig      `toml:"log"`
}

// FeaturesConfig toggles optional behaviour.
type FeaturesConfig struct {
	HashSuspend bool `toml:"hash_suspend"` // enables HashOperation.Suspend and Engine.HashResume
}

// HardwareConfig sets the number of software instances per family.
type HardwareConfig struct {
	SHA2             int           `toml:"sha2"`
	SHA3             int           `toml:"sha3"`
	AESECB           int           `toml:"aes_ecb"`
	AESCBC           int           `toml:"aes_cbc"`
	AESCTR           int           `toml:"aes_ctr"`
	AESMAC           int           `toml:"aes_mac"`
	AESCCM           int           `toml:"aes_ccm"`
	AESGCM           int           `toml:"aes_gcm"`
	TRNG             int           `toml:"trng"`
	EC               int           `toml:"ec"`
	OperationTimeout time.Duration `toml:"operation_timeout"`
	TRNGPlugins      []string      `toml:"trng_plugins"` // extra TRNG instances served by named plugins
}

// LogConfig configures the slog-backed logger.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	Label     string `toml:"label"`
}

// DefaultConfig returns one instance per family, an in-memory key store and
// hash suspension enabled. A key store without a path is kept in memory.
func DefaultConfig() *Config {
	return &Config{
		Features: FeaturesConfig{HashSuspend: true},
		Hardware: HardwareConfig{
			SHA2: 1, SHA3: 1,
			AESECB: 1, AESCBC: 1, AESCTR: 1, AESMAC: 1,
			AESCCM: 1, AESGCM: 1,
			TRNG: 1, EC: 1,
			OperationTimeout: 10 * time.Second,
		},
		Log: LogConfig{Label: "psa"},
	}
}

// LoadConfig decodes a TOML file over the defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, goerrors.Wrap(err, ErrCodeConfig, fmt.Sprintf("failed to decode %s", path))
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, goerrors.New(ErrCodeConfig, fmt.Sprintf("unknown configuration keys: %s", strings.Join(keys, ", ")))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// instanceCounts maps the hardware section onto families.
func (h *HardwareConfig) instanceCounts() map[Family]int {
	return map[Family]int{
		FamilySHA2:   h.SHA2,
		FamilySHA3:   h.SHA3,
		FamilyAESECB: h.AESECB,
		FamilyAESCBC: h.AESCBC,
		FamilyAESCTR: h.AESCTR,
		FamilyAESMAC: h.AESMAC,
		FamilyAESCCM: h.AESCCM,
		FamilyAESGCM: h.AESGCM,
		FamilyTRNG:   h.TRNG,
		FamilyEC:     h.EC,
	}
}

// Validate checks ranges. Instance counts may be zero, which disables a family.
func (c *Config) Validate() error {
	for family, n := range c.Hardware.instanceCounts() {
		if n < 0 || n > 64 {
			return goerrors.New(ErrCodeConfig, fmt.Sprintf("hardware.%s: instance count %d out of range [0, 64]", family, n))
		}
	}
	for _, name := range c.Hardware.TRNGPlugins {
		if name == "" {
			return goerrors.New(ErrCodeConfig, "hardware.trng_plugins: plugin name must not be empty")
		}
	}
	if c.Hardware.OperationTimeout < 0 {
		return goerrors.New(ErrCodeConfig, "hardware.operation_timeout must not be negative")
	}
	if c.Log.Verbosity < 0 {
		return goerrors.New(ErrCodeConfig, "log.verbosity must not be negative")
	}
	return nil
}
