// engine.go: Engine construction and shared plumbing
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"fmt"
	"sync"

	goplugins "github.com/agilira/go-plugins"
)

// Engine runs policy-checked cryptographic operations against a key store and
// a registry of primitive instances. Operation contexts are owned by callers;
// the engine keeps no reference to them between calls.
type Engine struct {
	config        *Config
	log           Logger
	registry      *Registry
	keys          KeyStore
	pluginManager *goplugins.Manager[DriverRequest, DriverResponse]
	ownsRegistry  bool
	ownsKeys      bool
	closeOnce     sync.Once
	closeErr      error
}

// Option customizes an Engine built by New.
type Option func(*Engine)

// WithKeyStore makes the engine use ks instead of opening its own Store.
// The caller keeps ownership of ks.
func WithKeyStore(ks KeyStore) Option {
	return func(e *Engine) { e.keys = ks }
}

// WithRegistry makes the engine use a caller-populated registry instead of
// registering the software drivers. The caller keeps ownership of r.
func WithRegistry(r *Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithLogger replaces the default slog-backed logger.
func WithLogger(l Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithPluginManager attaches a go-plugins manager to the registry the engine
// creates. It has no effect together with WithRegistry.
func WithPluginManager(pm *goplugins.Manager[DriverRequest, DriverResponse]) Option {
	return func(e *Engine) { e.pluginManager = pm }
}

// New builds an engine from cfg. A nil cfg means DefaultConfig().
func New(cfg *Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{config: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = NewLogger(cfg.Log.Label)
	}
	if cfg.Log.Verbosity > 0 {
		if err := SetLogVerbosity(cfg.Log.Verbosity); err != nil {
			e.log.Warnf("failed to set log verbosity: %v", err)
		}
	}

	if e.registry == nil {
		e.registry = NewRegistry(&RegistryConfig{OperationTimeout: cfg.Hardware.OperationTimeout}, e.pluginManager, e.log)
		e.ownsRegistry = true
		if err := RegisterSoftwareDrivers(e.registry, cfg.Hardware.instanceCounts()); err != nil {
			_ = e.registry.Close()
			return nil, err
		}
		for _, name := range cfg.Hardware.TRNGPlugins {
			if err := e.registry.RegisterPluginDriver(FamilyTRNG, name); err != nil {
				_ = e.registry.Close()
				return nil, fmt.Errorf("failed to register TRNG plugin %q: %w", name, err)
			}
		}
	}

	if e.keys == nil {
		store, err := NewStore(cfg.KeyStore, e.log)
		if err != nil {
			if e.ownsRegistry {
				_ = e.registry.Close()
			}
			return nil, err
		}
		e.keys = store
		e.ownsKeys = true
	}

	e.log.Info(0, "engine ready")
	return e, nil
}

// Registry returns the primitive registry.
func (e *Engine) Registry() *Registry { return e.registry }

// KeyStore returns the key store.
func (e *Engine) KeyStore() KeyStore { return e.keys }

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *Config { return e.config }

// Close releases what New created. Keys and registries passed in through
// options are left to the caller.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		var errs []error
		if e.ownsKeys {
			if err := e.keys.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if e.ownsRegistry {
			if err := e.registry.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			e.closeErr = fmt.Errorf("failed to close engine: %v", errs)
		}
		e.log.Info(0, "engine closed")
	})
	return e.closeErr
}

// resolveKey loads a key and checks it against the required usage and
// algorithm. The key is released on failure.
func (e *Engine) resolveKey(id KeyID, usage Usage, alg Algorithm) (*ResolvedKey, error) {
	key, err := e.keys.Resolve(id)
	if err != nil {
		return nil, err
	}
	if err := checkKeyPolicy(&key.Attributes, usage, alg); err != nil {
		key.Release()
		return nil, err
	}
	return key, nil
}

// driverError maps a driver failure and logs it at the driver verbosity.
func (e *Engine) driverError(err error) error {
	if err == nil {
		return nil
	}
	mapped := mapDriverError(err)
	if e.log.LogV(2) {
		e.log.Infof(2, "driver error: %v", err)
	}
	return mapped
}

// fillSentinel prefills an output buffer so unwritten bytes are recognizable.
func fillSentinel(out []byte) {
	for i := range out {
		out[i] = '!'
	}
}
