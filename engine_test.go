// engine_test.go: Engine lifecycle tests and shared test helpers
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestEngine returns an engine with default configuration that is closed
// when the test ends.
func newTestEngine(t testing.TB) *Engine {
	t.Helper()
	return newTestEngineWithConfig(t, DefaultConfig())
}

func newTestEngineWithConfig(t testing.TB, cfg *Config, opts ...Option) *Engine {
	t.Helper()
	e, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// importKey imports a volatile key and fails the test on error.
func importKey(t testing.TB, e *Engine, keyType KeyType, usage Usage, alg Algorithm, material []byte) KeyID {
	t.Helper()
	var attrs KeyAttributes
	attrs.SetKeyType(keyType)
	attrs.SetKeyUsageFlags(usage)
	attrs.SetKeyAlgorithm(alg)
	id, err := e.ImportKey(&attrs, material)
	require.NoError(t, err)
	return id
}

// unhex decodes a hex string, ignoring spaces.
func unhex(t testing.TB, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	require.NoError(t, err)
	return b
}

// pattern returns n bytes of a simple counting pattern.
func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

func TestNewDefaultEngine(t *testing.T) {
	e, err := New(nil)
	require.NoError(t, err)

	assert.NotNil(t, e.Registry())
	assert.NotNil(t, e.KeyStore())
	assert.True(t, e.Config().Features.HashSuspend)
	assert.Equal(t, 1, e.Registry().Instances(FamilyAESGCM))

	require.NoError(t, e.Close())
	require.NoError(t, e.Close(), "Close must be idempotent")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hardware.AESGCM = -1

	_, err := New(cfg)
	require.Error(t, err)
}

func TestNewWithDisabledFamily(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hardware.AESCCM = 0
	e := newTestEngineWithConfig(t, cfg)

	key := importKey(t, e, KeyTypeAES, UsageEncrypt, AlgCCM, make([]byte, 16))
	var op AEADOperation
	err := e.AEADEncryptSetup(&op, key, AlgCCM)
	assert.True(t, errors.Is(err, ErrNotSupported), "got %v", err)
}

func TestEngineDoesNotCloseBorrowedComponents(t *testing.T) {
	store, err := NewStore(StoreConfig{InMemory: true}, nil)
	require.NoError(t, err)
	defer store.Close()

	reg := NewRegistry(nil, nil, nil)
	defer reg.Close()
	require.NoError(t, RegisterSoftwareDrivers(reg, nil))

	e, err := New(nil, WithKeyStore(store), WithRegistry(reg), WithLogger(NewLogger("test")))
	require.NoError(t, err)

	key := importKey(t, e, KeyTypeHMAC, UsageSignMessage, HMAC(AlgSHA256), []byte("borrowed"))
	require.NoError(t, e.Close())

	// Both components stay usable after the engine is gone.
	_, err = store.Attributes(key)
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Instances(FamilySHA2))
}

func TestFillSentinel(t *testing.T) {
	out := make([]byte, 5)
	fillSentinel(out)
	assert.Equal(t, []byte("!!!!!"), out)
}
