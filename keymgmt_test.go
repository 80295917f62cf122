// keymgmt_test.go: Key generation, export and unimplemented entry point tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	e := newTestEngine(t)
	cases := []struct {
		name    string
		keyType KeyType
		bits    int
		size    int
	}{
		{"AES-128", KeyTypeAES, 128, 16},
		{"AES-192", KeyTypeAES, 192, 24},
		{"AES-256", KeyTypeAES, 256, 32},
		{"HMAC", KeyTypeHMAC, 384, 48},
		{"raw", KeyTypeRawData, 8, 1},
		{"P-256", KeyTypeECCKeyPair(ECCFamilySECPR1), 256, 32},
		{"P-521", KeyTypeECCKeyPair(ECCFamilySECPR1), 521, 66},
		{"X25519", KeyTypeECCKeyPair(ECCFamilyMontgomery), 255, 32},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var attrs KeyAttributes
			attrs.SetKeyType(tc.keyType)
			attrs.SetKeyBits(tc.bits)
			attrs.SetKeyUsageFlags(UsageExport)
			id, err := e.GenerateKey(&attrs)
			require.NoError(t, err)

			got, err := e.GetKeyAttributes(id)
			require.NoError(t, err)
			assert.Equal(t, tc.bits, got.Bits)
			assert.Equal(t, tc.keyType, got.Type)

			out := make([]byte, tc.size+8)
			n, err := e.ExportKey(id, out)
			require.NoError(t, err)
			assert.Equal(t, tc.size, n)
		})
	}
}

func TestGenerateKeyIsRandom(t *testing.T) {
	e := newTestEngine(t)
	var attrs KeyAttributes
	attrs.SetKeyType(KeyTypeAES)
	attrs.SetKeyBits(256)
	attrs.SetKeyUsageFlags(UsageExport)

	a, err := e.GenerateKey(&attrs)
	require.NoError(t, err)
	b, err := e.GenerateKey(&attrs)
	require.NoError(t, err)

	ka, kb := make([]byte, 32), make([]byte, 32)
	_, err = e.ExportKey(a, ka)
	require.NoError(t, err)
	_, err = e.ExportKey(b, kb)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(ka, kb))
}

func TestGenerateKeyErrors(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.GenerateKey(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	cases := []struct {
		name    string
		keyType KeyType
		bits    int
		want    error
	}{
		{"AES odd size", KeyTypeAES, 100, ErrInvalidArgument},
		{"HMAC zero size", KeyTypeHMAC, 0, ErrInvalidArgument},
		{"HMAC partial byte", KeyTypeHMAC, 12, ErrInvalidArgument},
		{"public key", KeyTypeECCPublicKey(ECCFamilySECPR1), 256, ErrInvalidArgument},
		{"unsupported curve", KeyTypeECCKeyPair(ECCFamilySECPK1), 256, ErrNotSupported},
		{"unsupported curve size", KeyTypeECCKeyPair(ECCFamilySECPR1), 224, ErrNotSupported},
		{"unsupported type", KeyTypeChaCha20, 256, ErrNotSupported},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var attrs KeyAttributes
			attrs.SetKeyType(tc.keyType)
			attrs.SetKeyBits(tc.bits)
			_, err := e.GenerateKey(&attrs)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestGenerateKeyWithoutEntropy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hardware.TRNG = 0
	e := newTestEngineWithConfig(t, cfg)

	var attrs KeyAttributes
	attrs.SetKeyType(KeyTypeAES)
	attrs.SetKeyBits(128)
	_, err := e.GenerateKey(&attrs)
	assert.ErrorIs(t, err, ErrNotSupported)
	assert.ErrorIs(t, e.GenerateRandom(make([]byte, 8)), ErrNotSupported)
	assert.NoError(t, e.GenerateRandom(nil), "an empty request needs no entropy source")
}

func TestGenerateRandom(t *testing.T) {
	e := newTestEngine(t)

	a := make([]byte, 64)
	b := make([]byte, 64)
	require.NoError(t, e.GenerateRandom(a))
	require.NoError(t, e.GenerateRandom(b))
	assert.False(t, bytes.Equal(a, b))
	assert.False(t, bytes.Equal(a, make([]byte, 64)))
}

func TestImportAndDestroy(t *testing.T) {
	e := newTestEngine(t)
	id := importKey(t, e, KeyTypeAES, UsageEncrypt|UsageExport, AlgCBCNoPadding, pattern(16))

	_, err := e.ExportKey(id, make([]byte, 15))
	assert.ErrorIs(t, err, ErrBufferTooSmall)

	require.NoError(t, e.DestroyKey(id))
	_, err = e.GetKeyAttributes(id)
	assert.ErrorIs(t, err, ErrDoesNotExist)

	var op CipherOperation
	assert.ErrorIs(t, e.CipherEncryptSetup(&op, id, AlgCBCNoPadding), ErrDoesNotExist)
	assert.ErrorIs(t, e.DestroyKey(KeyIDNull), ErrInvalidHandle)

	var bad KeyAttributes
	bad.SetKeyType(KeyTypeDES)
	_, err = e.ImportKey(&bad, pattern(8))
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestUnimplementedEntryPoints(t *testing.T) {
	e := newTestEngine(t)

	var kdf KeyDerivationOperation
	assert.ErrorIs(t, e.KeyDerivationSetup(&kdf, HKDF(AlgSHA256)), ErrNotSupported)
	assert.ErrorIs(t, kdf.InputBytes(KeyDerivationInputSalt, []byte("salt")), ErrNotSupported)
	assert.ErrorIs(t, kdf.InputKey(KeyDerivationInputSecret, KeyIDVolatileMin), ErrNotSupported)
	assert.ErrorIs(t, e.KeyDerivationKeyAgreement(&kdf, KeyDerivationInputSecret, KeyIDVolatileMin, nil), ErrNotSupported)
	assert.ErrorIs(t, kdf.OutputBytes(make([]byte, 16)), ErrNotSupported)
	_, err := kdf.OutputKey(&KeyAttributes{})
	assert.ErrorIs(t, err, ErrNotSupported)
	assert.NoError(t, kdf.Abort())

	_, err = e.AsymmetricEncrypt(KeyIDVolatileMin, AlgNone, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNotSupported)
	_, err = e.AsymmetricDecrypt(KeyIDVolatileMin, AlgNone, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNotSupported)
	_, err = e.CopyKey(KeyIDVolatileMin, &KeyAttributes{})
	assert.ErrorIs(t, err, ErrNotSupported)

	var src, dst HashOperation
	assert.ErrorIs(t, e.HashClone(&src, &dst), ErrNotSupported)
}
