// policy_test.go: Key policy matching tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlgorithmPermits(t *testing.T) {
	hmac256 := HMAC(AlgSHA256)

	tests := []struct {
		name      string
		keyType   KeyType
		policy    Algorithm
		requested Algorithm
		want      bool
	}{
		{"exact match", KeyTypeAES, AlgCTR, AlgCTR, true},
		{"different cipher", KeyTypeAES, AlgCTR, AlgCBCNoPadding, false},

		{"any-hash ECDSA", KeyTypeECCKeyPair(ECCFamilySECPR1), ECDSA(AlgAnyHash), ECDSA(AlgSHA256), true},
		{"any-hash ECDSA other hash", KeyTypeECCKeyPair(ECCFamilySECPR1), ECDSA(AlgAnyHash), ECDSA(AlgSHA512), true},
		{"any-hash ECDSA vs deterministic", KeyTypeECCKeyPair(ECCFamilySECPR1), ECDSA(AlgAnyHash), DeterministicECDSA(AlgSHA256), false},
		{"fixed-hash ECDSA", KeyTypeECCKeyPair(ECCFamilySECPR1), ECDSA(AlgSHA256), ECDSA(AlgSHA384), false},

		{"AEAD at-least longer tag", KeyTypeAES, AEADWithAtLeastThisLengthTag(AlgCCM, 8), AEADWithShortenedTag(AlgCCM, 12), true},
		{"AEAD at-least equal tag", KeyTypeAES, AEADWithAtLeastThisLengthTag(AlgCCM, 8), AEADWithShortenedTag(AlgCCM, 8), true},
		{"AEAD at-least default tag", KeyTypeAES, AEADWithAtLeastThisLengthTag(AlgCCM, 8), AlgCCM, true},
		{"AEAD at-least shorter tag", KeyTypeAES, AEADWithAtLeastThisLengthTag(AlgCCM, 8), AEADWithShortenedTag(AlgCCM, 4), false},
		{"AEAD at-least other mode", KeyTypeAES, AEADWithAtLeastThisLengthTag(AlgCCM, 8), AlgGCM, false},
		{"AEAD exact tag only", KeyTypeAES, AEADWithShortenedTag(AlgGCM, 12), AlgGCM, false},

		{"HMAC full equals truncated-to-full", KeyTypeHMAC, hmac256, TruncatedMAC(hmac256, 32), true},
		{"HMAC full rejects truncated", KeyTypeHMAC, hmac256, TruncatedMAC(hmac256, 16), false},
		{"HMAC at-least longer", KeyTypeHMAC, AtLeastThisLengthMAC(hmac256, 16), TruncatedMAC(hmac256, 20), true},
		{"HMAC at-least full", KeyTypeHMAC, AtLeastThisLengthMAC(hmac256, 16), hmac256, true},
		{"HMAC at-least shorter", KeyTypeHMAC, AtLeastThisLengthMAC(hmac256, 16), TruncatedMAC(hmac256, 8), false},
		{"HMAC truncated policy exact", KeyTypeHMAC, TruncatedMAC(hmac256, 16), TruncatedMAC(hmac256, 16), true},
		{"HMAC truncated policy longer", KeyTypeHMAC, TruncatedMAC(hmac256, 16), TruncatedMAC(hmac256, 20), false},
		{"HMAC other hash", KeyTypeHMAC, hmac256, HMAC(AlgSHA512), false},
		{"HMAC on raw data key", KeyTypeRawData, hmac256, TruncatedMAC(hmac256, 32), true},
		{"HMAC on AES key", KeyTypeAES, hmac256, TruncatedMAC(hmac256, 32), false},
		{"CMAC truncated-to-full policy", KeyTypeAES, TruncatedMAC(AlgCMAC, 16), AlgCMAC, true},
		{"CMAC at-least", KeyTypeAES, AtLeastThisLengthMAC(AlgCMAC, 8), TruncatedMAC(AlgCMAC, 10), true},
		{"CMAC on HMAC key", KeyTypeHMAC, AtLeastThisLengthMAC(AlgCMAC, 8), TruncatedMAC(AlgCMAC, 10), false},

		{"raw ECDH with KDF", KeyTypeECCKeyPair(ECCFamilySECPR1), AlgECDH, KeyAgreement(AlgECDH, HKDF(AlgSHA256)), true},
		{"raw ECDH vs FFDH", KeyTypeECCKeyPair(ECCFamilySECPR1), AlgECDH, AlgFFDH, false},
		{"ECDH with KDF policy", KeyTypeECCKeyPair(ECCFamilySECPR1), KeyAgreement(AlgECDH, HKDF(AlgSHA256)), AlgECDH, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AlgorithmPermits(tt.keyType, tt.policy, tt.requested))
		})
	}
}

func TestPolicyPermits(t *testing.T) {
	policy := KeyPolicy{Usage: UsageEncrypt, Alg: AlgCCM, Alg2: AlgGCM}

	tests := []struct {
		name    string
		alg     Algorithm
		wantErr error
	}{
		{"primary algorithm", AlgCCM, nil},
		{"secondary algorithm", AlgGCM, nil},
		{"zero algorithm", AlgNone, ErrInvalidArgument},
		{"wildcard request", AEADWithAtLeastThisLengthTag(AlgCCM, 8), ErrInvalidArgument},
		{"any-hash request", ECDSA(AlgAnyHash), ErrInvalidArgument},
		{"other algorithm", AlgCTR, ErrNotPermitted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := PolicyPermits(policy, KeyTypeAES, tt.alg)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestCheckKeyPolicyUsage(t *testing.T) {
	attrs := KeyAttributes{Type: KeyTypeAES, Usage: UsageEncrypt, Alg: AlgCTR}

	assert.NoError(t, checkKeyPolicy(&attrs, UsageEncrypt, AlgCTR))
	assert.ErrorIs(t, checkKeyPolicy(&attrs, UsageDecrypt, AlgCTR), ErrNotPermitted)
	assert.ErrorIs(t, checkKeyPolicy(&attrs, UsageExport, AlgNone), ErrNotPermitted)

	public := KeyAttributes{Type: KeyTypeECCPublicKey(ECCFamilySECPR1)}
	assert.NoError(t, checkKeyPolicy(&public, UsageExport, AlgNone), "public keys are always exportable")
}

func TestWildcardDetection(t *testing.T) {
	assert.True(t, ECDSA(AlgAnyHash).IsWildcard())
	assert.True(t, AtLeastThisLengthMAC(AlgCMAC, 8).IsWildcard())
	assert.True(t, AEADWithAtLeastThisLengthTag(AlgGCM, 12).IsWildcard())
	assert.True(t, AlgAnyHash.IsWildcard())

	assert.False(t, ECDSA(AlgSHA256).IsWildcard())
	assert.False(t, TruncatedMAC(AlgCMAC, 8).IsWildcard())
	assert.False(t, AlgGCM.IsWildcard())
	assert.False(t, AlgSHA256.IsWildcard())
}
