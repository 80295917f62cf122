// keyutils_test.go: Test cases for key utilities.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"bytes"
	"errors"
	"testing"
)

func TestZeroize(t *testing.T) {
	key := []byte{1, 2, 3, 4, 5}
	Zeroize(key)
	for i, b := range key {
		if b != 0 {
			t.Errorf("Zeroize failed at index %d: got %d", i, b)
		}
	}

	// Must not panic on empty or nil input
	Zeroize(nil)
	Zeroize([]byte{})
}

func TestGetKeyFingerprint(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	fp1 := GetKeyFingerprint(key)
	fp2 := GetKeyFingerprint(key)
	if fp1 != fp2 {
		t.Errorf("Fingerprint should be deterministic: %s != %s", fp1, fp2)
	}
	if len(fp1) != 16 {
		t.Errorf("Expected 16 hex characters, got %d", len(fp1))
	}

	other := bytes.Repeat([]byte{0x43}, 32)
	if GetKeyFingerprint(other) == fp1 {
		t.Error("Different keys should have different fingerprints")
	}

	if GetKeyFingerprint(nil) != "" {
		t.Error("Fingerprint of empty key should be empty")
	}
}

func TestECCCurveSizes(t *testing.T) {
	tests := []struct {
		family ECCFamily
		bits   int
		scalar int
		public int
	}{
		{ECCFamilySECPR1, 256, 32, 65},
		{ECCFamilySECPR1, 384, 48, 97},
		{ECCFamilySECPR1, 521, 66, 133},
		{ECCFamilyMontgomery, 255, 32, 32},
		{ECCFamilySECPR1, 192, 0, 0},
		{ECCFamilySECPK1, 256, 0, 0},
	}

	for _, tt := range tests {
		if got := eccCurveBytes(tt.family, tt.bits); got != tt.scalar {
			t.Errorf("eccCurveBytes(0x%02x, %d) = %d, want %d", tt.family, tt.bits, got, tt.scalar)
		}
		if got := eccPublicKeyLength(tt.family, tt.bits); got != tt.public {
			t.Errorf("eccPublicKeyLength(0x%02x, %d) = %d, want %d", tt.family, tt.bits, got, tt.public)
		}
		if tt.scalar != 0 {
			if got := eccBitsForLength(tt.family, tt.scalar); got != tt.bits {
				t.Errorf("eccBitsForLength(0x%02x, %d) = %d, want %d", tt.family, tt.scalar, got, tt.bits)
			}
		}
	}
}

func TestValidateKeyMaterial(t *testing.T) {
	p256Public := append([]byte{0x04}, make([]byte, 64)...)

	tests := []struct {
		name     string
		keyType  KeyType
		bits     int
		material []byte
		wantBits int
		wantErr  error
	}{
		{"AES-128", KeyTypeAES, 0, make([]byte, 16), 128, nil},
		{"AES-192 declared", KeyTypeAES, 192, make([]byte, 24), 192, nil},
		{"AES-256", KeyTypeAES, 0, make([]byte, 32), 256, nil},
		{"AES bad length", KeyTypeAES, 0, make([]byte, 20), 0, ErrInvalidArgument},
		{"AES declared mismatch", KeyTypeAES, 256, make([]byte, 16), 0, ErrInvalidArgument},
		{"HMAC odd length", KeyTypeHMAC, 0, make([]byte, 5), 40, nil},
		{"Empty material", KeyTypeHMAC, 0, nil, 0, ErrInvalidArgument},
		{"P-256 key pair", KeyTypeECCKeyPair(ECCFamilySECPR1), 0, make([]byte, 32), 256, nil},
		{"P-256 public", KeyTypeECCPublicKey(ECCFamilySECPR1), 0, p256Public, 256, nil},
		{"Compressed public", KeyTypeECCPublicKey(ECCFamilySECPR1), 0, make([]byte, 33), 0, ErrInvalidArgument},
		{"X25519 key pair", KeyTypeECCKeyPair(ECCFamilyMontgomery), 0, make([]byte, 32), 255, nil},
		{"Unsupported curve", KeyTypeECCKeyPair(ECCFamilySECPK1), 0, make([]byte, 32), 0, ErrNotSupported},
		{"Unsupported type", KeyTypeDES, 0, make([]byte, 8), 0, ErrNotSupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := KeyAttributes{Type: tt.keyType, Bits: tt.bits}
			bits, err := validateKeyMaterial(&attrs, tt.material)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if bits != tt.wantBits {
				t.Errorf("Expected %d bits, got %d", tt.wantBits, bits)
			}
		})
	}
}
