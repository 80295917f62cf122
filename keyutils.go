// keyutils.go: Key material validation, zeroization, and fingerprinting.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"crypto/sha256"
	"fmt"
)

// Zeroize securely wipes a byte slice from memory.
//
// Resolved key material and intermediate secrets pass through here on every
// exit path, so keys never outlive the call that needed them.
//
// Example:
//
//	material := make([]byte, 32)
//	// ... use material ...
//	psa.Zeroize(material)
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// GetKeyFingerprint returns a short, non-reversible identifier for key material,
// the first 8 bytes of its SHA-256 in hex. It is what the engine logs in place
// of keys. Empty input yields an empty string.
func GetKeyFingerprint(key []byte) string {
	if len(key) == 0 {
		return ""
	}
	hash := sha256.Sum256(key)
	return fmt.Sprintf("%016x", hash[:8])
}

// eccCurveBytes returns the scalar size in bytes for a supported curve, or 0.
func eccCurveBytes(family ECCFamily, bits int) int {
	switch family {
	case ECCFamilySECPR1:
		switch bits {
		case 256:
			return 32
		case 384:
			return 48
		case 521:
			return 66
		}
	case ECCFamilyMontgomery:
		if bits == 255 {
			return 32
		}
	}
	return 0
}

// eccBitsForLength maps a private scalar length back to the curve size.
func eccBitsForLength(family ECCFamily, n int) int {
	switch family {
	case ECCFamilySECPR1:
		switch n {
		case 32:
			return 256
		case 48:
			return 384
		case 66:
			return 521
		}
	case ECCFamilyMontgomery:
		if n == 32 {
			return 255
		}
	}
	return 0
}

// eccPublicKeyLength returns the encoded public key size of a curve: the
// uncompressed point 0x04||X||Y for Weierstrass curves, the u-coordinate for
// Montgomery curves.
func eccPublicKeyLength(family ECCFamily, bits int) int {
	n := eccCurveBytes(family, bits)
	if n == 0 {
		return 0
	}
	if family == ECCFamilyMontgomery {
		return n
	}
	return 1 + 2*n
}

// validateKeyMaterial checks that material is well formed for attrs and returns
// the key size in bits. A non-zero attrs.Bits must agree with the material.
func validateKeyMaterial(attrs *KeyAttributes, material []byte) (int, error) {
	if len(material) == 0 {
		return 0, invalidArgument("key material must not be empty")
	}

	var bits int
	switch t := attrs.Type; {
	case t == KeyTypeAES:
		switch len(material) {
		case 16, 24, 32:
			bits = len(material) * 8
		default:
			return 0, invalidArgument("AES key must be 16, 24 or 32 bytes, got %d", len(material))
		}

	case t == KeyTypeHMAC, t == KeyTypeRawData, t == KeyTypeDerive:
		bits = len(material) * 8

	case t.IsECC() && t.IsKeyPair():
		bits = eccBitsForLength(t.ECCFamily(), len(material))
		if bits == 0 {
			return 0, notSupported("unsupported ECC key pair: family 0x%02x, %d bytes", uint8(t.ECCFamily()), len(material))
		}

	case t.IsECC() && t.IsPublicKey():
		family := t.ECCFamily()
		if family == ECCFamilyMontgomery {
			bits = eccBitsForLength(family, len(material))
		} else if len(material)%2 == 1 && material[0] == 0x04 {
			bits = eccBitsForLength(family, (len(material)-1)/2)
		}
		if bits == 0 {
			return 0, invalidArgument("malformed ECC public key for family 0x%02x", uint8(family))
		}

	default:
		return 0, notSupported("key type 0x%04x is not supported", uint16(t))
	}

	if attrs.Bits != 0 && attrs.Bits != bits {
		return 0, invalidArgument("declared key size %d does not match material (%d bits)", attrs.Bits, bits)
	}
	return bits, nil
}
