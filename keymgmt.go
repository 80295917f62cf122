// keymgmt.go: Key management and random generation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"errors"
	"fmt"

	goerrors "github.com/agilira/go-errors"
)

// maxScalarAttempts bounds the rejection sampling of ECC private scalars.
const maxScalarAttempts = 16

// drawEntropy fills out from a TRNG instance.
func drawEntropy(reg *Registry, out []byte) error {
	if len(out) == 0 {
		return nil
	}
	hw, err := bind[EntropySource](reg, FamilyTRNG)
	if err != nil {
		return err
	}
	defer hw.release()
	if err := hw.drv.GetEntropy(out); err != nil {
		return mapDriverError(err)
	}
	return nil
}

// GenerateRandom fills out with random bytes.
func (e *Engine) GenerateRandom(out []byte) error {
	return drawEntropy(e.registry, out)
}

// ImportKey stores key material under attrs and returns its identifier.
func (e *Engine) ImportKey(attrs *KeyAttributes, data []byte) (KeyID, error) {
	return e.keys.Import(attrs, data)
}

// ExportKey copies a key with UsageExport to out.
func (e *Engine) ExportKey(key KeyID, out []byte) (int, error) {
	return e.keys.Export(key, out)
}

// ExportPublicKey writes the public part of an ECC key to out. It needs no
// usage flag.
func (e *Engine) ExportPublicKey(key KeyID, out []byte) (int, error) {
	k, err := e.keys.Resolve(key)
	if err != nil {
		return 0, err
	}
	defer k.Release()

	t := k.Attributes.Type
	switch {
	case t.IsPublicKey():
		if len(out) < len(k.Material) {
			return 0, bufferTooSmall(len(k.Material), len(out))
		}
		return copy(out, k.Material), nil
	case t.IsECC() && t.IsKeyPair():
		family, bits := t.ECCFamily(), k.Attributes.Bits
		n := eccPublicKeyLength(family, bits)
		if len(out) < n {
			return 0, bufferTooSmall(n, len(out))
		}
		hw, err := bind[ECDriver](e.registry, FamilyEC)
		if err != nil {
			return 0, err
		}
		defer hw.release()
		if err := hw.drv.GeneratePublic(family, bits, k.Material, out[:n]); err != nil {
			return 0, e.driverError(err)
		}
		return n, nil
	}
	return 0, invalidArgument("key type 0x%04x has no public part", uint16(t))
}

// DestroyKey removes a key and wipes its material.
func (e *Engine) DestroyKey(key KeyID) error {
	return e.keys.Destroy(key)
}

// PurgeKey drops the cached copy of a persistent key.
func (e *Engine) PurgeKey(key KeyID) error {
	return e.keys.Purge(key)
}

// GetKeyAttributes returns the attributes of a key.
func (e *Engine) GetKeyAttributes(key KeyID) (KeyAttributes, error) {
	return e.keys.Attributes(key)
}

// GenerateKey creates random key material of attrs.Type and attrs.Bits and
// imports it. Supported are AES, HMAC, raw data and derivation keys, and ECC
// key pairs on SECP-R1 and Curve25519.
func (e *Engine) GenerateKey(attrs *KeyAttributes) (KeyID, error) {
	if attrs == nil {
		return KeyIDNull, invalidArgument("key attributes must not be nil")
	}
	t := attrs.Type
	if t.IsPublicKey() {
		return KeyIDNull, invalidArgument("public keys cannot be generated")
	}

	var size int
	switch {
	case t == KeyTypeAES:
		switch attrs.Bits {
		case 128, 192, 256:
			size = attrs.Bits / 8
		default:
			return KeyIDNull, invalidArgument("AES key size %d is not valid", attrs.Bits)
		}
	case t == KeyTypeHMAC, t == KeyTypeRawData, t == KeyTypeDerive:
		if attrs.Bits <= 0 || attrs.Bits%8 != 0 {
			return KeyIDNull, invalidArgument("key size %d must be a positive multiple of 8", attrs.Bits)
		}
		size = attrs.Bits / 8
	case t.IsECC() && t.IsKeyPair():
		size = eccCurveBytes(t.ECCFamily(), attrs.Bits)
		if size == 0 {
			return KeyIDNull, notSupported("ECC family 0x%02x size %d is not supported", uint8(t.ECCFamily()), attrs.Bits)
		}
	default:
		return KeyIDNull, notSupported("generation of key type 0x%04x is not supported", uint16(t))
	}

	buf := getBuffer(size)
	defer putBuffer(buf)
	material := *buf

	if t.IsECC() {
		if err := e.generateScalar(t.ECCFamily(), attrs.Bits, material); err != nil {
			return KeyIDNull, err
		}
	} else if err := drawEntropy(e.registry, material); err != nil {
		return KeyIDNull, err
	}
	return e.keys.Import(attrs, material)
}

// generateScalar draws a private scalar, rejecting values the curve refuses.
// Curve25519 accepts any 32 bytes.
func (e *Engine) generateScalar(family ECCFamily, bits int, scalar []byte) error {
	if family == ECCFamilyMontgomery {
		return drawEntropy(e.registry, scalar)
	}

	pub := getBuffer(eccPublicKeyLength(family, bits))
	defer putBuffer(pub)
	for attempt := 0; attempt < maxScalarAttempts; attempt++ {
		if err := drawEntropy(e.registry, scalar); err != nil {
			return err
		}
		if bits == 521 {
			scalar[0] &= 0x01
		}
		hw, err := bind[ECDriver](e.registry, FamilyEC)
		if err != nil {
			return err
		}
		err = hw.drv.GeneratePublic(family, bits, scalar, *pub)
		hw.release()
		if err == nil {
			return nil
		}
		var de *DriverError
		if !errors.As(err, &de) || de.Status != StatusInvalidKey {
			return e.driverError(err)
		}
	}
	return fmt.Errorf("%w: %w", ErrInsufficientEntropy,
		goerrors.New(ErrCodeInsufficientEntropy, "no valid private scalar drawn"))
}
