// unsupported.go: Entry points that exist for API completeness only
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

// KeyDerivationOperation is a key derivation in progress. Key derivation is
// not implemented, so it never becomes active.
type KeyDerivationOperation struct{}

// KeyDerivationStep names an input of a key derivation.
type KeyDerivationStep uint16

const (
	KeyDerivationInputSecret KeyDerivationStep = 0x0101
	KeyDerivationInputLabel  KeyDerivationStep = 0x0201
	KeyDerivationInputSalt   KeyDerivationStep = 0x0202
	KeyDerivationInputInfo   KeyDerivationStep = 0x0203
	KeyDerivationInputSeed   KeyDerivationStep = 0x0204
)

func (e *Engine) KeyDerivationSetup(op *KeyDerivationOperation, alg Algorithm) error {
	return notSupported("key derivation is not supported")
}

func (op *KeyDerivationOperation) InputBytes(step KeyDerivationStep, data []byte) error {
	return notSupported("key derivation is not supported")
}

func (op *KeyDerivationOperation) InputKey(step KeyDerivationStep, key KeyID) error {
	return notSupported("key derivation is not supported")
}

// KeyDerivationKeyAgreement feeds the output of a key agreement into the derivation.
func (e *Engine) KeyDerivationKeyAgreement(op *KeyDerivationOperation, step KeyDerivationStep, key KeyID, peer []byte) error {
	return notSupported("key agreement into a key derivation is not supported")
}

func (op *KeyDerivationOperation) OutputBytes(out []byte) error {
	return notSupported("key derivation is not supported")
}

func (op *KeyDerivationOperation) OutputKey(attrs *KeyAttributes) (KeyID, error) {
	return KeyIDNull, notSupported("key derivation is not supported")
}

// Abort is always safe.
func (op *KeyDerivationOperation) Abort() error {
	return nil
}

// AsymmetricEncrypt is not implemented.
func (e *Engine) AsymmetricEncrypt(key KeyID, alg Algorithm, in, salt, out []byte) (int, error) {
	return 0, notSupported("asymmetric encryption is not supported")
}

// AsymmetricDecrypt is not implemented.
func (e *Engine) AsymmetricDecrypt(key KeyID, alg Algorithm, in, salt, out []byte) (int, error) {
	return 0, notSupported("asymmetric decryption is not supported")
}

// CopyKey is not implemented.
func (e *Engine) CopyKey(src KeyID, attrs *KeyAttributes) (KeyID, error) {
	return KeyIDNull, notSupported("key copy is not supported")
}
