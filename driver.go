// driver.go: Hardware primitive driver contracts
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"context"
)

// Driver is the lifecycle shared by every hardware primitive instance.
// Open is called once when the instance is registered and again whenever the
// engine has to reset an instance that cannot cancel an operation in flight.
type Driver interface {
	Open(ctx context.Context) error
	Close() error
}

// HashState is the chaining state of a hash engine between compressions.
type HashState struct {
	Alg            Algorithm // hash algorithm
	Digest         []byte    // chaining value, big-endian words
	BytesProcessed uint64    // bytes compressed so far, a multiple of the block size
	Unprocessed    []byte    // buffered input, shorter than one block
}

// HashDriver is a hash engine with an HMAC mode. Partial blocks are buffered
// inside the driver.
type HashDriver interface {
	Driver
	SetHashType(alg Algorithm) error
	AddData(p []byte) error
	// Finalize writes the digest of everything added and returns to idle.
	Finalize(digest []byte) error
	// HashData computes a digest in one call.
	HashData(alg Algorithm, in, digest []byte) error
	// SetupHMAC starts an HMAC with the current hash type.
	SetupHMAC(key []byte) error
	// FinalizeHMAC writes the full-length HMAC and returns to idle.
	FinalizeHMAC(mac []byte) error
	ExportState() (HashState, error)
	ImportState(st HashState) error
	Reset()
}

// BlockCipherDriver drives one AES mode. Segmented calls take whole blocks;
// only Finalize of a counter-mode instance accepts a partial tail.
type BlockCipherDriver interface {
	Driver
	// SetupEncrypt and SetupDecrypt load the key. iv may be nil when the IV is
	// provided later or the mode has none.
	SetupEncrypt(key, iv []byte) error
	SetupDecrypt(key, iv []byte) error
	SetIV(iv []byte) error
	AddData(in, out []byte) error
	Finalize(in, out []byte) error
	OneStepEncrypt(key, iv, in, out []byte) error
	OneStepDecrypt(key, iv, in, out []byte) error
	// Cancel abandons a segmented operation. Modes without hardware
	// cancellation report StatusUnsupported and must be closed and reopened.
	Cancel() error
}

// MACMode selects the AES-MAC flavour of a MACDriver.
type MACMode int

const (
	MACModeCMAC MACMode = iota + 1
	MACModeCBCMAC
)

func (m MACMode) String() string {
	switch m {
	case MACModeCMAC:
		return "cmac"
	case MACModeCBCMAC:
		return "cbc-mac"
	}
	return "unknown"
}

// MACDriver is the AES-MAC engine shared by CMAC and CBC-MAC. AddData takes
// whole blocks; the final block must reach the driver through a finalize call,
// which requires a non-empty tail.
type MACDriver interface {
	Driver
	SetupSign(mode MACMode, key []byte) error
	SetupVerify(mode MACMode, key []byte) error
	AddData(p []byte) error
	FinalizeSign(tail, mac []byte) error
	FinalizeVerify(tail, mac []byte) error
	OneStepSign(mode MACMode, key, in, mac []byte) error
	OneStepVerify(mode MACMode, key, in, mac []byte) error
	Cancel() error
}

// AEADDriver drives AES-CCM or AES-GCM. AddAAD and AddData take whole blocks
// except on the last call of each stream.
type AEADDriver interface {
	Driver
	SetupEncrypt(key []byte, tagLen int) error
	SetupDecrypt(key []byte, tagLen int) error
	SetLengths(adLen, payloadLen int) error
	SetNonce(nonce []byte) error
	AddAAD(ad []byte) error
	AddData(in, out []byte) error
	// FinalizeEncrypt processes the payload tail and writes the tag.
	FinalizeEncrypt(in, out, tag []byte) error
	// FinalizeDecrypt processes the payload tail and checks the tag.
	FinalizeDecrypt(in, out, tag []byte) error
	OneStepEncrypt(key, nonce, ad, in, out, tag []byte) error
	OneStepDecrypt(key, nonce, ad, in, out, tag []byte) error
	Cancel() error
}

// EntropySource is the true random number generator.
type EntropySource interface {
	Driver
	GetEntropy(out []byte) error
}

// ECDriver performs elliptic curve primitives. Weierstrass public keys are
// uncompressed points, signatures are r||s.
type ECDriver interface {
	Driver
	Sign(family ECCFamily, bits int, priv, digest, sig []byte) error
	Verify(family ECCFamily, bits int, pub, digest, sig []byte) error
	GeneratePublic(family ECCFamily, bits int, priv, pub []byte) error
	Agree(family ECCFamily, bits int, priv, peer, shared []byte) error
}

// DriverRequest is a request to an externally provided driver plugin.
type DriverRequest struct {
	Family     Family                 `json:"family"`     // primitive family
	Operation  string                 `json:"operation"`  // driver entry point
	Data       []byte                 `json:"data"`       // operation input
	Parameters map[string]interface{} `json:"parameters"` // entry point parameters
}

// DriverResponse is the reply of a driver plugin.
type DriverResponse struct {
	Status DriverStatus `json:"status"` // zero on success
	Data   []byte       `json:"data"`   // operation output
	Error  string       `json:"error"`  // error message, if any
}
