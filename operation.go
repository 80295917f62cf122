// operation.go: Multi-call operation contexts
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

// HashOperation is a multi-call hash. The zero value is inactive; callers
// declare one and pass it to Engine.HashSetup.
type HashOperation struct {
	alg        Algorithm
	hw         binding[HashDriver]
	total      uint64 // bytes hashed so far, including any resumed prefix
	canSuspend bool
}

// Active reports whether the operation has been set up.
func (op *HashOperation) Active() bool { return op.alg != AlgNone }

// Algorithm returns the hash in use, AlgNone when inactive.
func (op *HashOperation) Algorithm() Algorithm { return op.alg }

// BytesHashed returns the input length hashed so far.
func (op *HashOperation) BytesHashed() uint64 { return op.total }

func (op *HashOperation) reset() {
	if op.hw.active() {
		op.hw.drv.Reset()
	}
	op.hw.release()
	*op = HashOperation{}
}

// macVariant is the per-family state of a MAC operation.
type macVariant interface {
	reset()
}

// hmacState drives HMAC on the hash engine.
type hmacState struct {
	hw binding[HashDriver]
}

func (s *hmacState) reset() {
	if s.hw.active() {
		s.hw.drv.Reset()
	}
	s.hw.release()
}

// aesMACState drives CMAC or CBC-MAC on the AES-MAC engine. The last block of
// input is always held back for the finalize call; the key is kept for the
// one-step path taken when nothing was buffered.
type aesMACState struct {
	hw   binding[MACDriver]
	mode MACMode
	buf  blockBuffer
	key  *ResolvedKey
}

func (s *aesMACState) reset() {
	if s.hw.active() {
		_ = s.hw.drv.Cancel()
	}
	s.hw.release()
	s.buf.Reset()
	s.key.Release()
	s.key = nil
}

// MACOperation is a multi-call MAC sign or verify.
type MACOperation struct {
	alg     Algorithm // full-length form
	macLen  int
	verify  bool
	variant macVariant
}

// Active reports whether the operation has been set up.
func (op *MACOperation) Active() bool { return op.alg != AlgNone }

// MACLength returns the length of the MAC this operation produces or checks.
func (op *MACOperation) MACLength() int { return op.macLen }

func (op *MACOperation) reset() {
	if op.variant != nil {
		op.variant.reset()
	}
	*op = MACOperation{}
}

type cipherMode int

const (
	cipherModeECB cipherMode = iota + 1
	cipherModeCBC
	cipherModeCTR
)

func (m cipherMode) family() Family {
	switch m {
	case cipherModeECB:
		return FamilyAESECB
	case cipherModeCBC:
		return FamilyAESCBC
	}
	return FamilyAESCTR
}

// CipherOperation is a multi-call unauthenticated cipher.
type CipherOperation struct {
	alg        Algorithm
	mode       cipherMode
	encrypt    bool
	ivRequired bool
	ivSet      bool
	ivLen      int
	blockLen   int
	failed     bool // set by a failed update; cleared only by Abort
	hw         binding[BlockCipherDriver]
	key        *ResolvedKey
	reg        *Registry
	buf        blockBuffer
}

// Active reports whether the operation has been set up.
func (op *CipherOperation) Active() bool { return op.alg != AlgNone }

func (op *CipherOperation) reset() {
	op.hw.release()
	op.buf.Reset()
	op.key.Release()
	*op = CipherOperation{}
}

type aeadMode int

const (
	aeadModeCCM aeadMode = iota + 1
	aeadModeGCM
)

func (m aeadMode) family() Family {
	if m == aeadModeCCM {
		return FamilyAESCCM
	}
	return FamilyAESGCM
}

// AEADOperation is a multi-call authenticated encryption. Additional data and
// payload share one staging buffer, since the payload only starts once the
// additional data is complete.
type AEADOperation struct {
	alg            Algorithm
	mode           aeadMode
	encrypt        bool
	tagLen         int
	nonceSet       bool
	lengthsSet     bool
	adDeclared     int
	textDeclared   int
	adSeen         int
	textSeen       int
	doneUpdatingAD bool
	failed         bool
	hw             binding[AEADDriver]
	reg            *Registry
	buf            blockBuffer
}

// Active reports whether the operation has been set up.
func (op *AEADOperation) Active() bool { return op.alg != AlgNone }

func (op *AEADOperation) reset() {
	if op.hw.active() {
		_ = op.hw.drv.Cancel()
	}
	op.hw.release()
	op.buf.Reset()
	*op = AEADOperation{}
}
