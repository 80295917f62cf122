// hash.go: Multi-call and one-shot hashing
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"crypto/subtle"
)

func hashFamily(alg Algorithm) Family {
	switch alg {
	case AlgSHA3_224, AlgSHA3_256, AlgSHA3_384, AlgSHA3_512:
		return FamilySHA3
	}
	return FamilySHA2
}

// hashSupported reports whether alg has a hash engine behind it.
func hashSupported(alg Algorithm) bool {
	return alg.IsHash() && alg != AlgSHA1 && HashLength(alg) != 0
}

// HashSetup starts a multi-call hash on op.
func (e *Engine) HashSetup(op *HashOperation, alg Algorithm) error {
	if op.Active() {
		return badState("hash operation already active")
	}
	if !hashSupported(alg) {
		return invalidArgument("0x%08x is not a supported hash", uint32(alg))
	}

	hw, err := bind[HashDriver](e.registry, hashFamily(alg))
	if err != nil {
		return err
	}
	if err := hw.drv.SetHashType(alg); err != nil {
		hw.release()
		return e.driverError(err)
	}

	op.alg = alg
	op.hw = hw
	op.canSuspend = e.config.Features.HashSuspend
	return nil
}

// Update feeds p to the hash. Empty input is accepted as a no-op.
func (op *HashOperation) Update(p []byte) error {
	if !op.Active() {
		return badState("hash operation not active")
	}
	if len(p) == 0 {
		return nil
	}
	if err := op.hw.drv.AddData(p); err != nil {
		op.reset()
		return mapDriverError(err)
	}
	op.total += uint64(len(p))
	return nil
}

// Finish writes the digest to out and returns its length. The operation is
// reset whatever the outcome.
func (op *HashOperation) Finish(out []byte) (int, error) {
	if !op.Active() {
		return 0, badState("hash operation not active")
	}
	defer op.reset()

	n := HashLength(op.alg)
	if len(out) < n {
		return 0, bufferTooSmall(n, len(out))
	}
	fillSentinel(out)
	if err := op.hw.drv.Finalize(out[:n]); err != nil {
		return 0, mapDriverError(err)
	}
	return n, nil
}

// Verify finishes the hash and compares it with expected in constant time.
func (op *HashOperation) Verify(expected []byte) error {
	if !op.Active() {
		return badState("hash operation not active")
	}
	var digest [HashMaxSize]byte
	n, err := op.Finish(digest[:])
	if err != nil {
		return err
	}
	defer clearBuffer(digest[:])
	if len(expected) != n || subtle.ConstantTimeCompare(digest[:n], expected) != 1 {
		return invalidSignature("hash mismatch")
	}
	return nil
}

// Abort resets op. It is safe on an inactive operation.
func (op *HashOperation) Abort() error {
	op.reset()
	return nil
}

// HashCompute hashes in and writes the digest to out.
func (e *Engine) HashCompute(alg Algorithm, in, out []byte) (int, error) {
	if !hashSupported(alg) {
		return 0, notSupported("0x%08x is not a supported hash", uint32(alg))
	}
	n := HashLength(alg)
	if len(out) < n {
		return 0, bufferTooSmall(n, len(out))
	}

	hw, err := bind[HashDriver](e.registry, hashFamily(alg))
	if err != nil {
		return 0, err
	}
	defer hw.release()

	fillSentinel(out)
	if err := hw.drv.HashData(alg, in, out[:n]); err != nil {
		return 0, e.driverError(err)
	}
	return n, nil
}

// HashCompare hashes in and compares the digest with expected. An expected
// digest of the wrong length is ErrInvalidArgument, unlike HashOperation.Verify
// which reports any mismatch as ErrInvalidSignature.
func (e *Engine) HashCompare(alg Algorithm, in, expected []byte) error {
	var digest [HashMaxSize]byte
	defer clearBuffer(digest[:])

	n, err := e.HashCompute(alg, in, digest[:])
	if err != nil {
		return err
	}
	if len(expected) != n {
		return invalidArgument("expected digest is %d bytes, hash produces %d", len(expected), n)
	}
	if subtle.ConstantTimeCompare(digest[:n], expected) != 1 {
		return invalidSignature("hash mismatch")
	}
	return nil
}

// HashClone is not implemented.
func (e *Engine) HashClone(src, dst *HashOperation) error {
	return notSupported("hash clone is not supported")
}
