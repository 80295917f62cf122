// hash_suspend.go: Suspending a hash to bytes and resuming it later
//
// A suspended state is laid out as
//
//	algorithm (4 bytes, big-endian)
//	input length (8 bytes for SHA-224/256, 16 for SHA-384/512, big-endian)
//	chaining state (32 or 64 bytes)
//	unprocessed tail (input length mod block size)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"encoding/binary"
)

func suspendable(alg Algorithm) bool {
	switch alg {
	case AlgSHA224, AlgSHA256, AlgSHA384, AlgSHA512:
		return true
	}
	return false
}

// Suspend writes the state of op to out and leaves op inactive. On
// ErrBufferTooSmall the operation stays active.
func (op *HashOperation) Suspend(out []byte) (int, error) {
	if !op.Active() {
		return 0, badState("hash operation not active")
	}
	if !op.canSuspend {
		return 0, notSupported("hash suspension is disabled")
	}
	if !suspendable(op.alg) {
		return 0, notSupported("hash 0x%08x cannot be suspended", uint32(op.alg))
	}

	st, err := op.hw.drv.ExportState()
	if err != nil {
		return 0, mapDriverError(err)
	}
	defer clearBuffer(st.Digest)
	defer clearBuffer(st.Unprocessed)

	lenField := HashSuspendInputLengthFieldLength(op.alg)
	stateLen := HashSuspendHashStateFieldLength(op.alg)
	if len(st.Digest) != stateLen {
		return 0, mapDriverError(driverErr(string(FamilySHA2), "export-state", StatusError, nil))
	}
	size := HashSuspendAlgorithmFieldLength + lenField + stateLen + len(st.Unprocessed)
	if len(out) < size {
		return 0, bufferTooSmall(size, len(out))
	}

	p := out[:0]
	p = binary.BigEndian.AppendUint32(p, uint32(op.alg))
	if lenField == 16 {
		p = binary.BigEndian.AppendUint64(p, 0)
	}
	p = binary.BigEndian.AppendUint64(p, st.BytesProcessed+uint64(len(st.Unprocessed)))
	p = append(p, st.Digest...)
	p = append(p, st.Unprocessed...)

	op.reset()
	return len(p), nil
}

// HashResume restores a state written by Suspend into the inactive op. Input
// lengths of 2^32 bytes or more are not supported.
func (e *Engine) HashResume(op *HashOperation, state []byte) error {
	if op.Active() {
		return badState("hash operation already active")
	}
	if !e.config.Features.HashSuspend {
		return notSupported("hash suspension is disabled")
	}
	if len(state) < HashSuspendAlgorithmFieldLength {
		return invalidArgument("suspended state too short")
	}

	alg := Algorithm(binary.BigEndian.Uint32(state))
	if !suspendable(alg) {
		return notSupported("hash 0x%08x cannot be resumed", uint32(alg))
	}
	lenField := HashSuspendInputLengthFieldLength(alg)
	stateLen := HashSuspendHashStateFieldLength(alg)
	fixed := HashSuspendAlgorithmFieldLength + lenField + stateLen
	if len(state) < fixed {
		return invalidArgument("suspended state too short: %d bytes", len(state))
	}

	field := state[HashSuspendAlgorithmFieldLength : HashSuspendAlgorithmFieldLength+lenField]
	for _, b := range field[:lenField-4] {
		if b != 0 {
			return notSupported("suspended input length exceeds 32 bits")
		}
	}
	inputLen := uint64(binary.BigEndian.Uint32(field[lenField-4:]))
	tail := int(inputLen % uint64(HashBlockLength(alg)))
	if len(state) != fixed+tail {
		return invalidArgument("suspended state is %d bytes, expected %d", len(state), fixed+tail)
	}

	hw, err := bind[HashDriver](e.registry, FamilySHA2)
	if err != nil {
		return err
	}
	err = hw.drv.ImportState(HashState{
		Alg:            alg,
		Digest:         state[fixed-stateLen : fixed],
		BytesProcessed: inputLen - uint64(tail),
		Unprocessed:    state[fixed:],
	})
	if err != nil {
		hw.release()
		return e.driverError(err)
	}

	op.alg = alg
	op.hw = hw
	op.total = inputLen
	op.canSuspend = true
	return nil
}
