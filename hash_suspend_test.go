// hash_suspend_test.go: Hash suspend and resume tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSuspendResume(t *testing.T) {
	e := newTestEngine(t)
	msg := pattern(300)

	for _, alg := range []Algorithm{AlgSHA224, AlgSHA256, AlgSHA384, AlgSHA512} {
		for _, prefix := range []int{0, 1, 63, 64, 65, 127, 128, 129, 200, 300} {
			t.Run(fmt.Sprintf("%08x/%d", uint32(alg), prefix), func(t *testing.T) {
				var op HashOperation
				require.NoError(t, e.HashSetup(&op, alg))
				require.NoError(t, op.Update(msg[:prefix]))

				state := make([]byte, HashSuspendOutputSize(alg))
				n, err := op.Suspend(state)
				require.NoError(t, err)
				assert.False(t, op.Active(), "suspend ends the operation")

				lenField := HashSuspendInputLengthFieldLength(alg)
				tail := prefix % HashBlockLength(alg)
				require.Equal(t, HashSuspendAlgorithmFieldLength+lenField+HashSuspendHashStateFieldLength(alg)+tail, n)
				state = state[:n]

				assert.Equal(t, uint32(alg), binary.BigEndian.Uint32(state))
				field := state[HashSuspendAlgorithmFieldLength : HashSuspendAlgorithmFieldLength+lenField]
				assert.Equal(t, uint64(prefix), binary.BigEndian.Uint64(field[lenField-8:]))
				assert.Equal(t, msg[prefix-tail:prefix], state[n-tail:])

				var resumed HashOperation
				require.NoError(t, e.HashResume(&resumed, state))
				assert.Equal(t, uint64(prefix), resumed.BytesHashed())
				require.NoError(t, resumed.Update(msg[prefix:]))

				out := make([]byte, HashMaxSize)
				dn, err := resumed.Finish(out)
				require.NoError(t, err)
				assert.Equal(t, referenceDigest(t, alg, msg), out[:dn])
			})
		}
	}
}

func TestHashSuspendTwice(t *testing.T) {
	e := newTestEngine(t)
	msg := pattern(500)

	var op HashOperation
	require.NoError(t, e.HashSetup(&op, AlgSHA256))
	require.NoError(t, op.Update(msg[:100]))
	state := make([]byte, HashSuspendOutputSize(AlgSHA256))
	n, err := op.Suspend(state)
	require.NoError(t, err)

	require.NoError(t, e.HashResume(&op, state[:n]))
	require.NoError(t, op.Update(msg[100:333]))
	n, err = op.Suspend(state)
	require.NoError(t, err)

	require.NoError(t, e.HashResume(&op, state[:n]))
	require.NoError(t, op.Update(msg[333:]))
	require.NoError(t, op.Verify(referenceDigest(t, AlgSHA256, msg)))
}

func TestHashSuspendBufferTooSmall(t *testing.T) {
	e := newTestEngine(t)

	var op HashOperation
	require.NoError(t, e.HashSetup(&op, AlgSHA256))
	require.NoError(t, op.Update(pattern(10)))

	_, err := op.Suspend(make([]byte, 40))
	assert.ErrorIs(t, err, ErrBufferTooSmall)
	assert.True(t, op.Active(), "a short buffer leaves the operation running")

	require.NoError(t, op.Update(pattern(5)))
	require.NoError(t, op.Abort())
}

func TestHashSuspendStateErrors(t *testing.T) {
	e := newTestEngine(t)
	state := make([]byte, HashSuspendOutputSize(AlgSHA512))

	var op HashOperation
	_, err := op.Suspend(state)
	assert.ErrorIs(t, err, ErrBadState)

	require.NoError(t, e.HashSetup(&op, AlgSHA3_256))
	_, err = op.Suspend(state)
	assert.ErrorIs(t, err, ErrNotSupported)
	require.NoError(t, op.Abort())

	require.NoError(t, e.HashSetup(&op, AlgSHA512))
	n, err := op.Suspend(state)
	require.NoError(t, err)
	state = state[:n]

	var active HashOperation
	require.NoError(t, e.HashSetup(&active, AlgSHA3_256))
	assert.ErrorIs(t, e.HashResume(&active, state), ErrBadState)
	require.NoError(t, active.Abort())

	// Length fields wider than 32 bits are refused.
	wide := append([]byte(nil), state...)
	wide[HashSuspendAlgorithmFieldLength] = 1
	assert.ErrorIs(t, e.HashResume(&op, wide), ErrNotSupported)

	// The tail must match the declared input length.
	assert.ErrorIs(t, e.HashResume(&op, append(append([]byte(nil), state...), 0)), ErrInvalidArgument)
	assert.ErrorIs(t, e.HashResume(&op, state[:10]), ErrInvalidArgument)
	assert.ErrorIs(t, e.HashResume(&op, state[:2]), ErrInvalidArgument)

	unknown := append([]byte(nil), state...)
	binary.BigEndian.PutUint32(unknown, uint32(AlgSHA3_512))
	assert.ErrorIs(t, e.HashResume(&op, unknown), ErrNotSupported)

	assert.False(t, op.Active())
	require.NoError(t, e.HashResume(&op, state))
	require.NoError(t, op.Abort())
}

func TestHashSuspendDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Features.HashSuspend = false
	e := newTestEngineWithConfig(t, cfg)

	var op HashOperation
	require.NoError(t, e.HashSetup(&op, AlgSHA256))
	_, err := op.Suspend(make([]byte, HashSuspendOutputSize(AlgSHA256)))
	assert.ErrorIs(t, err, ErrNotSupported)
	require.NoError(t, op.Abort())

	state := make([]byte, HashSuspendAlgorithmFieldLength+8+32)
	binary.BigEndian.PutUint32(state, uint32(AlgSHA256))
	assert.ErrorIs(t, e.HashResume(&op, state), ErrNotSupported)
}
