// blockbuf_test.go: Block staging tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockBufferFillAndReset(t *testing.T) {
	var b blockBuffer
	assert.Equal(t, 16, b.Free())

	assert.Equal(t, 10, b.Fill(pattern(10)))
	assert.Equal(t, 6, b.Fill(pattern(20)))
	assert.True(t, b.Full())
	assert.Equal(t, 0, b.Fill(pattern(1)))

	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, make([]byte, 16), b.data[:], "reset wipes the block")

	assert.True(t, b.Set(pattern(5)))
	assert.Equal(t, pattern(5), b.Bytes())
	assert.False(t, b.Set(pattern(17)))
	assert.Equal(t, pattern(5), b.Bytes())
}

func TestSplitBlocks(t *testing.T) {
	cases := []struct {
		buffered, input int
		holdBack        bool
		ready           bool
		middle, rest    int
		bufferedAfter   int
	}{
		{0, 5, false, false, 0, 0, 5},
		{0, 16, false, true, 0, 0, 16},
		{0, 16, true, false, 0, 0, 16},
		{10, 6, true, false, 0, 0, 16},
		{10, 7, true, true, 0, 1, 16},
		{10, 7, false, true, 0, 1, 16},
		{0, 32, true, true, 0, 16, 16},
		{0, 32, false, true, 16, 0, 16},
		{0, 33, true, true, 16, 1, 16},
		{4, 60, true, true, 32, 16, 16},
		{4, 61, true, true, 48, 1, 16},
		{4, 61, false, true, 48, 1, 16},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d+%d/hold=%v", tc.buffered, tc.input, tc.holdBack), func(t *testing.T) {
			var b blockBuffer
			b.Fill(pattern(tc.buffered))
			in := pattern(tc.input)

			ready, middle, rest := b.splitBlocks(in, tc.holdBack)
			require.Equal(t, tc.ready, ready)
			assert.Len(t, middle, tc.middle)
			assert.Len(t, rest, tc.rest)
			assert.Equal(t, tc.bufferedAfter, b.Len())
			if ready {
				assert.Equal(t, in[len(in)-tc.rest:], rest)
				assert.Equal(t, tc.input, (16-tc.buffered)+len(middle)+len(rest))
			}
		})
	}
}
