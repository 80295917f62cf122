// blockbuf.go: Fixed-capacity one-block staging buffer for segmented operations
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

// blockBuffer holds at most one cipher block of not-yet-submitted input.
// Appends never grow past the block; callers drain it with Bytes and Reset.
type blockBuffer struct {
	data [BlockCipherBlockMaxSize]byte
	n    int
}

// Len returns the number of buffered bytes.
func (b *blockBuffer) Len() int { return b.n }

// Bytes returns the buffered bytes. The slice aliases the buffer.
func (b *blockBuffer) Bytes() []byte { return b.data[:b.n] }

// Free returns the remaining capacity.
func (b *blockBuffer) Free() int { return len(b.data) - b.n }

// Full reports whether a whole block is buffered.
func (b *blockBuffer) Full() bool { return b.n == len(b.data) }

// Fill appends as much of p as fits and returns the number of bytes consumed.
func (b *blockBuffer) Fill(p []byte) int {
	c := copy(b.data[b.n:], p)
	b.n += c
	return c
}

// Set replaces the contents with p, which must fit in one block.
func (b *blockBuffer) Set(p []byte) bool {
	if len(p) > len(b.data) {
		return false
	}
	b.Reset()
	b.n = copy(b.data[:], p)
	return true
}

// Reset empties the buffer and wipes its contents.
func (b *blockBuffer) Reset() {
	clearBuffer(b.data[:])
	b.n = 0
}

// splitBlocks stages input for a block-granular primitive. It tops up the
// buffer from p and reports whether the buffered block is ready for
// submission, then returns the block-aligned middle of the remaining input and
// the remainder that must be buffered after the block has been submitted.
//
// With holdBack set, input that ends exactly on a block boundary keeps its final
// block back, so the primitive never sees what might be the last block.
func (b *blockBuffer) splitBlocks(p []byte, holdBack bool) (ready bool, middle, rest []byte) {
	total := b.n + len(p)
	if total < len(b.data) || (holdBack && total == len(b.data)) {
		b.Fill(p)
		return false, nil, nil
	}

	p = p[b.Fill(p):]
	aligned := (len(p) / len(b.data)) * len(b.data)
	if holdBack && aligned == len(p) && aligned > 0 {
		aligned -= len(b.data)
	}
	return true, p[:aligned], p[aligned:]
}
