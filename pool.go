// pool.go: Scratch buffer pooling for key material and intermediate digests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"sync"
)

const (
	smallScratchSize  = 32       // AES keys, nonces, single blocks
	mediumScratchSize = 256      // digests, HMAC keys, ECC keys and points
	largeScratchSize  = 4 * 1024 // suspended hash states, one-shot staging
)

var (
	smallBufferPool = sync.Pool{
		New: func() interface{} {
			buf := make([]byte, smallScratchSize)
			return &buf
		},
	}

	mediumBufferPool = sync.Pool{
		New: func() interface{} {
			buf := make([]byte, mediumScratchSize)
			return &buf
		},
	}

	largeBufferPool = sync.Pool{
		New: func() interface{} {
			buf := make([]byte, largeScratchSize)
			return &buf
		},
	}
)

func init() {
	warmupPools(4)
}

// getBuffer retrieves a scratch buffer of exactly size bytes. Oversized
// requests are allocated directly and never pooled.
func getBuffer(size int) *[]byte {
	switch {
	case size <= smallScratchSize:
		buf := smallBufferPool.Get().(*[]byte)
		*buf = (*buf)[:size]
		return buf
	case size <= mediumScratchSize:
		buf := mediumBufferPool.Get().(*[]byte)
		*buf = (*buf)[:size]
		return buf
	case size <= largeScratchSize:
		buf := largeBufferPool.Get().(*[]byte)
		*buf = (*buf)[:size]
		return buf
	default:
		buf := make([]byte, size)
		return &buf
	}
}

// clearBuffer zeroes buf. Large buffers are cleared eight bytes per step.
func clearBuffer(buf []byte) {
	if len(buf) <= 64 {
		for i := range buf {
			buf[i] = 0
		}
		return
	}

	i := 0
	for i < len(buf)-7 {
		buf[i] = 0
		buf[i+1] = 0
		buf[i+2] = 0
		buf[i+3] = 0
		buf[i+4] = 0
		buf[i+5] = 0
		buf[i+6] = 0
		buf[i+7] = 0
		i += 8
	}
	for i < len(buf) {
		buf[i] = 0
		i++
	}
}

// putBuffer wipes the whole backing array and returns the buffer to its pool.
// Scratch buffers may have held key material, so the full capacity is cleared
// regardless of the current length.
func putBuffer(buf *[]byte) {
	if buf == nil {
		return
	}

	full := (*buf)[:cap(*buf)]
	clearBuffer(full)

	switch cap(*buf) {
	case smallScratchSize:
		smallBufferPool.Put(buf)
	case mediumScratchSize:
		mediumBufferPool.Put(buf)
	case largeScratchSize:
		largeBufferPool.Put(buf)
	}
}

func warmupPools(count int) {
	bufs := make([]*[]byte, 0, 3*count)
	for i := 0; i < count; i++ {
		bufs = append(bufs,
			getBuffer(smallScratchSize),
			getBuffer(mediumScratchSize),
			getBuffer(largeScratchSize))
	}
	for _, b := range bufs {
		putBuffer(b)
	}
}
