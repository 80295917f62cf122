// soft_hash.go: Software hash engine backing the SHA-2 and SHA-3 families
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding"
	"encoding/binary"
	"errors"
	"hash"

	"golang.org/x/crypto/sha3"
)

// Marshalled state prefixes of crypto/sha256 and crypto/sha512.
var sha2StateMagic = map[Algorithm]string{
	AlgSHA224:     "sha\x02",
	AlgSHA256:     "sha\x03",
	AlgSHA384:     "sha\x04",
	AlgSHA512_224: "sha\x05",
	AlgSHA512_256: "sha\x06",
	AlgSHA512:     "sha\x07",
}

func sha2Constructor(alg Algorithm) func() hash.Hash {
	switch alg {
	case AlgSHA224:
		return sha256.New224
	case AlgSHA256:
		return sha256.New
	case AlgSHA384:
		return sha512.New384
	case AlgSHA512:
		return sha512.New
	case AlgSHA512_224:
		return sha512.New512_224
	case AlgSHA512_256:
		return sha512.New512_256
	}
	return nil
}

func sha3Constructor(alg Algorithm) func() hash.Hash {
	switch alg {
	case AlgSHA3_224:
		return sha3.New224
	case AlgSHA3_256:
		return sha3.New256
	case AlgSHA3_384:
		return sha3.New384
	case AlgSHA3_512:
		return sha3.New512
	}
	return nil
}

// softHash is a hash engine over crypto/sha256, crypto/sha512 and x/crypto/sha3.
type softHash struct {
	family      Family
	constructor func(Algorithm) func() hash.Hash
	open        bool
	alg         Algorithm
	h           hash.Hash
	hmac        bool
}

// NewSoftSHA2 returns a software driver for the SHA-2 family.
func NewSoftSHA2() HashDriver {
	return &softHash{family: FamilySHA2, constructor: sha2Constructor}
}

// NewSoftSHA3 returns a software driver for the SHA-3 family. It has no
// exportable chaining state.
func NewSoftSHA3() HashDriver {
	return &softHash{family: FamilySHA3, constructor: sha3Constructor}
}

func (d *softHash) fail(op string, status DriverStatus, cause error) error {
	return driverErr(string(d.family), op, status, cause)
}

func (d *softHash) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return d.fail("open", StatusResourceUnavailable, err)
	}
	d.open = true
	return nil
}

func (d *softHash) Close() error {
	d.Reset()
	d.open = false
	return nil
}

func (d *softHash) SetHashType(alg Algorithm) error {
	if !d.open {
		return d.fail("set-hash-type", StatusResourceUnavailable, nil)
	}
	newHash := d.constructor(alg)
	if newHash == nil {
		return d.fail("set-hash-type", StatusUnsupported, nil)
	}
	d.alg = alg
	d.h = newHash()
	d.hmac = false
	return nil
}

func (d *softHash) AddData(p []byte) error {
	if d.h == nil {
		return d.fail("add-data", StatusResourceUnavailable, nil)
	}
	d.h.Write(p)
	return nil
}

func (d *softHash) Finalize(digest []byte) error {
	if d.h == nil || d.hmac {
		return d.fail("finalize", StatusResourceUnavailable, nil)
	}
	if len(digest) < d.h.Size() {
		return d.fail("finalize", StatusInvalidInput, nil)
	}
	copy(digest, d.h.Sum(nil))
	d.Reset()
	return nil
}

func (d *softHash) HashData(alg Algorithm, in, digest []byte) error {
	if !d.open {
		return d.fail("hash-data", StatusResourceUnavailable, nil)
	}
	newHash := d.constructor(alg)
	if newHash == nil {
		return d.fail("hash-data", StatusUnsupported, nil)
	}
	h := newHash()
	if len(digest) < h.Size() {
		return d.fail("hash-data", StatusInvalidInput, nil)
	}
	h.Write(in)
	copy(digest, h.Sum(nil))
	return nil
}

func (d *softHash) SetupHMAC(key []byte) error {
	if !d.open || d.alg == AlgNone {
		return d.fail("setup-hmac", StatusResourceUnavailable, nil)
	}
	d.h = hmac.New(d.constructor(d.alg), key)
	d.hmac = true
	return nil
}

func (d *softHash) FinalizeHMAC(mac []byte) error {
	if d.h == nil || !d.hmac {
		return d.fail("finalize-hmac", StatusResourceUnavailable, nil)
	}
	if len(mac) < d.h.Size() {
		return d.fail("finalize-hmac", StatusInvalidInput, nil)
	}
	copy(mac, d.h.Sum(nil))
	d.Reset()
	return nil
}

func (d *softHash) Reset() {
	d.alg = AlgNone
	d.h = nil
	d.hmac = false
}

// sha2Layout returns the word size and block size of the marshalled state.
func sha2Layout(alg Algorithm) (word, block int) {
	switch alg {
	case AlgSHA224, AlgSHA256:
		return 4, 64
	case AlgSHA384, AlgSHA512, AlgSHA512_224, AlgSHA512_256:
		return 8, 128
	}
	return 0, 0
}

// ExportState decodes the marshalled crypto/sha2 state: magic, eight
// big-endian words, the block buffer and the total length.
func (d *softHash) ExportState() (HashState, error) {
	if d.h == nil || d.hmac {
		return HashState{}, d.fail("export-state", StatusResourceUnavailable, nil)
	}
	word, block := sha2Layout(d.alg)
	m, ok := d.h.(encoding.BinaryMarshaler)
	if word == 0 || !ok {
		return HashState{}, d.fail("export-state", StatusUnsupported, nil)
	}
	raw, err := m.MarshalBinary()
	if err != nil {
		return HashState{}, d.fail("export-state", StatusError, err)
	}

	magic := len(sha2StateMagic[d.alg])
	if len(raw) != magic+8*word+block+8 {
		return HashState{}, d.fail("export-state", StatusError, errors.New("unexpected state layout"))
	}
	digest := raw[magic : magic+8*word]
	buffer := raw[magic+8*word : magic+8*word+block]
	total := binary.BigEndian.Uint64(raw[magic+8*word+block:])
	tail := int(total % uint64(block))

	st := HashState{
		Alg:            d.alg,
		Digest:         append([]byte(nil), digest...),
		BytesProcessed: total - uint64(tail),
		Unprocessed:    append([]byte(nil), buffer[:tail]...),
	}
	Zeroize(raw)
	return st, nil
}

// ImportState rebuilds a hash from an exported state.
func (d *softHash) ImportState(st HashState) error {
	if !d.open {
		return d.fail("import-state", StatusResourceUnavailable, nil)
	}
	word, block := sha2Layout(st.Alg)
	magic, known := sha2StateMagic[st.Alg]
	newHash := d.constructor(st.Alg)
	if word == 0 || !known || newHash == nil {
		return d.fail("import-state", StatusUnsupported, nil)
	}
	if len(st.Digest) != 8*word || len(st.Unprocessed) >= block || st.BytesProcessed%uint64(block) != 0 {
		return d.fail("import-state", StatusInvalidInput, nil)
	}

	raw := make([]byte, 0, len(magic)+8*word+block+8)
	raw = append(raw, magic...)
	raw = append(raw, st.Digest...)
	raw = append(raw, st.Unprocessed...)
	raw = append(raw, make([]byte, block-len(st.Unprocessed))...)
	raw = binary.BigEndian.AppendUint64(raw, st.BytesProcessed+uint64(len(st.Unprocessed)))
	defer Zeroize(raw)

	h := newHash()
	u, ok := h.(encoding.BinaryUnmarshaler)
	if !ok {
		return d.fail("import-state", StatusUnsupported, nil)
	}
	if err := u.UnmarshalBinary(raw); err != nil {
		return d.fail("import-state", StatusInvalidInput, err)
	}
	d.alg = st.Alg
	d.h = h
	d.hmac = false
	return nil
}
