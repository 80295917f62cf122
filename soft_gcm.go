// soft_gcm.go: Software AES-GCM engine with segmented input
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
)

// ghashField is an element of GF(2^128) in the bit order of NIST SP 800-38D.
type ghashField struct {
	hi, lo uint64
}

func ghashLoad(b []byte) ghashField {
	return ghashField{binary.BigEndian.Uint64(b[:8]), binary.BigEndian.Uint64(b[8:16])}
}

func (x ghashField) store(b []byte) {
	binary.BigEndian.PutUint64(b[:8], x.hi)
	binary.BigEndian.PutUint64(b[8:16], x.lo)
}

// mul multiplies bit by bit, shifting v right and reducing by R = 0xe1 || 0^120.
func (x ghashField) mul(y ghashField) ghashField {
	var z ghashField
	v := y
	for i := 0; i < 128; i++ {
		var bit uint64
		if i < 64 {
			bit = (x.hi >> (63 - i)) & 1
		} else {
			bit = (x.lo >> (127 - i)) & 1
		}
		mask := -bit
		z.hi ^= v.hi & mask
		z.lo ^= v.lo & mask

		carry := -(v.lo & 1)
		v.lo = v.lo>>1 | v.hi<<63
		v.hi = v.hi>>1 ^ (0xe1<<56)&carry
	}
	return z
}

// ghash accumulates the universal hash over a sequence of zero-padded blocks.
type ghash struct {
	h, y ghashField
}

func (g *ghash) update(p []byte) {
	var block [aes.BlockSize]byte
	for len(p) > 0 {
		n := copy(block[:], p)
		clearBuffer(block[n:])
		x := ghashLoad(block[:])
		g.y = ghashField{g.y.hi ^ x.hi, g.y.lo ^ x.lo}.mul(g.h)
		p = p[n:]
	}
}

// softGCM is AES-GCM over crypto/aes with a bitwise GHASH, so the AAD and
// payload can be streamed in whole blocks.
type softGCM struct {
	open      bool
	active    bool
	decrypt   bool
	tagLen    int
	block     cipher.Block
	hash      ghash
	j0        [aes.BlockSize]byte
	counter   [aes.BlockSize]byte
	nonceSet  bool
	adLen     uint64
	textLen   uint64
	adClosed  bool // a partial AAD block has been hashed, or payload has started
	textEnded bool // a partial payload block has been processed
}

// NewSoftAESGCM returns a software AES-GCM driver.
func NewSoftAESGCM() AEADDriver {
	return &softGCM{}
}

func (d *softGCM) fail(op string, status DriverStatus, cause error) error {
	return driverErr(string(FamilyAESGCM), op, status, cause)
}

func (d *softGCM) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return d.fail("open", StatusResourceUnavailable, err)
	}
	d.open = true
	return nil
}

func (d *softGCM) Close() error {
	d.clear()
	d.open = false
	return nil
}

func (d *softGCM) clear() {
	*d = softGCM{open: d.open}
}

func (d *softGCM) setup(op string, decrypt bool, key []byte, tagLen int) error {
	if !d.open || d.active {
		return d.fail(op, StatusResourceUnavailable, nil)
	}
	if tagLen < 4 || tagLen > aes.BlockSize {
		return d.fail(op, StatusInvalidInput, nil)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return d.fail(op, StatusInvalidKey, err)
	}
	var h [aes.BlockSize]byte
	block.Encrypt(h[:], h[:])

	d.block = block
	d.hash = ghash{h: ghashLoad(h[:])}
	d.decrypt = decrypt
	d.tagLen = tagLen
	d.active = true
	return nil
}

func (d *softGCM) SetupEncrypt(key []byte, tagLen int) error {
	return d.setup("setup-encrypt", false, key, tagLen)
}

func (d *softGCM) SetupDecrypt(key []byte, tagLen int) error {
	return d.setup("setup-decrypt", true, key, tagLen)
}

// SetLengths is accepted for symmetry with CCM. GCM lengths are counted as
// data streams through.
func (d *softGCM) SetLengths(adLen, payloadLen int) error {
	if !d.active {
		return d.fail("set-lengths", StatusResourceUnavailable, nil)
	}
	if adLen < 0 || payloadLen < 0 {
		return d.fail("set-lengths", StatusInvalidInput, nil)
	}
	return nil
}

func (d *softGCM) SetNonce(nonce []byte) error {
	if !d.active || d.nonceSet {
		return d.fail("set-nonce", StatusResourceUnavailable, nil)
	}
	if len(nonce) == 0 {
		return d.fail("set-nonce", StatusInvalidInput, nil)
	}

	if len(nonce) == 12 {
		copy(d.j0[:], nonce)
		d.j0[15] = 1
	} else {
		g := ghash{h: d.hash.h}
		g.update(nonce)
		var lens [aes.BlockSize]byte
		binary.BigEndian.PutUint64(lens[8:], uint64(len(nonce))*8)
		g.update(lens[:])
		g.y.store(d.j0[:])
	}
	d.counter = d.j0
	gcmIncrement(&d.counter)
	d.nonceSet = true
	return nil
}

func gcmIncrement(counter *[aes.BlockSize]byte) {
	c := binary.BigEndian.Uint32(counter[12:])
	binary.BigEndian.PutUint32(counter[12:], c+1)
}

func (d *softGCM) AddAAD(ad []byte) error {
	if !d.nonceSet || d.adClosed {
		return d.fail("add-aad", StatusResourceUnavailable, nil)
	}
	d.hash.update(ad)
	d.adLen += uint64(len(ad))
	if len(ad)%aes.BlockSize != 0 {
		d.adClosed = true
	}
	return nil
}

func (d *softGCM) crypt(op string, in, out []byte) error {
	if !d.nonceSet || d.textEnded {
		return d.fail(op, StatusResourceUnavailable, nil)
	}
	if len(out) < len(in) {
		return d.fail(op, StatusInvalidInput, nil)
	}
	d.adClosed = true

	if d.decrypt {
		d.hash.update(in)
	}
	var ks [aes.BlockSize]byte
	for off := 0; off < len(in); off += aes.BlockSize {
		end := off + aes.BlockSize
		if end > len(in) {
			end = len(in)
		}
		d.block.Encrypt(ks[:], d.counter[:])
		gcmIncrement(&d.counter)
		subtle.XORBytes(out[off:end], in[off:end], ks[:end-off])
	}
	clearBuffer(ks[:])
	if !d.decrypt {
		d.hash.update(out[:len(in)])
	}

	d.textLen += uint64(len(in))
	if len(in)%aes.BlockSize != 0 {
		d.textEnded = true
	}
	return nil
}

// AddData processes whole blocks of payload.
func (d *softGCM) AddData(in, out []byte) error {
	if len(in)%aes.BlockSize != 0 {
		return d.fail("add-data", StatusInvalidInput, nil)
	}
	return d.crypt("add-data", in, out)
}

func (d *softGCM) tag(out []byte) {
	var lens [aes.BlockSize]byte
	binary.BigEndian.PutUint64(lens[:8], d.adLen*8)
	binary.BigEndian.PutUint64(lens[8:], d.textLen*8)
	d.hash.update(lens[:])

	var s, ek [aes.BlockSize]byte
	d.hash.y.store(s[:])
	d.block.Encrypt(ek[:], d.j0[:])
	subtle.XORBytes(out, s[:len(out)], ek[:len(out)])
}

func (d *softGCM) FinalizeEncrypt(in, out, tag []byte) error {
	if !d.active || d.decrypt {
		return d.fail("finalize-encrypt", StatusResourceUnavailable, nil)
	}
	defer d.clear()
	if len(tag) < d.tagLen {
		return d.fail("finalize-encrypt", StatusInvalidInput, nil)
	}
	if err := d.crypt("finalize-encrypt", in, out); err != nil {
		return err
	}
	d.tag(tag[:d.tagLen])
	return nil
}

// FinalizeDecrypt checks the tag and wipes the final plaintext on mismatch.
func (d *softGCM) FinalizeDecrypt(in, out, tag []byte) error {
	if !d.active || !d.decrypt {
		return d.fail("finalize-decrypt", StatusResourceUnavailable, nil)
	}
	defer d.clear()
	if len(tag) != d.tagLen {
		return d.fail("finalize-decrypt", StatusInvalidInput, nil)
	}
	if err := d.crypt("finalize-decrypt", in, out); err != nil {
		return err
	}
	var expected [aes.BlockSize]byte
	d.tag(expected[:d.tagLen])
	if subtle.ConstantTimeCompare(expected[:d.tagLen], tag) != 1 {
		clearBuffer(out[:len(in)])
		return d.fail("finalize-decrypt", StatusMACInvalid, nil)
	}
	return nil
}

func (d *softGCM) oneStep(op string, decrypt bool, key, nonce, ad []byte) error {
	if err := d.setup(op, decrypt, key, aes.BlockSize); err != nil {
		return err
	}
	if err := d.SetNonce(nonce); err != nil {
		d.clear()
		return err
	}
	if err := d.AddAAD(ad); err != nil {
		d.clear()
		return err
	}
	return nil
}

// OneStepEncrypt writes a tag of len(tag) bytes.
func (d *softGCM) OneStepEncrypt(key, nonce, ad, in, out, tag []byte) error {
	if len(tag) < 4 || len(tag) > aes.BlockSize {
		return d.fail("one-step-encrypt", StatusInvalidInput, nil)
	}
	if err := d.oneStep("one-step-encrypt", false, key, nonce, ad); err != nil {
		return err
	}
	d.tagLen = len(tag)
	return d.FinalizeEncrypt(in, out, tag)
}

func (d *softGCM) OneStepDecrypt(key, nonce, ad, in, out, tag []byte) error {
	if len(tag) < 4 || len(tag) > aes.BlockSize {
		return d.fail("one-step-decrypt", StatusInvalidInput, nil)
	}
	if err := d.oneStep("one-step-decrypt", true, key, nonce, ad); err != nil {
		return err
	}
	d.tagLen = len(tag)
	return d.FinalizeDecrypt(in, out, tag)
}

func (d *softGCM) Cancel() error {
	d.clear()
	return nil
}
