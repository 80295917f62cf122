// soft_ccm.go: Software AES-CCM engine with segmented input
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

// softCCM is AES-CCM (NIST SP 800-38C) over crypto/aes. Both lengths must be
// declared before the nonce, since they are encoded in the first MAC block.
type softCCM struct {
	open       bool
	active     bool
	decrypt    bool
	tagLen     int
	block      cipher.Block
	lengthsSet bool
	adLen      uint64
	textLen    uint64
	adSeen     uint64
	textSeen   uint64
	nonceSet   bool
	adPadded   bool
	mac        [aes.BlockSize]byte // CBC-MAC chaining value
	macBuf     [aes.BlockSize]byte
	macN       int
	ctr        [aes.BlockSize]byte // A_i
	a0         [aes.BlockSize]byte
	ctrWidth   int // L, the width of the counter field
}

// NewSoftAESCCM returns a software AES-CCM driver.
func NewSoftAESCCM() AEADDriver {
	return &softCCM{}
}

func (d *softCCM) fail(op string, status DriverStatus, cause error) error {
	return driverErr(string(FamilyAESCCM), op, status, cause)
}

func (d *softCCM) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return d.fail("open", StatusResourceUnavailable, err)
	}
	d.open = true
	return nil
}

func (d *softCCM) Close() error {
	d.clear()
	d.open = false
	return nil
}

func (d *softCCM) clear() {
	*d = softCCM{open: d.open}
}

func (d *softCCM) setup(op string, decrypt bool, key []byte, tagLen int) error {
	if !d.open || d.active {
		return d.fail(op, StatusResourceUnavailable, nil)
	}
	if tagLen < 4 || tagLen > aes.BlockSize || tagLen%2 != 0 {
		return d.fail(op, StatusInvalidInput, nil)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return d.fail(op, StatusInvalidKey, err)
	}
	d.block = block
	d.decrypt = decrypt
	d.tagLen = tagLen
	d.active = true
	return nil
}

func (d *softCCM) SetupEncrypt(key []byte, tagLen int) error {
	return d.setup("setup-encrypt", false, key, tagLen)
}

func (d *softCCM) SetupDecrypt(key []byte, tagLen int) error {
	return d.setup("setup-decrypt", true, key, tagLen)
}

func (d *softCCM) SetLengths(adLen, payloadLen int) error {
	if !d.active || d.nonceSet {
		return d.fail("set-lengths", StatusResourceUnavailable, nil)
	}
	if adLen < 0 || payloadLen < 0 {
		return d.fail("set-lengths", StatusInvalidInput, nil)
	}
	d.adLen = uint64(adLen)
	d.textLen = uint64(payloadLen)
	d.lengthsSet = true
	return nil
}

// absorb feeds the CBC-MAC through a one-block staging buffer.
func (d *softCCM) absorb(p []byte) {
	for len(p) > 0 {
		n := copy(d.macBuf[d.macN:], p)
		d.macN += n
		p = p[n:]
		if d.macN == aes.BlockSize {
			subtle.XORBytes(d.mac[:], d.mac[:], d.macBuf[:])
			d.block.Encrypt(d.mac[:], d.mac[:])
			d.macN = 0
		}
	}
}

// pad zero-fills a partially staged MAC block and absorbs it.
func (d *softCCM) pad() {
	if d.macN == 0 {
		return
	}
	clearBuffer(d.macBuf[d.macN:])
	subtle.XORBytes(d.mac[:], d.mac[:], d.macBuf[:])
	d.block.Encrypt(d.mac[:], d.mac[:])
	d.macN = 0
}

func (d *softCCM) SetNonce(nonce []byte) error {
	if !d.active || d.nonceSet || !d.lengthsSet {
		return d.fail("set-nonce", StatusResourceUnavailable, nil)
	}
	if len(nonce) < ccmNonceMinSize || len(nonce) > AEADNonceMaxSize {
		return d.fail("set-nonce", StatusInvalidInput, nil)
	}
	l := 15 - len(nonce)
	if l < 8 && d.textLen>>(8*uint(l)) != 0 {
		return d.fail("set-nonce", StatusInvalidInput, nil)
	}

	var b0 [aes.BlockSize]byte
	b0[0] = byte(((d.tagLen - 2) / 2) << 3)
	b0[0] |= byte(l - 1)
	if d.adLen > 0 {
		b0[0] |= 0x40
	}
	copy(b0[1:], nonce)
	putCounter(b0[1+len(nonce):], d.textLen)
	d.absorb(b0[:])

	if d.adLen > 0 {
		var prefix [10]byte
		var n int
		switch {
		case d.adLen < 0xff00:
			binary.BigEndian.PutUint16(prefix[:], uint16(d.adLen))
			n = 2
		case d.adLen <= 0xffffffff:
			prefix[0], prefix[1] = 0xff, 0xfe
			binary.BigEndian.PutUint32(prefix[2:], uint32(d.adLen))
			n = 6
		default:
			prefix[0], prefix[1] = 0xff, 0xff
			binary.BigEndian.PutUint64(prefix[2:], d.adLen)
			n = 10
		}
		d.absorb(prefix[:n])
	} else {
		d.adPadded = true
	}

	d.ctr[0] = byte(l - 1)
	copy(d.ctr[1:], nonce)
	d.a0 = d.ctr
	d.ctrWidth = l
	d.nonceSet = true
	return nil
}

// putCounter writes v big-endian into the whole of dst.
func putCounter(dst []byte, v uint64) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = byte(v)
		v >>= 8
	}
}

func (d *softCCM) incrementCounter() {
	for i := aes.BlockSize - 1; i >= aes.BlockSize-d.ctrWidth; i-- {
		d.ctr[i]++
		if d.ctr[i] != 0 {
			return
		}
	}
}

func (d *softCCM) AddAAD(ad []byte) error {
	if !d.nonceSet || d.adPadded {
		return d.fail("add-aad", StatusResourceUnavailable, nil)
	}
	if d.adSeen+uint64(len(ad)) > d.adLen {
		return d.fail("add-aad", StatusInvalidInput, nil)
	}
	d.absorb(ad)
	d.adSeen += uint64(len(ad))
	if d.adSeen == d.adLen {
		d.pad()
		d.adPadded = true
	}
	return nil
}

func (d *softCCM) crypt(op string, in, out []byte) error {
	if !d.nonceSet || !d.adPadded {
		return d.fail(op, StatusResourceUnavailable, nil)
	}
	if len(out) < len(in) || d.textSeen+uint64(len(in)) > d.textLen {
		return d.fail(op, StatusInvalidInput, nil)
	}

	var ks [aes.BlockSize]byte
	for off := 0; off < len(in); off += aes.BlockSize {
		end := off + aes.BlockSize
		if end > len(in) {
			end = len(in)
		}
		if !d.decrypt {
			d.absorb(in[off:end])
		}
		d.incrementCounter()
		d.block.Encrypt(ks[:], d.ctr[:])
		subtle.XORBytes(out[off:end], in[off:end], ks[:end-off])
		if d.decrypt {
			d.absorb(out[off:end])
		}
	}
	clearBuffer(ks[:])
	d.textSeen += uint64(len(in))
	return nil
}

func (d *softCCM) AddData(in, out []byte) error {
	if len(in)%aes.BlockSize != 0 {
		return d.fail("add-data", StatusInvalidInput, nil)
	}
	return d.crypt("add-data", in, out)
}

// tag completes the CBC-MAC and encrypts it with A_0.
func (d *softCCM) tag(op string, out []byte) error {
	if d.adSeen != d.adLen || d.textSeen != d.textLen {
		return d.fail(op, StatusInvalidInput, nil)
	}
	d.pad()
	var s0 [aes.BlockSize]byte
	d.block.Encrypt(s0[:], d.a0[:])
	subtle.XORBytes(out, d.mac[:len(out)], s0[:len(out)])
	return nil
}

func (d *softCCM) FinalizeEncrypt(in, out, tag []byte) error {
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
	return d.tag("finalize-encrypt", tag[:d.tagLen])
}

func (d *softCCM) FinalizeDecrypt(in, out, tag []byte) error {
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
	if err := d.tag("finalize-decrypt", expected[:d.tagLen]); err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(expected[:d.tagLen], tag) != 1 {
		clearBuffer(out[:len(in)])
		return d.fail("finalize-decrypt", StatusMACInvalid, nil)
	}
	return nil
}

func (d *softCCM) oneStep(op string, decrypt bool, key, nonce, ad []byte, textLen, tagLen int) error {
	if err := d.setup(op, decrypt, key, tagLen); err != nil {
		return err
	}
	err := d.SetLengths(len(ad), textLen)
	if err == nil {
		err = d.SetNonce(nonce)
	}
	if err == nil && len(ad) > 0 {
		err = d.AddAAD(ad)
	}
	if err != nil {
		d.clear()
	}
	return err
}

func (d *softCCM) OneStepEncrypt(key, nonce, ad, in, out, tag []byte) error {
	if err := d.oneStep("one-step-encrypt", false, key, nonce, ad, len(in), len(tag)); err != nil {
		return err
	}
	return d.FinalizeEncrypt(in, out, tag)
}

func (d *softCCM) OneStepDecrypt(key, nonce, ad, in, out, tag []byte) error {
	if err := d.oneStep("one-step-decrypt", true, key, nonce, ad, len(in), len(tag)); err != nil {
		return err
	}
	return d.FinalizeDecrypt(in, out, tag)
}

func (d *softCCM) Cancel() error {
	d.clear()
	return nil
}
