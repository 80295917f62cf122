// soft_mac.go: Software AES-MAC engine (CMAC and CBC-MAC)
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
)

// cmacRb is the reduction constant for 128-bit blocks (NIST SP 800-38B).
const cmacRb = 0x87

// softAESMAC implements CMAC and CBC-MAC over crypto/aes.
type softAESMAC struct {
	open   bool
	active bool
	verify bool
	mode   MACMode
	block  cipher.Block
	state  [aes.BlockSize]byte
	k1, k2 [aes.BlockSize]byte
}

// NewSoftAESMAC returns a software AES-MAC driver.
func NewSoftAESMAC() MACDriver {
	return &softAESMAC{}
}

func (d *softAESMAC) fail(op string, status DriverStatus, cause error) error {
	return driverErr(string(FamilyAESMAC), op, status, cause)
}

func (d *softAESMAC) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return d.fail("open", StatusResourceUnavailable, err)
	}
	d.open = true
	return nil
}

func (d *softAESMAC) Close() error {
	d.clear()
	d.open = false
	return nil
}

func (d *softAESMAC) clear() {
	d.active = false
	d.block = nil
	clearBuffer(d.state[:])
	clearBuffer(d.k1[:])
	clearBuffer(d.k2[:])
}

// shiftLeft doubles a block in GF(2^128).
func shiftLeft(dst, src *[aes.BlockSize]byte) {
	msb := src[0] >> 7
	for i := 0; i < aes.BlockSize-1; i++ {
		dst[i] = src[i]<<1 | src[i+1]>>7
	}
	dst[aes.BlockSize-1] = src[aes.BlockSize-1] << 1
	dst[aes.BlockSize-1] ^= byte(subtle.ConstantTimeSelect(int(msb), cmacRb, 0))
}

func (d *softAESMAC) setup(op string, verify bool, mode MACMode, key []byte) error {
	if !d.open || d.active {
		return d.fail(op, StatusResourceUnavailable, nil)
	}
	if mode != MACModeCMAC && mode != MACModeCBCMAC {
		return d.fail(op, StatusUnsupported, nil)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return d.fail(op, StatusInvalidKey, err)
	}
	d.block = block
	d.mode = mode
	d.verify = verify
	d.active = true
	clearBuffer(d.state[:])

	if mode == MACModeCMAC {
		var l [aes.BlockSize]byte
		block.Encrypt(l[:], l[:])
		shiftLeft(&d.k1, &l)
		shiftLeft(&d.k2, &d.k1)
		clearBuffer(l[:])
	}
	return nil
}

func (d *softAESMAC) SetupSign(mode MACMode, key []byte) error {
	return d.setup("setup-sign", false, mode, key)
}

func (d *softAESMAC) SetupVerify(mode MACMode, key []byte) error {
	return d.setup("setup-verify", true, mode, key)
}

func (d *softAESMAC) absorb(p []byte) {
	for off := 0; off < len(p); off += aes.BlockSize {
		subtle.XORBytes(d.state[:], d.state[:], p[off:off+aes.BlockSize])
		d.block.Encrypt(d.state[:], d.state[:])
	}
}

// AddData absorbs whole blocks. None of them may be the last block.
func (d *softAESMAC) AddData(p []byte) error {
	if !d.active {
		return d.fail("add-data", StatusResourceUnavailable, nil)
	}
	if len(p)%aes.BlockSize != 0 {
		return d.fail("add-data", StatusInvalidInput, nil)
	}
	d.absorb(p)
	return nil
}

// final absorbs the last block and leaves the full tag in d.state. CMAC
// accepts an empty tail only for an empty message.
func (d *softAESMAC) final(op string, tail []byte) error {
	if len(tail) > aes.BlockSize {
		return d.fail(op, StatusInvalidInput, nil)
	}
	var last [aes.BlockSize]byte
	switch d.mode {
	case MACModeCBCMAC:
		if len(tail) != aes.BlockSize {
			return d.fail(op, StatusInvalidInput, nil)
		}
		copy(last[:], tail)
	case MACModeCMAC:
		if len(tail) == aes.BlockSize {
			subtle.XORBytes(last[:], tail, d.k1[:])
		} else {
			copy(last[:], tail)
			last[len(tail)] = 0x80
			subtle.XORBytes(last[:], last[:], d.k2[:])
		}
	}
	d.absorb(last[:])
	return nil
}

func (d *softAESMAC) FinalizeSign(tail, mac []byte) error {
	if !d.active || d.verify {
		return d.fail("finalize-sign", StatusResourceUnavailable, nil)
	}
	defer d.clear()
	if len(mac) > aes.BlockSize {
		return d.fail("finalize-sign", StatusInvalidInput, nil)
	}
	if err := d.final("finalize-sign", tail); err != nil {
		return err
	}
	copy(mac, d.state[:])
	return nil
}

// FinalizeVerify compares the leading len(mac) bytes of the tag.
func (d *softAESMAC) FinalizeVerify(tail, mac []byte) error {
	if !d.active || !d.verify {
		return d.fail("finalize-verify", StatusResourceUnavailable, nil)
	}
	defer d.clear()
	if len(mac) == 0 || len(mac) > aes.BlockSize {
		return d.fail("finalize-verify", StatusInvalidInput, nil)
	}
	if err := d.final("finalize-verify", tail); err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(d.state[:len(mac)], mac) != 1 {
		return d.fail("finalize-verify", StatusMACInvalid, nil)
	}
	return nil
}

func (d *softAESMAC) oneStep(op string, verify bool, mode MACMode, key, in []byte) ([]byte, error) {
	if mode == MACModeCBCMAC && (len(in) == 0 || len(in)%aes.BlockSize != 0) {
		return nil, d.fail(op, StatusInvalidInput, nil)
	}
	if err := d.setup(op, verify, mode, key); err != nil {
		return nil, err
	}
	split := 0
	if len(in) > 0 {
		split = ((len(in) - 1) / aes.BlockSize) * aes.BlockSize
	}
	d.absorb(in[:split])
	return in[split:], nil
}

func (d *softAESMAC) OneStepSign(mode MACMode, key, in, mac []byte) error {
	tail, err := d.oneStep("one-step-sign", false, mode, key, in)
	if err != nil {
		return err
	}
	return d.FinalizeSign(tail, mac)
}

func (d *softAESMAC) OneStepVerify(mode MACMode, key, in, mac []byte) error {
	tail, err := d.oneStep("one-step-verify", true, mode, key, in)
	if err != nil {
		return err
	}
	return d.FinalizeVerify(tail, mac)
}

func (d *softAESMAC) Cancel() error {
	d.clear()
	return nil
}
