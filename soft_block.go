// soft_block.go: Software AES engines for the ECB, CBC and CTR families
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
)

type blockMode int

const (
	blockModeECB blockMode = iota
	blockModeCBC
	blockModeCTR
)

// softBlockCipher is one AES mode engine over crypto/aes and crypto/cipher.
type softBlockCipher struct {
	family  Family
	mode    blockMode
	open    bool
	active  bool
	encrypt bool
	block   cipher.Block
	cbc     cipher.BlockMode
	ctr     cipher.Stream
}

// NewSoftAESECB returns a software AES-ECB driver. It cannot cancel.
func NewSoftAESECB() BlockCipherDriver {
	return &softBlockCipher{family: FamilyAESECB, mode: blockModeECB}
}

// NewSoftAESCBC returns a software AES-CBC driver. It cannot cancel.
func NewSoftAESCBC() BlockCipherDriver {
	return &softBlockCipher{family: FamilyAESCBC, mode: blockModeCBC}
}

// NewSoftAESCTR returns a software AES-CTR driver.
func NewSoftAESCTR() BlockCipherDriver {
	return &softBlockCipher{family: FamilyAESCTR, mode: blockModeCTR}
}

func (d *softBlockCipher) fail(op string, status DriverStatus, cause error) error {
	return driverErr(string(d.family), op, status, cause)
}

func (d *softBlockCipher) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return d.fail("open", StatusResourceUnavailable, err)
	}
	d.open = true
	return nil
}

func (d *softBlockCipher) Close() error {
	d.clear()
	d.open = false
	return nil
}

func (d *softBlockCipher) clear() {
	d.active = false
	d.block = nil
	d.cbc = nil
	d.ctr = nil
}

func (d *softBlockCipher) setup(op string, encrypt bool, key, iv []byte) error {
	if !d.open {
		return d.fail(op, StatusResourceUnavailable, nil)
	}
	if d.active {
		return d.fail(op, StatusResourceUnavailable, nil)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return d.fail(op, StatusInvalidKey, err)
	}
	d.block = block
	d.encrypt = encrypt
	d.active = true

	switch d.mode {
	case blockModeCBC:
		if iv != nil {
			if err := d.SetIV(iv); err != nil {
				d.clear()
				return err
			}
		}
	case blockModeCTR:
		var counter [aes.BlockSize]byte
		if iv != nil {
			if len(iv) != aes.BlockSize {
				d.clear()
				return d.fail(op, StatusInvalidInput, nil)
			}
			copy(counter[:], iv)
		}
		d.ctr = cipher.NewCTR(block, counter[:])
	}
	return nil
}

func (d *softBlockCipher) SetupEncrypt(key, iv []byte) error {
	return d.setup("setup-encrypt", true, key, iv)
}

func (d *softBlockCipher) SetupDecrypt(key, iv []byte) error {
	return d.setup("setup-decrypt", false, key, iv)
}

// SetIV loads the chaining value of a CBC operation.
func (d *softBlockCipher) SetIV(iv []byte) error {
	if d.mode != blockModeCBC {
		return d.fail("set-iv", StatusUnsupported, nil)
	}
	if !d.active {
		return d.fail("set-iv", StatusResourceUnavailable, nil)
	}
	if len(iv) != aes.BlockSize {
		return d.fail("set-iv", StatusInvalidInput, nil)
	}
	if d.encrypt {
		d.cbc = cipher.NewCBCEncrypter(d.block, iv)
	} else {
		d.cbc = cipher.NewCBCDecrypter(d.block, iv)
	}
	return nil
}

func (d *softBlockCipher) process(op string, in, out []byte, partialOK bool) error {
	if !d.active {
		return d.fail(op, StatusResourceUnavailable, nil)
	}
	if len(out) < len(in) || (!partialOK && len(in)%aes.BlockSize != 0) {
		return d.fail(op, StatusInvalidInput, nil)
	}
	if len(in) == 0 {
		return nil
	}

	switch d.mode {
	case blockModeECB:
		for off := 0; off < len(in); off += aes.BlockSize {
			if d.encrypt {
				d.block.Encrypt(out[off:], in[off:off+aes.BlockSize])
			} else {
				d.block.Decrypt(out[off:], in[off:off+aes.BlockSize])
			}
		}
	case blockModeCBC:
		if d.cbc == nil {
			return d.fail(op, StatusResourceUnavailable, nil)
		}
		d.cbc.CryptBlocks(out[:len(in)], in)
	case blockModeCTR:
		d.ctr.XORKeyStream(out[:len(in)], in)
	}
	return nil
}

func (d *softBlockCipher) AddData(in, out []byte) error {
	return d.process("add-data", in, out, false)
}

// Finalize processes the last input and ends the operation. Only CTR accepts a
// partial block.
func (d *softBlockCipher) Finalize(in, out []byte) error {
	err := d.process("finalize", in, out, d.mode == blockModeCTR)
	if err == nil {
		d.clear()
	}
	return err
}

func (d *softBlockCipher) oneStep(op string, encrypt bool, key, iv, in, out []byte) error {
	if err := d.setup(op, encrypt, key, iv); err != nil {
		return err
	}
	defer d.clear()
	if d.mode == blockModeCBC && d.cbc == nil {
		return d.fail(op, StatusInvalidInput, nil)
	}
	return d.process(op, in, out, d.mode == blockModeCTR)
}

func (d *softBlockCipher) OneStepEncrypt(key, iv, in, out []byte) error {
	return d.oneStep("one-step-encrypt", true, key, iv, in, out)
}

func (d *softBlockCipher) OneStepDecrypt(key, iv, in, out []byte) error {
	return d.oneStep("one-step-decrypt", false, key, iv, in, out)
}

// Cancel is only available on the counter-mode engine.
func (d *softBlockCipher) Cancel() error {
	if d.mode != blockModeCTR {
		return d.fail("cancel", StatusUnsupported, nil)
	}
	d.clear()
	return nil
}
