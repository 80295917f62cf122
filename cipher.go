// cipher.go: Multi-call and one-shot unauthenticated ciphers (AES ECB, CBC, CTR)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

func cipherModeOf(alg Algorithm) (cipherMode, bool) {
	switch alg {
	case AlgECBNoPadding:
		return cipherModeECB, true
	case AlgCBCNoPadding:
		return cipherModeCBC, true
	case AlgCTR:
		return cipherModeCTR, true
	}
	return 0, false
}

// CipherEncryptSetup starts a multi-call encryption with key.
func (e *Engine) CipherEncryptSetup(op *CipherOperation, key KeyID, alg Algorithm) error {
	return e.cipherSetup(op, key, alg, true)
}

// CipherDecryptSetup starts a multi-call decryption with key.
func (e *Engine) CipherDecryptSetup(op *CipherOperation, key KeyID, alg Algorithm) error {
	return e.cipherSetup(op, key, alg, false)
}

// resolveCipherKey checks everything a cipher call needs before a driver is
// touched.
func (e *Engine) resolveCipherKey(id KeyID, alg Algorithm, encrypt bool) (*ResolvedKey, cipherMode, error) {
	if !alg.IsCipher() {
		return nil, 0, notSupported("0x%08x is not a cipher algorithm", uint32(alg))
	}
	usage := UsageDecrypt
	if encrypt {
		usage = UsageEncrypt
	}
	key, err := e.resolveKey(id, usage, alg)
	if err != nil {
		return nil, 0, err
	}
	if key.Attributes.Type != KeyTypeAES {
		key.Release()
		return nil, 0, invalidArgument("cipher key must be AES, got type 0x%04x", uint16(key.Attributes.Type))
	}
	mode, ok := cipherModeOf(alg)
	if !ok {
		key.Release()
		return nil, 0, notSupported("cipher 0x%08x is not supported", uint32(alg))
	}
	return key, mode, nil
}

func (e *Engine) cipherSetup(op *CipherOperation, id KeyID, alg Algorithm, encrypt bool) error {
	if op.Active() || op.failed {
		return badState("cipher operation already active")
	}
	key, mode, err := e.resolveCipherKey(id, alg, encrypt)
	if err != nil {
		return err
	}

	hw, err := bind[BlockCipherDriver](e.registry, mode.family())
	if err != nil {
		key.Release()
		return err
	}
	if encrypt {
		err = hw.drv.SetupEncrypt(key.Material, nil)
	} else {
		err = hw.drv.SetupDecrypt(key.Material, nil)
	}
	if err != nil {
		hw.release()
		key.Release()
		return e.driverError(err)
	}

	op.alg = alg
	op.mode = mode
	op.encrypt = encrypt
	op.ivRequired = mode != cipherModeECB
	op.ivLen = CipherIVLength(KeyTypeAES, alg)
	op.blockLen = KeyTypeAES.BlockLength()
	op.hw = hw
	op.reg = e.registry
	if mode == cipherModeCTR {
		op.key = key
	} else {
		key.Release()
	}
	return nil
}

func (op *CipherOperation) checkIVState() error {
	if !op.Active() || op.failed || op.ivSet || !op.ivRequired {
		return badState("cipher operation does not accept an IV")
	}
	return nil
}

// SetIV sets the IV, or the initial counter block for CTR.
func (op *CipherOperation) SetIV(iv []byte) error {
	if err := op.checkIVState(); err != nil {
		return err
	}
	if len(iv) > CipherIVMaxSize || len(iv) < op.ivLen {
		return invalidArgument("IV must be %d bytes, got %d", op.ivLen, len(iv))
	}

	var err error
	switch op.mode {
	case cipherModeCBC:
		err = op.hw.drv.SetIV(iv)
	case cipherModeCTR:
		if err = op.hw.drv.Cancel(); err == nil {
			if op.encrypt {
				err = op.hw.drv.SetupEncrypt(op.key.Material, iv)
			} else {
				err = op.hw.drv.SetupDecrypt(op.key.Material, iv)
			}
		}
	}
	if err != nil {
		op.failed = true
		return mapDriverError(err)
	}
	op.ivSet = true
	return nil
}

// GenerateIV draws a random IV, sets it and copies it to out.
func (op *CipherOperation) GenerateIV(out []byte) (int, error) {
	if err := op.checkIVState(); err != nil {
		return 0, err
	}
	if len(out) < op.ivLen {
		return 0, bufferTooSmall(op.ivLen, len(out))
	}
	if err := drawEntropy(op.reg, out[:op.ivLen]); err != nil {
		return 0, err
	}
	if err := op.SetIV(out[:op.ivLen]); err != nil {
		return 0, err
	}
	return op.ivLen, nil
}

func (op *CipherOperation) ready() error {
	if !op.Active() || op.failed || (op.ivRequired && !op.ivSet) {
		return badState("cipher operation not ready")
	}
	return nil
}

// Update processes in and returns the number of bytes written to out. Output
// is produced in whole blocks; the remainder stays buffered.
func (op *CipherOperation) Update(in, out []byte) (int, error) {
	if err := op.ready(); err != nil {
		return 0, err
	}
	if len(in) == 0 {
		return 0, nil
	}

	need := ((op.buf.Len() + len(in)) / op.blockLen) * op.blockLen
	if len(out) < need {
		op.failed = true
		return 0, bufferTooSmall(need, len(out))
	}

	ready, middle, rest := op.buf.splitBlocks(in, false)
	if !ready {
		return 0, nil
	}
	if err := op.hw.drv.AddData(op.buf.Bytes(), out[:op.blockLen]); err != nil {
		op.failed = true
		return 0, mapDriverError(err)
	}
	op.buf.Reset()
	if len(middle) > 0 {
		if err := op.hw.drv.AddData(middle, out[op.blockLen:op.blockLen+len(middle)]); err != nil {
			op.failed = true
			return 0, mapDriverError(err)
		}
	}
	op.buf.Set(rest)
	return need, nil
}

// Finish flushes the operation. ECB and CBC require an empty buffer; CTR
// processes the buffered tail. The operation is reset afterwards.
func (op *CipherOperation) Finish(out []byte) (int, error) {
	if err := op.ready(); err != nil {
		return 0, err
	}

	var n int
	var err error
	switch op.mode {
	case cipherModeECB, cipherModeCBC:
		if op.buf.Len() != 0 {
			err = badState("%d bytes of input are not a whole block", op.buf.Len())
			break
		}
		err = mapDriverError(op.hw.drv.Finalize(nil, nil))
	case cipherModeCTR:
		n = op.buf.Len()
		if len(out) < n {
			err = bufferTooSmall(n, len(out))
			break
		}
		err = mapDriverError(op.hw.drv.Finalize(op.buf.Bytes(), out[:n]))
	}

	if err != nil {
		_ = op.abandon()
		op.reset()
		return 0, err
	}
	op.reset()
	return n, nil
}

// abandon stops the driver mid-operation. Modes without cancellation are
// closed and reopened.
func (op *CipherOperation) abandon() error {
	if !op.hw.active() {
		return nil
	}
	if op.mode == cipherModeCTR {
		return mapDriverError(op.hw.drv.Cancel())
	}
	return op.hw.reopen()
}

// Abort resets op. It is safe on an inactive operation; a driver that fails
// to reset is reported after the context has been cleared.
func (op *CipherOperation) Abort() error {
	err := op.abandon()
	op.reset()
	return err
}

// CipherEncrypt encrypts in with a random IV and writes IV || ciphertext.
func (e *Engine) CipherEncrypt(key KeyID, alg Algorithm, in, out []byte) (int, error) {
	k, mode, err := e.resolveCipherKey(key, alg, true)
	if err != nil {
		return 0, err
	}
	defer k.Release()

	blockLen := KeyTypeAES.BlockLength()
	if mode != cipherModeCTR && (len(in) == 0 || len(in)%blockLen != 0) {
		return 0, invalidArgument("input must be a non-zero multiple of %d bytes", blockLen)
	}
	ivLen := CipherIVLength(KeyTypeAES, alg)
	if len(out) < ivLen+len(in) {
		return 0, bufferTooSmall(ivLen+len(in), len(out))
	}

	var iv []byte
	if ivLen > 0 {
		iv = out[:ivLen]
		if err := drawEntropy(e.registry, iv); err != nil {
			return 0, err
		}
	}

	hw, err := bind[BlockCipherDriver](e.registry, mode.family())
	if err != nil {
		return 0, err
	}
	defer hw.release()
	if err := hw.drv.OneStepEncrypt(k.Material, iv, in, out[ivLen:ivLen+len(in)]); err != nil {
		return 0, e.driverError(err)
	}
	return ivLen + len(in), nil
}

// CipherDecrypt decrypts IV || ciphertext.
func (e *Engine) CipherDecrypt(key KeyID, alg Algorithm, in, out []byte) (int, error) {
	k, mode, err := e.resolveCipherKey(key, alg, false)
	if err != nil {
		return 0, err
	}
	defer k.Release()

	ivLen := CipherIVLength(KeyTypeAES, alg)
	if len(in) < ivLen {
		return 0, invalidArgument("input shorter than the %d byte IV", ivLen)
	}
	payload := in[ivLen:]
	blockLen := KeyTypeAES.BlockLength()
	if mode != cipherModeCTR && (len(payload) == 0 || len(payload)%blockLen != 0) {
		return 0, invalidArgument("ciphertext must be a non-zero multiple of %d bytes", blockLen)
	}
	if len(out) < len(payload) {
		return 0, bufferTooSmall(len(payload), len(out))
	}

	var iv []byte
	if ivLen > 0 {
		iv = in[:ivLen]
	}
	hw, err := bind[BlockCipherDriver](e.registry, mode.family())
	if err != nil {
		return 0, err
	}
	defer hw.release()
	if err := hw.drv.OneStepDecrypt(k.Material, iv, payload, out[:len(payload)]); err != nil {
		return 0, e.driverError(err)
	}
	return len(payload), nil
}
