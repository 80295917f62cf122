// aead.go: Multi-call and one-shot authenticated encryption (AES CCM, GCM)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

// Tag lengths accepted per mode.
var (
	ccmTagLengths = map[int]bool{4: true, 6: true, 8: true, 10: true, 12: true, 14: true, 16: true}
	gcmTagLengths = map[int]bool{4: true, 8: true, 12: true, 13: true, 14: true, 15: true, 16: true}
)

func nonceBounds(mode aeadMode) (lo, hi int) {
	if mode == aeadModeCCM {
		return ccmNonceMinSize, AEADNonceMaxSize
	}
	return gcmNonceMinSize, AEADNonceMaxSize
}

// resolveAEADKey checks key, policy, mode and tag length.
func (e *Engine) resolveAEADKey(id KeyID, alg Algorithm, encrypt bool) (*ResolvedKey, aeadMode, int, error) {
	usage := UsageDecrypt
	if encrypt {
		usage = UsageEncrypt
	}
	key, err := e.resolveKey(id, usage, alg)
	if err != nil {
		return nil, 0, 0, err
	}
	fail := func(err error) (*ResolvedKey, aeadMode, int, error) {
		key.Release()
		return nil, 0, 0, err
	}

	if key.Attributes.Type.BlockLength() != BlockCipherBlockMaxSize {
		return fail(invalidArgument("AEAD key must be a 16-byte block cipher key"))
	}
	if key.Attributes.Type != KeyTypeAES {
		return fail(notSupported("only AES keys are supported for AEAD"))
	}

	tagLen := alg.AEADTagLength()
	var mode aeadMode
	switch AEADWithDefaultLengthTag(alg) {
	case AlgCCM:
		mode = aeadModeCCM
		if !ccmTagLengths[tagLen] {
			return fail(invalidArgument("CCM tag length %d is not valid", tagLen))
		}
	case AlgGCM:
		mode = aeadModeGCM
		if !gcmTagLengths[tagLen] {
			return fail(invalidArgument("GCM tag length %d is not valid", tagLen))
		}
	default:
		return fail(notSupported("AEAD 0x%08x is not supported", uint32(alg)))
	}
	return key, mode, tagLen, nil
}

// AEADEncryptSetup starts a multi-call authenticated encryption with key.
func (e *Engine) AEADEncryptSetup(op *AEADOperation, key KeyID, alg Algorithm) error {
	return e.aeadSetup(op, key, alg, true)
}

// AEADDecryptSetup starts a multi-call authenticated decryption with key.
func (e *Engine) AEADDecryptSetup(op *AEADOperation, key KeyID, alg Algorithm) error {
	return e.aeadSetup(op, key, alg, false)
}

func (e *Engine) aeadSetup(op *AEADOperation, id KeyID, alg Algorithm, encrypt bool) error {
	if op.Active() || op.failed {
		return badState("AEAD operation already active")
	}
	if !alg.IsAEAD() {
		return invalidArgument("0x%08x is not an AEAD algorithm", uint32(alg))
	}
	key, mode, tagLen, err := e.resolveAEADKey(id, alg, encrypt)
	if err != nil {
		return err
	}
	defer key.Release()

	hw, err := bind[AEADDriver](e.registry, mode.family())
	if err != nil {
		return err
	}
	if encrypt {
		err = hw.drv.SetupEncrypt(key.Material, tagLen)
	} else {
		err = hw.drv.SetupDecrypt(key.Material, tagLen)
	}
	if err != nil {
		hw.release()
		return e.driverError(err)
	}

	op.alg = alg
	op.mode = mode
	op.encrypt = encrypt
	op.tagLen = tagLen
	op.hw = hw
	op.reg = e.registry
	return nil
}

func (op *AEADOperation) usable() bool {
	return op.Active() && !op.failed
}

// fail latches the operation after an error.
func (op *AEADOperation) fail(err error) error {
	op.failed = true
	return err
}

// SetLengths declares the total additional data and payload lengths. CCM needs
// them before the nonce; for both modes they must come before any data.
func (op *AEADOperation) SetLengths(adLen, textLen int) error {
	if !op.usable() || op.lengthsSet {
		return badState("AEAD operation does not accept lengths")
	}
	if op.mode == aeadModeCCM && op.nonceSet {
		return badState("CCM lengths must be set before the nonce")
	}
	if op.adSeen > 0 || op.textSeen > 0 || op.doneUpdatingAD {
		return badState("AEAD lengths must be set before any data")
	}
	if adLen < 0 || textLen < 0 {
		return invalidArgument("AEAD lengths must not be negative")
	}
	if err := op.hw.drv.SetLengths(adLen, textLen); err != nil {
		return op.fail(mapDriverError(err))
	}
	op.adDeclared = adLen
	op.textDeclared = textLen
	op.lengthsSet = true
	return nil
}

func (op *AEADOperation) checkNonceState() error {
	if !op.usable() || op.nonceSet {
		return badState("AEAD operation does not accept a nonce")
	}
	if op.mode == aeadModeCCM && !op.lengthsSet {
		return badState("CCM requires lengths before the nonce")
	}
	return nil
}

// SetNonce sets the nonce: 7 to 13 bytes for CCM, 1 to 13 for GCM.
func (op *AEADOperation) SetNonce(nonce []byte) error {
	if err := op.checkNonceState(); err != nil {
		return err
	}
	lo, hi := nonceBounds(op.mode)
	if len(nonce) < lo || len(nonce) > hi {
		return invalidArgument("nonce must be %d to %d bytes, got %d", lo, hi, len(nonce))
	}
	if err := op.hw.drv.SetNonce(nonce); err != nil {
		return op.fail(mapDriverError(err))
	}
	op.nonceSet = true
	return nil
}

// GenerateNonce draws a nonce of the default length, sets it and copies it to out.
func (op *AEADOperation) GenerateNonce(out []byte) (int, error) {
	if err := op.checkNonceState(); err != nil {
		return 0, err
	}
	n := AEADNonceLength(KeyTypeAES, op.alg)
	if len(out) < n {
		return 0, bufferTooSmall(n, len(out))
	}
	if err := drawEntropy(op.reg, out[:n]); err != nil {
		return 0, err
	}
	if err := op.SetNonce(out[:n]); err != nil {
		return 0, err
	}
	return n, nil
}

// UpdateAD feeds additional data. All of it must come before the payload.
func (op *AEADOperation) UpdateAD(p []byte) error {
	if !op.usable() || !op.nonceSet || op.doneUpdatingAD {
		return badState("AEAD operation does not accept additional data")
	}
	if op.lengthsSet && op.adSeen+len(p) > op.adDeclared {
		return op.fail(invalidArgument("additional data exceeds the declared %d bytes", op.adDeclared))
	}
	if len(p) == 0 {
		return nil
	}

	ready, middle, rest := op.buf.splitBlocks(p, false)
	if ready {
		if err := op.hw.drv.AddAAD(op.buf.Bytes()); err != nil {
			return op.fail(mapDriverError(err))
		}
		op.buf.Reset()
		if len(middle) > 0 {
			if err := op.hw.drv.AddAAD(middle); err != nil {
				return op.fail(mapDriverError(err))
			}
		}
		op.buf.Set(rest)
	}
	op.adSeen += len(p)
	return nil
}

// flushAD submits buffered additional data and closes the stream.
func (op *AEADOperation) flushAD() error {
	if op.doneUpdatingAD {
		return nil
	}
	if op.buf.Len() > 0 {
		if err := op.hw.drv.AddAAD(op.buf.Bytes()); err != nil {
			return mapDriverError(err)
		}
		op.buf.Reset()
	}
	op.doneUpdatingAD = true
	return nil
}

// Update processes payload and returns the number of bytes written to out.
// The first call closes the additional data.
func (op *AEADOperation) Update(in, out []byte) (int, error) {
	if !op.usable() || !op.nonceSet {
		return 0, badState("AEAD operation does not accept payload")
	}
	if op.lengthsSet {
		if op.adSeen < op.adDeclared {
			return 0, op.fail(invalidArgument("additional data is %d bytes short", op.adDeclared-op.adSeen))
		}
		if op.textSeen+len(in) > op.textDeclared {
			return 0, op.fail(invalidArgument("payload exceeds the declared %d bytes", op.textDeclared))
		}
	}
	if err := op.flushAD(); err != nil {
		return 0, op.fail(err)
	}
	if len(in) == 0 {
		return 0, nil
	}

	block := BlockCipherBlockMaxSize
	need := ((op.buf.Len() + len(in)) / block) * block
	if len(out) < need {
		return 0, op.fail(bufferTooSmall(need, len(out)))
	}

	ready, middle, rest := op.buf.splitBlocks(in, false)
	if ready {
		if err := op.hw.drv.AddData(op.buf.Bytes(), out[:block]); err != nil {
			return 0, op.fail(mapDriverError(err))
		}
		op.buf.Reset()
		if len(middle) > 0 {
			if err := op.hw.drv.AddData(middle, out[block:block+len(middle)]); err != nil {
				return 0, op.fail(mapDriverError(err))
			}
		}
		op.buf.Set(rest)
	}
	op.textSeen += len(in)
	return need, nil
}

// checkTotals rejects a finish before the declared lengths have been reached.
func (op *AEADOperation) checkTotals() error {
	if !op.lengthsSet {
		return nil
	}
	if op.adSeen < op.adDeclared || op.textSeen < op.textDeclared {
		return invalidArgument("input is shorter than the declared lengths")
	}
	return nil
}

// Finish completes an encryption. It writes the buffered ciphertext tail to ct
// and the tag to tag, and returns both lengths. The operation is reset
// whatever the outcome.
func (op *AEADOperation) Finish(ct, tag []byte) (int, int, error) {
	if !op.usable() || !op.encrypt || !op.nonceSet {
		return 0, 0, badState("AEAD encrypt operation not ready to finish")
	}
	defer op.reset()

	if len(tag) < op.tagLen {
		return 0, 0, bufferTooSmall(op.tagLen, len(tag))
	}
	if err := op.checkTotals(); err != nil {
		return 0, 0, err
	}
	// Without payload the buffer still holds the additional data tail.
	if err := op.flushAD(); err != nil {
		return 0, 0, err
	}
	n := op.buf.Len()
	if len(ct) < n {
		return 0, 0, bufferTooSmall(n, len(ct))
	}

	fillSentinel(tag)
	if err := op.hw.drv.FinalizeEncrypt(op.buf.Bytes(), ct[:n], tag[:op.tagLen]); err != nil {
		return 0, 0, mapDriverError(err)
	}
	return n, op.tagLen, nil
}

// Verify completes a decryption. It writes the buffered plaintext tail to pt
// and checks tag. The operation is reset whatever the outcome.
func (op *AEADOperation) Verify(pt, tag []byte) (int, error) {
	if !op.usable() || op.encrypt || !op.nonceSet {
		return 0, badState("AEAD decrypt operation not ready to verify")
	}
	defer op.reset()

	if len(tag) != op.tagLen {
		return 0, invalidSignature("tag length mismatch")
	}
	if err := op.checkTotals(); err != nil {
		return 0, err
	}
	if err := op.flushAD(); err != nil {
		return 0, err
	}
	n := op.buf.Len()
	if len(pt) < n {
		return 0, bufferTooSmall(n, len(pt))
	}
	if err := op.hw.drv.FinalizeDecrypt(op.buf.Bytes(), pt[:n], tag); err != nil {
		clearBuffer(pt[:n])
		return 0, mapDriverError(err)
	}
	return n, nil
}

// Abort resets op. It is safe on an inactive operation.
func (op *AEADOperation) Abort() error {
	op.reset()
	return nil
}

func (e *Engine) aeadOneShotKey(id KeyID, alg Algorithm, encrypt bool, nonce []byte) (*ResolvedKey, aeadMode, int, error) {
	if !alg.IsAEAD() || alg.IsWildcard() {
		return nil, 0, 0, notSupported("0x%08x is not a concrete AEAD algorithm", uint32(alg))
	}
	key, mode, tagLen, err := e.resolveAEADKey(id, alg, encrypt)
	if err != nil {
		return nil, 0, 0, err
	}
	lo, hi := nonceBounds(mode)
	if len(nonce) < lo || len(nonce) > hi {
		key.Release()
		return nil, 0, 0, invalidArgument("nonce must be %d to %d bytes, got %d", lo, hi, len(nonce))
	}
	return key, mode, tagLen, nil
}

// AEADEncrypt encrypts pt and writes ciphertext || tag to out. On failure the
// written part of out is zeroed.
func (e *Engine) AEADEncrypt(key KeyID, alg Algorithm, nonce, ad, pt, out []byte) (int, error) {
	k, mode, tagLen, err := e.aeadOneShotKey(key, alg, true, nonce)
	if err != nil {
		return 0, err
	}
	defer k.Release()

	total := len(pt) + tagLen
	if len(out) < total {
		return 0, bufferTooSmall(total, len(out))
	}
	hw, err := bind[AEADDriver](e.registry, mode.family())
	if err != nil {
		return 0, err
	}
	defer hw.release()

	if err := hw.drv.OneStepEncrypt(k.Material, nonce, ad, pt, out[:len(pt)], out[len(pt):total]); err != nil {
		clearBuffer(out[:total])
		return 0, e.driverError(err)
	}
	return total, nil
}

// AEADDecrypt checks and decrypts ciphertext || tag. On failure the written
// part of out is zeroed.
func (e *Engine) AEADDecrypt(key KeyID, alg Algorithm, nonce, ad, ct, out []byte) (int, error) {
	k, mode, tagLen, err := e.aeadOneShotKey(key, alg, false, nonce)
	if err != nil {
		return 0, err
	}
	defer k.Release()

	if len(ct) < tagLen {
		return 0, invalidArgument("input shorter than the %d byte tag", tagLen)
	}
	n := len(ct) - tagLen
	if len(out) < n {
		return 0, bufferTooSmall(n, len(out))
	}
	hw, err := bind[AEADDriver](e.registry, mode.family())
	if err != nil {
		return 0, err
	}
	defer hw.release()

	if err := hw.drv.OneStepDecrypt(k.Material, nonce, ad, ct[:n], out[:n], ct[n:]); err != nil {
		clearBuffer(out[:n])
		return 0, e.driverError(err)
	}
	return n, nil
}
