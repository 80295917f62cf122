// mac.go: Multi-call and one-shot MAC (HMAC, CMAC, CBC-MAC)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"crypto/subtle"
)

func blockMACMode(full Algorithm) (MACMode, bool) {
	switch full {
	case AlgCMAC:
		return MACModeCMAC, true
	case AlgCBCMAC:
		return MACModeCBCMAC, true
	}
	return 0, false
}

// MACSignSetup starts computing a MAC with key.
func (e *Engine) MACSignSetup(op *MACOperation, key KeyID, alg Algorithm) error {
	return e.macSetup(op, key, alg, false)
}

// MACVerifySetup starts checking a MAC with key.
func (e *Engine) MACVerifySetup(op *MACOperation, key KeyID, alg Algorithm) error {
	return e.macSetup(op, key, alg, true)
}

func (e *Engine) macSetup(op *MACOperation, id KeyID, alg Algorithm, verify bool) error {
	if op.Active() {
		return badState("MAC operation already active")
	}
	if !alg.IsMAC() {
		return invalidArgument("0x%08x is not a MAC algorithm", uint32(alg))
	}

	usage := UsageSignMessage
	if verify {
		usage = UsageVerifyMessage
	}
	key, err := e.resolveKey(id, usage, alg)
	if err != nil {
		return err
	}
	keep := false
	defer func() {
		if !keep {
			key.Release()
		}
	}()

	keyType := key.Attributes.Type
	if !macKeyCompatible(alg, keyType) {
		return invalidArgument("key type 0x%04x cannot be used with MAC 0x%08x", uint16(keyType), uint32(alg))
	}
	full := FullLengthMAC(alg)
	macLen := MACLength(keyType, alg)
	if macLen < MACMinSize {
		return notSupported("MAC length %d is below the minimum of %d", macLen, MACMinSize)
	}
	if macLen > MACLength(keyType, full) {
		return invalidArgument("MAC length %d exceeds the full length %d", macLen, MACLength(keyType, full))
	}

	var variant macVariant
	if full.IsHMAC() {
		hash := full.HMACHash()
		if !hashSupported(hash) {
			return notSupported("HMAC hash 0x%08x is not supported", uint32(hash))
		}
		hw, err := bind[HashDriver](e.registry, hashFamily(hash))
		if err != nil {
			return err
		}
		if err := hw.drv.SetHashType(hash); err != nil {
			hw.release()
			return e.driverError(err)
		}
		if err := hw.drv.SetupHMAC(key.Material); err != nil {
			hw.drv.Reset()
			hw.release()
			return e.driverError(err)
		}
		variant = &hmacState{hw: hw}
	} else {
		mode, ok := blockMACMode(full)
		if !ok {
			return notSupported("MAC 0x%08x is not supported", uint32(alg))
		}
		hw, err := bind[MACDriver](e.registry, FamilyAESMAC)
		if err != nil {
			return err
		}
		if verify {
			err = hw.drv.SetupVerify(mode, key.Material)
		} else {
			err = hw.drv.SetupSign(mode, key.Material)
		}
		if err != nil {
			hw.release()
			return e.driverError(err)
		}
		keep = true
		variant = &aesMACState{hw: hw, mode: mode, key: key}
	}

	op.alg = full
	op.macLen = macLen
	op.verify = verify
	op.variant = variant
	return nil
}

// Update feeds p to the MAC. Block cipher MACs hold the last block back so
// the engine can apply the final-block treatment at finish.
func (op *MACOperation) Update(p []byte) error {
	if !op.Active() {
		return badState("MAC operation not active")
	}
	if len(p) == 0 {
		return nil
	}

	var err error
	switch v := op.variant.(type) {
	case *hmacState:
		err = v.hw.drv.AddData(p)
	case *aesMACState:
		err = v.update(p)
	}
	if err != nil {
		op.reset()
		return mapDriverError(err)
	}
	return nil
}

func (s *aesMACState) update(p []byte) error {
	ready, middle, rest := s.buf.splitBlocks(p, true)
	if !ready {
		return nil
	}
	if err := s.hw.drv.AddData(s.buf.Bytes()); err != nil {
		return err
	}
	s.buf.Reset()
	if len(middle) > 0 {
		if err := s.hw.drv.AddData(middle); err != nil {
			return err
		}
	}
	s.buf.Set(rest)
	return nil
}

// SignFinish writes the MAC to out and returns its length. Bytes of out past
// the MAC are set to '!'. The operation is reset whatever the outcome.
func (op *MACOperation) SignFinish(out []byte) (int, error) {
	if !op.Active() || op.verify {
		return 0, badState("MAC sign operation not active")
	}
	defer op.reset()

	if len(out) < op.macLen {
		return 0, bufferTooSmall(op.macLen, len(out))
	}
	fillSentinel(out)

	var err error
	switch v := op.variant.(type) {
	case *hmacState:
		full := getBuffer(HashLength(op.alg.HMACHash()))
		err = v.hw.drv.FinalizeHMAC(*full)
		if err == nil {
			copy(out, (*full)[:op.macLen])
		}
		putBuffer(full)
	case *aesMACState:
		if v.buf.Len() == 0 {
			_ = v.hw.drv.Cancel()
			err = v.hw.drv.OneStepSign(v.mode, v.key.Material, nil, out[:op.macLen])
		} else {
			err = v.hw.drv.FinalizeSign(v.buf.Bytes(), out[:op.macLen])
		}
	}
	if err != nil {
		fillSentinel(out)
		return 0, mapDriverError(err)
	}
	return op.macLen, nil
}

// VerifyFinish checks mac against the MAC of the input. The operation is reset
// whatever the outcome.
func (op *MACOperation) VerifyFinish(mac []byte) error {
	if !op.Active() || !op.verify {
		return badState("MAC verify operation not active")
	}
	defer op.reset()

	if len(mac) != op.macLen {
		return invalidSignature("MAC length mismatch")
	}

	switch v := op.variant.(type) {
	case *hmacState:
		full := getBuffer(HashLength(op.alg.HMACHash()))
		defer putBuffer(full)
		if err := v.hw.drv.FinalizeHMAC(*full); err != nil {
			return mapDriverError(err)
		}
		if subtle.ConstantTimeCompare((*full)[:op.macLen], mac) != 1 {
			return invalidSignature("MAC mismatch")
		}
		return nil
	case *aesMACState:
		var err error
		if v.buf.Len() == 0 {
			_ = v.hw.drv.Cancel()
			err = v.hw.drv.OneStepVerify(v.mode, v.key.Material, nil, mac)
		} else {
			err = v.hw.drv.FinalizeVerify(v.buf.Bytes(), mac)
		}
		return mapDriverError(err)
	}
	return badState("MAC operation has no state")
}

// Abort resets op. It is safe on an inactive operation.
func (op *MACOperation) Abort() error {
	op.reset()
	return nil
}

// MACCompute computes the MAC of in with key.
func (e *Engine) MACCompute(key KeyID, alg Algorithm, in, out []byte) (int, error) {
	var op MACOperation
	if err := e.MACSignSetup(&op, key, alg); err != nil {
		return 0, err
	}
	if err := op.Update(in); err != nil {
		return 0, err
	}
	return op.SignFinish(out)
}

// MACVerify checks mac against the MAC of in with key.
func (e *Engine) MACVerify(key KeyID, alg Algorithm, in, mac []byte) error {
	var op MACOperation
	if err := e.MACVerifySetup(&op, key, alg); err != nil {
		return err
	}
	if err := op.Update(in); err != nil {
		return err
	}
	return op.VerifyFinish(mac)
}
