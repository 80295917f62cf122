// asymmetric.go: ECDSA signatures and raw ECDH key agreement
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

func signHashSupported(hash Algorithm) bool {
	switch hash {
	case AlgSHA256, AlgSHA384, AlgSHA512:
		return true
	}
	return false
}

// signatureParams validates a signature request and returns the curve size in
// bytes. Only randomized ECDSA on SECP-R1 curves is implemented.
func signatureParams(attrs *KeyAttributes, alg Algorithm) (int, error) {
	if !alg.IsECDSA() {
		return 0, notSupported("signature algorithm 0x%08x is not supported", uint32(alg))
	}
	if alg.IsDeterministicECDSA() {
		return 0, notSupported("deterministic ECDSA is not supported")
	}
	if !signHashSupported(alg.SignHash()) {
		return 0, notSupported("ECDSA hash 0x%08x is not supported", uint32(alg.SignHash()))
	}
	if !attrs.Type.IsECC() || attrs.Type.ECCFamily() != ECCFamilySECPR1 {
		return 0, notSupported("ECDSA requires a SECP-R1 key, got type 0x%04x", uint16(attrs.Type))
	}
	n := eccCurveBytes(ECCFamilySECPR1, attrs.Bits)
	if n == 0 {
		return 0, notSupported("curve size %d is not supported", attrs.Bits)
	}
	return n, nil
}

// SignHash signs a precomputed hash with an ECC key pair. The signature is
// r || s.
func (e *Engine) SignHash(key KeyID, alg Algorithm, hash, sig []byte) (int, error) {
	return e.sign(key, UsageSignHash, alg, hash, false, sig)
}

// SignMessage hashes msg with the hash of alg and signs the digest.
func (e *Engine) SignMessage(key KeyID, alg Algorithm, msg, sig []byte) (int, error) {
	return e.sign(key, UsageSignMessage, alg, msg, true, sig)
}

func (e *Engine) sign(id KeyID, usage Usage, alg Algorithm, input []byte, isMessage bool, sig []byte) (int, error) {
	if !alg.IsSign() {
		return 0, invalidArgument("0x%08x is not a signature algorithm", uint32(alg))
	}
	key, err := e.resolveKey(id, usage, alg)
	if err != nil {
		return 0, err
	}
	defer key.Release()

	if !key.Attributes.Type.IsKeyPair() {
		return 0, invalidArgument("signing requires a key pair")
	}
	n, err := signatureParams(&key.Attributes, alg)
	if err != nil {
		return 0, err
	}

	var digest [HashMaxSize]byte
	hashLen, err := e.signDigest(alg, input, isMessage, digest[:])
	if err != nil {
		return 0, err
	}
	if len(sig) < 2*n {
		return 0, bufferTooSmall(2*n, len(sig))
	}

	hw, err := bind[ECDriver](e.registry, FamilyEC)
	if err != nil {
		return 0, err
	}
	defer hw.release()

	fillSentinel(sig)
	if err := hw.drv.Sign(ECCFamilySECPR1, key.Attributes.Bits, key.Material, digest[:hashLen], sig[:2*n]); err != nil {
		fillSentinel(sig)
		return 0, e.driverError(err)
	}
	return 2 * n, nil
}

// signDigest hashes a message, or checks that a caller-provided hash has the
// length of the hash of alg.
func (e *Engine) signDigest(alg Algorithm, input []byte, isMessage bool, digest []byte) (int, error) {
	hashAlg := alg.SignHash()
	if isMessage {
		return e.HashCompute(hashAlg, input, digest)
	}
	if len(input) != HashLength(hashAlg) {
		return 0, invalidArgument("hash is %d bytes, expected %d", len(input), HashLength(hashAlg))
	}
	return copy(digest, input), nil
}

// VerifyHash checks an r || s signature over a precomputed hash.
func (e *Engine) VerifyHash(key KeyID, alg Algorithm, hash, sig []byte) error {
	return e.verify(key, UsageVerifyHash, alg, hash, false, sig)
}

// VerifyMessage hashes msg with the hash of alg and checks the signature.
func (e *Engine) VerifyMessage(key KeyID, alg Algorithm, msg, sig []byte) error {
	return e.verify(key, UsageVerifyMessage, alg, msg, true, sig)
}

func (e *Engine) verify(id KeyID, usage Usage, alg Algorithm, input []byte, isMessage bool, sig []byte) error {
	if !alg.IsSign() {
		return invalidArgument("0x%08x is not a signature algorithm", uint32(alg))
	}
	key, err := e.resolveKey(id, usage, alg)
	if err != nil {
		return err
	}
	defer key.Release()

	n, err := signatureParams(&key.Attributes, alg)
	if err != nil {
		return err
	}
	var digest [HashMaxSize]byte
	hashLen, err := e.signDigest(alg, input, isMessage, digest[:])
	if err != nil {
		return err
	}
	if len(sig) != 2*n {
		return invalidSignature("signature length mismatch")
	}

	hw, err := bind[ECDriver](e.registry, FamilyEC)
	if err != nil {
		return err
	}
	defer hw.release()

	pub := key.Material
	if key.Attributes.Type.IsKeyPair() {
		buf := getBuffer(eccPublicKeyLength(ECCFamilySECPR1, key.Attributes.Bits))
		defer putBuffer(buf)
		if err := hw.drv.GeneratePublic(ECCFamilySECPR1, key.Attributes.Bits, key.Material, *buf); err != nil {
			return e.driverError(err)
		}
		pub = *buf
	}
	return e.driverError(hw.drv.Verify(ECCFamilySECPR1, key.Attributes.Bits, pub, digest[:hashLen], sig))
}

// RawKeyAgreement computes the ECDH shared secret between a private key and a
// peer public key. Weierstrass peers are uncompressed points, Montgomery peers
// are 32-byte u-coordinates.
func (e *Engine) RawKeyAgreement(alg Algorithm, key KeyID, peer, out []byte) (int, error) {
	if !alg.IsKeyAgreement() {
		return 0, invalidArgument("0x%08x is not a key agreement", uint32(alg))
	}
	if !alg.IsRawKeyAgreement() {
		return 0, notSupported("key agreement into a key derivation is not supported")
	}
	if alg != AlgECDH {
		return 0, invalidArgument("only ECDH is supported, got 0x%08x", uint32(alg))
	}

	k, err := e.resolveKey(key, UsageDerive, alg)
	if err != nil {
		return 0, err
	}
	defer k.Release()

	t := k.Attributes.Type
	if !t.IsECC() || !t.IsKeyPair() {
		return 0, invalidArgument("key agreement requires an ECC key pair")
	}
	family, bits := t.ECCFamily(), k.Attributes.Bits
	n := eccCurveBytes(family, bits)
	if n == 0 {
		return 0, notSupported("curve family 0x%02x size %d is not supported", uint8(family), bits)
	}
	switch family {
	case ECCFamilyMontgomery:
		if len(peer) != n {
			return 0, invalidArgument("peer key must be %d bytes", n)
		}
	default:
		if len(peer) != 2*n+1 || peer[0] != 0x04 {
			return 0, invalidArgument("peer key must be an uncompressed %d byte point", 2*n+1)
		}
	}
	if len(out) < n {
		return 0, bufferTooSmall(n, len(out))
	}

	hw, err := bind[ECDriver](e.registry, FamilyEC)
	if err != nil {
		return 0, err
	}
	defer hw.release()
	if err := hw.drv.Agree(family, bits, k.Material, peer, out[:n]); err != nil {
		clearBuffer(out[:n])
		return 0, e.driverError(err)
	}
	return n, nil
}
