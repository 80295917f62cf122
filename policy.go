// policy.go: Key usage and algorithm policy matching
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

// KeyPolicy is the usage policy attached to a key: a usage bitmask and up to
// two permitted algorithms. A zero algorithm slot permits nothing.
type KeyPolicy struct {
	Usage Usage
	Alg   Algorithm
	Alg2  Algorithm
}

// macKeyCompatible reports whether keyType can drive the MAC family of alg.
// HMAC accepts HMAC and raw data keys; every other MAC is an AES block cipher MAC.
func macKeyCompatible(alg Algorithm, keyType KeyType) bool {
	if alg.IsHMAC() {
		return keyType == KeyTypeHMAC || keyType == KeyTypeRawData
	}
	if alg.IsMAC() {
		return keyType == KeyTypeAES
	}
	return false
}

// AlgorithmPermits reports whether a single policy algorithm slot permits the
// concrete requested algorithm for a key of type keyType.
func AlgorithmPermits(keyType KeyType, policyAlg, requestedAlg Algorithm) bool {
	switch {
	case requestedAlg == policyAlg:
		return true

	case requestedAlg.IsHashAndSign() && policyAlg.SignHash() == AlgAnyHash:
		return policyAlg&^algHashMask == requestedAlg&^algHashMask

	case policyAlg.IsAEAD() && requestedAlg.IsAEAD() &&
		AEADWithShortenedTag(policyAlg, 0) == AEADWithShortenedTag(requestedAlg, 0) &&
		policyAlg&algAEADAtLeastFlag != 0:
		return policyAlg.AEADTagLength() <= requestedAlg.AEADTagLength()

	case policyAlg.IsMAC() && requestedAlg.IsMAC() &&
		FullLengthMAC(policyAlg) == FullLengthMAC(requestedAlg):
		return macLengthPermits(keyType, policyAlg, requestedAlg)

	case policyAlg.IsRawKeyAgreement() && requestedAlg.IsKeyAgreement():
		return requestedAlg.KeyAgreementBase() == policyAlg
	}
	return false
}

func macLengthPermits(keyType KeyType, policyAlg, requestedAlg Algorithm) bool {
	if !macKeyCompatible(policyAlg, keyType) {
		return false
	}

	requested := MACLength(keyType, requestedAlg)
	full := MACLength(keyType, FullLengthMAC(requestedAlg))
	policyLen := policyAlg.MACTruncatedLength()

	switch {
	case policyLen == 0:
		return requested == full
	case requestedAlg.MACTruncatedLength() == 0 && policyLen == full:
		return true
	case policyAlg&algMACAtLeastFlag != 0:
		return policyLen <= requested
	}
	return false
}

// PolicyPermits checks a concrete algorithm against both algorithm slots of a
// policy. Usage bits are checked separately by the caller.
func PolicyPermits(policy KeyPolicy, keyType KeyType, alg Algorithm) error {
	if alg == AlgNone {
		return invalidArgument("algorithm must not be zero")
	}
	if alg.IsWildcard() {
		return invalidArgument("wildcard algorithm 0x%08x cannot be requested", uint32(alg))
	}
	if AlgorithmPermits(keyType, policy.Alg, alg) || AlgorithmPermits(keyType, policy.Alg2, alg) {
		return nil
	}
	return notPermitted("key policy does not permit algorithm 0x%08x", uint32(alg))
}

// checkKeyPolicy enforces usage first, then the algorithm slots. Public keys
// are always exportable. A zero alg skips the algorithm check.
func checkKeyPolicy(attrs *KeyAttributes, usage Usage, alg Algorithm) error {
	if attrs.Type.IsPublicKey() {
		usage &^= UsageExport
	}
	if attrs.Usage&usage != usage {
		return notPermitted("key usage 0x%08x lacks required 0x%08x", uint32(attrs.Usage), uint32(usage))
	}
	if alg == AlgNone {
		return nil
	}
	return PolicyPermits(attrs.Policy(), attrs.Type, alg)
}
