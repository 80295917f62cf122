// algorithms.go: Algorithm, key type, usage and lifetime identifiers
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

// Algorithm is a 32-bit PSA algorithm identifier. The category lives in bits
// 24-30; hash-parameterised families carry the hash in the low byte.
type Algorithm uint32

// KeyType is a 16-bit PSA key type identifier.
type KeyType uint16

// ECCFamily identifies an elliptic curve family inside an ECC key type.
type ECCFamily uint8

// Usage is a bitmask of permitted key usages.
type Usage uint32

// Lifetime encodes key persistence and location.
type Lifetime uint32

// KeyID is an opaque key handle.
type KeyID uint32

const (
	algCategoryMask     Algorithm = 0x7f000000
	algCategoryHash     Algorithm = 0x02000000
	algCategoryMAC      Algorithm = 0x03000000
	algCategoryCipher   Algorithm = 0x04000000
	algCategoryAEAD     Algorithm = 0x05000000
	algCategorySign     Algorithm = 0x06000000
	algCategoryAsymEnc  Algorithm = 0x07000000
	algCategoryKDF      Algorithm = 0x08000000
	algCategoryKeyAgree Algorithm = 0x09000000

	algHashMask Algorithm = 0x000000ff

	algMACSubcategoryMask Algorithm = 0x00c00000
	algHMACBase           Algorithm = 0x03800000
	algMACTruncationMask  Algorithm = 0x003f0000
	algMACTruncationShift           = 16
	algMACAtLeastFlag     Algorithm = 0x00008000
	algBlockCipherMACBase Algorithm = 0x03c00000

	algCipherStreamFlag Algorithm = 0x00800000

	algAEADTagLengthMask  Algorithm = 0x003f0000
	algAEADTagLengthShift           = 16
	algAEADAtLeastFlag    Algorithm = 0x00008000

	algECDSABase             Algorithm = 0x06000600
	algDeterministicECDSA    Algorithm = 0x06000700
	algECDSADeterministicBit Algorithm = 0x00000100
	algRSAPKCS1v15SignBase   Algorithm = 0x06000200
	algRSAPSSBase            Algorithm = 0x06000300
	algHashEdDSABase         Algorithm = 0x06000900

	algKeyAgreementMask Algorithm = 0xffff0000
	algKDFMask          Algorithm = 0xfe00ffff
	algHKDFBase         Algorithm = 0x08000100
)

// Hash algorithms
const (
	AlgNone       Algorithm = 0
	AlgSHA1       Algorithm = 0x02000005
	AlgSHA224     Algorithm = 0x02000008
	AlgSHA256     Algorithm = 0x02000009
	AlgSHA384     Algorithm = 0x0200000a
	AlgSHA512     Algorithm = 0x0200000b
	AlgSHA512_224 Algorithm = 0x0200000c
	AlgSHA512_256 Algorithm = 0x0200000d
	AlgSHA3_224   Algorithm = 0x02000010
	AlgSHA3_256   Algorithm = 0x02000011
	AlgSHA3_384   Algorithm = 0x02000012
	AlgSHA3_512   Algorithm = 0x02000013
	AlgAnyHash    Algorithm = 0x020000ff
)

// MAC, cipher and AEAD algorithms
const (
	AlgCBCMAC Algorithm = 0x03c00100
	AlgCMAC   Algorithm = 0x03c00200

	AlgCTR          Algorithm = 0x04c01000
	AlgCFB          Algorithm = 0x04c01100
	AlgOFB          Algorithm = 0x04c01200
	AlgECBNoPadding Algorithm = 0x04404400
	AlgCBCNoPadding Algorithm = 0x04404000
	AlgCBCPKCS7     Algorithm = 0x04404100
	AlgStreamCipher Algorithm = 0x04800100
	AlgXTS          Algorithm = 0x0440ff00

	AlgCCM              Algorithm = 0x05500100
	AlgGCM              Algorithm = 0x05500200
	AlgChaCha20Poly1305 Algorithm = 0x05100500
)

// Signature and key agreement algorithms
const (
	AlgPureEdDSA Algorithm = 0x06000800
	AlgECDH      Algorithm = 0x09020000
	AlgFFDH      Algorithm = 0x09010000
)

// HMAC returns the HMAC algorithm built on hash.
func HMAC(hash Algorithm) Algorithm {
	return algHMACBase | (hash & algHashMask)
}

// ECDSA returns the randomized ECDSA algorithm using hash.
func ECDSA(hash Algorithm) Algorithm {
	return algECDSABase | (hash & algHashMask)
}

// DeterministicECDSA returns the deterministic ECDSA algorithm using hash.
func DeterministicECDSA(hash Algorithm) Algorithm {
	return algDeterministicECDSA | (hash & algHashMask)
}

// RSAPKCS1v15Sign returns the PKCS#1 v1.5 signature algorithm using hash.
func RSAPKCS1v15Sign(hash Algorithm) Algorithm {
	return algRSAPKCS1v15SignBase | (hash & algHashMask)
}

// HKDF returns the HKDF key derivation algorithm using hash.
func HKDF(hash Algorithm) Algorithm {
	return algHKDFBase | (hash & algHashMask)
}

// KeyAgreement combines a raw key agreement with a key derivation.
func KeyAgreement(raw, kdf Algorithm) Algorithm {
	return raw | kdf
}

// TruncatedMAC returns mac truncated to length bytes.
func TruncatedMAC(mac Algorithm, length int) Algorithm {
	return (mac &^ (algMACTruncationMask | algMACAtLeastFlag)) |
		((Algorithm(length) << algMACTruncationShift) & algMACTruncationMask)
}

// FullLengthMAC strips truncation and at-least encoding from mac.
func FullLengthMAC(mac Algorithm) Algorithm {
	return mac &^ (algMACTruncationMask | algMACAtLeastFlag)
}

// AtLeastThisLengthMAC returns a wildcard MAC policy accepting any length >= minLength.
func AtLeastThisLengthMAC(mac Algorithm, minLength int) Algorithm {
	return TruncatedMAC(mac, minLength) | algMACAtLeastFlag
}

// AEADWithShortenedTag returns aead with a tag of tagLength bytes.
func AEADWithShortenedTag(aead Algorithm, tagLength int) Algorithm {
	return (aead &^ (algAEADTagLengthMask | algAEADAtLeastFlag)) |
		((Algorithm(tagLength) << algAEADTagLengthShift) & algAEADTagLengthMask)
}

// AEADWithAtLeastThisLengthTag returns a wildcard AEAD policy accepting tags >= minLength.
func AEADWithAtLeastThisLengthTag(aead Algorithm, minLength int) Algorithm {
	return AEADWithShortenedTag(aead, minLength) | algAEADAtLeastFlag
}

// AEADWithDefaultLengthTag maps any tag variant of a known AEAD back to its
// default-tag identifier. Unknown AEADs yield AlgNone.
func AEADWithDefaultLengthTag(aead Algorithm) Algorithm {
	base := AEADWithShortenedTag(aead, 0)
	for _, ref := range []Algorithm{AlgCCM, AlgGCM, AlgChaCha20Poly1305} {
		if base == AEADWithShortenedTag(ref, 0) {
			return ref
		}
	}
	return AlgNone
}

func (a Algorithm) category() Algorithm { return a & algCategoryMask }

// IsHash reports whether a is a hash algorithm.
func (a Algorithm) IsHash() bool { return a.category() == algCategoryHash }

// IsMAC reports whether a is a MAC algorithm.
func (a Algorithm) IsMAC() bool { return a.category() == algCategoryMAC }

// IsCipher reports whether a is an unauthenticated cipher algorithm.
func (a Algorithm) IsCipher() bool { return a.category() == algCategoryCipher }

// IsAEAD reports whether a is an AEAD algorithm.
func (a Algorithm) IsAEAD() bool { return a.category() == algCategoryAEAD }

// IsSign reports whether a is a signature algorithm.
func (a Algorithm) IsSign() bool { return a.category() == algCategorySign }

// IsAsymmetricEncryption reports whether a is an asymmetric encryption algorithm.
func (a Algorithm) IsAsymmetricEncryption() bool { return a.category() == algCategoryAsymEnc }

// IsKeyDerivation reports whether a is a key derivation algorithm.
func (a Algorithm) IsKeyDerivation() bool { return a.category() == algCategoryKDF }

// IsKeyAgreement reports whether a is a key agreement, raw or combined with a KDF.
func (a Algorithm) IsKeyAgreement() bool { return a.category() == algCategoryKeyAgree }

// IsHMAC reports whether a is an HMAC of any length.
func (a Algorithm) IsHMAC() bool {
	return a&(algCategoryMask|algMACSubcategoryMask) == algHMACBase
}

// IsBlockCipherMAC reports whether a is CMAC or CBC-MAC of any length.
func (a Algorithm) IsBlockCipherMAC() bool {
	return a&(algCategoryMask|algMACSubcategoryMask) == algBlockCipherMACBase
}

// IsStreamCipher reports whether a is a cipher that accepts partial blocks.
func (a Algorithm) IsStreamCipher() bool {
	return a.IsCipher() && a&algCipherStreamFlag != 0
}

// HMACHash returns the hash underlying an HMAC algorithm.
func (a Algorithm) HMACHash() Algorithm {
	return algCategoryHash | (a & algHashMask)
}

// MACTruncatedLength returns the encoded truncation, 0 for the default length.
func (a Algorithm) MACTruncatedLength() int {
	return int((a & algMACTruncationMask) >> algMACTruncationShift)
}

// AEADTagLength returns the tag length encoded in an AEAD identifier.
func (a Algorithm) AEADTagLength() int {
	if !a.IsAEAD() {
		return 0
	}
	return int((a & algAEADTagLengthMask) >> algAEADTagLengthShift)
}

// IsECDSA reports whether a is randomized or deterministic ECDSA.
func (a Algorithm) IsECDSA() bool {
	return a&^(algHashMask|algECDSADeterministicBit) == algECDSABase
}

// IsDeterministicECDSA reports whether a is deterministic ECDSA.
func (a Algorithm) IsDeterministicECDSA() bool {
	return a&^algHashMask == algDeterministicECDSA
}

func (a Algorithm) isRSAPKCS1v15Sign() bool { return a&^algHashMask == algRSAPKCS1v15SignBase }
func (a Algorithm) isRSAPSS() bool          { return a&^algHashMask == algRSAPSSBase }
func (a Algorithm) isHashEdDSA() bool       { return a&^algHashMask == algHashEdDSABase }

// IsHashAndSign reports whether a signs a hash computed with a parameter hash.
func (a Algorithm) IsHashAndSign() bool {
	return a.isRSAPSS() || a.isRSAPKCS1v15Sign() || a.IsECDSA() || a.isHashEdDSA()
}

// SignHash returns the hash parameter of a hash-and-sign algorithm, or AlgNone.
func (a Algorithm) SignHash() Algorithm {
	if !a.IsHashAndSign() || a&algHashMask == 0 {
		return AlgNone
	}
	return algCategoryHash | (a & algHashMask)
}

// KeyAgreementBase returns the raw key agreement part of a.
func (a Algorithm) KeyAgreementBase() Algorithm {
	return (a & algKeyAgreementMask) | algCategoryKeyAgree
}

// KeyAgreementKDF returns the key derivation part of a key agreement.
func (a Algorithm) KeyAgreementKDF() Algorithm {
	return (a & algKDFMask) | algCategoryKDF
}

// IsRawKeyAgreement reports whether a is a key agreement without a KDF.
func (a Algorithm) IsRawKeyAgreement() bool {
	return a.IsKeyAgreement() && a.KeyAgreementKDF() == algCategoryKDF
}

// IsWildcard reports whether a may only appear in a key policy.
func (a Algorithm) IsWildcard() bool {
	switch {
	case a.IsHashAndSign():
		return a.SignHash() == AlgAnyHash
	case a.IsMAC():
		return a&algMACAtLeastFlag != 0
	case a.IsAEAD():
		return a&algAEADAtLeastFlag != 0
	default:
		return a == AlgAnyHash
	}
}

// HashLength returns the digest size of a hash algorithm, 0 if unknown.
func HashLength(alg Algorithm) int {
	switch alg {
	case AlgSHA1:
		return 20
	case AlgSHA224, AlgSHA512_224, AlgSHA3_224:
		return 28
	case AlgSHA256, AlgSHA512_256, AlgSHA3_256:
		return 32
	case AlgSHA384, AlgSHA3_384:
		return 48
	case AlgSHA512, AlgSHA3_512:
		return 64
	}
	return 0
}

// HashBlockLength returns the compression block size of a hash algorithm.
func HashBlockLength(alg Algorithm) int {
	switch alg {
	case AlgSHA1, AlgSHA224, AlgSHA256:
		return 64
	case AlgSHA384, AlgSHA512, AlgSHA512_224, AlgSHA512_256:
		return 128
	case AlgSHA3_224:
		return 144
	case AlgSHA3_256:
		return 136
	case AlgSHA3_384:
		return 104
	case AlgSHA3_512:
		return 72
	}
	return 0
}

// Key types
const (
	KeyTypeNone     KeyType = 0x0000
	KeyTypeRawData  KeyType = 0x1001
	KeyTypeHMAC     KeyType = 0x1100
	KeyTypeDerive   KeyType = 0x1200
	KeyTypeAES      KeyType = 0x2400
	KeyTypeARIA     KeyType = 0x2406
	KeyTypeDES      KeyType = 0x2301
	KeyTypeCamellia KeyType = 0x2403
	KeyTypeChaCha20 KeyType = 0x2004

	keyTypeCategoryMask      KeyType = 0x7000
	keyTypeCategorySymmetric KeyType = 0x2000
	keyTypeCategoryPublic    KeyType = 0x4000
	keyTypeCategoryKeyPair   KeyType = 0x7000
	keyTypePairFlag          KeyType = 0x3000
	keyTypeECCPublicBase     KeyType = 0x4100
	keyTypeECCKeyPairBase    KeyType = 0x7100
	keyTypeECCCurveMask      KeyType = 0x00ff
)

// Elliptic curve families
const (
	ECCFamilySECPR1         ECCFamily = 0x12
	ECCFamilySECPK1         ECCFamily = 0x17
	ECCFamilyBrainpoolPR1   ECCFamily = 0x30
	ECCFamilyMontgomery     ECCFamily = 0x41
	ECCFamilyTwistedEdwards ECCFamily = 0x42
)

// KeyTypeECCKeyPair returns the key pair type of an ECC family.
func KeyTypeECCKeyPair(family ECCFamily) KeyType {
	return keyTypeECCKeyPairBase | KeyType(family)
}

// KeyTypeECCPublicKey returns the public key type of an ECC family.
func KeyTypeECCPublicKey(family ECCFamily) KeyType {
	return keyTypeECCPublicBase | KeyType(family)
}

// IsPublicKey reports whether t is an asymmetric public key.
func (t KeyType) IsPublicKey() bool { return t&keyTypeCategoryMask == keyTypeCategoryPublic }

// IsKeyPair reports whether t is an asymmetric key pair.
func (t KeyType) IsKeyPair() bool { return t&keyTypeCategoryMask == keyTypeCategoryKeyPair }

// IsSymmetric reports whether t is a block or stream cipher key.
func (t KeyType) IsSymmetric() bool { return t&keyTypeCategoryMask == keyTypeCategorySymmetric }

// PublicKeyOf returns the public key type matching a key pair type.
func (t KeyType) PublicKeyOf() KeyType { return t &^ keyTypePairFlag }

// IsECC reports whether t is an ECC public key or key pair.
func (t KeyType) IsECC() bool {
	return t.PublicKeyOf()&^keyTypeECCCurveMask == keyTypeECCPublicBase
}

// ECCFamily returns the curve family of an ECC key type.
func (t KeyType) ECCFamily() ECCFamily {
	if !t.IsECC() {
		return 0
	}
	return ECCFamily(t & keyTypeECCCurveMask)
}

// BlockLength returns the cipher block size for symmetric key types, 1 for
// stream ciphers and 0 for everything else.
func (t KeyType) BlockLength() int {
	if !t.IsSymmetric() {
		return 0
	}
	return 1 << ((t >> 8) & 7)
}

// Usage flags
const (
	UsageExport           Usage = 0x00000001
	UsageCopy             Usage = 0x00000002
	UsageCache            Usage = 0x00000004
	UsageEncrypt          Usage = 0x00000100
	UsageDecrypt          Usage = 0x00000200
	UsageSignMessage      Usage = 0x00000400
	UsageVerifyMessage    Usage = 0x00000800
	UsageSignHash         Usage = 0x00001000
	UsageVerifyHash       Usage = 0x00002000
	UsageDerive           Usage = 0x00004000
	UsageVerifyDerivation Usage = 0x00008000
)

// Lifetimes
const (
	LifetimeVolatile   Lifetime = 0x00000000
	LifetimePersistent Lifetime = 0x00000001
)

// IsVolatile reports whether keys with lifetime l live only in memory.
func (l Lifetime) IsVolatile() bool { return l&0xff == 0 }

// Key identifier ranges
const (
	KeyIDNull        KeyID = 0
	KeyIDUserMin     KeyID = 0x00000001
	KeyIDUserMax     KeyID = 0x3fffffff
	KeyIDVendorMin   KeyID = 0x40000000
	KeyIDVolatileMin KeyID = 0x7fff0000
	KeyIDVolatileMax KeyID = 0x7fffffff
)

// Block, IV, nonce and MAC size limits
const (
	BlockCipherBlockMaxSize = 16
	HashMaxSize             = 64
	MACMaxSize              = HashMaxSize
	MACMinSize              = 4
	CipherIVMaxSize         = 16
	AEADNonceMaxSize        = 13
	AEADTagMaxSize          = 16
	ccmNonceMinSize         = 7
	gcmNonceMinSize         = 1
	ccmDefaultNonceSize     = 13
	gcmDefaultNonceSize     = 12
)

// MACLength returns the MAC size of alg on a key of type keyType, 0 when the
// pair is not a MAC.
func MACLength(keyType KeyType, alg Algorithm) int {
	if n := alg.MACTruncatedLength(); n != 0 && alg.IsMAC() {
		return n
	}
	switch {
	case alg.IsHMAC():
		return HashLength(alg.HMACHash())
	case alg.IsBlockCipherMAC():
		return keyType.BlockLength()
	}
	return 0
}

// CipherIVLength returns the default IV size for a cipher on keyType.
func CipherIVLength(keyType KeyType, alg Algorithm) int {
	block := keyType.BlockLength()
	if block <= 1 {
		return 0
	}
	switch alg {
	case AlgCTR, AlgCFB, AlgOFB, AlgCBCNoPadding, AlgCBCPKCS7:
		return block
	}
	return 0
}

// AEADNonceLength returns the default nonce size of an AEAD algorithm.
func AEADNonceLength(keyType KeyType, alg Algorithm) int {
	if keyType.BlockLength() != BlockCipherBlockMaxSize {
		return 0
	}
	switch AEADWithDefaultLengthTag(alg) {
	case AlgCCM:
		return ccmDefaultNonceSize
	case AlgGCM:
		return gcmDefaultNonceSize
	}
	return 0
}

// HashSuspendAlgorithmFieldLength is the width of the algorithm prefix in a
// suspended hash state.
const HashSuspendAlgorithmFieldLength = 4

// HashSuspendInputLengthFieldLength returns the width of the input length field.
func HashSuspendInputLengthFieldLength(alg Algorithm) int {
	switch alg {
	case AlgSHA1, AlgSHA224, AlgSHA256:
		return 8
	case AlgSHA384, AlgSHA512, AlgSHA512_224, AlgSHA512_256:
		return 16
	}
	return 0
}

// HashSuspendHashStateFieldLength returns the width of the chaining state field.
func HashSuspendHashStateFieldLength(alg Algorithm) int {
	switch alg {
	case AlgSHA1:
		return 20
	case AlgSHA224, AlgSHA256:
		return 32
	case AlgSHA384, AlgSHA512, AlgSHA512_224, AlgSHA512_256:
		return 64
	}
	return 0
}

// HashSuspendOutputSize returns the largest suspended state for alg: every
// field plus a tail of one byte short of a full block.
func HashSuspendOutputSize(alg Algorithm) int {
	lenField := HashSuspendInputLengthFieldLength(alg)
	if lenField == 0 {
		return 0
	}
	return HashSuspendAlgorithmFieldLength + lenField + HashSuspendHashStateFieldLength(alg) + HashBlockLength(alg) - 1
}
