// soft_ec.go: Software elliptic curve engine
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"context"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"math/big"

	"golang.org/x/crypto/curve25519"
)

// softEC implements ECDSA and ECDH on the NIST prime curves through the
// standard library, and X25519 through x/crypto/curve25519.
type softEC struct {
	open bool
}

// NewSoftEC returns a software elliptic curve driver.
func NewSoftEC() ECDriver {
	return &softEC{}
}

func (d *softEC) fail(op string, status DriverStatus, cause error) error {
	return driverErr(string(FamilyEC), op, status, cause)
}

func (d *softEC) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return d.fail("open", StatusResourceUnavailable, err)
	}
	d.open = true
	return nil
}

func (d *softEC) Close() error {
	d.open = false
	return nil
}

func weierstrassCurve(bits int) (ecdh.Curve, elliptic.Curve) {
	switch bits {
	case 256:
		return ecdh.P256(), elliptic.P256()
	case 384:
		return ecdh.P384(), elliptic.P384()
	case 521:
		return ecdh.P521(), elliptic.P521()
	}
	return nil, nil
}

// ecdsaKey rebuilds an ecdsa.PrivateKey from a raw scalar.
func (d *softEC) ecdsaKey(op string, bits int, priv []byte) (*ecdsa.PrivateKey, error) {
	kx, curve := weierstrassCurve(bits)
	if kx == nil {
		return nil, d.fail(op, StatusUnsupported, nil)
	}
	sk, err := kx.NewPrivateKey(priv)
	if err != nil {
		return nil, d.fail(op, StatusInvalidKey, err)
	}
	pub := sk.PublicKey().Bytes()
	n := (len(pub) - 1) / 2
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: curve,
			X:     new(big.Int).SetBytes(pub[1 : 1+n]),
			Y:     new(big.Int).SetBytes(pub[1+n:]),
		},
		D: new(big.Int).SetBytes(priv),
	}, nil
}

// Sign writes r||s, each left-padded to the curve size.
func (d *softEC) Sign(family ECCFamily, bits int, priv, digest, sig []byte) error {
	if !d.open {
		return d.fail("sign", StatusResourceUnavailable, nil)
	}
	if family != ECCFamilySECPR1 {
		return d.fail("sign", StatusUnsupported, nil)
	}
	n := eccCurveBytes(family, bits)
	if len(sig) != 2*n {
		return d.fail("sign", StatusInvalidInput, nil)
	}
	key, err := d.ecdsaKey("sign", bits, priv)
	if err != nil {
		return err
	}
	r, s, err := ecdsa.Sign(rand.Reader, key, digest)
	key.D.SetInt64(0)
	if err != nil {
		return d.fail("sign", StatusError, err)
	}
	r.FillBytes(sig[:n])
	s.FillBytes(sig[n:])
	return nil
}

func (d *softEC) Verify(family ECCFamily, bits int, pub, digest, sig []byte) error {
	if !d.open {
		return d.fail("verify", StatusResourceUnavailable, nil)
	}
	if family != ECCFamilySECPR1 {
		return d.fail("verify", StatusUnsupported, nil)
	}
	kx, curve := weierstrassCurve(bits)
	if kx == nil {
		return d.fail("verify", StatusUnsupported, nil)
	}
	if _, err := kx.NewPublicKey(pub); err != nil {
		return d.fail("verify", StatusInvalidPoint, err)
	}
	n := eccCurveBytes(family, bits)
	if len(sig) != 2*n {
		return d.fail("verify", StatusMACInvalid, nil)
	}
	key := &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(pub[1 : 1+n]),
		Y:     new(big.Int).SetBytes(pub[1+n:]),
	}
	r := new(big.Int).SetBytes(sig[:n])
	s := new(big.Int).SetBytes(sig[n:])
	if !ecdsa.Verify(key, digest, r, s) {
		return d.fail("verify", StatusMACInvalid, nil)
	}
	return nil
}

func (d *softEC) GeneratePublic(family ECCFamily, bits int, priv, pub []byte) error {
	if !d.open {
		return d.fail("generate-public", StatusResourceUnavailable, nil)
	}
	if len(pub) != eccPublicKeyLength(family, bits) {
		return d.fail("generate-public", StatusInvalidInput, nil)
	}

	switch family {
	case ECCFamilyMontgomery:
		point, err := curve25519.X25519(priv, curve25519.Basepoint)
		if err != nil {
			return d.fail("generate-public", StatusInvalidKey, err)
		}
		copy(pub, point)
		return nil

	case ECCFamilySECPR1:
		kx, _ := weierstrassCurve(bits)
		if kx == nil {
			return d.fail("generate-public", StatusUnsupported, nil)
		}
		sk, err := kx.NewPrivateKey(priv)
		if err != nil {
			return d.fail("generate-public", StatusInvalidKey, err)
		}
		copy(pub, sk.PublicKey().Bytes())
		return nil
	}
	return d.fail("generate-public", StatusUnsupported, nil)
}

// Agree computes the raw shared secret: the x-coordinate for Weierstrass
// curves, the u-coordinate for X25519.
func (d *softEC) Agree(family ECCFamily, bits int, priv, peer, shared []byte) error {
	if !d.open {
		return d.fail("agree", StatusResourceUnavailable, nil)
	}
	if len(shared) != eccCurveBytes(family, bits) {
		return d.fail("agree", StatusInvalidInput, nil)
	}

	switch family {
	case ECCFamilyMontgomery:
		secret, err := curve25519.X25519(priv, peer)
		if err != nil {
			return d.fail("agree", StatusInvalidPoint, err)
		}
		copy(shared, secret)
		Zeroize(secret)
		return nil

	case ECCFamilySECPR1:
		kx, _ := weierstrassCurve(bits)
		if kx == nil {
			return d.fail("agree", StatusUnsupported, nil)
		}
		sk, err := kx.NewPrivateKey(priv)
		if err != nil {
			return d.fail("agree", StatusInvalidKey, err)
		}
		pk, err := kx.NewPublicKey(peer)
		if err != nil {
			return d.fail("agree", StatusInvalidPoint, err)
		}
		secret, err := sk.ECDH(pk)
		if err != nil {
			return d.fail("agree", StatusInvalidPoint, err)
		}
		copy(shared, secret)
		Zeroize(secret)
		return nil
	}
	return d.fail("agree", StatusUnsupported, nil)
}
