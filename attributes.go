// attributes.go: Key attributes and their setters
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

// KeyAttributes describes a key: identity, lifetime, type, size and policy.
// The zero value describes a volatile key with no permitted usage.
type KeyAttributes struct {
	ID       KeyID     `json:"id"`
	Lifetime Lifetime  `json:"lifetime"`
	Type     KeyType   `json:"type"`
	Bits     int       `json:"bits"`
	Usage    Usage     `json:"usage"`
	Alg      Algorithm `json:"alg"`
	Alg2     Algorithm `json:"alg2,omitempty"`
}

// Policy returns the usage policy carried by the attributes.
func (a *KeyAttributes) Policy() KeyPolicy {
	return KeyPolicy{Usage: a.Usage, Alg: a.Alg, Alg2: a.Alg2}
}

// SetKeyID assigns a persistent identifier. A volatile lifetime is promoted to
// persistent, since only persistent keys carry caller-chosen identifiers.
func (a *KeyAttributes) SetKeyID(id KeyID) {
	a.ID = id
	if a.Lifetime.IsVolatile() {
		a.Lifetime = LifetimePersistent
	}
}

// SetKeyLifetime sets the lifetime. Making a key volatile clears its identifier.
func (a *KeyAttributes) SetKeyLifetime(lifetime Lifetime) {
	a.Lifetime = lifetime
	if lifetime.IsVolatile() {
		a.ID = KeyIDNull
	}
}

func (a *KeyAttributes) SetKeyType(t KeyType) {
	a.Type = t
}

func (a *KeyAttributes) SetKeyBits(bits int) {
	a.Bits = bits
}

func (a *KeyAttributes) SetKeyUsageFlags(usage Usage) {
	a.Usage = usage
}

// SetKeyAlgorithm sets the primary permitted algorithm.
func (a *KeyAttributes) SetKeyAlgorithm(alg Algorithm) {
	a.Alg = alg
}

// ResetKeyAttributes returns the attributes to the zero value.
func (a *KeyAttributes) ResetKeyAttributes() {
	*a = KeyAttributes{}
}
