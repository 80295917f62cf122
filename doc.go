// Package psa provides a policy-enforcing cryptographic engine with multi-call
// ("segmented") operations on top of pluggable hardware primitive drivers.
//
// The package offers:
//   - Key usage and algorithm policy matching, including wildcard policies
//   - Multi-call hashing with suspend and resume of SHA-2 state
//   - HMAC, CMAC and CBC-MAC with incremental input
//   - AES in ECB, CBC and CTR modes with incremental input
//   - AES-CCM and AES-GCM authenticated encryption with incremental input
//   - ECDSA signatures and raw ECDH key agreement
//   - Volatile and persistent key storage
//
// Every primitive runs on a driver instance taken from a Registry. The package
// ships a software driver for each family, so an Engine works out of the box;
// hardware-backed drivers register through the same interfaces.
//
// # Quick Start
//
//	engine, err := psa.New(nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	var attrs psa.KeyAttributes
//	attrs.SetKeyType(psa.KeyTypeAES)
//	attrs.SetKeyBits(128)
//	attrs.SetKeyUsageFlags(psa.UsageEncrypt | psa.UsageDecrypt)
//	attrs.SetKeyAlgorithm(psa.AlgGCM)
//
//	key, err := engine.GenerateKey(&attrs)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	nonce := make([]byte, 12)
//	_ = engine.GenerateRandom(nonce)
//	out := make([]byte, len(plaintext)+16)
//	n, err := engine.AEADEncrypt(key, psa.AlgGCM, nonce, ad, plaintext, out)
//
// # Multi-call Operations
//
// Operation contexts are plain values owned by the caller. The zero value is
// inactive; a setup call binds it to a driver instance, and finish, verify or
// abort always return it to the zero value:
//
//	var op psa.MACOperation
//	if err := engine.MACSignSetup(&op, key, psa.HMAC(psa.AlgSHA256)); err != nil {
//		return err
//	}
//	for _, chunk := range chunks {
//		if err := op.Update(chunk); err != nil {
//			return err
//		}
//	}
//	n, err := op.SignFinish(mac)
//
// A driver instance serves one operation at a time. Setting up a second
// operation on a family whose instances are all bound fails with ErrBadState.
//
// # Errors
//
// Every error wraps one of the package sentinels (ErrInvalidArgument,
// ErrNotPermitted, ErrBadState, ...) and a go-errors rich error carrying a
// stable code:
//
//	if errors.Is(err, psa.ErrInvalidSignature) {
//		// tag or MAC mismatch
//	}
//
// # Configuration
//
// Config is loaded from TOML:
//
//	[features]
//	hash_suspend = true
//
//	[keystore]
//	path = "/var/lib/psa/keys"
//
//	[hardware]
//	aes_gcm = 2
//	operation_timeout = "5s"
//
//	[log]
//	verbosity = 1
//	label = "psa"
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package psa
