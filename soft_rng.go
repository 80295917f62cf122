// soft_rng.go: Software entropy source and default driver set
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
)

// softTRNG reads from crypto/rand.
type softTRNG struct {
	open   bool
	reader io.Reader
}

// NewSoftTRNG returns an entropy source backed by crypto/rand.
func NewSoftTRNG() EntropySource {
	return &softTRNG{reader: rand.Reader}
}

func (d *softTRNG) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return driverErr(string(FamilyTRNG), "open", StatusResourceUnavailable, err)
	}
	d.open = true
	return nil
}

func (d *softTRNG) Close() error {
	d.open = false
	return nil
}

func (d *softTRNG) GetEntropy(out []byte) error {
	if !d.open {
		return driverErr(string(FamilyTRNG), "get-entropy", StatusResourceUnavailable, nil)
	}
	if _, err := io.ReadFull(d.reader, out); err != nil {
		return driverErr(string(FamilyTRNG), "get-entropy", StatusEntropy, err)
	}
	return nil
}

// softDriverSet lists the software constructor of every family.
var softDriverSet = []struct {
	family Family
	build  func() Driver
}{
	{FamilySHA2, func() Driver { return NewSoftSHA2() }},
	{FamilySHA3, func() Driver { return NewSoftSHA3() }},
	{FamilyAESECB, func() Driver { return NewSoftAESECB() }},
	{FamilyAESCBC, func() Driver { return NewSoftAESCBC() }},
	{FamilyAESCTR, func() Driver { return NewSoftAESCTR() }},
	{FamilyAESMAC, func() Driver { return NewSoftAESMAC() }},
	{FamilyAESCCM, func() Driver { return NewSoftAESCCM() }},
	{FamilyAESGCM, func() Driver { return NewSoftAESGCM() }},
	{FamilyTRNG, func() Driver { return NewSoftTRNG() }},
	{FamilyEC, func() Driver { return NewSoftEC() }},
}

// RegisterSoftwareDrivers registers counts[family] software instances of every
// family. A family missing from counts gets one instance; zero disables it.
func RegisterSoftwareDrivers(reg *Registry, counts map[Family]int) error {
	for _, entry := range softDriverSet {
		n, ok := counts[entry.family]
		if !ok {
			n = 1
		}
		for i := 0; i < n; i++ {
			if err := reg.RegisterDriver(entry.family, entry.build()); err != nil {
				return fmt.Errorf("failed to register software %s driver: %w", entry.family, err)
			}
		}
	}
	return nil
}
