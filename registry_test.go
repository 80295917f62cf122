// registry_test.go: Hardware instance registry tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDriver is a TRNG instance that counts its lifecycle calls.
type recordingDriver struct {
	opens, closes int
	openErr       error
	deadline      bool
}

func (d *recordingDriver) Open(ctx context.Context) error {
	d.opens++
	_, d.deadline = ctx.Deadline()
	return d.openErr
}

func (d *recordingDriver) Close() error {
	d.closes++
	return nil
}

func (d *recordingDriver) GetEntropy(out []byte) error {
	for i := range out {
		out[i] = 0xa5
	}
	return nil
}

func newTestRegistry() *Registry {
	return NewRegistry(&RegistryConfig{OperationTimeout: time.Second}, nil, NewLogger("psa-test"))
}

func TestRegisterDriver(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()

	drv := &recordingDriver{}
	require.NoError(t, r.RegisterDriver(FamilyTRNG, drv))
	assert.Equal(t, 1, drv.opens)
	assert.True(t, drv.deadline, "Open runs under the operation timeout")
	assert.Equal(t, 1, r.Instances(FamilyTRNG))
	assert.Equal(t, 0, r.Instances(FamilyEC))
	assert.Nil(t, r.PluginManager())

	assert.ErrorIs(t, r.RegisterDriver(FamilyTRNG, nil), ErrRegistryNilDriver)
	assert.ErrorIs(t, r.RegisterDriver(FamilyAESGCM, &recordingDriver{}), ErrRegistryDriverType)
	assert.ErrorIs(t, r.RegisterDriver(Family("unknown"), &recordingDriver{}), ErrRegistryDriverType)

	failing := &recordingDriver{openErr: errors.New("no device")}
	assert.Error(t, r.RegisterDriver(FamilyTRNG, failing))
	assert.Equal(t, 1, r.Instances(FamilyTRNG), "a driver that fails to open is not registered")
}

func TestRegistryWithoutTimeout(t *testing.T) {
	r := NewRegistry(&RegistryConfig{}, nil, nil)
	defer r.Close()

	drv := &recordingDriver{}
	require.NoError(t, r.RegisterDriver(FamilyTRNG, drv))
	assert.False(t, drv.deadline)
}

func TestRegistryBinding(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()

	_, err := bind[EntropySource](r, FamilyTRNG)
	assert.ErrorIs(t, err, ErrNotSupported)

	require.NoError(t, r.RegisterDriver(FamilyTRNG, &recordingDriver{}))
	require.NoError(t, r.RegisterDriver(FamilyTRNG, &recordingDriver{}))

	first, err := bind[EntropySource](r, FamilyTRNG)
	require.NoError(t, err)
	second, err := bind[EntropySource](r, FamilyTRNG)
	require.NoError(t, err)
	assert.NotSame(t, first.inst, second.inst)

	_, err = bind[EntropySource](r, FamilyTRNG)
	assert.ErrorIs(t, err, ErrBadState, "every instance is bound")

	first.release()
	assert.False(t, first.active())
	first.release()

	third, err := bind[EntropySource](r, FamilyTRNG)
	require.NoError(t, err)
	assert.True(t, third.active())
	third.release()
	second.release()

	// Narrowing to the wrong contract hands the instance back.
	_, err = bind[ECDriver](r, FamilyTRNG)
	assert.ErrorIs(t, err, ErrNotSupported)
	again, err := bind[EntropySource](r, FamilyTRNG)
	require.NoError(t, err)
	again.release()
}

func TestRegistryReopen(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()

	drv := &recordingDriver{}
	require.NoError(t, r.RegisterDriver(FamilyTRNG, drv))

	b, err := bind[EntropySource](r, FamilyTRNG)
	require.NoError(t, err)
	require.NoError(t, b.reopen())
	assert.Equal(t, 2, drv.opens)
	assert.Equal(t, 1, drv.closes)

	drv.openErr = errors.New("stuck")
	assert.Error(t, b.reopen())
	b.release()

	var empty binding[EntropySource]
	assert.NoError(t, empty.reopen())
}

func TestRegistryClose(t *testing.T) {
	r := newTestRegistry()
	a, b := &recordingDriver{}, &recordingDriver{}
	require.NoError(t, r.RegisterDriver(FamilyTRNG, a))
	require.NoError(t, r.RegisterDriver(FamilyTRNG, b))

	require.NoError(t, r.Close())
	assert.Equal(t, 1, a.closes)
	assert.Equal(t, 1, b.closes)
	require.NoError(t, r.Close())
	assert.Equal(t, 1, a.closes, "a second Close is a no-op")

	assert.ErrorIs(t, r.RegisterDriver(FamilyTRNG, &recordingDriver{}), ErrRegistryClosed)
	_, err := bind[EntropySource](r, FamilyTRNG)
	assert.ErrorIs(t, err, ErrBadState)
	assert.Equal(t, 0, r.Instances(FamilyTRNG))
}

func TestRegistryConcurrentBinding(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()
	const instances = 4
	for i := 0; i < instances; i++ {
		require.NoError(t, r.RegisterDriver(FamilyTRNG, &recordingDriver{}))
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		held int
		peak int
	)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b, err := bind[EntropySource](r, FamilyTRNG)
				if err != nil {
					assert.ErrorIs(t, err, ErrBadState)
					continue
				}
				mu.Lock()
				held++
				if held > peak {
					peak = held
				}
				mu.Unlock()

				mu.Lock()
				held--
				mu.Unlock()
				b.release()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, instances)
	assert.Equal(t, 0, held)
	for i := 0; i < instances; i++ {
		b, err := bind[EntropySource](r, FamilyTRNG)
		require.NoError(t, err, "every instance is free again")
		defer b.release()
	}
}

func TestRegisterSoftwareDrivers(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()

	require.NoError(t, RegisterSoftwareDrivers(r, map[Family]int{FamilyAESGCM: 3, FamilyEC: 0}))
	assert.Equal(t, 3, r.Instances(FamilyAESGCM))
	assert.Equal(t, 0, r.Instances(FamilyEC))
	assert.Equal(t, 1, r.Instances(FamilySHA2), "missing families get one instance")
}

func TestEngineReportsBusyFamily(t *testing.T) {
	e := newTestEngine(t)
	key := importKey(t, e, KeyTypeAES, UsageEncrypt, AlgGCM, pattern(16))

	var first, second AEADOperation
	require.NoError(t, e.AEADEncryptSetup(&first, key, AlgGCM))
	assert.ErrorIs(t, e.AEADEncryptSetup(&second, key, AlgGCM), ErrBadState)
	require.NoError(t, first.Abort())
	require.NoError(t, e.AEADEncryptSetup(&second, key, AlgGCM))
	require.NoError(t, second.Abort())
}
