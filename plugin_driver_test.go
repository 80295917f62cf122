// plugin_driver_test.go: Plugin-backed primitive instance tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goplugins "github.com/agilira/go-plugins"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// entropyPlugin answers get-entropy requests with a fixed byte.
type entropyPlugin struct {
	name   string
	fill   byte
	status DriverStatus
	short  bool
	err    error

	mu       sync.Mutex
	requests []DriverRequest
}

func (p *entropyPlugin) Info() goplugins.PluginInfo {
	return goplugins.PluginInfo{Name: p.name, Version: "1.0.0"}
}

func (p *entropyPlugin) Execute(ctx context.Context, execCtx goplugins.ExecutionContext, req DriverRequest) (DriverResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.err != nil {
		return DriverResponse{}, p.err
	}
	if p.status != 0 {
		return DriverResponse{Status: p.status, Error: "device reported " + p.status.String()}, nil
	}
	n, _ := req.Parameters["length"].(int)
	if p.short {
		n--
	}
	return DriverResponse{Data: bytes.Repeat([]byte{p.fill}, n)}, nil
}

func (p *entropyPlugin) Health(ctx context.Context) goplugins.HealthStatus {
	return goplugins.HealthStatus{Status: goplugins.StatusHealthy, LastCheck: time.Now()}
}

func (p *entropyPlugin) Close() error { return nil }

func (p *entropyPlugin) seen() []DriverRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]DriverRequest(nil), p.requests...)
}

func newTestPluginManager(t testing.TB, plugins ...*entropyPlugin) *goplugins.Manager[DriverRequest, DriverResponse] {
	t.Helper()
	pm := goplugins.NewManager[DriverRequest, DriverResponse](nil)
	for _, p := range plugins {
		require.NoError(t, pm.Register(p))
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pm.Shutdown(ctx)
	})
	return pm
}

func TestPluginEntropySource(t *testing.T) {
	plugin := &entropyPlugin{name: "hw-trng", fill: 0x5a}
	pm := newTestPluginManager(t, plugin)
	r := NewRegistry(&RegistryConfig{OperationTimeout: time.Second}, pm, NewLogger("psa-test"))
	defer r.Close()

	require.NoError(t, r.RegisterPluginDriver(FamilyTRNG, "hw-trng"))
	assert.Equal(t, 1, r.Instances(FamilyTRNG))

	out := make([]byte, 32)
	require.NoError(t, drawEntropy(r, out))
	assert.Equal(t, bytes.Repeat([]byte{0x5a}, 32), out)

	reqs := plugin.seen()
	require.Len(t, reqs, 1)
	assert.Equal(t, FamilyTRNG, reqs[0].Family)
	assert.Equal(t, PluginOpGetEntropy, reqs[0].Operation)
	assert.Equal(t, 32, reqs[0].Parameters["length"])

	b, err := bind[EntropySource](r, FamilyTRNG)
	require.NoError(t, err)
	require.NoError(t, b.reopen())
	b.release()

	require.NoError(t, r.Close())
	assert.ErrorIs(t, drawEntropy(r, out), ErrBadState)
}

func TestPluginEntropySourceFailures(t *testing.T) {
	cases := []struct {
		name   string
		plugin *entropyPlugin
		want   error
	}{
		{"entropy status", &entropyPlugin{status: StatusEntropy}, ErrInsufficientEntropy},
		{"unsupported status", &entropyPlugin{status: StatusUnsupported}, ErrNotSupported},
		{"busy status", &entropyPlugin{status: StatusResourceUnavailable}, ErrBadState},
		{"short reply", &entropyPlugin{short: true, fill: 0xff}, ErrInsufficientEntropy},
		{"transport failure", &entropyPlugin{err: errors.New("connection reset")}, ErrHardwareFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.plugin.name = "hw-trng"
			pm := newTestPluginManager(t, tc.plugin)

			cfg := DefaultConfig()
			cfg.Hardware.TRNG = 0
			cfg.Hardware.TRNGPlugins = []string{"hw-trng"}
			e := newTestEngineWithConfig(t, cfg, WithPluginManager(pm))
			assert.Equal(t, 1, e.Registry().Instances(FamilyTRNG))

			out := make([]byte, 16)
			assert.ErrorIs(t, e.GenerateRandom(out), tc.want)
			assert.Equal(t, make([]byte, 16), out, "nothing is released on failure")
			assert.Len(t, tc.plugin.seen(), 1, "requests are not retried")
		})
	}
}

func TestRegisterPluginDriverErrors(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()
	assert.ErrorIs(t, r.RegisterPluginDriver(FamilyTRNG, "hw-trng"), ErrRegistryNoPlugins)

	pm := newTestPluginManager(t, &entropyPlugin{name: "hw-trng"})
	withPlugins := NewRegistry(nil, pm, nil)
	defer withPlugins.Close()

	assert.Error(t, withPlugins.RegisterPluginDriver(FamilyTRNG, "missing"))
	assert.ErrorIs(t, withPlugins.RegisterPluginDriver(FamilyEC, "hw-trng"), ErrRegistryDriverType)
	assert.Equal(t, 0, withPlugins.Instances(FamilyTRNG))

	cfg := DefaultConfig()
	cfg.Hardware.TRNGPlugins = []string{"hw-trng"}
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrRegistryNoPlugins)

	cfg.Hardware.TRNGPlugins = []string{""}
	assert.Error(t, cfg.Validate())
}
