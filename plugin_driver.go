// plugin_driver.go: Primitive instances served by go-plugins
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	goplugins "github.com/agilira/go-plugins"
)

// Operation names carried in DriverRequest.Operation.
const (
	PluginOpGetEntropy = "get-entropy"
)

const defaultPluginTimeout = 10 * time.Second

var pluginRequestSeq atomic.Uint64

// pluginDriver forwards the calls of one instance to a named plugin of a
// go-plugins manager. The manager owns the plugin lifecycle; Open only checks
// that the plugin is registered.
type pluginDriver struct {
	manager *goplugins.Manager[DriverRequest, DriverResponse]
	plugin  string
	family  Family
	timeout time.Duration
	open    bool
}

func (d *pluginDriver) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return driverErr(string(d.family), "open", StatusResourceUnavailable, err)
	}
	if _, err := d.manager.GetPlugin(d.plugin); err != nil {
		return driverErr(string(d.family), "open", StatusResourceUnavailable, err)
	}
	d.open = true
	return nil
}

func (d *pluginDriver) Close() error {
	d.open = false
	return nil
}

// call runs one request without retries. A transport failure is StatusError;
// a non-zero reply status is passed through so it maps like an in-process
// driver's.
func (d *pluginDriver) call(op string, data []byte, params map[string]interface{}) ([]byte, error) {
	if !d.open {
		return nil, driverErr(string(d.family), op, StatusResourceUnavailable, nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	execCtx := goplugins.ExecutionContext{
		RequestID: fmt.Sprintf("%s-%s-%d", d.family, op, pluginRequestSeq.Add(1)),
		Timeout:   d.timeout,
	}
	req := DriverRequest{Family: d.family, Operation: op, Data: data, Parameters: params}

	resp, err := d.manager.ExecuteWithOptions(ctx, d.plugin, execCtx, req)
	if err != nil {
		return nil, driverErr(string(d.family), op, StatusError, err)
	}
	if resp.Status != 0 {
		var cause error
		if resp.Error != "" {
			cause = errors.New(resp.Error)
		}
		return nil, driverErr(string(d.family), op, resp.Status, cause)
	}
	return resp.Data, nil
}

// pluginEntropySource is a TRNG instance backed by a plugin.
type pluginEntropySource struct {
	pluginDriver
}

func (d *pluginEntropySource) GetEntropy(out []byte) error {
	data, err := d.call(PluginOpGetEntropy, nil, map[string]interface{}{"length": len(out)})
	if err != nil {
		return err
	}
	defer clearBuffer(data)
	if len(data) != len(out) {
		return driverErr(string(d.family), PluginOpGetEntropy, StatusEntropy,
			fmt.Errorf("plugin returned %d of %d bytes", len(data), len(out)))
	}
	copy(out, data)
	return nil
}

// RegisterPluginDriver adds an instance of family served by the named plugin
// of the registry's plugin manager. Only FamilyTRNG can be served this way.
func (r *Registry) RegisterPluginDriver(family Family, plugin string) error {
	if r.pluginManager == nil {
		return ErrRegistryNoPlugins
	}
	timeout := r.config.OperationTimeout
	if timeout <= 0 {
		timeout = defaultPluginTimeout
	}
	base := pluginDriver{manager: r.pluginManager, plugin: plugin, family: family, timeout: timeout}

	switch family {
	case FamilyTRNG:
		return r.RegisterDriver(family, &pluginEntropySource{base})
	default:
		return fmt.Errorf("%w: %s cannot be served by a plugin", ErrRegistryDriverType, family)
	}
}
