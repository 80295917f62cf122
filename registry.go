// registry.go: Registry of hardware primitive instances
//
// The registry owns every driver instance, hands them out to operation
// contexts one binding at a time, and keeps the optional go-plugins manager
// through which externally provided drivers are discovered.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"context"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/agilira/go-errors"
	goplugins "github.com/agilira/go-plugins"
)

// Family names a class of hardware primitive instances.
type Family string

const (
	FamilySHA2   Family = "sha2"
	FamilySHA3   Family = "sha3"
	FamilyAESECB Family = "aes-ecb"
	FamilyAESCBC Family = "aes-cbc"
	FamilyAESCTR Family = "aes-ctr"
	FamilyAESMAC Family = "aes-mac" // shared by CMAC and CBC-MAC
	FamilyAESCCM Family = "aes-ccm"
	FamilyAESGCM Family = "aes-gcm"
	FamilyTRNG   Family = "trng"
	FamilyEC     Family = "ec"
)

// Registry errors with codes for auditing
var (
	ErrRegistryClosed       = goerrors.New("REG_001", "hardware registry is closed")
	ErrRegistryNilDriver    = goerrors.New("REG_002", "driver cannot be nil")
	ErrRegistryDriverType   = goerrors.New("REG_003", "driver does not implement the family contract")
	ErrRegistryNoInstance   = goerrors.New("REG_004", "no instance registered for family")
	ErrRegistryInstanceBusy = goerrors.New("REG_005", "all instances of family are bound")
	ErrRegistryNoPlugins    = goerrors.New("REG_006", "registry has no plugin manager")
)

// RegistryConfig provides configuration for the registry.
type RegistryConfig struct {
	OperationTimeout time.Duration `json:"operation_timeout"` // bound on driver Open calls
}

// instance is one hardware primitive. It is bound to at most one operation.
type instance struct {
	reg    *Registry
	family Family
	index  int
	driver Driver
	bound  bool
}

func (i *instance) String() string {
	return fmt.Sprintf("%s#%d", i.family, i.index)
}

// Registry manages hardware primitive instances per family.
type Registry struct {
	mu            sync.Mutex
	pluginManager *goplugins.Manager[DriverRequest, DriverResponse] // external driver plugins
	instances     map[Family][]*instance
	config        *RegistryConfig
	log           Logger
	closed        bool
}

// NewRegistry creates an empty registry. A nil config gets defaults; a nil
// plugin manager means only in-process drivers are used.
func NewRegistry(config *RegistryConfig, pluginManager *goplugins.Manager[DriverRequest, DriverResponse], log Logger) *Registry {
	if config == nil {
		config = &RegistryConfig{OperationTimeout: 10 * time.Second}
	}
	if log == nil {
		log = NewLogger("psa")
	}
	return &Registry{
		pluginManager: pluginManager,
		instances:     make(map[Family][]*instance),
		config:        config,
		log:           log,
	}
}

// PluginManager returns the plugin manager the registry was created with.
func (r *Registry) PluginManager() *goplugins.Manager[DriverRequest, DriverResponse] {
	return r.pluginManager
}

func (r *Registry) openContext() (context.Context, context.CancelFunc) {
	if timeout := r.config.OperationTimeout; timeout > 0 {
		return context.WithTimeout(context.Background(), timeout)
	}
	return context.WithCancel(context.Background())
}

// RegisterDriver opens driver and adds it as a new instance of family.
func (r *Registry) RegisterDriver(family Family, driver Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}
	if driver == nil {
		return ErrRegistryNilDriver
	}
	if !familyAccepts(family, driver) {
		return fmt.Errorf("%w: %s", ErrRegistryDriverType, family)
	}

	ctx, cancel := r.openContext()
	defer cancel()
	if err := driver.Open(ctx); err != nil {
		return fmt.Errorf("failed to open %s driver: %w", family, err)
	}

	inst := &instance{reg: r, family: family, index: len(r.instances[family]), driver: driver}
	r.instances[family] = append(r.instances[family], inst)
	r.log.Infof(1, "registered %s", inst)
	return nil
}

func familyAccepts(family Family, driver Driver) bool {
	var ok bool
	switch family {
	case FamilySHA2, FamilySHA3:
		_, ok = driver.(HashDriver)
	case FamilyAESECB, FamilyAESCBC, FamilyAESCTR:
		_, ok = driver.(BlockCipherDriver)
	case FamilyAESMAC:
		_, ok = driver.(MACDriver)
	case FamilyAESCCM, FamilyAESGCM:
		_, ok = driver.(AEADDriver)
	case FamilyTRNG:
		_, ok = driver.(EntropySource)
	case FamilyEC:
		_, ok = driver.(ECDriver)
	}
	return ok
}

// Instances returns the number of instances registered for family.
func (r *Registry) Instances(family Family) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances[family])
}

// acquire binds the first free instance of family. A family whose instances
// are all bound yields ErrBadState; a family with none yields ErrNotSupported.
func (r *Registry) acquire(family Family) (*instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, badState("%v", ErrRegistryClosed)
	}
	list := r.instances[family]
	if len(list) == 0 {
		return nil, notSupported("%v: %s", ErrRegistryNoInstance, family)
	}
	for _, inst := range list {
		if !inst.bound {
			inst.bound = true
			return inst, nil
		}
	}
	return nil, badState("%v: %s", ErrRegistryInstanceBusy, family)
}

func (r *Registry) release(inst *instance) {
	r.mu.Lock()
	inst.bound = false
	r.mu.Unlock()
}

// reopen closes and reopens an instance, the only way to abandon an operation
// on modes without hardware cancellation.
func (r *Registry) reopen(inst *instance) error {
	if err := inst.driver.Close(); err != nil {
		r.log.Warnf("close of %s failed: %v", inst, err)
	}
	ctx, cancel := r.openContext()
	defer cancel()
	if err := inst.driver.Open(ctx); err != nil {
		r.log.Errorf("reopen of %s failed: %v", inst, err)
		return mapDriverError(err)
	}
	r.log.Infof(1, "reopened %s", inst)
	return nil
}

// Close shuts down every instance.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for family, list := range r.instances {
		for _, inst := range list {
			if err := inst.driver.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close %s: %w", inst, err))
			}
		}
		delete(r.instances, family)
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to close some driver instances: %v", errs)
	}
	return nil
}

// binding is an instance held by one operation, typed to its family contract.
type binding[D Driver] struct {
	inst *instance
	drv  D
}

// bind acquires an instance of family and narrows it to the driver contract D.
func bind[D Driver](r *Registry, family Family) (binding[D], error) {
	inst, err := r.acquire(family)
	if err != nil {
		return binding[D]{}, err
	}
	drv, ok := inst.driver.(D)
	if !ok {
		r.release(inst)
		return binding[D]{}, notSupported("%v: %s", ErrRegistryDriverType, family)
	}
	return binding[D]{inst: inst, drv: drv}, nil
}

func (b *binding[D]) active() bool { return b.inst != nil }

// release returns the instance to the registry. Safe on an empty binding.
func (b *binding[D]) release() {
	if b.inst == nil {
		return
	}
	b.inst.reg.release(b.inst)
	var zero D
	b.inst, b.drv = nil, zero
}

// reopen resets the bound instance through close and open.
func (b *binding[D]) reopen() error {
	if b.inst == nil {
		return nil
	}
	return b.inst.reg.reopen(b.inst)
}
