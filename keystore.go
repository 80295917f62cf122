// keystore.go: Key slots for volatile and persistent keys
//
// Volatile keys live only in memory. Persistent keys are written through to a
// badger database as JSON records and cached in a slot on first use; purging a
// persistent key drops the cached copy without touching the record.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	goerrors "github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
	badger "github.com/dgraph-io/badger/v3"
)

// KeyStore is the key management surface the engine depends on.
type KeyStore interface {
	Resolve(id KeyID) (*ResolvedKey, error)
	Import(attrs *KeyAttributes, material []byte) (KeyID, error)
	Export(id KeyID, out []byte) (int, error)
	Destroy(id KeyID) error
	Purge(id KeyID) error
	Attributes(id KeyID) (KeyAttributes, error)
	Close() error
}

// ResolvedKey is a key loaded for one operation. Material is a pooled copy and
// must be handed back with Release on every exit path.
type ResolvedKey struct {
	Attributes KeyAttributes
	Material   []byte
	buf        *[]byte
}

// Release wipes the material and returns its buffer to the pool.
func (k *ResolvedKey) Release() {
	if k == nil || k.buf == nil {
		return
	}
	putBuffer(k.buf)
	k.buf = nil
	k.Material = nil
}

// keySlot is one loaded key.
type keySlot struct {
	attrs     KeyAttributes
	material  []byte
	createdAt time.Time
	// normalized records that attrs.Alg2 holds the algorithm the application
	// asked for, and attrs.Alg its default-tag form.
	normalized bool
}

// keyRecord is the persistent encoding of a slot.
type keyRecord struct {
	Attributes KeyAttributes `json:"attributes"`
	Material   []byte        `json:"material"`
	CreatedAt  time.Time     `json:"created_at"`
	Normalized bool          `json:"normalized,omitempty"`
}

// StoreConfig configures the persistent backend.
type StoreConfig struct {
	Path     string `toml:"path"`      // badger directory; empty implies in-memory
	InMemory bool   `toml:"in_memory"` // keep persistent keys in an in-memory badger
}

// Store is the in-module KeyStore.
type Store struct {
	mu           sync.RWMutex
	slots        map[KeyID]*keySlot
	nextVolatile KeyID
	db           *badger.DB
	log          Logger
}

// NewStore opens the persistent backend described by config.
func NewStore(config StoreConfig, log Logger) (*Store, error) {
	if log == nil {
		log = NewLogger("psa")
	}

	opts := badger.DefaultOptions(config.Path).WithLogger(nil)
	if config.InMemory || config.Path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, storageFailure(err, "failed to open key database")
	}

	return &Store{
		slots:        make(map[KeyID]*keySlot),
		nextVolatile: KeyIDVolatileMin,
		db:           db,
		log:          log,
	}, nil
}

func recordKey(id KeyID) []byte {
	return []byte(fmt.Sprintf("key/%08x", uint32(id)))
}

func isVolatileID(id KeyID) bool {
	return id >= KeyIDVolatileMin && id <= KeyIDVolatileMax
}

func isPersistentID(id KeyID) bool {
	return id >= KeyIDUserMin && id <= KeyIDUserMax
}

// slot returns the loaded slot of id, reading a persistent record on first use.
// Caller holds s.mu for writing.
func (s *Store) slot(id KeyID) (*keySlot, error) {
	if !isVolatileID(id) && !isPersistentID(id) {
		return nil, invalidHandle(id)
	}
	if sl, ok := s.slots[id]; ok {
		return sl, nil
	}
	if isVolatileID(id) {
		return nil, doesNotExist(id)
	}

	var rec keyRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(id))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		defer Zeroize(raw)
		return json.Unmarshal(raw, &rec)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, doesNotExist(id)
	}
	if err != nil {
		return nil, storageFailure(err, fmt.Sprintf("failed to load key 0x%08x", uint32(id)))
	}

	sl := &keySlot{
		attrs:      rec.Attributes,
		material:   rec.Material,
		createdAt:  rec.CreatedAt,
		normalized: rec.Normalized,
	}
	s.slots[id] = sl
	s.log.Infof(1, "loaded persistent key 0x%08x fingerprint=%s", uint32(id), GetKeyFingerprint(sl.material))
	return sl, nil
}

// Resolve loads a key for one operation.
func (s *Store) Resolve(id KeyID) (*ResolvedKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.slot(id)
	if err != nil {
		return nil, err
	}
	buf := getBuffer(len(sl.material))
	copy(*buf, sl.material)
	return &ResolvedKey{Attributes: sl.attrs, Material: *buf, buf: buf}, nil
}

func (s *Store) allocateVolatile() (KeyID, error) {
	for i := KeyID(0); i <= KeyIDVolatileMax-KeyIDVolatileMin; i++ {
		id := s.nextVolatile
		s.nextVolatile++
		if s.nextVolatile > KeyIDVolatileMax {
			s.nextVolatile = KeyIDVolatileMin
		}
		if _, used := s.slots[id]; !used {
			return id, nil
		}
	}
	return KeyIDNull, fmt.Errorf("%w: %w", ErrInsufficientMemory,
		goerrors.New(ErrCodeInsufficientMemory, "no free volatile key slot"))
}

// normalizeAttributes applies the storage form of a policy: AEAD algorithms
// with a non-default tag are stored as the default-tag algorithm with the
// requested one in the second slot, and ECDSA key pairs are always exportable.
func normalizeAttributes(attrs *KeyAttributes) bool {
	normalized := false
	if attrs.Alg.IsAEAD() && attrs.Alg2 == AlgNone {
		if def := AEADWithDefaultLengthTag(attrs.Alg); def != AlgNone && def != attrs.Alg {
			attrs.Alg2 = attrs.Alg
			attrs.Alg = def
			normalized = true
		}
	}
	if attrs.Type.IsKeyPair() && attrs.Alg.IsECDSA() {
		attrs.Usage |= UsageExport
	}
	return normalized
}

// Import creates a key from material. Volatile keys get a fresh identifier;
// persistent keys keep the one in attrs.
func (s *Store) Import(attrs *KeyAttributes, material []byte) (KeyID, error) {
	if attrs == nil {
		return KeyIDNull, invalidArgument("key attributes must not be nil")
	}
	bits, err := validateKeyMaterial(attrs, material)
	if err != nil {
		return KeyIDNull, err
	}

	stored := *attrs
	stored.Bits = bits
	normalized := normalizeAttributes(&stored)

	s.mu.Lock()
	defer s.mu.Unlock()

	if stored.Lifetime.IsVolatile() {
		id, err := s.allocateVolatile()
		if err != nil {
			return KeyIDNull, err
		}
		stored.ID = id
	} else {
		if !isPersistentID(stored.ID) {
			return KeyIDNull, invalidArgument("persistent key id 0x%08x outside the user range", uint32(stored.ID))
		}
		if _, err := s.slot(stored.ID); err == nil {
			richErr := goerrors.New(ErrCodeAlreadyExists, fmt.Sprintf("key id 0x%08x already exists", uint32(stored.ID)))
			return KeyIDNull, fmt.Errorf("%w: %w", ErrAlreadyExists, richErr)
		} else if !errors.Is(err, ErrDoesNotExist) {
			return KeyIDNull, err
		}
	}

	sl := &keySlot{
		attrs:      stored,
		material:   append([]byte(nil), material...),
		createdAt:  timecache.CachedTime().UTC(),
		normalized: normalized,
	}

	if !stored.Lifetime.IsVolatile() {
		if err := s.persist(sl); err != nil {
			Zeroize(sl.material)
			return KeyIDNull, err
		}
	}
	s.slots[stored.ID] = sl
	s.log.Infof(1, "imported key 0x%08x type=0x%04x bits=%d fingerprint=%s",
		uint32(stored.ID), uint16(stored.Type), stored.Bits, GetKeyFingerprint(material))
	return stored.ID, nil
}

func (s *Store) persist(sl *keySlot) error {
	raw, err := json.Marshal(keyRecord{
		Attributes: sl.attrs,
		Material:   sl.material,
		CreatedAt:  sl.createdAt,
		Normalized: sl.normalized,
	})
	if err != nil {
		return storageFailure(err, "failed to encode key record")
	}
	defer Zeroize(raw)

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(sl.attrs.ID), raw)
	})
	if err != nil {
		return storageFailure(err, fmt.Sprintf("failed to store key 0x%08x", uint32(sl.attrs.ID)))
	}
	return nil
}

// Export copies the key material to out. The key must carry UsageExport;
// public keys are always exportable.
func (s *Store) Export(id KeyID, out []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.slot(id)
	if err != nil {
		return 0, err
	}
	if err := checkKeyPolicy(&sl.attrs, UsageExport, AlgNone); err != nil {
		return 0, err
	}
	if len(out) < len(sl.material) {
		return 0, bufferTooSmall(len(sl.material), len(out))
	}
	return copy(out, sl.material), nil
}

// Destroy removes a key from memory and, for persistent keys, from storage.
func (s *Store) Destroy(id KeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.slot(id)
	if err != nil {
		return err
	}
	if isPersistentID(id) {
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(recordKey(id))
		})
		if err != nil {
			return storageFailure(err, fmt.Sprintf("failed to delete key 0x%08x", uint32(id)))
		}
	}
	s.log.Infof(1, "destroyed key 0x%08x fingerprint=%s", uint32(id), GetKeyFingerprint(sl.material))
	Zeroize(sl.material)
	delete(s.slots, id)
	return nil
}

// Purge drops the in-memory copy of a persistent key. Volatile keys are left
// alone.
func (s *Store) Purge(id KeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.slot(id)
	if err != nil {
		return err
	}
	if isPersistentID(id) {
		Zeroize(sl.material)
		delete(s.slots, id)
	}
	return nil
}

// Attributes returns the attributes of a key as the application set them.
func (s *Store) Attributes(id KeyID) (KeyAttributes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.slot(id)
	if err != nil {
		return KeyAttributes{}, err
	}
	attrs := sl.attrs
	if sl.normalized {
		attrs.Alg, attrs.Alg2 = attrs.Alg2, AlgNone
	}
	return attrs, nil
}

// CreatedAt returns when a key was imported or generated.
func (s *Store) CreatedAt(id KeyID) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.slot(id)
	if err != nil {
		return time.Time{}, err
	}
	return sl.createdAt, nil
}

// List returns the identifiers of every loaded volatile key and every stored
// persistent key, in ascending order.
func (s *Store) List() ([]KeyID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[KeyID]bool, len(s.slots))
	for id := range s.slots {
		seen[id] = true
	}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte("key/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var id uint32
			if _, err := fmt.Sscanf(string(it.Item().Key()), "key/%08x", &id); err == nil {
				seen[KeyID(id)] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, storageFailure(err, "failed to list keys")
	}

	ids := make([]KeyID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Close wipes every loaded key and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sl := range s.slots {
		Zeroize(sl.material)
		delete(s.slots, id)
	}
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return storageFailure(err, "failed to close key database")
	}
	return nil
}
