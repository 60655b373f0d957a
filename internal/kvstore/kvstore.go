/*
 * Copyright 2020, 2021, 2022 Hewlett Packard Enterprise Development LP
 * Other additional copyright holders may be indicated within.
 *
 * The entirety of this work is licensed under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 *
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package kvstore

import (
	"encoding/binary"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v3"
)

// Store is a persistent ledger of component state. Each key holds a
// metadata blob followed by an append-only log of typed entries; on
// startup the log is replayed to the component that registered the
// key's prefix so it can rebuild its in-memory state.
type Store struct {
	db         *badger.DB
	registries []Registry
}

// Registry claims a key prefix and builds replay handlers for the keys
// found under it.
type Registry interface {
	Prefix() string
	NewReplay(id string) ReplayHandler
}

// ReplayHandler receives one key's ledger during Replay, in the order
// it was logged.
type ReplayHandler interface {
	Metadata(data []byte) error
	Entry(t uint32, data []byte) error
	Done() error
}

// Open opens or creates the store at path.
func Open(path string, readOnly bool) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts = opts.WithLogger(nil)
	opts = opts.WithReadOnly(readOnly)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Register adds the registries consulted during Replay.
func (s *Store) Register(registries []Registry) {
	s.registries = append(s.registries, registries...)
}

// MakeKey forms the store key for an id owned by a registry.
func (s *Store) MakeKey(r Registry, id string) string {
	return r.Prefix() + id
}

// Ledger is an open key. Log appends entries; the value is rewritten
// atomically per append.
type Ledger struct {
	store *Store
	key   []byte
	value []byte
}

// NewKey creates a key with its metadata blob. The key must not exist.
func (s *Store) NewKey(key string, metadata []byte) (*Ledger, error) {
	ledger := &Ledger{store: s, key: []byte(key)}

	ledger.value = make([]byte, 4+len(metadata))
	binary.LittleEndian.PutUint32(ledger.value, uint32(len(metadata)))
	copy(ledger.value[4:], metadata)

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(ledger.key); err != badger.ErrKeyNotFound {
			if err == nil {
				return fmt.Errorf("key %s already exists", key)
			}
			return err
		}
		return txn.Set(ledger.key, ledger.value)
	})
	if err != nil {
		return nil, err
	}

	return ledger, nil
}

// OpenKey opens an existing key.
func (s *Store) OpenKey(key string, readOnly bool) (*Ledger, error) {
	ledger := &Ledger{store: s, key: []byte(key)}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(ledger.key)
		if err != nil {
			return err
		}

		ledger.value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	return ledger, nil
}

// DeleteKey removes a key and its ledger.
func (s *Store) DeleteKey(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Log appends one typed entry and commits the updated ledger.
func (l *Ledger) Log(t uint32, data []byte) error {
	entry := make([]byte, 8+len(data))
	binary.LittleEndian.PutUint32(entry, t)
	binary.LittleEndian.PutUint32(entry[4:], uint32(len(data)))
	copy(entry[8:], data)

	value := append(l.value, entry...)

	err := l.store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(l.key, value)
	})
	if err != nil {
		return err
	}

	l.value = value
	return nil
}

func (l *Ledger) Close() {
	l.value = nil
}

// Replay walks every key claimed by a registered prefix and feeds its
// ledger to a fresh replay handler.
func (s *Store) Replay() error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())

			registry := s.findRegistry(key)
			if registry == nil {
				continue
			}

			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			handler := registry.NewReplay(strings.TrimPrefix(key, registry.Prefix()))
			if err := replayLedger(handler, key, value); err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *Store) findRegistry(key string) Registry {
	for _, r := range s.registries {
		if strings.HasPrefix(key, r.Prefix()) {
			return r
		}
	}
	return nil
}

func replayLedger(handler ReplayHandler, key string, value []byte) error {
	if len(value) < 4 {
		return fmt.Errorf("key %s ledger truncated", key)
	}

	metadataLen := int(binary.LittleEndian.Uint32(value))
	if 4+metadataLen > len(value) {
		return fmt.Errorf("key %s metadata truncated", key)
	}

	if err := handler.Metadata(value[4 : 4+metadataLen]); err != nil {
		return err
	}

	offset := 4 + metadataLen
	for offset < len(value) {
		if offset+8 > len(value) {
			return fmt.Errorf("key %s entry header truncated", key)
		}

		t := binary.LittleEndian.Uint32(value[offset:])
		length := int(binary.LittleEndian.Uint32(value[offset+4:]))
		offset += 8

		if offset+length > len(value) {
			return fmt.Errorf("key %s entry truncated", key)
		}

		if err := handler.Entry(t, value[offset:offset+length]); err != nil {
			return err
		}
		offset += length
	}

	return handler.Done()
}
