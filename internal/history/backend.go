package history

import (
	"bytes"
	"fmt"
	"slices"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Backend is the key-value store under the history. Keys within a bucket
// are iterated in byte order.
type Backend interface {
	Put(bucket, key, value []byte) error
	Get(bucket, key []byte) ([]byte, error) // nil, nil when absent
	ForEach(bucket []byte, fn func(k, v []byte) error) error
	// Update runs fn in one read-write transaction. If fn returns an
	// error nothing it did is kept, including consumed sequence numbers.
	Update(fn func(tx Tx) error) error
	Close() error
}

// Tx is the view of a backend inside Update.
type Tx interface {
	Put(bucket, key, value []byte) error
	Get(bucket, key []byte) []byte // only valid inside the transaction
	Delete(bucket, key []byte) error
	// NextSequence returns a bucket-scoped, strictly increasing ID.
	NextSequence(bucket []byte) (uint64, error)
}

// BoltBackend stores history in a bbolt file.
type BoltBackend struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) the database at path and makes sure
// buckets exist.
func OpenBolt(path string, buckets ...[]byte) (*BoltBackend, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Put(bucket, key, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucket)
		if bkt == nil {
			return fmt.Errorf("bucket not found: %s", bucket)
		}
		return bkt.Put(key, value)
	})
}

func (b *BoltBackend) Get(bucket, key []byte) ([]byte, error) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucket)
		if bkt == nil {
			return fmt.Errorf("bucket not found: %s", bucket)
		}
		// bbolt memory is only valid inside the transaction
		if v := bkt.Get(key); v != nil {
			value = bytes.Clone(v)
		}
		return nil
	})
	return value, err
}

func (b *BoltBackend) ForEach(bucket []byte, fn func(k, v []byte) error) error {
	return b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucket)
		if bkt == nil {
			return fmt.Errorf("bucket not found: %s", bucket)
		}
		return bkt.ForEach(fn)
	})
}

func (b *BoltBackend) Update(fn func(tx Tx) error) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return fn(boltTx{tx: tx})
	})
}

type boltTx struct {
	tx *bolt.Tx
}

func (t boltTx) bucket(name []byte) (*bolt.Bucket, error) {
	bkt := t.tx.Bucket(name)
	if bkt == nil {
		return nil, fmt.Errorf("bucket not found: %s", name)
	}
	return bkt, nil
}

func (t boltTx) Put(bucket, key, value []byte) error {
	bkt, err := t.bucket(bucket)
	if err != nil {
		return err
	}
	return bkt.Put(key, value)
}

func (t boltTx) Get(bucket, key []byte) []byte {
	bkt, err := t.bucket(bucket)
	if err != nil {
		return nil
	}
	return bkt.Get(key)
}

func (t boltTx) Delete(bucket, key []byte) error {
	bkt, err := t.bucket(bucket)
	if err != nil {
		return err
	}
	return bkt.Delete(key)
}

func (t boltTx) NextSequence(bucket []byte) (uint64, error) {
	bkt, err := t.bucket(bucket)
	if err != nil {
		return 0, err
	}
	return bkt.NextSequence()
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}

// MemoryBackend keeps history in maps; nothing survives Close.
type MemoryBackend struct {
	buckets map[string]map[string][]byte
	seqs    map[string]uint64
	mu      sync.RWMutex
}

// NewMemoryBackend returns an empty backend with the given buckets.
func NewMemoryBackend(buckets ...[]byte) *MemoryBackend {
	m := &MemoryBackend{
		buckets: make(map[string]map[string][]byte),
		seqs:    make(map[string]uint64),
	}
	for _, name := range buckets {
		m.buckets[string(name)] = make(map[string][]byte)
	}
	return m
}

func (m *MemoryBackend) Put(bucket, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bkt, ok := m.buckets[string(bucket)]
	if !ok {
		return fmt.Errorf("bucket not found: %s", bucket)
	}
	bkt[string(key)] = bytes.Clone(value)
	return nil
}

func (m *MemoryBackend) Get(bucket, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bkt, ok := m.buckets[string(bucket)]
	if !ok {
		return nil, fmt.Errorf("bucket not found: %s", bucket)
	}
	v, ok := bkt[string(key)]
	if !ok {
		return nil, nil
	}
	return bytes.Clone(v), nil
}

func (m *MemoryBackend) ForEach(bucket []byte, fn func(k, v []byte) error) error {
	m.mu.RLock()
	bkt, ok := m.buckets[string(bucket)]
	if !ok {
		m.mu.RUnlock()
		return fmt.Errorf("bucket not found: %s", bucket)
	}
	keys := make([]string, 0, len(bkt))
	for k := range bkt {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = bkt[k]
	}
	m.mu.RUnlock()

	for i, k := range keys {
		if err := fn([]byte(k), values[i]); err != nil {
			return err
		}
	}
	return nil
}

// Update stages every write and applies them only when fn succeeds.
func (m *MemoryBackend) Update(fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		m:      m,
		writes: make(map[string]map[string][]byte),
		seqs:   make(map[string]uint64),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for bucket, kv := range tx.writes {
		for k, v := range kv {
			if v == nil {
				delete(m.buckets[bucket], k)
				continue
			}
			m.buckets[bucket][k] = v
		}
	}
	for bucket, seq := range tx.seqs {
		m.seqs[bucket] = seq
	}
	return nil
}

// memoryTx runs with m.mu held for writing. A nil staged value is a delete.
type memoryTx struct {
	m      *MemoryBackend
	writes map[string]map[string][]byte
	seqs   map[string]uint64
}

func (t *memoryTx) check(bucket []byte) error {
	if _, ok := t.m.buckets[string(bucket)]; !ok {
		return fmt.Errorf("bucket not found: %s", bucket)
	}
	return nil
}

func (t *memoryTx) stage(bucket, key, value []byte) error {
	if err := t.check(bucket); err != nil {
		return err
	}
	kv, ok := t.writes[string(bucket)]
	if !ok {
		kv = make(map[string][]byte)
		t.writes[string(bucket)] = kv
	}
	kv[string(key)] = value
	return nil
}

func (t *memoryTx) Put(bucket, key, value []byte) error {
	v := bytes.Clone(value)
	if v == nil {
		v = []byte{}
	}
	return t.stage(bucket, key, v)
}

func (t *memoryTx) Delete(bucket, key []byte) error {
	return t.stage(bucket, key, nil)
}

func (t *memoryTx) Get(bucket, key []byte) []byte {
	if v, ok := t.writes[string(bucket)][string(key)]; ok {
		return v
	}
	return t.m.buckets[string(bucket)][string(key)]
}

func (t *memoryTx) NextSequence(bucket []byte) (uint64, error) {
	if err := t.check(bucket); err != nil {
		return 0, err
	}
	seq, ok := t.seqs[string(bucket)]
	if !ok {
		seq = t.m.seqs[string(bucket)]
	}
	seq++
	t.seqs[string(bucket)] = seq
	return seq, nil
}

func (m *MemoryBackend) Close() error {
	return nil
}
