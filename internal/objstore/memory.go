package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"sort"
	"sync"
)

// MemoryStore keeps committed objects in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var memoryStore = NewMemoryStore()

// Memory returns the process-wide memory store behind memory:// URIs.
func Memory() *MemoryStore {
	return memoryStore
}

// NewMemoryStore returns an empty, private memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Scheme() string { return "memory" }

func (s *MemoryStore) Create(ctx context.Context, key string) (Sink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memorySink{store: s, key: key}, nil
}

func (s *MemoryStore) Open(ctx context.Context, key string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: memory://%s", ErrNotFound, key)
	}
	return &memoryObject{Reader: bytes.NewReader(data), size: int64(len(data))}, nil
}

// Remove deletes key. Readers that already opened it keep their bytes.
func (s *MemoryStore) Remove(key string) {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
}

// Keys lists the committed keys in sorted order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

type memoryObject struct {
	*bytes.Reader
	size int64
}

func (o *memoryObject) Size() int64  { return o.size }
func (o *memoryObject) Close() error { return nil }

type memorySink struct {
	store *MemoryStore
	key   string
	buf   bytes.Buffer
	done  bool
}

func (s *memorySink) Write(p []byte) (int, error) {
	if s.done {
		return 0, fs.ErrClosed
	}
	return s.buf.Write(p)
}

func (s *memorySink) Commit() error {
	if s.done {
		return fs.ErrClosed
	}
	s.done = true
	data := bytes.Clone(s.buf.Bytes())
	s.store.mu.Lock()
	s.store.objects[s.key] = data
	s.store.mu.Unlock()
	s.buf.Reset()
	return nil
}

func (s *memorySink) Abort() error {
	s.done = true
	s.buf.Reset()
	return nil
}
