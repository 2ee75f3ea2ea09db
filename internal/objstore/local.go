package objstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalStore keeps objects on the local filesystem.
type LocalStore struct{}

var localStore = &LocalStore{}

// Local returns the local filesystem store.
func Local() *LocalStore {
	return localStore
}

func (s *LocalStore) Scheme() string { return "file" }

// Create opens a partial file next to key. Commit renames it onto key.
func (s *LocalStore) Create(ctx context.Context, key string) (Sink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	final := filepath.FromSlash(key)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return nil, err
	}
	if fi, err := os.Stat(final); err == nil && fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidPath, final)
	}

	tmp := final + "." + uuid.NewString() + ".partial"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &localSink{f: f, tmp: tmp, final: final}, nil
}

// Open opens key for reading.
func (s *LocalStore) Open(ctx context.Context, key string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := filepath.FromSlash(key)
	f, err := os.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidPath, name)
	}
	return &localObject{File: f, size: fi.Size()}, nil
}

type localObject struct {
	*os.File
	size int64
}

func (o *localObject) Size() int64 { return o.size }

type localSink struct {
	f     *os.File
	tmp   string
	final string
	done  bool
}

func (s *localSink) Write(p []byte) (int, error) {
	if s.done {
		return 0, fs.ErrClosed
	}
	return s.f.Write(p)
}

func (s *localSink) Commit() error {
	if s.done {
		return fs.ErrClosed
	}
	s.done = true
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		os.Remove(s.tmp)
		return err
	}
	if err := s.f.Close(); err != nil {
		os.Remove(s.tmp)
		return err
	}
	if err := os.Rename(s.tmp, s.final); err != nil {
		os.Remove(s.tmp)
		return err
	}
	return nil
}

func (s *localSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	s.f.Close()
	if err := os.Remove(s.tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
