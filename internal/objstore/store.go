// Package objstore resolves a path or URI to the object it names.
//
// Two backends exist: the local filesystem (bare paths and file:// URIs)
// and a process-wide in-memory store (memory://bucket/key). New objects are
// written through a Sink and only become visible once committed.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedScheme is returned for a URI scheme with no backend.
	ErrUnsupportedScheme = errors.New("unsupported uri scheme")

	// ErrInvalidPath is returned when a path cannot name an object.
	ErrInvalidPath = errors.New("invalid path")

	// ErrNotFound is returned when opening an object that does not exist.
	ErrNotFound = errors.New("object not found")
)

// Object is an opened, immutable object.
type Object interface {
	io.ReaderAt
	io.Seeker
	Size() int64
	Close() error
}

// Sink receives the bytes of a new object.
type Sink interface {
	io.Writer

	// Commit publishes the object under its key.
	Commit() error

	// Abort discards everything written so far.
	Abort() error
}

// Store is one storage backend.
type Store interface {
	Scheme() string
	Create(ctx context.Context, key string) (Sink, error)
	Open(ctx context.Context, key string) (Object, error)
}

// FromURI resolves uri to the store that owns it and the raw object key
// inside that store. The key still has to go through ParsePath.
func FromURI(uri string) (Store, string, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, "", fmt.Errorf("%w: empty uri", ErrInvalidPath)
	}

	if !strings.Contains(uri, "://") {
		abs, err := filepath.Abs(uri)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		return Local(), filepath.ToSlash(abs), nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		if u.Host != "" && u.Host != "localhost" {
			return nil, "", fmt.Errorf("%w: file uri with remote host %q", ErrInvalidPath, u.Host)
		}
		return Local(), u.Path, nil
	case "memory":
		if u.Host == "" {
			return nil, "", fmt.Errorf("%w: memory uri needs a bucket: %s", ErrInvalidPath, uri)
		}
		return Memory(), u.Host + u.Path, nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// ParsePath validates a raw key and returns it in canonical form.
//
// A key is a '/'-separated list of non-empty segments; "." and ".."
// segments are rejected. A single leading '/' marks an absolute local path.
func ParsePath(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if strings.ContainsRune(raw, 0) {
		return "", fmt.Errorf("%w: path contains a NUL byte", ErrInvalidPath)
	}

	p := filepath.ToSlash(raw)
	lead := ""
	if strings.HasPrefix(p, "/") {
		lead = "/"
		p = p[1:]
	}
	if p == "" {
		return "", fmt.Errorf("%w: %q names no object", ErrInvalidPath, raw)
	}

	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "":
			return "", fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, raw)
		case ".", "..":
			return "", fmt.Errorf("%w: relative segment %q in %q", ErrInvalidPath, seg, raw)
		}
	}
	return lead + p, nil
}
