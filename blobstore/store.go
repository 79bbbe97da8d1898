package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist. It maps to
// os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// BlobStore stores immutable named blobs, such as the synopses of sealed
// partitions. Implementations must be safe for concurrent use.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Put writes a blob atomically, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names of all blobs with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	Close() error
	// Size returns the size of the blob in bytes.
	Size() int64
}

// Mappable is implemented by blobs whose content is already in memory,
// e.g. memory mapped. The slice is valid until the blob is closed.
type Mappable interface {
	Bytes() ([]byte, error)
}

// View calls fn with the whole content of the named blob. For Mappable
// blobs fn sees the mapping itself, so it must not retain the slice.
func View(ctx context.Context, s BlobStore, name string, fn func([]byte) error) error {
	b, err := s.Open(ctx, name)
	if err != nil {
		return err
	}
	defer b.Close()

	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return err
		}
		return fn(data)
	}
	data, err := readAll(ctx, b)
	if err != nil {
		return err
	}
	return fn(data)
}

func readAll(ctx context.Context, b Blob) ([]byte, error) {
	size := b.Size()
	if size < 0 {
		return nil, fmt.Errorf("blobstore: negative blob size %d", size)
	}
	data := make([]byte, size)
	if size == 0 {
		return data, nil
	}
	n, err := b.ReadAt(ctx, data, 0)
	if err != nil && !(err == io.EOF && int64(n) == size) {
		return nil, err
	}
	if int64(n) != size {
		return nil, io.ErrUnexpectedEOF
	}
	return data, nil
}
