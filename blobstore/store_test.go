package blobstore

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]BlobStore {
	return map[string]BlobStore{
		"memory": NewMemoryStore(),
		"local":  NewLocalStore(t.TempDir()),
	}
}

func TestBlobStoreLifecycle(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			data := []byte("hello world, this is a synopsis blob")

			require.NoError(t, store.Put(ctx, "p1/synopses", data))
			require.NoError(t, store.Put(ctx, "p1/meta", []byte("{}")))
			require.NoError(t, store.Put(ctx, "p2/meta", []byte("{}")))

			b, err := store.Open(ctx, "p1/synopses")
			require.NoError(t, err)
			require.Equal(t, int64(len(data)), b.Size())

			buf := make([]byte, 5)
			n, err := b.ReadAt(ctx, buf, 6)
			require.NoError(t, err)
			assert.Equal(t, 5, n)
			assert.Equal(t, "world", string(buf))

			// Reads past the end are short.
			buf = make([]byte, 10)
			n, err = b.ReadAt(ctx, buf, int64(len(data)-4))
			assert.Equal(t, io.EOF, err)
			assert.Equal(t, "blob", string(buf[:n]))

			_, err = b.ReadAt(ctx, buf, int64(len(data)))
			assert.Equal(t, io.EOF, err)
			require.NoError(t, b.Close())

			names, err := store.List(ctx, "p1/")
			require.NoError(t, err)
			assert.Equal(t, []string{"p1/meta", "p1/synopses"}, names)

			names, err = store.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, names, 3)

			// Put replaces.
			require.NoError(t, store.Put(ctx, "p1/meta", []byte(`{"rows":1}`)))
			require.NoError(t, View(ctx, store, "p1/meta", func(got []byte) error {
				assert.Equal(t, `{"rows":1}`, string(got))
				return nil
			}))

			require.NoError(t, store.Delete(ctx, "p1/synopses"))
			require.NoError(t, store.Delete(ctx, "p1/synopses"))
			_, err = store.Open(ctx, "p1/synopses")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestViewPropagatesErrors(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			err := View(ctx, store, "missing", func([]byte) error { return nil })
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Put(ctx, "empty", nil))
			require.NoError(t, View(ctx, store, "empty", func(got []byte) error {
				assert.Empty(t, got)
				return nil
			}))

			boom := errors.New("boom")
			require.NoError(t, store.Put(ctx, "x", []byte("x")))
			assert.ErrorIs(t, View(ctx, store, "x", func([]byte) error { return boom }), boom)
		})
	}
}

func TestMemoryStoreCopiesOnPut(t *testing.T) {
	store := NewMemoryStore()
	data := []byte("abc")
	require.NoError(t, store.Put(t.Context(), "a", data))
	data[0] = 'x'

	require.NoError(t, View(t.Context(), store, "a", func(got []byte) error {
		assert.Equal(t, "abc", string(got))
		return nil
	}))
}

func TestLocalStoreLayout(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root)
	ctx := t.Context()

	require.NoError(t, store.Put(ctx, "p1/synopses", []byte("data")))
	_, err := os.Stat(filepath.Join(root, "p1", "synopses"))
	require.NoError(t, err)

	// Leftover temporary files are not listed.
	require.NoError(t, os.WriteFile(filepath.Join(root, "p1", "meta.tmp"), []byte("partial"), 0o644))
	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1/synopses"}, names)

	b, err := store.Open(ctx, "p1/synopses")
	require.NoError(t, err)
	m, ok := b.(Mappable)
	require.True(t, ok)
	got, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
	require.NoError(t, b.Close())
}

func TestLocalStoreListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "missing"))
	names, err := store.List(t.Context(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}
