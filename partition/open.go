package partition

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/hupe1980/eventidx/blobstore"
	"github.com/hupe1980/eventidx/codec"
	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/types"
)

// Open loads the sealed partition id. Its column indexes are read from
// dir, its synopses and metadata from the blob store.
func Open(ctx context.Context, dir string, id uuid.UUID, opts ...Option) (*Partition, error) {
	p := newPartition(id, dir, types.Type{}, opts)

	var m meta
	err := blobstore.View(ctx, p.opts.store, p.blobName("meta"), func(data []byte) error {
		var err error
		m, err = codec.Decode[meta](codec.Default, data)
		return err
	})
	if err != nil {
		return nil, ec.Wrap(ec.ErrPersistence, "read partition meta "+id.String(), err)
	}
	if m.Version != metaVersion {
		return nil, ec.New(ec.ErrPersistence, "partition %s: unsupported meta version %d", id, m.Version)
	}
	if m.ID != id.String() {
		return nil, ec.New(ec.ErrPersistence, "partition %s: meta belongs to %s", id, m.ID)
	}
	if err := p.layout.UnmarshalBinary(m.Layout); err != nil {
		return nil, ec.Wrap(ec.ErrPersistence, "decode partition layout", err)
	}
	p.fields = p.layout.Flatten()
	p.offset = m.Offset
	p.rows = m.Rows

	err = blobstore.View(ctx, p.opts.store, p.blobName("synopses"), func(data []byte) error {
		s, err := decodeSynopses(data)
		if err != nil {
			return err
		}
		p.synopses = s
		return nil
	})
	if err != nil {
		return nil, ec.Wrap(ec.ErrPersistence, "read synopses of partition "+id.String(), err)
	}
	if len(p.synopses) != m.Synopses {
		return nil, ec.New(ec.ErrPersistence, "partition %s: %d synopses, meta records %d", id, len(p.synopses), m.Synopses)
	}
	for col := range p.synopses {
		if col >= len(p.fields) {
			return nil, ec.New(ec.ErrPersistence, "partition %s: synopsis for unknown column %d", id, col)
		}
	}

	if err := p.spawnIndexers(ctx); err != nil {
		return nil, err
	}
	p.sealed = true
	p.logger.DebugContext(ctx, "opened partition", "offset", p.offset, "rows", p.rows)
	return p, nil
}

// List returns the ids of all sealed partitions in store.
func List(ctx context.Context, store blobstore.BlobStore) ([]uuid.UUID, error) {
	names, err := store.List(ctx, "")
	if err != nil {
		return nil, ec.Wrap(ec.ErrPersistence, "list partitions", err)
	}
	var out []uuid.UUID
	for _, name := range names {
		prefix, ok := strings.CutSuffix(name, "/meta")
		if !ok {
			continue
		}
		id, err := uuid.Parse(prefix)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}
