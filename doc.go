// Package eventidx provides an embedded, partitioned index for columnar
// event data.
//
// Rows arrive as table slices and are assigned consecutive row ids. Each
// partition keeps one bitmap value index per column and a synopsis per
// summarized column (Bloom filters for addresses and strings, min/max for
// timestamps, seen values for booleans). Queries first consult the
// synopses to skip partitions that cannot match and then evaluate the
// remaining predicates against the column indexes.
//
// # Quick Start
//
//	layout := types.RecordType(
//	    types.Field{Name: "ts", Type: types.TimeType()},
//	    types.Field{Name: "src", Type: types.AddressType()},
//	)
//	idx, _ := eventidx.Open(ctx, "./data", layout, eventidx.WithMaxPartitionSize(1<<16))
//	defer idx.Close(ctx)
//
//	_, _ = idx.Add(ctx, slice)
//
//	hits, _ := idx.Lookup(ctx, expr.Field("src", expr.Equal, types.MustParseAddress("10.0.0.1")))
//
// # Streaming results
//
// Query delivers hits to an evaluator.Client as they become known. Every
// delivery contains only ids that were not delivered before, and Done is
// called exactly once:
//
//	ch := make(chan evaluator.Message, 16)
//	go idx.Query(ctx, e, evaluator.ChanClient(ch))
//	for m := range ch {
//	    if m.Done {
//	        break
//	    }
//	    process(m.Hits)
//	}
//
// # Durability
//
// The active partition is sealed when it reaches the maximum partition
// size, on Rollover and on Close. Only sealed partitions are reloaded by
// Open.
//
// # Storage
//
// Column indexes always live below the index directory. Synopses and
// partition metadata go to a blobstore.BlobStore, by default a local store
// in the same directory. The blobstore/s3 and blobstore/minio packages
// provide object store backends.
package eventidx
