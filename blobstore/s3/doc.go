// Package s3 stores sealed partition blobs in Amazon S3.
//
//	store, err := s3.NewStoreFromConfig(ctx, "my-bucket", "index/")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	idx, err := eventidx.Open(dir, layout, eventidx.WithBlobStore(store))
//
// Reads use range requests. Writes go through the upload manager, which
// switches to multipart uploads for large blobs. Single part uploads carry
// a CRC32C checksum that S3 verifies.
package s3
