// Package minio stores sealed partition blobs in MinIO or any other
// S3-compatible object store.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "events", "index/")
//	idx, err := eventidx.Open(dir, layout, eventidx.WithBlobStore(store))
package minio
