// Package blobstore stores the immutable blobs of sealed partitions.
//
// A sealed partition writes its synopses and metadata once and reads them
// back when the partition is reopened. [BlobStore] implementations:
//
//   - [MemoryStore]: in memory, for tests
//   - [LocalStore]: a local directory, read through memory mappings
//   - minio.Store: MinIO and other S3-compatible object stores
//   - s3.Store: Amazon S3
//
// [View] hands the whole content of a blob to a decoder without copying
// it when the blob is [Mappable].
package blobstore
