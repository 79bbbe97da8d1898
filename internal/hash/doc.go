// Package hash provides the checksums guarding persisted index files.
//
// Every file written by the column index and the partition store ends its
// header with a CRC32-Castagnoli checksum over the payload. Go's crc32
// package uses hardware instructions where available.
//
//	sum := hash.CRC32C(payload)
//	if err := hash.Verify(payload, sum); err != nil {
//		// corrupt
//	}
package hash
