// Package mmap maps persisted partition files read-only so their synopses
// can be decoded without first copying the file onto the heap.
//
//	m, err := mmap.Open(path)
//	if err != nil { ... }
//	defer m.Close()
//	decode(m.Bytes())
package mmap
