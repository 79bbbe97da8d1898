// Package fs provides the filesystem abstraction used by persisted indexes.
//
// Production code uses [Default], a [LocalFS]. Tests wrap it in a
// [FaultyFS] to inject write, sync, close, open and rename failures for
// files whose name matches a pattern:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".tmp", fs.Fault{FailAfterBytes: 0})
//
// [WriteFileAtomic] is the only write path for index files. It writes a
// temporary sibling and renames it into place.
package fs
