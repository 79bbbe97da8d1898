package tableslice

import "sync/atomic"

type shared struct {
	refs  atomic.Int64
	slice *Slice
}

// Handle is a reference-counted reference to a slice. Copies of a Handle
// obtained through Share observe the same slice. The zero value is empty.
type Handle struct {
	s *shared
}

// NewHandle returns the first handle to s.
func NewHandle(s *Slice) Handle {
	sh := &shared{slice: s}
	sh.refs.Store(1)
	return Handle{s: sh}
}

// Slice returns the referenced slice for reading.
func (h Handle) Slice() *Slice {
	if h.s == nil {
		return nil
	}
	return h.s.slice
}

// Share returns a new handle to the same slice.
func (h Handle) Share() Handle {
	if h.s != nil {
		h.s.refs.Add(1)
	}
	return h
}

// Release drops this handle's reference.
func (h *Handle) Release() {
	if h.s != nil {
		h.s.refs.Add(-1)
		h.s = nil
	}
}

// Refs returns the number of live handles to the slice.
func (h Handle) Refs() int64 {
	if h.s == nil {
		return 0
	}
	return h.s.refs.Load()
}

// Unique reports whether h is the only handle to its slice.
func (h Handle) Unique() bool { return h.Refs() == 1 }

// Unshared returns an exclusively owned slice that may be mutated. If other
// handles still reference the slice, it is copied first and h is detached
// from them.
func (h *Handle) Unshared() *Slice {
	if h.s == nil {
		return nil
	}
	if h.Unique() {
		return h.s.slice
	}
	cp := h.s.slice.clone()
	h.Release()
	*h = NewHandle(cp)
	return cp
}
