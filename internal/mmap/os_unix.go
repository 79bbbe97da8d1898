//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

func osMap(f *os.File, size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, unix.Munmap, nil
}

// osAdviseSequential hints a single front-to-back decode pass. EINVAL from
// unaligned ranges is ignored.
func osAdviseSequential(data []byte) error {
	if err := unix.Madvise(data, unix.MADV_SEQUENTIAL); err != nil && err != unix.EINVAL {
		return err
	}
	return nil
}
