//go:build unix

package mmregion

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Map creates a private anonymous read-write mapping of capacity bytes and
// returns its first size bytes. The whole capacity stays addressable
// through the returned slice's spare capacity.
func Map(size, capacity int) ([]byte, func() error, error) {
	if err := check(size, capacity); err != nil {
		return nil, nil, err
	}
	if capacity < size {
		capacity = size
	}
	data, err := unix.Mmap(-1, 0, capacity, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, nil, fmt.Errorf("mmregion: mmap %d bytes: %w", capacity, err)
	}
	cleanup := func() error {
		if data == nil {
			return nil
		}
		err := unix.Munmap(data)
		if errors.Is(err, unix.EINVAL) {
			// Treat double-unmap as no-op for callers.
			return nil
		}
		data = nil
		return err
	}
	return data[:size], cleanup, nil
}
