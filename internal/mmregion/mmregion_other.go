//go:build !unix

package mmregion

// Map allocates a Go buffer when anonymous mappings are not available.
func Map(size, capacity int) ([]byte, func() error, error) {
	if err := check(size, capacity); err != nil {
		return nil, nil, err
	}
	if capacity < size {
		capacity = size
	}
	return make([]byte, size, capacity), func() error { return nil }, nil
}
