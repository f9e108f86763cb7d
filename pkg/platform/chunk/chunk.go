// Package chunk splits slices into fixed-size batches. Stores with a
// per-transaction operation ceiling commit one chunk at a time.
package chunk

// Slices partitions items into chunks of at most size elements, preserving
// order. The final chunk holds the remainder. A size <= 0 yields a single
// chunk with all items.
func Slices[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]T{items}
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for size < len(items) {
		chunks = append(chunks, items[:size:size])
		items = items[size:]
	}
	return append(chunks, items)
}
