//go:build !linux

package binio

import "io"

// writevAt has no vectored fast path here; each segment is retired with
// its own WriteAt.
func writevAt(dst io.WriterAt, bufs [][]byte, off int64) (int, error) {
	return writevAtFallback(dst, bufs, off)
}
