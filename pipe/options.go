package pipe

import "errors"

const (
	// DefaultSegmentSize matches the chunk size used by the binio stream
	// sources.
	DefaultSegmentSize = 32 * 1024

	// DefaultSegments bounds how far the writer may run ahead of the
	// reader.
	DefaultSegments = 4
)

// ErrBadConfig reports a non-positive segment size or count.
var ErrBadConfig = errors.New("pipe: segment size and count must be positive")

type config struct {
	segmentSize int
	segments    int
}

// Option configures a pipe at construction.
type Option func(*config)

// WithSegmentSize sets the byte capacity of each segment.
func WithSegmentSize(n int) Option {
	return func(c *config) { c.segmentSize = n }
}

// WithSegments sets how many segments circulate. The writer blocks once
// they are all filled or being read.
func WithSegments(n int) Option {
	return func(c *config) { c.segments = n }
}
