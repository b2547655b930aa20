package binio

// Empty is a Source with no bytes. It stands in for an absent input, so
// any attempt to read something reports truncation rather than a clean
// end of stream. Zero-length operations succeed trivially.
type Empty struct{}

var (
	_ Source = Empty{}
)

// Chunk always reports truncation.
func (Empty) Chunk() ([]byte, error) { return nil, ErrTruncated }

// Advance is a no-op; Chunk never hands out bytes.
func (Empty) Advance(int) {}

// Read implements io.Reader with the same contract: empty reads succeed,
// everything else is truncation.
func (Empty) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return 0, ErrTruncated
}
