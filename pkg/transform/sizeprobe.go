package transform

// SizeProbe is a passthrough stage counting total bytes seen, matching
// spec.md §4.6's "SizeProbe — passthrough; delivers total byte count."
// Two instances run in the PUT chain (initial and final) to capture
// both the ingested plaintext size and the size actually written to
// the backend.
type SizeProbe struct {
	total int64
}

// NewSizeProbe builds a SizeProbe.
func NewSizeProbe() *SizeProbe {
	return &SizeProbe{}
}

// Push implements Transformer.
func (s *SizeProbe) Push(chunk []byte) ([][]byte, error) {
	s.total += int64(len(chunk))
	return [][]byte{chunk}, nil
}

// Finish implements Transformer; it emits no trailing bytes.
func (s *SizeProbe) Finish() ([][]byte, error) {
	return nil, nil
}

// Summary returns the total byte count observed.
func (s *SizeProbe) Summary() interface{} {
	return s.total
}

var (
	_ Transformer = (*SizeProbe)(nil)
	_ Summarizer  = (*SizeProbe)(nil)
)
