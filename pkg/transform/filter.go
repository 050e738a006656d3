package transform

import "aruna.io/aruna/pkg/location"

// Filter emits only the byte ranges described by an edit list, used to
// implement HTTP range GETs on compressed/encrypted objects after
// decoding: the decode stages above it produce more bytes than the
// client asked for (expanded to encryption block or pithos chunk
// boundaries), and Filter trims that back to the exact requested span.
type Filter struct {
	edits  []location.EditEntry
	cursor int64 // position in the decoded stream seen so far
	idx    int   // index of the next edit entry that might still apply
}

// NewFilter builds a range filter over the given edit list, which must
// be sorted by Offset (CalculateRanges produces them in order).
func NewFilter(edits []location.EditEntry) *Filter {
	return &Filter{edits: edits}
}

// Push implements Transformer.
func (f *Filter) Push(chunk []byte) ([][]byte, error) {
	if len(f.edits) == 0 {
		return [][]byte{chunk}, nil
	}

	start := f.cursor
	end := f.cursor + int64(len(chunk))
	f.cursor = end

	var out [][]byte
	for f.idx < len(f.edits) {
		e := f.edits[f.idx]
		eStart, eEnd := e.Offset, e.Offset+e.Length

		if eEnd <= start {
			f.idx++
			continue
		}
		if eStart >= end {
			break
		}

		loStart := max64(eStart, start)
		loEnd := min64(eEnd, end)
		out = append(out, chunk[loStart-start:loEnd-start])

		if eEnd > end {
			// entry continues past this chunk; keep it for the next Push.
			break
		}
		f.idx++
	}
	return out, nil
}

// Finish implements Transformer; Filter emits no trailing bytes.
func (f *Filter) Finish() ([][]byte, error) {
	return nil, nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

var _ Transformer = (*Filter)(nil)
