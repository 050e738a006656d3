package location

import "aruna.io/aruna/pkg/apierr"

// encryptionBlockSize is the ChaCha20 cipher block granularity bytes must
// be expanded to before decryption can start at an arbitrary offset.
const encryptionBlockSize = 64

// pithosFooterReserve is the trailing byte count reserved for the pithos
// footer: (65536+28)*2, per spec.md §4.6.
const pithosFooterReserve = (65536 + 28) * 2

// QueryRange is a physical byte range [Start, End) to fetch from the
// backend.
type QueryRange struct {
	Start, End int64
}

// EditEntry describes one contiguous span of decoded bytes the range
// Filter transformer should keep, relative to the start of the decoded
// stream produced from QueryRanges.
type EditEntry struct {
	Offset, Length int64
}

// ActualRange is the logical [Start, End) range ultimately returned to
// the client, used to populate Content-Range.
type ActualRange struct {
	Start, End, Total int64
}

// Footer is the parsed pithos container trailer: its chunk offsets and
// the raw length they end at. Decoding the raw footer bytes (which also
// carry a recipient tag, returned separately) is pkg/transform's job
// (ParseFooter); this struct is its output.
type Footer struct {
	ChunkOffsets []int64
	RawLen       int64
}

// CalculateRanges implements spec.md §4.6's calculate_ranges: given an
// HTTP byte range, the object's raw (plaintext) length, its on-disk
// (physical) length, and its location/encoding, produce the physical
// ranges to fetch from the backend, the edit list to restore exact
// boundaries after decoding, and the logical range actually served.
//
// For plain encrypted (non-compressed, non-pithos) objects the query
// range is the ciphertext range expanded outward to the nearest
// encryption block boundary; the edit list trims the expansion back to
// the exact requested bytes. Compressed objects (with or without
// encryption layered on top) must be fetched and decoded in full: zstd
// frames cannot be entered at an arbitrary offset, so the query range
// spans the whole physical object and Filter alone trims the decoded
// output. Pithos objects require footer to be non-nil (callers fetch it
// first via the last pithosFooterReserve bytes) and translate the
// logical range through its chunk offsets into physical block ranges.
func CalculateRanges(start, end, rawLen, diskLen int64, footer *Footer, loc DataLocation) ([]QueryRange, []EditEntry, ActualRange, error) {
	if start < 0 || end > rawLen || start >= end {
		return nil, nil, ActualRange{}, apierr.NewInvalidParameterf("range", "invalid range %d-%d for length %d", start, end, rawLen)
	}

	actual := ActualRange{Start: start, End: end, Total: rawLen}

	if loc.IsPithos {
		if footer == nil {
			return nil, nil, ActualRange{}, apierr.NewInvalidParameterf("range", "pithos object requires footer to translate ranges")
		}
		return calculatePithosRanges(start, end, footer, actual)
	}

	if loc.IsCompressed {
		return []QueryRange{{Start: 0, End: diskLen}},
			[]EditEntry{{Offset: start, Length: end - start}},
			actual, nil
	}

	if !loc.IsEncrypted {
		// Raw storage: physical range equals logical range; no block
		// expansion needed and the edit list is a no-op full-length
		// pass-through.
		return []QueryRange{{Start: start, End: end}},
			[]EditEntry{{Offset: 0, Length: end - start}},
			actual, nil
	}

	blockStart := (start / encryptionBlockSize) * encryptionBlockSize
	blockEnd := ((end + encryptionBlockSize - 1) / encryptionBlockSize) * encryptionBlockSize

	edit := []EditEntry{{Offset: start - blockStart, Length: end - start}}
	return []QueryRange{{Start: blockStart, End: blockEnd}}, edit, actual, nil
}

func calculatePithosRanges(start, end int64, footer *Footer, actual ActualRange) ([]QueryRange, []EditEntry, ActualRange, error) {
	var ranges []QueryRange
	var edits []EditEntry
	var logicalCursor int64

	for i := 0; i+1 < len(footer.ChunkOffsets); i++ {
		chunkLogicalStart := logicalCursor
		chunkPhysicalStart := footer.ChunkOffsets[i]
		chunkPhysicalEnd := footer.ChunkOffsets[i+1]
		chunkLogicalLen := chunkPhysicalEnd - chunkPhysicalStart
		chunkLogicalEnd := chunkLogicalStart + chunkLogicalLen
		logicalCursor = chunkLogicalEnd

		// Skip chunks entirely outside the requested logical range.
		if chunkLogicalEnd <= start || chunkLogicalStart >= end {
			continue
		}

		ranges = append(ranges, QueryRange{Start: chunkPhysicalStart, End: chunkPhysicalEnd})

		editStart := int64(0)
		if start > chunkLogicalStart {
			editStart = start - chunkLogicalStart
		}
		editEnd := chunkLogicalLen
		if end < chunkLogicalEnd {
			editEnd = end - chunkLogicalStart
		}
		edits = append(edits, EditEntry{Offset: editStart, Length: editEnd - editStart})
	}

	if len(ranges) == 0 {
		return nil, nil, ActualRange{}, apierr.NewInvalidParameterf("range", "range %d-%d did not intersect any pithos chunk", start, end)
	}
	return ranges, edits, actual, nil
}
