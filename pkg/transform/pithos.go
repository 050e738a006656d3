package transform

import (
	"encoding/binary"

	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/location"
)

// pithosChunkSize is the fixed chunk size the pithos container records
// offsets at. Chunks pass through unchanged (ComposePut adds no
// compression or encryption stage on the pithos path), so physical and
// logical chunk boundaries coincide. It matches the 65536 the
// footer-fetch window in spec.md §4.6 is sized around.
const pithosChunkSize = 65536

// pithosFooterSize is the fixed trailing footer size spec.md §4.6
// fetches unconditionally: (65536+28)*2 bytes. Fixing the size lets a
// GET fetch the footer in one ranged read before it knows the object's
// chunk count.
const pithosFooterSize = (pithosChunkSize + 28) * 2

// PithosTransformer splits the stream into fixed-size physical chunks
// and records their cumulative offsets, emitting a fixed-size trailing
// footer on Finish that a GET can locate without first parsing the
// object body. It combines spec.md §4.6's "PithosTransformer +
// FooterGenerator" into one stage since they share all of their state
// (chunk offsets).
//
// Multi-recipient footer rewrap is explicitly unsettled per spec.md §9;
// this implementation records a single recipient (the proxy itself,
// identified by RecipientTag) and defers multi-recipient support.
type PithosTransformer struct {
	recipientTag string
	offsets      []int64
	cursor       int64
}

// NewPithosTransformer builds a pithos container stage. recipientTag
// identifies the (single) key the footer is encoded for.
func NewPithosTransformer(recipientTag string) *PithosTransformer {
	return &PithosTransformer{recipientTag: recipientTag, offsets: []int64{0}}
}

// Push implements Transformer: passthrough, while recording a new
// offset boundary every pithosChunkSize physical bytes.
func (p *PithosTransformer) Push(chunk []byte) ([][]byte, error) {
	p.cursor += int64(len(chunk))
	for p.cursor-p.offsets[len(p.offsets)-1] >= pithosChunkSize {
		p.offsets = append(p.offsets, p.offsets[len(p.offsets)-1]+pithosChunkSize)
	}
	return [][]byte{chunk}, nil
}

// Finish closes the final chunk boundary and emits the fixed-size footer.
func (p *PithosTransformer) Finish() ([][]byte, error) {
	if p.offsets[len(p.offsets)-1] != p.cursor {
		p.offsets = append(p.offsets, p.cursor)
	}
	footer, err := EncodeFooter(location.Footer{ChunkOffsets: p.offsets, RawLen: p.cursor}, p.recipientTag)
	if err != nil {
		return nil, err
	}
	return [][]byte{footer}, nil
}

var _ Transformer = (*PithosTransformer)(nil)

// EncodeFooter serializes offsets into the fixed pithosFooterSize
// trailer: a recipient tag, an offset count, then the offsets
// themselves, zero-padded to the fixed size.
func EncodeFooter(f location.Footer, recipientTag string) ([]byte, error) {
	buf := make([]byte, pithosFooterSize)
	if len(recipientTag) > 64 {
		return nil, apierr.InvalidParameter.New("recipient tag too long")
	}
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(recipientTag)))
	copy(buf[4:4+len(recipientTag)], recipientTag)

	offset := 4 + 64 // reserve fixed 64 bytes for the recipient tag field
	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(f.ChunkOffsets)))
	offset += 4
	for _, o := range f.ChunkOffsets {
		if offset+8 > pithosFooterSize {
			return nil, apierr.ServerError.New("pithos footer overflow: too many chunks for a %d-object", f.RawLen)
		}
		binary.BigEndian.PutUint64(buf[offset:offset+8], uint64(o))
		offset += 8
	}
	return buf, nil
}

// ParseFooter is the inverse of EncodeFooter, used at GET time after
// fetching the object's trailing pithosFooterSize bytes and decrypting
// them with the proxy's private key (that decryption step belongs to
// the caller; ParseFooter only decodes the plaintext layout).
func ParseFooter(raw []byte) (location.Footer, string, error) {
	if len(raw) != pithosFooterSize {
		return location.Footer{}, "", apierr.DeserializeError.New("pithos footer must be exactly %d bytes, got %d", pithosFooterSize, len(raw))
	}
	tagLen := binary.BigEndian.Uint32(raw[0:4])
	if int(tagLen) > 64 {
		return location.Footer{}, "", apierr.DeserializeError.New("corrupt pithos footer recipient tag length")
	}
	recipientTag := string(raw[4 : 4+tagLen])

	offset := 4 + 64
	count := binary.BigEndian.Uint32(raw[offset : offset+4])
	offset += 4

	offsets := make([]int64, 0, count)
	for i := uint32(0); i < count; i++ {
		if offset+8 > len(raw) {
			return location.Footer{}, "", apierr.DeserializeError.New("corrupt pithos footer: truncated offsets")
		}
		offsets = append(offsets, int64(binary.BigEndian.Uint64(raw[offset:offset+8])))
		offset += 8
	}
	var rawLen int64
	if len(offsets) > 0 {
		rawLen = offsets[len(offsets)-1]
	}
	return location.Footer{ChunkOffsets: offsets, RawLen: rawLen}, recipientTag, nil
}

// FooterFetchSize is the number of trailing bytes a GET must fetch
// before it can parse a pithos object's footer.
func FooterFetchSize() int64 {
	return pithosFooterSize
}
