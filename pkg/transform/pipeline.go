package transform

import (
	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/location"
)

// Names used as Pipeline summary keys, matching the stage names
// callers key their result lookups on.
const (
	SummarySHA256Initial = "sha256-initial"
	SummaryMD5           = "md5"
	SummarySizeInitial   = "size-initial"
	SummarySHA256Final   = "sha256-final"
	SummarySizeFinal     = "size-final"
)

// PutOptions selects which optional stages ComposePut wires in, per
// spec.md §4.6's PUT composition rule:
//
//	client → SHA256 → MD5 → SizeProbe(initial) →
//	  [ZstdEnc if compressed & !pithos] →
//	  [ChaCha20Enc if encrypted & !pithos] →
//	  [PithosTransformer + FooterGenerator if pithos] →
//	  SHA256(final) → SizeProbe(final) → BufferedS3Sink.
type PutOptions struct {
	Compressed bool
	Encrypted  bool
	Pithos     bool
	// EncryptionKey is required when Encrypted is set and Pithos is not;
	// the pithos stage does not encrypt and never reads it.
	EncryptionKey location.EncryptionKey
	// PithosRecipientTag identifies the footer's single recipient when
	// Pithos is set.
	PithosRecipientTag string
}

// ComposePut builds the PUT-side pipeline terminating at sink.
func ComposePut(sink Sink, opts PutOptions) (*Pipeline, error) {
	stages := []NamedTransformer{
		{Name: SummarySHA256Initial, Transformer: NewHashingTransformer(HashSHA256)},
		{Name: SummaryMD5, Transformer: NewHashingTransformer(HashMD5)},
		{Name: SummarySizeInitial, Transformer: NewSizeProbe()},
	}

	switch {
	case opts.Pithos:
		stages = append(stages, NamedTransformer{
			Name:        "pithos",
			Transformer: NewPithosTransformer(opts.PithosRecipientTag),
		})
	default:
		if opts.Compressed {
			stages = append(stages, NamedTransformer{Name: "zstd-enc", Transformer: NewZstdEnc()})
		}
		if opts.Encrypted {
			enc, err := NewChaCha20Enc(opts.EncryptionKey)
			if err != nil {
				return nil, err
			}
			stages = append(stages, NamedTransformer{Name: "chacha20-enc", Transformer: enc})
		}
	}

	stages = append(stages,
		NamedTransformer{Name: SummarySHA256Final, Transformer: NewHashingTransformer(HashSHA256)},
		NamedTransformer{Name: SummarySizeFinal, Transformer: NewSizeProbe()},
	)

	return NewPipeline(sink, stages...), nil
}

// GetOptions selects which decode stages ComposeGet wires in, per
// spec.md §4.6's GET composition rule:
//
//	backend → [ChaCha20Dec if encrypted] → [ZstdDec if compressed] →
//	  [Filter(edit_list) if ranged] → AsyncSenderSink.
type GetOptions struct {
	Compressed    bool
	Encrypted     bool
	EncryptionKey location.EncryptionKey
	// CounterBlockOffset seeks ChaCha20Dec to start decrypting at a
	// non-zero keystream block, for ranged reads on encrypted objects.
	CounterBlockOffset uint32
	// Edits is non-nil for ranged GETs; when set, a Filter stage trims
	// decoded output to the exact requested bytes.
	Edits []location.EditEntry
}

// ComposeGet builds the GET-side pipeline terminating at sink.
func ComposeGet(sink Sink, opts GetOptions) (*Pipeline, error) {
	var stages []NamedTransformer

	if opts.Encrypted {
		dec, err := NewChaCha20Dec(opts.EncryptionKey)
		if err != nil {
			return nil, err
		}
		dec.SetCounter(opts.CounterBlockOffset)
		stages = append(stages, NamedTransformer{Name: "chacha20-dec", Transformer: dec})
	}
	if opts.Compressed {
		stages = append(stages, NamedTransformer{Name: "zstd-dec", Transformer: NewZstdDec()})
	}
	if opts.Edits != nil {
		stages = append(stages, NamedTransformer{Name: "filter", Transformer: NewFilter(opts.Edits)})
	}

	return NewPipeline(sink, stages...), nil
}

// RunToCompletion pushes every chunk of data through p and finishes it,
// a convenience wrapper for callers (like tests) that already hold the
// full byte slice rather than streaming it incrementally.
func RunToCompletion(p *Pipeline, data []byte, chunkSize int) (map[string]interface{}, error) {
	if chunkSize <= 0 {
		chunkSize = len(data)
		if chunkSize == 0 {
			chunkSize = 1
		}
	}
	for len(data) > 0 {
		n := chunkSize
		if n > len(data) {
			n = len(data)
		}
		if err := p.Push(data[:n]); err != nil {
			return nil, apierr.ServerError.Wrap(err)
		}
		data = data[n:]
	}
	return p.Finish()
}
