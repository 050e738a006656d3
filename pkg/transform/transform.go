// Package transform implements the S3 ingress/egress streaming
// transformer chain from spec.md §4.6 and §9: each stage consumes
// chunks, may emit zero or more chunks, and on end-of-stream may emit a
// final batch of trailing bytes (a footer) plus an out-of-band summary
// value (a hash, a size, an ETag).
//
// This generalizes the teacher's io.Reader-wrapping transformers
// (pkg/encryption.TransformReader, pkg/eestream) into the push/finish
// shape spec.md §9 calls for, because the PUT chain here needs to
// deliver more than one summary (SHA256 *and* MD5 *and* final size) out
// of a single pass, which a single io.Reader chain cannot express
// without an awkward side channel.
package transform

import "aruna.io/aruna/pkg/apierr"

// Transformer is one stage of the pipeline.
type Transformer interface {
	// Push consumes chunk and returns zero or more chunks to forward to
	// the next stage (or the sink).
	Push(chunk []byte) ([][]byte, error)
	// Finish is called exactly once after the last Push. It returns any
	// trailing bytes that belong in the stream itself (a footer), which
	// is empty for stages whose result is metadata-only.
	Finish() ([][]byte, error)
}

// Summarizer is implemented by transformers that deliver an out-of-band
// value after Finish — a hash digest, a byte count, an ETag.
type Summarizer interface {
	Transformer
	// Summary returns the delivered value. It is only valid after
	// Finish has been called.
	Summary() interface{}
}

// Sink is the terminal stage of a pipeline: a destination that accepts
// forwarded chunks and is told when the stream ends.
type Sink interface {
	Write(chunk []byte) error
	Close() error
}

// Pipeline drives chunks through an ordered list of Transformers and
// into a terminal Sink, collecting named summaries along the way.
type Pipeline struct {
	stages []namedStage
	sink   Sink
}

type namedStage struct {
	name string
	t    Transformer
}

// NewPipeline builds a pipeline over stages in order, terminating at sink.
func NewPipeline(sink Sink, stages ...NamedTransformer) *Pipeline {
	p := &Pipeline{sink: sink}
	for _, s := range stages {
		p.stages = append(p.stages, namedStage{name: s.Name, t: s.Transformer})
	}
	return p
}

// NamedTransformer pairs a stage with a label used as its summary key.
type NamedTransformer struct {
	Name        string
	Transformer Transformer
}

// Push drives chunk through every stage in order and into the sink.
func (p *Pipeline) Push(chunk []byte) error {
	chunks := [][]byte{chunk}
	for _, stage := range p.stages {
		next, err := pushAll(stage.t, chunks)
		if err != nil {
			return err
		}
		chunks = next
		if len(chunks) == 0 {
			return nil
		}
	}
	for _, c := range chunks {
		if err := p.sink.Write(c); err != nil {
			return apierr.ServerError.Wrap(err)
		}
	}
	return nil
}

func pushAll(t Transformer, chunks [][]byte) ([][]byte, error) {
	var out [][]byte
	for _, c := range chunks {
		emitted, err := t.Push(c)
		if err != nil {
			return nil, err
		}
		out = append(out, emitted...)
	}
	return out, nil
}

// Finish flushes every stage in order. A stage's trailing bytes (its
// footer, if any) are pushed through every later stage before that
// stage is itself finished, so e.g. a pithos footer still passes
// through the final SHA256/SizeProbe stages that come after it in the
// PUT composition. The result is each Summarizer stage's value keyed
// by its stage name.
func (p *Pipeline) Finish() (map[string]interface{}, error) {
	summaries := make(map[string]interface{})
	pending := [][]byte(nil)

	for _, stage := range p.stages {
		forwarded, err := pushThrough(stage.t, pending)
		if err != nil {
			return nil, apierr.ServerError.Wrap(err)
		}
		trailing, err := stage.t.Finish()
		if err != nil {
			return nil, apierr.ServerError.Wrap(err)
		}
		pending = append(forwarded, trailing...)
		if s, ok := stage.t.(Summarizer); ok {
			summaries[stage.name] = s.Summary()
		}
	}

	for _, c := range pending {
		if err := p.sink.Write(c); err != nil {
			return nil, apierr.ServerError.Wrap(err)
		}
	}
	if err := p.sink.Close(); err != nil {
		return nil, apierr.ServerError.Wrap(err)
	}
	return summaries, nil
}

// pushThrough feeds every chunk in pending into t, in order, and
// collects everything t emits.
func pushThrough(t Transformer, pending [][]byte) ([][]byte, error) {
	var out [][]byte
	for _, chunk := range pending {
		emitted, err := t.Push(chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, emitted...)
	}
	return out, nil
}
