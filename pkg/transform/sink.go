package transform

import (
	"bytes"
	"context"

	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/storage/backend"
)

// BufferedS3Sink buffers pushed bytes into S3 parts and writes them to
// the blob backend, yielding a per-part ETag on Close — spec.md §4.6's
// terminal PUT stage. Non-multipart PUTs still flow through it as a
// single "part" that becomes the whole object.
type BufferedS3Sink struct {
	ctx         context.Context
	be          backend.Backend
	bucket, key string
	uploadID    string
	partNumber  int
	isMultipart bool

	buf  bytes.Buffer
	etag string
}

// NewBufferedS3Sink builds a sink. When isMultipart is false, uploadID
// and partNumber are ignored and Close calls PutObject directly.
func NewBufferedS3Sink(ctx context.Context, be backend.Backend, bucket, key string, uploadID string, partNumber int, isMultipart bool) *BufferedS3Sink {
	return &BufferedS3Sink{
		ctx: ctx, be: be, bucket: bucket, key: key,
		uploadID: uploadID, partNumber: partNumber, isMultipart: isMultipart,
	}
}

// Write implements Sink.
func (s *BufferedS3Sink) Write(chunk []byte) error {
	_, err := s.buf.Write(chunk)
	return err
}

// Close flushes the buffer to the backend.
func (s *BufferedS3Sink) Close() error {
	var etag string
	var err error
	if s.isMultipart {
		etag, err = s.be.UploadPart(s.ctx, s.bucket, s.key, s.uploadID, s.partNumber, &s.buf)
	} else {
		etag, err = s.be.PutObject(s.ctx, s.bucket, s.key, &s.buf)
	}
	if err != nil {
		return apierr.ServerError.Wrap(err)
	}
	s.etag = etag
	return nil
}

// ETag returns the backend-assigned ETag. Valid only after Close.
func (s *BufferedS3Sink) ETag() string {
	return s.etag
}

var _ Sink = (*BufferedS3Sink)(nil)

// AsyncSenderSink forwards pushed chunks into a bounded channel for an
// HTTP response body to drain concurrently, so GET doesn't have to
// buffer the whole decoded object before the first byte reaches the
// client.
type AsyncSenderSink struct {
	ch     chan []byte
	closed bool
}

// NewAsyncSenderSink builds a sink with the given channel capacity
// (chunks, not bytes). The receiving side ranges over Chan() until it
// closes.
func NewAsyncSenderSink(capacity int) *AsyncSenderSink {
	return &AsyncSenderSink{ch: make(chan []byte, capacity)}
}

// Chan exposes the channel the HTTP body writer should range over.
func (s *AsyncSenderSink) Chan() <-chan []byte {
	return s.ch
}

// Write implements Sink.
func (s *AsyncSenderSink) Write(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.ch <- cp
	return nil
}

// Close implements Sink, signalling end-of-stream to the receiver.
func (s *AsyncSenderSink) Close() error {
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
	return nil
}

var _ Sink = (*AsyncSenderSink)(nil)
