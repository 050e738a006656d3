package s3

import (
	"context"
	"encoding/binary"
	"io"
	"strings"

	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/location"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/pkg/transform"
	"aruna.io/aruna/satellite/auth"
	"aruna.io/aruna/satellite/store"
	"aruna.io/aruna/storage/backend"

	"go.uber.org/zap"
)

// bundleNameFieldLen is one entry's fixed name-field width in a bundle
// stream's framing: the object's own 16-byte raw id (arunaid.ID is
// exactly 16 bytes, so no padding or truncation is ever needed)
// followed by an 8-byte big-endian content length — a "tar-like
// concatenation" per spec.md §4.6's
// closing sentence, simpler than a real tar header since a bundle's
// only readers are this system's own clients, not general-purpose
// archive tools. encoding/binary is the same fixed-width framing
// choice satellite/store's multipartKey already makes for its own
// binary key layout; no third-party archive format in the pack fits a
// stream this deliberately minimal.
const bundleNameFieldLen = 16

// BundleResult streams a bundle's concatenated entries.
type BundleResult struct {
	Chunks <-chan []byte
}

// GetBundle streams ids as a tar-like concatenation: for each id in
// order, a fixed-width header naming it and giving its content length,
// followed by its full decoded bytes. Each id is checked for Read
// access exactly as GetObject checks its own single target; an id that
// fails authorization, isn't Available, or isn't an Object aborts the
// whole stream before any bytes are sent, since a partial bundle with
// a missing entry has no boundary a reader could recover from
// mid-stream.
func (s *Service) GetBundle(ctx context.Context, requester *auth.Requester, ids []arunaid.ID) (BundleResult, error) {
	if len(ids) == 0 {
		return BundleResult{}, apierr.NewInvalidParameterf("ids", "bundle requires at least one id")
	}

	entries := make([]bundleEntry, 0, len(ids))
	err := s.DB.View(func(rtxn *store.ReadTxn) error {
		for _, id := range ids {
			idx, err := rtxn.GetIdxFromULID(id)
			if err != nil {
				return err
			}
			if err := s.requireRead(rtxn, requester, idx); err != nil {
				return err
			}
			res, err := rtxn.GetResource(idx)
			if err != nil {
				return err
			}
			if res.Variant != resource.VariantObject {
				return apierr.NewInvalidParameterf("ids", "%s is not an Object", res.ID)
			}
			if res.Status != resource.StatusAvailable {
				return apierr.NewInvalidParameterf("ids", "object %s is not Available (status %s)", res.ID, res.Status)
			}
			if len(res.Locations) == 0 {
				return apierr.ServerError.New("object %s has no locations", res.ID)
			}
			path, ok := s.Cache.Path(idx)
			if !ok {
				return apierr.ServerError.New("object %s has no cached path", res.ID)
			}
			bucket, key := splitBundlePath(path)
			entries = append(entries, bundleEntry{
				id: res.ID, bucket: bucket, key: key,
				contentLen: res.ContentLen, loc: res.Locations[0],
			})
		}
		return nil
	})
	if err != nil {
		return BundleResult{}, err
	}

	sink := transform.NewAsyncSenderSink(4)
	go s.streamBundle(ctx, entries, sink)

	return BundleResult{Chunks: sink.Chan()}, nil
}

func splitBundlePath(path string) (bucket, key string) {
	idx := strings.Index(path, "/")
	if idx < 0 {
		return path, ""
	}
	return path[:idx], path[idx+1:]
}

type bundleEntry struct {
	id         arunaid.ID
	bucket     string
	key        string
	contentLen int64
	loc        location.DataLocation
}

// streamBundle writes each entry's header and decoded body in turn
// into sink, closing it only once the whole bundle (or an error) ends
// it — unlike GetObject's single-entry streamBackendIntoPipeline, sink
// outlives any one entry's pipeline here.
func (s *Service) streamBundle(ctx context.Context, entries []bundleEntry, sink *transform.AsyncSenderSink) {
	defer sink.Close()

	for _, e := range entries {
		header := make([]byte, bundleNameFieldLen+8)
		copy(header, e.id[:])
		binary.BigEndian.PutUint64(header[bundleNameFieldLen:], uint64(e.contentLen))
		if err := sink.Write(header); err != nil {
			s.Log.Error("bundle: header write failed", zap.Error(err))
			return
		}

		if err := s.streamEntryBody(ctx, e, sink); err != nil {
			s.Log.Error("bundle: entry stream failed", zap.Error(err), zap.String("object", e.id.String()))
			return
		}
	}
}

// streamEntryBody decodes one bundle entry's full object body straight
// into sink, reusing the same decode-stage composition GetObject uses
// for a whole-object (non-ranged) read, but fetching from the backend
// inline rather than through streamBackendIntoPipeline, which assumes
// ownership of closing its sink — wrong here, where sink spans the
// whole bundle.
func (s *Service) streamEntryBody(ctx context.Context, e bundleEntry, sink *transform.AsyncSenderSink) error {
	queryRanges, _, _, err := location.CalculateRanges(0, e.contentLen, e.contentLen, e.loc.DiskContentLen, nil, e.loc)
	if err != nil {
		return err
	}

	pipeline, err := transform.ComposeGet(passthroughSink{sink}, transform.GetOptions{
		Compressed:    e.loc.IsCompressed,
		Encrypted:     e.loc.IsEncrypted,
		EncryptionKey: keyOrZero(e.loc.EncryptionKey),
	})
	if err != nil {
		return err
	}

	for _, qr := range queryRanges {
		pr, pw := io.Pipe()
		fetchErr := make(chan error, 1)
		go func(rng backend.ObjectRange) {
			fetchErr <- s.Backend.GetObject(ctx, e.bucket, e.key, &rng, pw)
			pw.Close()
		}(backend.ObjectRange{Start: qr.Start, End: qr.End})

		buf := make([]byte, putChunkSize)
		for {
			n, rerr := pr.Read(buf)
			if n > 0 {
				if perr := pipeline.Push(buf[:n]); perr != nil {
					return perr
				}
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				return apierr.ServerError.Wrap(rerr)
			}
		}
		if err := <-fetchErr; err != nil {
			return apierr.ServerError.Wrap(err)
		}
	}

	_, err = pipeline.Finish()
	return err
}

// passthroughSink adapts an AsyncSenderSink shared across an entire
// bundle into a transform.Sink a single entry's Pipeline can write
// into without closing it when that entry's own Finish runs.
type passthroughSink struct {
	inner *transform.AsyncSenderSink
}

func (p passthroughSink) Write(chunk []byte) error { return p.inner.Write(chunk) }
func (p passthroughSink) Close() error              { return nil }

var _ transform.Sink = passthroughSink{}
