package s3

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"strings"

	"go.uber.org/zap"

	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/location"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/pkg/transform"
	"aruna.io/aruna/satellite/auth"
	"aruna.io/aruna/satellite/pathcache"
	"aruna.io/aruna/satellite/resources"
	"aruna.io/aruna/satellite/store"
	"aruna.io/aruna/storage/backend"
)

// putChunkSize is how much of the request body PutObject/GetObject read
// at a time before pushing it through the transform pipeline — large
// enough to keep syscall overhead down, small enough that a single
// transfer never holds the whole object in memory at once.
const putChunkSize = 64 * 1024

// ListObjectsV2Input mirrors the handful of query parameters
// ListObjectsV2 (spec.md §4.6) actually reads.
type ListObjectsV2Input struct {
	Bucket            string
	Prefix            string
	Delimiter         string
	ContinuationToken string
	MaxKeys           int
}

// ListObjectsV2 enumerates bucket's keys by consulting the path cache
// directly, per spec.md §4.7: "ListObjectsV2 implements prefix/delimiter
// enumeration by consulting the path cache."
func (s *Service) ListObjectsV2(requester *auth.Requester, input ListObjectsV2Input) (pathcache.ListResult, error) {
	bucketIdx, err := s.resolveBucket(input.Bucket)
	if err != nil {
		return pathcache.ListResult{}, err
	}
	maxKeys := input.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	var result pathcache.ListResult
	err = s.DB.View(func(rtxn *store.ReadTxn) error {
		if err := s.requireRead(rtxn, requester, bucketIdx); err != nil {
			return err
		}
		result = s.Cache.List(input.Bucket, input.Prefix, input.Delimiter, input.ContinuationToken, maxKeys)
		return nil
	})
	return result, err
}

// ObjectInfo is HeadObject/PutObject's reply shape: just enough of the
// resource to answer an S3 HEAD without forcing the caller back through
// a second GetResources round trip.
type ObjectInfo struct {
	ContentLen int64
	ETag       string
	Status     resource.Status
}

// HeadObject reports bucket/key's size and hash-derived ETag, admitting
// an anonymous requester only when the object is Visibility=Public
// (see Service.requireRead).
func (s *Service) HeadObject(requester *auth.Requester, bucket, key string) (ObjectInfo, error) {
	idx, err := s.resolveObject(bucket, key)
	if err != nil {
		return ObjectInfo{}, err
	}

	var info ObjectInfo
	err = s.DB.View(func(rtxn *store.ReadTxn) error {
		if err := s.requireRead(rtxn, requester, idx); err != nil {
			return err
		}
		res, err := rtxn.GetResource(idx)
		if err != nil {
			return err
		}
		info = ObjectInfo{ContentLen: res.ContentLen, ETag: res.Hashes.MD5, Status: res.Status}
		return nil
	})
	return info, err
}

// GetObjectInput carries an optional byte range, spec.md §4.6's "GetObject
// (with Range)".
type GetObjectInput struct {
	Bucket string
	Key    string
	Start  int64
	End    int64 // exclusive; ignored unless Ranged is set
	Ranged bool
}

// GetObjectResult streams the decoded object body over Chunks, which
// closes once the transfer ends (successfully or not — a logged error
// on the sending side simply stops further sends, the same
// best-effort-then-close contract transform.AsyncSenderSink documents).
type GetObjectResult struct {
	Chunks      <-chan []byte
	ActualRange location.ActualRange
	ContentLen  int64
}

// GetObject streams bucket/key's decoded bytes (optionally a sub-range)
// through an AsyncSenderSink so an HTTP response can start flushing
// before the whole object has been decoded, per spec.md §4.6's GET
// composition.
func (s *Service) GetObject(ctx context.Context, requester *auth.Requester, input GetObjectInput) (GetObjectResult, error) {
	idx, err := s.resolveObject(input.Bucket, input.Key)
	if err != nil {
		return GetObjectResult{}, err
	}

	var res *resource.Resource
	err = s.DB.View(func(rtxn *store.ReadTxn) error {
		if err := s.requireRead(rtxn, requester, idx); err != nil {
			return err
		}
		var err error
		res, err = rtxn.GetResource(idx)
		return err
	})
	if err != nil {
		return GetObjectResult{}, err
	}
	if res.Status != resource.StatusAvailable {
		return GetObjectResult{}, apierr.NewInvalidParameterf("key", "object %s is not Available (status %s)", res.ID, res.Status)
	}
	if len(res.Locations) == 0 {
		return GetObjectResult{}, apierr.ServerError.New("object %s has no locations", res.ID)
	}
	loc := res.Locations[0]

	start, end := int64(0), res.ContentLen
	if input.Ranged {
		start, end = input.Start, input.End
	}

	var footer *location.Footer
	if loc.IsPithos {
		f, err := s.fetchPithosFooter(ctx, input.Bucket, input.Key, loc)
		if err != nil {
			return GetObjectResult{}, err
		}
		footer = f
	}

	queryRanges, edits, actual, err := location.CalculateRanges(start, end, res.ContentLen, loc.DiskContentLen, footer, loc)
	if err != nil {
		return GetObjectResult{}, err
	}

	sink := transform.NewAsyncSenderSink(4)
	opts := transform.GetOptions{
		Compressed:    loc.IsCompressed,
		Encrypted:     loc.IsEncrypted,
		EncryptionKey: keyOrZero(loc.EncryptionKey),
		Edits:         edits,
	}
	if loc.IsEncrypted && !loc.IsCompressed && len(queryRanges) == 1 {
		opts.CounterBlockOffset = uint32(queryRanges[0].Start / 64)
	}
	pipeline, err := transform.ComposeGet(sink, opts)
	if err != nil {
		return GetObjectResult{}, err
	}

	go s.streamBackendIntoPipeline(ctx, input.Bucket, input.Key, queryRanges, pipeline, sink)

	return GetObjectResult{Chunks: sink.Chan(), ActualRange: actual, ContentLen: res.ContentLen}, nil
}

// streamBackendIntoPipeline fetches every query range from the backend
// in order and pushes the bytes through pipeline, closing sink when
// done. Runs on its own goroutine so GetObject can return the channel
// to the caller before the transfer completes.
func (s *Service) streamBackendIntoPipeline(ctx context.Context, bucket, key string, ranges []location.QueryRange, pipeline *transform.Pipeline, sink *transform.AsyncSenderSink) {
	defer sink.Close()

	for _, qr := range ranges {
		pr, pw := io.Pipe()
		fetchErr := make(chan error, 1)
		go func(rng backend.ObjectRange) {
			fetchErr <- s.Backend.GetObject(ctx, bucket, key, &rng, pw)
			pw.Close()
		}(backend.ObjectRange{Start: qr.Start, End: qr.End})

		buf := make([]byte, putChunkSize)
		for {
			n, rerr := pr.Read(buf)
			if n > 0 {
				if perr := pipeline.Push(buf[:n]); perr != nil {
					s.Log.Error("getobject: pipeline push failed", zap.Error(perr))
					return
				}
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				s.Log.Error("getobject: backend read failed", zap.Error(rerr))
				return
			}
		}
		if err := <-fetchErr; err != nil {
			s.Log.Error("getobject: backend fetch failed", zap.Error(err))
			return
		}
	}
	if _, err := pipeline.Finish(); err != nil {
		s.Log.Error("getobject: pipeline finish failed", zap.Error(err))
	}
}

// fetchPithosFooter fetches and parses the trailing footer of a pithos
// object, the fixed-size ranged read spec.md §4.6 calls for before any
// logical range can be translated into physical chunk offsets.
func (s *Service) fetchPithosFooter(ctx context.Context, bucket, key string, loc location.DataLocation) (*location.Footer, error) {
	size := transform.FooterFetchSize()
	var buf bytes.Buffer
	rng := &backend.ObjectRange{Start: loc.DiskContentLen - size, End: loc.DiskContentLen}
	if err := s.Backend.GetObject(ctx, bucket, key, rng, &buf); err != nil {
		return nil, apierr.ServerError.Wrap(err)
	}
	footer, _, err := transform.ParseFooter(buf.Bytes())
	if err != nil {
		return nil, err
	}
	return &footer, nil
}

func keyOrZero(k *location.EncryptionKey) location.EncryptionKey {
	if k == nil {
		return location.EncryptionKey{}
	}
	return *k
}

// PutObjectInput is PutObject's body. Compressed/Encrypted/Pithos are
// the proxy's own encoding choice for this write (spec.md leaves the
// decision to whatever deployment-level policy selects them; here it is
// simply whatever the caller — the HTTP framing layer, reading a
// deployment config or request header — asks for), not something read
// back from the target's current location.
type PutObjectInput struct {
	Bucket     string
	Key        string
	Body       io.Reader
	Compressed bool
	Encrypted  bool
	Pithos     bool
}

// PutObjectResult is PutObject's reply: the ETag the client needs and
// the object's id, so a caller that also wants to surface it through
// GetResources doesn't have to re-resolve the path.
type PutObjectResult struct {
	ID   arunaid.ID
	ETag string
}

// PutObject streams input.Body through the write pipeline spec.md §4.6
// composes (hash, size, optional compress/encrypt, hash, size, sink),
// creating the target Object if it doesn't already exist, then submits
// RegisterData (recording the finished location, hashes, content length,
// and encoding) followed by FinalizeObject (promoting status to
// Available, or to Error with a truncated message if any step fails).
func (s *Service) PutObject(ctx context.Context, requester *auth.Requester, input PutObjectInput) (PutObjectResult, error) {
	parentIdx, name, err := s.resolveParentForKey(input.Bucket, input.Key)
	if err != nil {
		return PutObjectResult{}, err
	}

	_, objID, componentID, err := s.ensureObjectNode(ctx, requester, parentIdx, input.Bucket, input.Key, name)
	if err != nil {
		return PutObjectResult{}, err
	}

	var encKey *location.EncryptionKey
	if input.Encrypted || input.Pithos {
		var k location.EncryptionKey
		if _, err := rand.Read(k[:]); err != nil {
			return PutObjectResult{}, apierr.ServerError.Wrap(err)
		}
		encKey = &k
	}

	sink := transform.NewBufferedS3Sink(ctx, s.Backend, input.Bucket, input.Key, "", 0, false)
	pipeline, err := transform.ComposePut(sink, transform.PutOptions{
		Compressed:         input.Compressed,
		Encrypted:          input.Encrypted,
		Pithos:             input.Pithos,
		EncryptionKey:      keyOrZero(encKey),
		PithosRecipientTag: componentID.String(),
	})
	if err != nil {
		return PutObjectResult{}, err
	}

	summary, putErr := s.runPutPipeline(pipeline, input.Body)
	if putErr != nil {
		s.finalizeWithError(ctx, requester, objID, putErr)
		return PutObjectResult{}, putErr
	}

	rawLen, _ := summary[transform.SummarySizeInitial].(int64)
	diskLen, _ := summary[transform.SummarySizeFinal].(int64)
	sha256, _ := summary[transform.SummarySHA256Initial].(string)
	md5sum, _ := summary[transform.SummaryMD5].(string)

	registered, err := s.submitRegisterData(ctx, requester, resources.RegisterDataInput{
		ID:             objID,
		ComponentID:    componentID,
		Hashes:         resource.Hashes{SHA256: sha256, MD5: md5sum},
		ContentLen:     rawLen,
		DiskContentLen: diskLen,
		Encoding:       location.Encoding{Compressed: input.Compressed, Encrypted: input.Encrypted, Pithos: input.Pithos},
		EncryptionKey:  encKey,
	})
	if err != nil {
		s.finalizeWithError(ctx, requester, objID, err)
		return PutObjectResult{}, err
	}
	_ = registered

	if err := s.submitFinalize(ctx, requester, resources.FinalizeObjectInput{ID: objID}); err != nil {
		return PutObjectResult{}, err
	}

	return PutObjectResult{ID: objID, ETag: sink.ETag()}, nil
}

// runPutPipeline drains body in putChunkSize chunks through p and
// returns its summaries — the streaming equivalent of
// transform.RunToCompletion for callers that hold an io.Reader rather
// than a full byte slice (an HTTP request body, in particular).
func (s *Service) runPutPipeline(p *transform.Pipeline, body io.Reader) (map[string]interface{}, error) {
	buf := make([]byte, putChunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if perr := p.Push(buf[:n]); perr != nil {
				return nil, apierr.ServerError.Wrap(perr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apierr.ServerError.Wrap(err)
		}
	}
	return p.Finish()
}

// ensureObjectNode resolves key under parentIdx to an existing Object,
// or creates a new one (status Initializing) via CreateResource when
// none exists yet — PutObject overwriting an existing key reuses that
// key's node rather than creating a sibling with a colliding name.
// componentID is the endpoint the new (or existing, still-Pending)
// location names, the same one RegisterData later upserts to Finished.
func (s *Service) ensureObjectNode(ctx context.Context, requester *auth.Requester, parentIdx store.Idx, bucket, key, name string) (store.Idx, arunaid.ID, arunaid.ID, error) {
	var objIdx store.Idx
	var objID arunaid.ID
	var componentID arunaid.ID
	var exists bool

	err := s.DB.View(func(rtxn *store.ReadTxn) error {
		parent, err := rtxn.GetResource(parentIdx)
		if err != nil {
			return err
		}
		if len(parent.Locations) > 0 {
			componentID = parent.Locations[0].EndpointID
		}
		return nil
	})
	if err != nil {
		return 0, arunaid.Nil, arunaid.Nil, err
	}

	if idx, variant, ok := s.Cache.Resolve(bucket, key); ok && variant == resource.VariantObject {
		objIdx, exists = idx, true
	}

	if exists {
		if err := s.requireWrite(requester, objIdx); err != nil {
			return 0, arunaid.Nil, arunaid.Nil, err
		}
		err := s.DB.View(func(rtxn *store.ReadTxn) error {
			res, err := rtxn.GetResource(objIdx)
			if err != nil {
				return err
			}
			objID = res.ID
			return nil
		})
		return objIdx, objID, componentID, err
	}

	var req *resources.CreateResourceRequest
	err = s.DB.View(func(rtxn *store.ReadTxn) error {
		var err error
		req, err = resources.NewCreateResourceRequest(rtxn, s.Graph, resources.CreateResourceInput{
			Name:       name,
			Variant:    resource.VariantObject,
			Visibility: resource.VisibilityPrivate,
			ParentID:   mustPathID(rtxn, parentIdx),
		})
		return err
	})
	if err != nil {
		return 0, arunaid.Nil, arunaid.Nil, err
	}

	affected, err := s.Ctrl.Submit(ctx, requester, req)
	if err != nil {
		return 0, arunaid.Nil, arunaid.Nil, err
	}

	err = s.DB.View(func(rtxn *store.ReadTxn) error {
		res, err := rtxn.GetResource(affected.Primary)
		if err != nil {
			return err
		}
		objID = res.ID
		return nil
	})
	return affected.Primary, objID, componentID, err
}

// mustPathID resolves idx's own ULID inside an already-open read
// transaction; CreateResourceInput takes ParentID as an arunaid.ID
// rather than a store.Idx since requests resolve ids at construction
// time the same way every other request in this package does.
func mustPathID(rtxn *store.ReadTxn, idx store.Idx) arunaid.ID {
	res, err := rtxn.GetResource(idx)
	if err != nil {
		return arunaid.Nil
	}
	return res.ID
}

func (s *Service) submitRegisterData(ctx context.Context, requester *auth.Requester, input resources.RegisterDataInput) (store.AffectedSet, error) {
	var req *resources.RegisterDataRequest
	err := s.DB.View(func(rtxn *store.ReadTxn) error {
		var err error
		req, err = resources.NewRegisterDataRequest(rtxn, input)
		return err
	})
	if err != nil {
		return store.AffectedSet{}, err
	}
	return s.Ctrl.Submit(ctx, requester, req)
}

func (s *Service) submitFinalize(ctx context.Context, requester *auth.Requester, input resources.FinalizeObjectInput) error {
	var req *resources.FinalizeObjectRequest
	err := s.DB.View(func(rtxn *store.ReadTxn) error {
		var err error
		req, err = resources.NewFinalizeObjectRequest(rtxn, input)
		return err
	})
	if err != nil {
		return err
	}
	_, err = s.Ctrl.Submit(ctx, requester, req)
	return err
}

// finalizeWithError rolls a failed PUT back to status Error with a
// truncated error label (spec.md §7), swallowing any error from the
// finalize call itself — putErr is already the error PutObject reports
// to its caller, and a failure here would only hide it behind a second,
// less useful one.
func (s *Service) finalizeWithError(ctx context.Context, requester *auth.Requester, objID arunaid.ID, putErr error) {
	if err := s.submitFinalize(ctx, requester, resources.FinalizeObjectInput{ID: objID, Err: putErr.Error()}); err != nil {
		s.Log.Error("putobject: failed to record error status", zap.Error(err))
	}
}

// resolveParentForKey splits a "dir/dir/name" key into its folder-like
// parent's resolved index and the final path segment, or returns the
// bucket itself when key has no slash — PutObject never auto-creates
// intermediate Collections/Datasets, matching plain S3's key-is-a-flat-
// string semantics even though pathcache's display format joins path
// segments with "/".
func (s *Service) resolveParentForKey(bucket, key string) (store.Idx, string, error) {
	idx := strings.LastIndex(key, "/")
	if idx < 0 {
		bucketIdx, err := s.resolveBucket(bucket)
		return bucketIdx, key, err
	}
	dir, name := key[:idx], key[idx+1:]
	parentIdx, variant, ok := s.Cache.Resolve(bucket, dir)
	if !ok || !variant.IsFolderLike() {
		return 0, "", apierr.NewInvalidParameterf("key", "%s/%s has no existing folder-like parent", bucket, dir)
	}
	return parentIdx, name, nil
}
