package s3

import (
	"context"
	"io"
	"sort"

	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/location"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/pkg/transform"
	"aruna.io/aruna/satellite/auth"
	"aruna.io/aruna/satellite/resources"
	"aruna.io/aruna/satellite/store"
	"aruna.io/aruna/storage/backend"
)

// minPartSize is spec.md §4.6's multipart part floor: "part must be
// ≥5 MiB". Unlike plain S3, no part is exempt from it — including the
// last — so the check runs in UploadPart itself, against every part as
// it arrives, rather than waiting for CompleteMultipartUpload to learn
// which part was last.
const minPartSize = 5 * 1024 * 1024

// CreateMultipartUploadInput is CreateMultipartUpload's body: the
// target key plus the encoding the finished object will carry, chosen
// once up front since every part shares one pipeline configuration.
type CreateMultipartUploadInput struct {
	Bucket     string
	Key        string
	Compressed bool
	Encrypted  bool
	Pithos     bool
}

// CreateMultipartUploadResult is what a client needs to drive the rest
// of the state machine.
type CreateMultipartUploadResult struct {
	UploadID string
	ObjectID arunaid.ID
}

// CreateMultipartUpload implements spec.md §4.6 step 1: allocate
// upload_id via the backend, create the target Object (status stays
// Initializing, same as any freshly created Object per spec.md §3),
// and persist the upload handle plus chosen encoding onto its location
// via BeginMultipartRequest.
func (s *Service) CreateMultipartUpload(ctx context.Context, requester *auth.Requester, input CreateMultipartUploadInput) (CreateMultipartUploadResult, error) {
	parentIdx, name, err := s.resolveParentForKey(input.Bucket, input.Key)
	if err != nil {
		return CreateMultipartUploadResult{}, err
	}

	var parentID arunaid.ID
	var componentID arunaid.ID
	err = s.DB.View(func(rtxn *store.ReadTxn) error {
		parent, err := rtxn.GetResource(parentIdx)
		if err != nil {
			return err
		}
		parentID = parent.ID
		if len(parent.Locations) > 0 {
			componentID = parent.Locations[0].EndpointID
		}
		return nil
	})
	if err != nil {
		return CreateMultipartUploadResult{}, err
	}

	var createReq *resources.CreateResourceRequest
	err = s.DB.View(func(rtxn *store.ReadTxn) error {
		var err error
		createReq, err = resources.NewCreateResourceRequest(rtxn, s.Graph, resources.CreateResourceInput{
			Name:       name,
			Variant:    resource.VariantObject,
			Visibility: resource.VisibilityPrivate,
			ParentID:   parentID,
		})
		return err
	})
	if err != nil {
		return CreateMultipartUploadResult{}, err
	}

	affected, err := s.Ctrl.Submit(ctx, requester, createReq)
	if err != nil {
		return CreateMultipartUploadResult{}, err
	}

	var objID arunaid.ID
	err = s.DB.View(func(rtxn *store.ReadTxn) error {
		res, err := rtxn.GetResource(affected.Primary)
		if err != nil {
			return err
		}
		objID = res.ID
		return nil
	})
	if err != nil {
		return CreateMultipartUploadResult{}, err
	}

	uploadID, err := s.Backend.InitMultipart(ctx, input.Bucket, input.Key)
	if err != nil {
		return CreateMultipartUploadResult{}, apierr.ServerError.Wrap(err)
	}

	var beginReq *resources.BeginMultipartRequest
	err = s.DB.View(func(rtxn *store.ReadTxn) error {
		var err error
		beginReq, err = resources.NewBeginMultipartRequest(rtxn, resources.BeginMultipartInput{
			ID:          objID,
			ComponentID: componentID,
			UploadID:    uploadID,
			Encoding:    location.Encoding{Compressed: input.Compressed, Encrypted: input.Encrypted, Pithos: input.Pithos},
		})
		return err
	})
	if err != nil {
		return CreateMultipartUploadResult{}, err
	}
	if _, err := s.Ctrl.Submit(ctx, requester, beginReq); err != nil {
		return CreateMultipartUploadResult{}, err
	}

	return CreateMultipartUploadResult{UploadID: uploadID, ObjectID: objID}, nil
}

// UploadPartInput is UploadPart's body.
type UploadPartInput struct {
	Bucket     string
	Key        string
	UploadID   string
	PartNumber int
	Body       io.Reader
}

// UploadPart implements spec.md §4.6 step 2: push Body through the
// same PUT pipeline shape PutObject uses, terminating at a multipart
// BufferedS3Sink for (UploadID, PartNumber), then record the part's
// raw/disk sizes and ETag so CompleteMultipartUpload can verify and
// sum them later. Every part is rejected outright if it is empty
// (MissingContentLength) or under the ≥5 MiB floor (EntityTooSmall),
// regardless of part position — this part may turn out to be the
// upload's last, but UploadPart has no way to know that yet, and
// neither does the original it was ported from.
func (s *Service) UploadPart(ctx context.Context, requester *auth.Requester, input UploadPartInput) (string, error) {
	idx, err := s.resolveObject(input.Bucket, input.Key)
	if err != nil {
		return "", err
	}
	if err := s.requireWrite(requester, idx); err != nil {
		return "", err
	}

	loc, err := s.multipartLocation(idx, input.UploadID)
	if err != nil {
		return "", err
	}

	sink := transform.NewBufferedS3Sink(ctx, s.Backend, input.Bucket, input.Key, input.UploadID, input.PartNumber, true)
	pipeline, err := transform.ComposePut(sink, transform.PutOptions{
		Compressed:         loc.IsCompressed,
		Encrypted:          loc.IsEncrypted,
		Pithos:             loc.IsPithos,
		EncryptionKey:      keyOrZero(loc.EncryptionKey),
		PithosRecipientTag: loc.EndpointID.String(),
	})
	if err != nil {
		return "", err
	}

	summary, err := s.runPutPipeline(pipeline, input.Body)
	if err != nil {
		return "", err
	}

	rawLen, _ := summary[transform.SummarySizeInitial].(int64)
	if rawLen == 0 {
		return "", apierr.NewInvalidParameterf(paramContentLength, "part %d of upload %s is empty", input.PartNumber, input.UploadID)
	}
	if rawLen < minPartSize {
		return "", apierr.NewInvalidParameterf(paramParts, "part %d of upload %s is %d bytes, below the %d byte minimum", input.PartNumber, input.UploadID, rawLen, minPartSize)
	}
	diskLen, _ := summary[transform.SummarySizeFinal].(int64)

	var objID arunaid.ID
	err = s.DB.View(func(rtxn *store.ReadTxn) error {
		res, err := rtxn.GetResource(idx)
		if err != nil {
			return err
		}
		objID = res.ID
		return nil
	})
	if err != nil {
		return "", err
	}

	err = s.DB.Update(func(wtxn *store.WriteTxn) error {
		return wtxn.PutMultipartPart(location.MultipartHandle{
			UploadID:   input.UploadID,
			ObjectID:   objID,
			PartNumber: input.PartNumber,
			RawSize:    rawLen,
			DiskSize:   diskLen,
			ETag:       sink.ETag(),
		})
	})
	if err != nil {
		return "", err
	}

	return sink.ETag(), nil
}

// CompletedPart is one entry of the caller's claimed completion list.
type CompletedPart struct {
	PartNumber int
	ETag       string
}

// CompleteMultipartUploadInput is CompleteMultipartUpload's body.
type CompleteMultipartUploadInput struct {
	Bucket   string
	Key      string
	UploadID string
	Parts    []CompletedPart
}

// CompleteMultipartUpload implements spec.md §4.6 step 3: fetch the
// recorded parts, verify the caller's claimed part list matches them
// exactly (InvalidPart otherwise — the ≥5 MiB floor was already
// enforced by UploadPart when each part was recorded), sum raw sizes,
// instruct the backend to finalize, then run the same RegisterData +
// FinalizeObject sequence PutObject uses to land the object Available.
func (s *Service) CompleteMultipartUpload(ctx context.Context, requester *auth.Requester, input CompleteMultipartUploadInput) (PutObjectResult, error) {
	idx, err := s.resolveObject(input.Bucket, input.Key)
	if err != nil {
		return PutObjectResult{}, err
	}
	if err := s.requireWrite(requester, idx); err != nil {
		return PutObjectResult{}, err
	}

	loc, err := s.multipartLocation(idx, input.UploadID)
	if err != nil {
		return PutObjectResult{}, err
	}

	var recorded []location.MultipartHandle
	err = s.DB.View(func(rtxn *store.ReadTxn) error {
		var err error
		recorded, err = rtxn.ListMultipartParts(input.UploadID)
		return err
	})
	if err != nil {
		return PutObjectResult{}, err
	}

	byNumber := make(map[int]location.MultipartHandle, len(recorded))
	for _, h := range recorded {
		byNumber[h.PartNumber] = h
	}
	if len(input.Parts) != len(recorded) {
		return PutObjectResult{}, apierr.NewInvalidParameterf(paramPart, "upload %s: claimed %d parts, %d recorded", input.UploadID, len(input.Parts), len(recorded))
	}

	claimed := append([]CompletedPart(nil), input.Parts...)
	sort.Slice(claimed, func(i, j int) bool { return claimed[i].PartNumber < claimed[j].PartNumber })

	var rawTotal, diskTotal int64
	backendParts := make([]backend.PartInfo, 0, len(claimed))
	for _, c := range claimed {
		h, ok := byNumber[c.PartNumber]
		if !ok || h.ETag != c.ETag {
			return PutObjectResult{}, apierr.NewInvalidParameterf(paramPart, "part %d of upload %s does not match the recorded upload", c.PartNumber, input.UploadID)
		}
		rawTotal += h.RawSize
		diskTotal += h.DiskSize
		backendParts = append(backendParts, backend.PartInfo{PartNumber: c.PartNumber, ETag: c.ETag, Size: h.DiskSize})
	}

	etag, err := s.Backend.CompleteMultipart(ctx, input.Bucket, input.Key, input.UploadID, backendParts)
	if err != nil {
		return PutObjectResult{}, apierr.ServerError.Wrap(err)
	}

	err = s.DB.Update(func(wtxn *store.WriteTxn) error {
		return wtxn.DeleteMultipartParts(input.UploadID)
	})
	if err != nil {
		return PutObjectResult{}, err
	}

	var objID arunaid.ID
	err = s.DB.View(func(rtxn *store.ReadTxn) error {
		res, err := rtxn.GetResource(idx)
		if err != nil {
			return err
		}
		objID = res.ID
		return nil
	})
	if err != nil {
		return PutObjectResult{}, err
	}

	_, err = s.submitRegisterData(ctx, requester, resources.RegisterDataInput{
		ID:             objID,
		ComponentID:    loc.EndpointID,
		Hashes:         resource.Hashes{MD5: etag},
		ContentLen:     rawTotal,
		DiskContentLen: diskTotal,
		Encoding:       loc.Encoding(),
		EncryptionKey:  loc.EncryptionKey,
	})
	if err != nil {
		s.finalizeWithError(ctx, requester, objID, err)
		return PutObjectResult{}, err
	}

	if err := s.submitFinalize(ctx, requester, resources.FinalizeObjectInput{ID: objID}); err != nil {
		return PutObjectResult{}, err
	}

	return PutObjectResult{ID: objID, ETag: etag}, nil
}

// AbortMultipartUpload discards an in-progress upload: its recorded
// parts, the backend's own part storage, and rolls the target object
// to status Error so it no longer blocks a future PUT/CreateMultipart
// at the same key.
func (s *Service) AbortMultipartUpload(ctx context.Context, requester *auth.Requester, bucket, key, uploadID string) error {
	idx, err := s.resolveObject(bucket, key)
	if err != nil {
		return err
	}
	if err := s.requireWrite(requester, idx); err != nil {
		return err
	}
	if _, err := s.multipartLocation(idx, uploadID); err != nil {
		return err
	}

	if err := s.Backend.AbortMultipart(ctx, bucket, key, uploadID); err != nil {
		return apierr.ServerError.Wrap(err)
	}

	if err := s.DB.Update(func(wtxn *store.WriteTxn) error { return wtxn.DeleteMultipartParts(uploadID) }); err != nil {
		return err
	}

	var objID arunaid.ID
	err = s.DB.View(func(rtxn *store.ReadTxn) error {
		res, err := rtxn.GetResource(idx)
		if err != nil {
			return err
		}
		objID = res.ID
		return nil
	})
	if err != nil {
		return err
	}

	return s.submitFinalize(ctx, requester, resources.FinalizeObjectInput{ID: objID, Err: "multipart upload aborted"})
}

// multipartLocation finds idx's location carrying uploadID, the shared
// lookup UploadPart/CompleteMultipartUpload/AbortMultipartUpload all
// need to recover the encoding an in-progress upload was started with.
func (s *Service) multipartLocation(idx store.Idx, uploadID string) (location.DataLocation, error) {
	var loc location.DataLocation
	err := s.DB.View(func(rtxn *store.ReadTxn) error {
		res, err := rtxn.GetResource(idx)
		if err != nil {
			return err
		}
		for _, l := range res.Locations {
			if l.UploadID != nil && *l.UploadID == uploadID {
				loc = l
				return nil
			}
		}
		return errNoSuchUpload(uploadID)
	})
	return loc, err
}
