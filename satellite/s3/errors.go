package s3

import "aruna.io/aruna/pkg/apierr"

// notFoundMarker lets ErrorCode recover which S3 "not found" code
// applies (NoSuchBucket vs NoSuchKey vs NoSuchUpload) from a generic
// apierr.NotFound error: apierr.S3Code's own class-to-code table only
// has room for one NotFound mapping (spec.md §7's note that it maps to
// "the nearest" code), so this package layers a finer distinction on
// top for the handful of S3-specific codes the API contract names.
type notFoundMarker struct {
	error
	code string
}

func (m *notFoundMarker) Unwrap() error { return m.error }

func errNoSuchBucket(bucket string) error {
	return &notFoundMarker{error: apierr.NotFound.New("bucket %q", bucket), code: "NoSuchBucket"}
}

func errNoSuchKey(bucket, key string) error {
	return &notFoundMarker{error: apierr.NotFound.New("%s/%s", bucket, key), code: "NoSuchKey"}
}

func errNoSuchUpload(uploadID string) error {
	return &notFoundMarker{error: apierr.NotFound.New("upload %q", uploadID), code: "NoSuchUpload"}
}

// sentinel InvalidParameter field names used with apierr.NewInvalidParameterf
// so ErrorCode can recover the specific S3 code spec.md §7 names
// ("InvalidPart", "EntityTooSmall", "MissingContentLength",
// "UnexpectedContent") from a generic InvalidParameter.
const (
	paramPart          = "part"
	paramParts         = "parts"
	paramContentLength = "content-length"
	paramBody          = "body"
)

// ErrorCode maps err to the S3 error code an HTTP framing layer should
// write to the wire, refining apierr.S3Code's coarse per-class mapping
// with the not-found and body/part-specific codes spec.md §7 enumerates.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var marker *notFoundMarker
	if ok := asNotFoundMarker(err, &marker); ok {
		return marker.code
	}
	if apierr.InvalidParameter.Has(err) {
		switch apierr.ParamName(err) {
		case paramPart:
			return "InvalidPart"
		case paramParts:
			return "EntityTooSmall"
		case paramContentLength:
			return "MissingContentLength"
		case paramBody:
			return "UnexpectedContent"
		}
	}
	return apierr.S3Code(err)
}

// asNotFoundMarker walks err's Unwrap chain looking for a *notFoundMarker,
// the same manual chain-walk apierr.ParamName does for *ParamError.
func asNotFoundMarker(err error, target **notFoundMarker) bool {
	for err != nil {
		if m, ok := err.(*notFoundMarker); ok {
			*target = m
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
