// Package apierr defines the closed error taxonomy every core component
// returns. Each class wraps github.com/zeebo/errs the way
// satellite/metabase defines ErrInvalidRequest/ErrConflict/ErrObjectNotFound
// in the teacher repo: a package-level errs.Class plus constructor helpers
// that attach the structured fields callers need (a parameter name, an S3
// code, ...).
package apierr

import (
	"errors"
	"fmt"

	"github.com/zeebo/errs"
)

// Classes mirror spec.md §7's taxonomy one-to-one.
var (
	Unauthorized      = errs.Class("unauthorized")
	NotFound          = errs.Class("not found")
	InvalidParameter  = errs.Class("invalid parameter")
	ConflictParameter = errs.Class("conflict parameter")
	ConversionError   = errs.Class("conversion error")
	TransactionFailed = errs.Class("transaction failure")
	DeserializeError  = errs.Class("deserialize error")
	SerializeError    = errs.Class("serialize error")
	ServerError       = errs.Class("server error")
)

// ParamError is the structured payload of InvalidParameter/ConflictParameter
// failures: a field name plus the underlying reason.
type ParamError struct {
	class errs.Class
	Name  string
	Err   error
}

func (p *ParamError) Error() string {
	return fmt.Sprintf("%s: %s: %v", p.class, p.Name, p.Err)
}

func (p *ParamError) Unwrap() error { return p.Err }

// NewInvalidParameter builds an InvalidParameter{name, error}.
func NewInvalidParameter(name string, reason error) error {
	return InvalidParameter.Wrap(&ParamError{class: InvalidParameter, Name: name, Err: reason})
}

// NewInvalidParameterf is the formatted-reason convenience form.
func NewInvalidParameterf(name, format string, args ...interface{}) error {
	return NewInvalidParameter(name, fmt.Errorf(format, args...))
}

// NewConflictParameter builds a ConflictParameter{name, error}.
func NewConflictParameter(name string, reason error) error {
	return ConflictParameter.Wrap(&ParamError{class: ConflictParameter, Name: name, Err: reason})
}

// NewConflictParameterf is the formatted-reason convenience form.
func NewConflictParameterf(name, format string, args ...interface{}) error {
	return NewConflictParameter(name, fmt.Errorf(format, args...))
}

// ParamName extracts the field name from an InvalidParameter/ConflictParameter
// error, returning "" if err does not carry one.
func ParamName(err error) string {
	var p *ParamError
	if errors.As(err, &p) {
		return p.Name
	}
	return ""
}

// NewNotFound builds a NotFound(id) error.
func NewNotFound(id fmt.Stringer) error {
	return NotFound.New("%s", id)
}

// Has reports whether err (or anything it wraps) belongs to class.
func Has(class errs.Class, err error) bool {
	return class.Has(err)
}

// s3Mapping pairs an apierr class with the nearest S3 error code named in
// spec.md §7.
var s3Mapping = []struct {
	class errs.Class
	code  string
}{
	{Unauthorized, "InvalidToken"},
	{NotFound, "NoSuchKey"},
	{InvalidParameter, "InvalidArgument"},
	{ConflictParameter, "BucketAlreadyExists"},
	{ConversionError, "InternalError"},
	{TransactionFailed, "InternalError"},
	{DeserializeError, "InternalError"},
	{SerializeError, "InternalError"},
	{ServerError, "InternalError"},
}

// S3Code maps err to the nearest S3 error code. Unrecognized errors map to
// InternalError, matching the teacher's gateway fallback behavior of never
// leaking an unmapped Go error to the wire.
func S3Code(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range s3Mapping {
		if m.class.Has(err) {
			return m.code
		}
	}
	return "InternalError"
}
