package backend

import (
	"context"
	"crypto/md5" //nolint:gosec // content digest for an S3-compatible ETag, not a security boundary
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"aruna.io/aruna/pkg/apierr"
)

// DiskBackend is a local-filesystem Backend implementation for
// development and tests, structurally analogous to the teacher's own
// piece storage (pkg/pstore): content addressed by a path built from
// (bucket, key), multipart parts staged under a side directory until
// CompleteMultipart concatenates them.
type DiskBackend struct {
	baseDir string

	mu      sync.Mutex
	uploads map[string][]string // open upload ids; values stay nil, staged parts live as files under multipartDir
}

// NewDiskBackend roots all objects under baseDir, creating it if needed.
func NewDiskBackend(baseDir string) (*DiskBackend, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, apierr.ServerError.Wrap(err)
	}
	return &DiskBackend{baseDir: baseDir, uploads: make(map[string][]string)}, nil
}

func (d *DiskBackend) objectPath(bucket, key string) string {
	return filepath.Join(d.baseDir, bucket, filepath.FromSlash(key))
}

func (d *DiskBackend) multipartDir(uploadID string) string {
	return filepath.Join(d.baseDir, ".multipart", uploadID)
}

// PutObject implements Backend.
func (d *DiskBackend) PutObject(ctx context.Context, bucket, key string, r io.Reader) (string, error) {
	path := d.objectPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", apierr.ServerError.Wrap(err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", apierr.ServerError.Wrap(err)
	}
	defer f.Close()

	h := md5.New() //nolint:gosec
	if _, err := io.Copy(f, io.TeeReader(r, h)); err != nil {
		return "", apierr.ServerError.Wrap(err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// GetObject implements Backend.
func (d *DiskBackend) GetObject(ctx context.Context, bucket, key string, rng *ObjectRange, sink io.Writer) error {
	path := d.objectPath(bucket, key)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apierr.NotFound.New("%s/%s", bucket, key)
		}
		return apierr.ServerError.Wrap(err)
	}
	defer f.Close()

	var r io.Reader = f
	if rng != nil {
		if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
			return apierr.ServerError.Wrap(err)
		}
		r = io.LimitReader(f, rng.End-rng.Start)
	}
	if _, err := io.Copy(sink, r); err != nil {
		return apierr.ServerError.Wrap(err)
	}
	return nil
}

// DeleteObject implements Backend.
func (d *DiskBackend) DeleteObject(ctx context.Context, bucket, key string) error {
	err := os.Remove(d.objectPath(bucket, key))
	if err != nil && !os.IsNotExist(err) {
		return apierr.ServerError.Wrap(err)
	}
	return nil
}

// InitMultipart implements Backend.
func (d *DiskBackend) InitMultipart(ctx context.Context, bucket, key string) (string, error) {
	uploadID := fmt.Sprintf("%s-%d", key, len(d.uploads))
	dir := d.multipartDir(uploadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apierr.ServerError.Wrap(err)
	}

	d.mu.Lock()
	d.uploads[uploadID] = nil
	d.mu.Unlock()
	return uploadID, nil
}

// UploadPart implements Backend.
func (d *DiskBackend) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, r io.Reader) (string, error) {
	d.mu.Lock()
	if _, ok := d.uploads[uploadID]; !ok {
		d.mu.Unlock()
		return "", apierr.NotFound.New("upload %s", uploadID)
	}
	d.mu.Unlock()

	path := filepath.Join(d.multipartDir(uploadID), fmt.Sprintf("%05d", partNumber))
	f, err := os.Create(path)
	if err != nil {
		return "", apierr.ServerError.Wrap(err)
	}
	defer f.Close()

	h := md5.New() //nolint:gosec
	if _, err := io.Copy(f, io.TeeReader(r, h)); err != nil {
		return "", apierr.ServerError.Wrap(err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CompleteMultipart implements Backend: concatenates the requested
// parts, in ascending part-number order whatever order they are given
// in, into the final object.
func (d *DiskBackend) CompleteMultipart(ctx context.Context, bucket, key, uploadID string, parts []PartInfo) (string, error) {
	d.mu.Lock()
	_, ok := d.uploads[uploadID]
	d.mu.Unlock()
	if !ok {
		return "", apierr.NotFound.New("upload %s", uploadID)
	}

	sorted := append([]PartInfo(nil), parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	path := d.objectPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", apierr.ServerError.Wrap(err)
	}
	out, err := os.Create(path)
	if err != nil {
		return "", apierr.ServerError.Wrap(err)
	}
	defer out.Close()

	h := md5.New() //nolint:gosec
	for _, p := range sorted {
		partPath := filepath.Join(d.multipartDir(uploadID), fmt.Sprintf("%05d", p.PartNumber))
		in, err := os.Open(partPath)
		if err != nil {
			return "", apierr.ServerError.Wrap(err)
		}
		_, err = io.Copy(io.MultiWriter(out, h), in)
		in.Close()
		if err != nil {
			return "", apierr.ServerError.Wrap(err)
		}
	}

	_ = os.RemoveAll(d.multipartDir(uploadID))
	d.mu.Lock()
	delete(d.uploads, uploadID)
	d.mu.Unlock()

	return hex.EncodeToString(h.Sum(nil)) + "-" + fmt.Sprint(len(sorted)), nil
}

// AbortMultipart implements Backend.
func (d *DiskBackend) AbortMultipart(ctx context.Context, bucket, key, uploadID string) error {
	d.mu.Lock()
	delete(d.uploads, uploadID)
	d.mu.Unlock()
	return os.RemoveAll(d.multipartDir(uploadID))
}

var _ Backend = (*DiskBackend)(nil)
