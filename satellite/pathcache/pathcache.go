// Package pathcache implements spec.md §4.7's path model: a per-proxy
// index mapping an S3 key onto the Resource it names, fed from commit
// notifications rather than re-walking the graph on every request.
// Per spec.md §5, this is one of the fine-grained concurrent maps the
// S3 ingress/egress layer reads without blocking the store's writer.
package pathcache

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/graph"
	"aruna.io/aruna/satellite/store"
)

// entry is what a cached path resolves to.
type entry struct {
	idx     store.Idx
	variant resource.Variant
}

// Cache maps an S3 path ("{project_name}/{collection?…}/{object_name}")
// to the node it names, and back. The zero value is not usable; build
// one with Load.
type Cache struct {
	db  *store.DB
	g   *graph.Graph
	log *zap.Logger

	mu     sync.RWMutex
	byPath map[string]entry
	byIdx  map[store.Idx]string
}

// Load builds a Cache by scanning every Resource currently in db —
// spec.md §4.7 describes the cache as fed from notifications, which
// only cover changes from this point forward; Load supplies the warm
// start a freshly launched proxy needs.
func Load(db *store.DB, g *graph.Graph, log *zap.Logger) (*Cache, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Cache{db: db, g: g, log: log, byPath: make(map[string]entry), byIdx: make(map[store.Idx]string)}

	var idxs []store.Idx
	err := db.View(func(rtxn *store.ReadTxn) error {
		var err error
		idxs, err = rtxn.FilteredUniverse(func(*resource.Resource) bool { return true })
		if err != nil {
			return err
		}
		for _, idx := range idxs {
			if err := c.refresh(rtxn, idx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("pathcache loaded", zap.Int("resources", len(idxs)))
	return c, nil
}

// Notify implements satellite/txn.Notifier: every commit's affected
// node set is re-resolved into the cache, so a path rename, a
// visibility change, or a delete is reflected without a full reload.
func (c *Cache) Notify(_ context.Context, affected store.AffectedSet) error {
	idxs := append([]store.Idx{affected.Primary}, affected.Additional...)
	return c.db.View(func(rtxn *store.ReadTxn) error {
		for _, idx := range idxs {
			if err := c.refresh(rtxn, idx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Cache) refresh(rtxn *store.ReadTxn, idx store.Idx) error {
	res, err := rtxn.GetResource(idx)
	if apierr.NotFound.Has(err) {
		c.remove(idx)
		return nil
	}
	if err != nil {
		return err
	}
	if res.Status == resource.StatusDeleted {
		c.remove(idx)
		return nil
	}

	path, err := c.buildPath(rtxn, idx)
	if err != nil {
		// A resource mid-creation (parent edge not yet published) is
		// not an error worth failing the whole refresh over; it will
		// be resolved once its own creation commits.
		c.log.Debug("pathcache: path not yet resolvable", zap.Uint64("idx", uint64(idx)), zap.Error(err))
		return nil
	}
	c.put(path, idx, res.Variant)
	return nil
}

// buildPath walks idx up through HasPart edges to its owning Project,
// prepending each Name, per spec.md §4.7's
// "{project_name}/{collection?…}/{object_name}" shape.
func (c *Cache) buildPath(rtxn *store.ReadTxn, idx store.Idx) (string, error) {
	var names []string
	cur := idx
	for {
		res, err := rtxn.GetResource(cur)
		if err != nil {
			return "", err
		}
		names = append([]string{res.Name}, names...)
		if res.Variant == resource.VariantProject {
			break
		}
		parent, err := c.g.Parent(cur)
		if err != nil {
			return "", err
		}
		cur = parent
	}
	return strings.Join(names, "/"), nil
}

func (c *Cache) put(path string, idx store.Idx, variant resource.Variant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.byIdx[idx]; ok && old != path {
		delete(c.byPath, old)
	}
	c.byPath[path] = entry{idx: idx, variant: variant}
	c.byIdx[idx] = path
}

func (c *Cache) remove(idx store.Idx) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if path, ok := c.byIdx[idx]; ok {
		delete(c.byPath, path)
		delete(c.byIdx, idx)
	}
}

// Resolve does the exact lookup HeadObject/GetObject need: bucket is
// the project name, key the remainder of the path.
func (c *Cache) Resolve(bucket, key string) (store.Idx, resource.Variant, bool) {
	path := bucket
	if key != "" {
		path = bucket + "/" + key
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byPath[path]
	return e.idx, e.variant, ok
}

// Path returns the cached path for idx, the inverse of Resolve — used
// to populate an S3 listing entry's Key field from a resource index a
// permission check already resolved.
func (c *Cache) Path(idx store.Idx) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byIdx[idx]
	return p, ok
}

// Buckets returns every cached Project path (i.e. every bucket name),
// sorted. ListBuckets' personal-project filtering is the S3 layer's
// job (it alone knows the requester); this just enumerates what exists.
func (c *Cache) Buckets() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.byPath))
	for path, e := range c.byPath {
		if e.variant == resource.VariantProject {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// ListResult is one page of a prefix+delimiter listing.
type ListResult struct {
	Keys             []Object
	CommonPrefixes   []string
	NextContinuation string
	IsTruncated      bool
}

// Object is one concrete (non-common-prefix) listing entry.
type Object struct {
	Key     string
	Idx     store.Idx
	Variant resource.Variant
}

// List implements ListObjectsV2's prefix/delimiter enumeration over
// bucket, consulting the cache directly rather than the store — per
// spec.md §4.6's "ListObjectsV2 implements prefix/delimiter
// enumeration by consulting the path cache." continuationToken is the
// raw last-emitted key or common prefix from the previous page's
// NextContinuation (callers base64-encode it for the wire, per spec.md
// §4.7; decoding happens at that layer): entries at or before it, and
// entries under it when it is a common prefix, are skipped. Only Object
// entries are listed as Keys; folder-like resources appear only as
// common prefixes when a delimiter is given.
func (c *Cache) List(bucket, prefix, delimiter, continuationToken string, maxKeys int) ListResult {
	base := bucket + "/"
	fullPrefix := base + prefix

	c.mu.RLock()
	paths := make([]string, 0, len(c.byPath))
	for path := range c.byPath {
		if strings.HasPrefix(path, base) {
			paths = append(paths, path)
		}
	}
	c.mu.RUnlock()
	sort.Strings(paths)

	var result ListResult
	seenPrefix := make(map[string]bool)
	var lastEmitted string

	for _, path := range paths {
		if !strings.HasPrefix(path, fullPrefix) {
			continue
		}
		key := strings.TrimPrefix(path, base)
		if continuationToken != "" && (key <= continuationToken ||
			(delimiter != "" && strings.HasSuffix(continuationToken, delimiter) && strings.HasPrefix(key, continuationToken))) {
			continue
		}

		rest := path[len(fullPrefix):]
		if delimiter != "" {
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				cp := fullPrefix + rest[:idx+len(delimiter)]
				if !seenPrefix[cp] {
					if len(result.Keys)+len(result.CommonPrefixes) >= maxKeys {
						result.IsTruncated = true
						result.NextContinuation = lastEmitted
						break
					}
					seenPrefix[cp] = true
					result.CommonPrefixes = append(result.CommonPrefixes, strings.TrimPrefix(cp, base))
					lastEmitted = strings.TrimPrefix(cp, base)
				}
				continue
			}
		}

		c.mu.RLock()
		e := c.byPath[path]
		c.mu.RUnlock()
		if e.variant != resource.VariantObject {
			continue
		}

		if len(result.Keys)+len(result.CommonPrefixes) >= maxKeys {
			result.IsTruncated = true
			result.NextContinuation = lastEmitted
			break
		}

		result.Keys = append(result.Keys, Object{Key: key, Idx: e.idx, Variant: e.variant})
		lastEmitted = key
	}

	return result
}
