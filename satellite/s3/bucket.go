package s3

import (
	"context"
	"encoding/json"

	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/auth"
	"aruna.io/aruna/satellite/resources"
	"aruna.io/aruna/satellite/store"
)

// corsLabelKey is the well-known project label spec.md §6 names: "CORS
// config persists as a known key/value on the project under
// app.aruna-storage.org/cors".
const corsLabelKey = "app.aruna-storage.org/cors"

// CORSRule is one rule of a bucket's CORS configuration, serialized as
// the corsLabelKey label's JSON value.
type CORSRule struct {
	AllowedOrigins []string `json:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers,omitempty"`
	MaxAgeSeconds  int      `json:"max_age_seconds,omitempty"`
}

// CreateBucketInput is CreateBucket's body, spec.md §4.6's "CreateBucket
// maps to CreateProject".
type CreateBucketInput struct {
	Name         string
	GroupID      *arunaid.ID
	RealmID      *arunaid.ID
	DataEndpoint *arunaid.ID
}

// CreateBucket maps directly onto CreateProject: bucket name is project
// name (spec.md §6).
func (s *Service) CreateBucket(ctx context.Context, requester *auth.Requester, input CreateBucketInput) (arunaid.ID, error) {
	var req *resources.CreateProjectRequest
	err := s.DB.View(func(rtxn *store.ReadTxn) error {
		var err error
		req, err = resources.NewCreateProjectRequest(rtxn, requester, resources.CreateProjectInput{
			Name:         input.Name,
			Visibility:   resource.VisibilityPrivate,
			GroupID:      input.GroupID,
			RealmID:      input.RealmID,
			DataEndpoint: input.DataEndpoint,
		})
		return err
	})
	if err != nil {
		return arunaid.Nil, err
	}

	affected, err := s.Ctrl.Submit(ctx, requester, req)
	if err != nil {
		return arunaid.Nil, err
	}

	var id arunaid.ID
	err = s.DB.View(func(rtxn *store.ReadTxn) error {
		res, err := rtxn.GetResource(affected.Primary)
		if err != nil {
			return err
		}
		id = res.ID
		return nil
	})
	return id, err
}

// HeadBucket reports whether bucket exists and the requester may see it.
func (s *Service) HeadBucket(requester *auth.Requester, bucket string) error {
	idx, err := s.resolveBucket(bucket)
	if err != nil {
		return err
	}
	return s.DB.View(func(rtxn *store.ReadTxn) error {
		return s.requireRead(rtxn, requester, idx)
	})
}

// ListBuckets returns every Project the requester may read. Personal
// filtering happens here, not in pathcache.Buckets, since only the
// caller's Requester carries the permission set needed to filter
// (spec.md §4.7's Cache is deliberately permission-blind).
func (s *Service) ListBuckets(requester *auth.Requester) []string {
	var out []string
	_ = s.DB.View(func(rtxn *store.ReadTxn) error {
		for _, name := range s.Cache.Buckets() {
			idx, variant, ok := s.Cache.Resolve(name, "")
			if !ok || variant != resource.VariantProject {
				continue
			}
			if s.requireRead(rtxn, requester, idx) == nil {
				out = append(out, name)
			}
		}
		return nil
	})
	return out
}

// GetBucketLocation returns the data endpoint backing bucket's default
// location, the nearest S3 equivalent of a bucket's region.
func (s *Service) GetBucketLocation(requester *auth.Requester, bucket string) (arunaid.ID, error) {
	idx, err := s.resolveBucket(bucket)
	if err != nil {
		return arunaid.Nil, err
	}

	var endpoint arunaid.ID
	err = s.DB.View(func(rtxn *store.ReadTxn) error {
		if err := s.requireRead(rtxn, requester, idx); err != nil {
			return err
		}
		res, err := rtxn.GetResource(idx)
		if err != nil {
			return err
		}
		if len(res.Locations) == 0 {
			return apierr.ServerError.New("project %s has no locations", res.ID)
		}
		endpoint = res.Locations[0].EndpointID
		return nil
	})
	return endpoint, err
}

// GetBucketCORS reads bucket's persisted CORS rule set, or nil if none
// has ever been set.
func (s *Service) GetBucketCORS(requester *auth.Requester, bucket string) ([]CORSRule, error) {
	idx, err := s.resolveBucket(bucket)
	if err != nil {
		return nil, err
	}

	var rules []CORSRule
	err = s.DB.View(func(rtxn *store.ReadTxn) error {
		if err := s.requireRead(rtxn, requester, idx); err != nil {
			return err
		}
		res, err := rtxn.GetResource(idx)
		if err != nil {
			return err
		}
		for _, l := range res.Labels {
			if l.Variant == resource.LabelStatic && l.Key == corsLabelKey {
				return apierr.DeserializeError.Wrap(json.Unmarshal([]byte(l.Value), &rules))
			}
		}
		return nil
	})
	return rules, err
}

// PutBucketCORS replaces bucket's CORS rule set, encoded as bucket's
// corsLabelKey label via the ordinary UpdateResource label-merge path —
// spec.md §6 calls this out as "a known key/value on the project",
// nothing more specialized than any other label.
func (s *Service) PutBucketCORS(ctx context.Context, requester *auth.Requester, bucket string, rules []CORSRule) error {
	idx, err := s.resolveBucket(bucket)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(rules)
	if err != nil {
		return apierr.SerializeError.Wrap(err)
	}

	return s.setCORSLabel(ctx, requester, idx, &resources.LabelChange{
		Add: []resource.Label{{Variant: resource.LabelStatic, Key: corsLabelKey, Value: string(encoded)}},
	})
}

// DeleteBucketCORS removes bucket's CORS label entirely.
func (s *Service) DeleteBucketCORS(ctx context.Context, requester *auth.Requester, bucket string) error {
	idx, err := s.resolveBucket(bucket)
	if err != nil {
		return err
	}

	var current resource.Label
	found := false
	err = s.DB.View(func(rtxn *store.ReadTxn) error {
		res, err := rtxn.GetResource(idx)
		if err != nil {
			return err
		}
		for _, l := range res.Labels {
			if l.Variant == resource.LabelStatic && l.Key == corsLabelKey {
				current = l
				found = true
				return nil
			}
		}
		return nil
	})
	if err != nil || !found {
		return err
	}

	return s.setCORSLabel(ctx, requester, idx, &resources.LabelChange{Remove: []resource.Label{current}})
}

func (s *Service) setCORSLabel(ctx context.Context, requester *auth.Requester, idx store.Idx, change *resources.LabelChange) error {
	var id arunaid.ID
	err := s.DB.View(func(rtxn *store.ReadTxn) error {
		res, err := rtxn.GetResource(idx)
		if err != nil {
			return err
		}
		id = res.ID
		return nil
	})
	if err != nil {
		return err
	}

	var req *resources.UpdateResourceRequest
	err = s.DB.View(func(rtxn *store.ReadTxn) error {
		var err error
		req, err = resources.NewUpdateResourceRequest(rtxn, s.Graph, resources.UpdateResourceInput{
			ID:     id,
			Labels: change,
		})
		return err
	})
	if err != nil {
		return err
	}

	_, err = s.Ctrl.Submit(ctx, requester, req)
	return err
}
