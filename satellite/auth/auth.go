// Package auth implements the authorization engine from spec.md §4.3:
// mapping a (Requester, Context) pair to allow/deny using the published
// graph and the permission set carried by the requester's bearer token.
package auth

import (
	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/graph"
	"aruna.io/aruna/satellite/store"
)

// ContextKind discriminates the Context variants spec.md §4.3 names.
type ContextKind int

const (
	ContextPublic ContextKind = iota
	ContextInRequest
	ContextPermission
	ContextPermissionBatch
	ContextGlobalAdmin
)

// PermissionRequirement is one (min_level, source) pair a Permission or
// PermissionBatch context evaluates.
type PermissionRequirement struct {
	MinLevel resource.PermissionLevel
	Source   store.Idx
}

// Context is the authorization question a request asks: which variant
// applies is carried in Kind, with the other fields populated
// accordingly.
type Context struct {
	Kind       ContextKind
	Permission PermissionRequirement
	Batch      []PermissionRequirement
}

// Public requires nothing: any caller, including an unauthenticated one,
// may proceed.
func Public() Context { return Context{Kind: ContextPublic} }

// InRequest defers the authorization decision to the request object
// itself, which carries its own source and re-derives a Permission
// context once it has parsed enough of its body to know it.
func InRequest() Context { return Context{Kind: ContextInRequest} }

// RequireGlobalAdmin restricts a context to requesters with the global
// admin attribute.
func RequireGlobalAdmin() Context { return Context{Kind: ContextGlobalAdmin} }

// RequirePermission builds a single-resource permission requirement.
func RequirePermission(min resource.PermissionLevel, source store.Idx) Context {
	return Context{Kind: ContextPermission, Permission: PermissionRequirement{MinLevel: min, Source: source}}
}

// RequirePermissionBatch builds a batch requirement: every entry must
// individually satisfy for the batch to pass.
func RequirePermissionBatch(reqs []PermissionRequirement) Context {
	return Context{Kind: ContextPermissionBatch, Batch: reqs}
}

// Scope is a token's explicit (resource, level) substitution, resolved
// to a compact index at ResolveRequester time.
type Scope struct {
	Source store.Idx
	Level  resource.PermissionLevel
}

// Requester is the validated bearer principal every request's
// authorization check runs against. ResolveRequester builds it before
// submission for the pre-commit check; apply-time re-authorization does
// not reuse it but resolves a fresh Requester from the stored User row
// through ResolveRequesterByUserToken (spec.md §4.4's "re-authorize
// using the stored requester").
type Requester struct {
	UserID      arunaid.ID
	UserIdx     store.Idx
	TokenIndex  int
	GlobalAdmin bool

	// Anonymous marks a caller with no bearer token at all — the S3
	// data-plane accepts unauthenticated GETs against Public objects,
	// per spec.md §4.5's "anonymous readers may only see resources
	// whose visibility is Public". An Anonymous Requester carries no
	// UserID/Permissions and must never satisfy checkPermission; only
	// per-resource Visibility checks (e.g. GetResources' Run) admit it.
	Anonymous bool

	ServiceAccount bool
	// ServiceSubtree restricts a service account's effective permission
	// checks to the subtree rooted here, when non-nil.
	ServiceSubtree *store.Idx

	// ExplicitScope, when set, substitutes the requester's entire
	// permission map: only the named resource at the named level is
	// authorized, nothing else.
	ExplicitScope *Scope

	// Permissions is the requester's direct attribute permission map,
	// keyed by the compact index of each resource the bearer's User
	// holds a permission on.
	Permissions map[store.Idx]resource.PermissionLevel

	// DefaultGroup/DefaultRealm mirror the bearer token's
	// resource.Token.DefaultGroup/DefaultRealm, resolved to compact
	// indices: CreateProject substitutes these when the request omits
	// an explicit group_id/realm_id (spec.md §4.5).
	DefaultGroup *store.Idx
	DefaultRealm *store.Idx
}

// Anonymous builds the zero-privilege Requester used for unauthenticated
// data-plane reads.
func Anonymous() *Requester {
	return &Requester{Anonymous: true, Permissions: map[store.Idx]resource.PermissionLevel{}}
}

// Authorize decides whether requester may proceed under ctx, walking
// the graph's inbound structural edges to resolve ancestor-inherited
// permission where the context calls for it.
func Authorize(g *graph.Graph, requester *Requester, ctx Context) error {
	switch ctx.Kind {
	case ContextPublic, ContextInRequest:
		return nil
	case ContextGlobalAdmin:
		if requester.GlobalAdmin {
			return nil
		}
		return apierr.Unauthorized.New("requires global admin")
	case ContextPermission:
		return checkPermission(g, requester, ctx.Permission)
	case ContextPermissionBatch:
		for _, req := range ctx.Batch {
			if err := checkPermission(g, requester, req); err != nil {
				return err
			}
		}
		return nil
	default:
		return apierr.InvalidParameter.New("unknown authorization context kind %d", ctx.Kind)
	}
}

func checkPermission(g *graph.Graph, requester *Requester, req PermissionRequirement) error {
	if requester.GlobalAdmin {
		return nil
	}

	if requester.ServiceAccount && requester.ServiceSubtree != nil && !withinSubtree(g, *requester.ServiceSubtree, req.Source) {
		return apierr.Unauthorized.New("source %d is outside the service account's subtree", req.Source)
	}

	if requester.ExplicitScope != nil {
		if requester.ExplicitScope.Source != req.Source {
			return apierr.Unauthorized.New("token is scoped to a different resource")
		}
		if !requester.ExplicitScope.Level.Satisfies(req.MinLevel) {
			return apierr.Unauthorized.New("insufficient permission: have %s, need %s", requester.ExplicitScope.Level, req.MinLevel)
		}
		return nil
	}

	effective := effectivePermission(g, requester, req.Source)
	if !effective.Satisfies(req.MinLevel) {
		return apierr.Unauthorized.New("insufficient permission: have %s, need %s", effective, req.MinLevel)
	}
	return nil
}

// effectivePermission unions the direct permission on source with any
// permission recorded on an ancestor reachable by inbound structural
// edges, taking the maximum across the chain.
func effectivePermission(g *graph.Graph, requester *Requester, source store.Idx) resource.PermissionLevel {
	best := requester.Permissions[source]
	cur := source
	for {
		parent, err := g.Parent(cur)
		if err != nil {
			return best
		}
		if lvl := requester.Permissions[parent]; lvl > best {
			best = lvl
		}
		cur = parent
	}
}

// withinSubtree reports whether source is subtreeRoot or a descendant
// of it, walking the structural-edge ancestor chain upward.
func withinSubtree(g *graph.Graph, subtreeRoot, source store.Idx) bool {
	if source == subtreeRoot {
		return true
	}
	cur := source
	for {
		parent, err := g.Parent(cur)
		if err != nil {
			return false
		}
		if parent == subtreeRoot {
			return true
		}
		cur = parent
	}
}
