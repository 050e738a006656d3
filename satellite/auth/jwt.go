package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/store"
)

// Claims is the bearer token payload satellite/auth expects: the
// issuing party signs a user ULID and the index of the resource.Token
// within that user's attribute set that authorizes the request,
// following the uid+permission claim shape aistore's authn package
// signs with the same library.
type Claims struct {
	jwt.RegisteredClaims
	UserID     string `json:"uid"`
	TokenIndex int    `json:"tid"`
}

// KeyFunc returns the key a bearer token was signed with, given the
// token's claims — typically a constant HMAC secret, but left
// pluggable so a caller can key off claims.UserID for per-user secrets.
type KeyFunc func(claims *Claims) (interface{}, error)

// ParseBearer verifies tokenStr's signature and returns its claims.
// Only HMAC-signed tokens are accepted, matching aistore's authn
// utils.DecryptToken signing-method check.
func ParseBearer(tokenStr string, keyFunc KeyFunc) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(tk *jwt.Token) (interface{}, error) {
		if _, ok := tk.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tk.Header["alg"])
		}
		return keyFunc(claims)
	})
	if err != nil {
		return nil, apierr.Unauthorized.Wrap(err)
	}
	if !token.Valid {
		return nil, apierr.Unauthorized.New("invalid bearer token")
	}
	return claims, nil
}

// ResolveRequester turns verified Claims plus the store's User/Token
// row into the Requester value every §4.3/§4.4 algorithm consumes
// (spec.md's "validated bearer principal", made concrete per
// SPEC_FULL.md §4.4.1). now is injected rather than read from
// time.Now so expiry checks stay deterministic under test.
func ResolveRequester(rtxn *store.ReadTxn, claims *Claims, now time.Time) (*Requester, error) {
	userID, err := arunaid.FromString(claims.UserID)
	if err != nil {
		return nil, apierr.NewInvalidParameterf("uid", "malformed user id: %v", err)
	}
	return resolveRequesterForToken(rtxn, userID, claims.TokenIndex, now)
}

// ResolveRequesterByUserToken re-derives a Requester straight from a
// user ULID and token index, without a bearer signature to verify. The
// write path uses this to re-authorize at apply time (spec.md §4.4's
// "re-authorize using the stored requester"): the signature was already
// checked once at submission, but the requester's permission state may
// have changed since, so apply re-reads it fresh from the store rather
// than reusing the Requester resolved before the transaction was
// appended to the log.
func ResolveRequesterByUserToken(rtxn *store.ReadTxn, userID arunaid.ID, tokenIndex int, now time.Time) (*Requester, error) {
	return resolveRequesterForToken(rtxn, userID, tokenIndex, now)
}

func resolveRequesterForToken(rtxn *store.ReadTxn, userID arunaid.ID, tokenIndex int, now time.Time) (*Requester, error) {
	userIdx, err := rtxn.GetIdxFromULID(userID)
	if err != nil {
		return nil, err
	}
	user, err := rtxn.GetUser(userIdx)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, apierr.Unauthorized.New("user %s is deactivated", userID)
	}

	var tok *resource.Token
	for i := range user.Attributes.Tokens {
		if user.Attributes.Tokens[i].Index == tokenIndex {
			tok = &user.Attributes.Tokens[i]
			break
		}
	}
	if tok == nil {
		return nil, apierr.Unauthorized.New("token index %d not found for user %s", tokenIndex, userID)
	}
	if tok.Expired(now) {
		return nil, apierr.Unauthorized.New("token expired")
	}

	requester := &Requester{
		UserID:         userID,
		UserIdx:        userIdx,
		TokenIndex:     tokenIndex,
		GlobalAdmin:    user.Attributes.GlobalAdmin,
		ServiceAccount: user.Attributes.ServiceAccount,
		Permissions:    make(map[store.Idx]resource.PermissionLevel, len(user.Attributes.Permissions)),
	}

	for resID, level := range user.Attributes.Permissions {
		idx, err := rtxn.GetIdxFromULID(resID)
		if err != nil {
			continue // permission recorded on a resource that no longer exists
		}
		requester.Permissions[idx] = level
	}

	if tok.Permission != nil {
		scopeIdx, err := rtxn.GetIdxFromULID(tok.Permission.ResourceID)
		if err != nil {
			return nil, err
		}
		if user.Attributes.ServiceAccount {
			// A service account's token scope names the root of the
			// subtree it may operate in, not a single resource: grant
			// the level at the root and let effectivePermission's
			// ancestor walk propagate it to every descendant.
			requester.ServiceSubtree = &scopeIdx
			requester.Permissions[scopeIdx] = tok.Permission.Level
		} else {
			requester.ExplicitScope = &Scope{Source: scopeIdx, Level: tok.Permission.Level}
		}
	}

	if tok.DefaultGroup != nil {
		idx, err := rtxn.GetIdxFromULID(*tok.DefaultGroup)
		if err != nil {
			return nil, err
		}
		requester.DefaultGroup = &idx
	}
	if tok.DefaultRealm != nil {
		idx, err := rtxn.GetIdxFromULID(*tok.DefaultRealm)
		if err != nil {
			return nil, err
		}
		requester.DefaultRealm = &idx
	}

	return requester, nil
}
