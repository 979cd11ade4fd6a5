package model

import (
	"fmt"

	"github.com/mcoot/echorelay/internal/document"
)

// Paths of the identity field embedded in an account document. The profile path is
// authoritative; the top-level id is accepted for documents that carry no server profile.
var (
	profileIdentityPath = []string{"profile", "server", "xplatformid"}
	topLevelIdentityKey = "id"
)

// Account is a persisted player account: the full account document keyed by the
// identity embedded in it
type Account struct {
	ID       XPlatformID
	Document document.Value
}

// NewAccount builds an account from a full document, taking the identity from the document
func NewAccount(doc document.Value) (*Account, error) {
	id, err := DocumentIdentity(doc)
	if err != nil {
		return nil, err
	}
	return &Account{ID: id, Document: doc}, nil
}

// Profile returns the nested profile document, or null if absent
func (a *Account) Profile() document.Value {
	profile, ok := a.Document.Get("profile")
	if !ok {
		return document.Null()
	}
	return profile
}

// DocumentIdentity extracts and parses the identity embedded in an account document.
// When both the profile identity and the top-level id are present they must agree.
func DocumentIdentity(doc document.Value) (XPlatformID, error) {
	if doc.Kind() != document.KindObject {
		return XPlatformID{}, fmt.Errorf("%w: account document must be an object", ErrInvalidArgument)
	}

	profileID, hasProfileID, err := identityAt(doc, profileIdentityPath...)
	if err != nil {
		return XPlatformID{}, err
	}
	topID, hasTopID, err := identityAt(doc, topLevelIdentityKey)
	if err != nil {
		return XPlatformID{}, err
	}

	switch {
	case hasProfileID && hasTopID:
		if profileID != topID {
			return XPlatformID{}, fmt.Errorf("%w: id %s differs from profile id %s", ErrIdentityMismatch, topID, profileID)
		}
		return profileID, nil
	case hasProfileID:
		return profileID, nil
	case hasTopID:
		return topID, nil
	default:
		return XPlatformID{}, fmt.Errorf("%w: document has no identity field", ErrMalformedIdentity)
	}
}

func identityAt(doc document.Value, path ...string) (XPlatformID, bool, error) {
	v, ok := doc.Path(path...)
	if !ok {
		return XPlatformID{}, false, nil
	}
	s, ok := v.AsString()
	if !ok {
		return XPlatformID{}, false, fmt.Errorf("%w: identity field must be a string", ErrMalformedIdentity)
	}
	id, err := ParseXPlatformID(s)
	if err != nil {
		return XPlatformID{}, false, err
	}
	return id, true, nil
}
