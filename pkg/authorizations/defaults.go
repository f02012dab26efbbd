// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package authorizations

import (
	"github.com/moov-io/autopay/pkg/model"
)

// ImplicitDefault returns the oldest Active authorization, or nil if there are none.
func ImplicitDefault(auths []*model.Authorization) *model.Authorization {
	var out *model.Authorization
	for _, a := range auths {
		if !a.Eligible() {
			continue
		}
		if out == nil || olderThan(a, out) {
			out = a
		}
	}
	return out
}

// EffectiveDefault returns the customer's explicit default when it's Active.
// A marked default that is Paused yields nil, and ImplicitDefault only applies
// when no non-Revoked authorization carries the flag.
func EffectiveDefault(auths []*model.Authorization) *model.Authorization {
	for _, a := range auths {
		if !a.IsDefault || a.Status == model.StatusRevoked {
			continue
		}
		if a.Eligible() {
			return a
		}
		return nil
	}
	return ImplicitDefault(auths)
}

// ReelectDefault returns the authorization that must be marked default once
// revokedID is revoked. nil is returned when another non-Revoked authorization
// already carries the flag or when no Active authorization remains.
func ReelectDefault(auths []*model.Authorization, revokedID string) *model.Authorization {
	var remaining []*model.Authorization
	for _, a := range auths {
		if a.ID == revokedID || a.Status == model.StatusRevoked {
			continue
		}
		if a.IsDefault {
			return nil
		}
		remaining = append(remaining, a)
	}
	return ImplicitDefault(remaining)
}

// ShouldMarkDefault reports if a new authorization joining existing is marked
// default: when requested or when no non-Revoked authorization holds the flag.
func ShouldMarkDefault(existing []*model.Authorization, requested bool) bool {
	if requested {
		return true
	}
	for _, a := range existing {
		if a.IsDefault && a.Status != model.StatusRevoked {
			return false
		}
	}
	return true
}

func olderThan(a, b *model.Authorization) bool {
	if a.Created.Time.Equal(b.Created.Time) {
		return a.ID < b.ID
	}
	return a.Created.Time.Before(b.Created.Time)
}
