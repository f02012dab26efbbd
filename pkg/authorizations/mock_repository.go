// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package authorizations

import (
	"sync"
	"time"

	"github.com/moov-io/autopay/pkg/model"

	"github.com/moov-io/base"
)

// MockRepository is an in-memory Repository for tests. Err, when set, is
// returned from every method.
type MockRepository struct {
	Authorizations []*model.Authorization
	Err            error

	mu sync.Mutex
}

func (r *MockRepository) Create(auth *model.Authorization) error {
	if r.Err != nil {
		return r.Err
	}
	if err := auth.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := base.NewTime(time.Now())
	if auth.Created.IsZero() {
		auth.Created = now
	}
	auth.Updated = now
	if auth.IsDefault {
		for _, a := range r.Authorizations {
			if a.CustomerID == auth.CustomerID {
				a.IsDefault = false
			}
		}
	}
	cp := *auth
	r.Authorizations = append(r.Authorizations, &cp)
	return nil
}

func (r *MockRepository) Get(authorizationID string) (*model.Authorization, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.Authorizations {
		if a.ID == authorizationID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MockRepository) ListByCustomer(customerID string) ([]*model.Authorization, error) {
	return r.filter(func(a *model.Authorization) bool {
		return a.CustomerID == customerID
	})
}

func (r *MockRepository) FindByAccountHash(customerID, hash string) ([]*model.Authorization, error) {
	return r.filter(func(a *model.Authorization) bool {
		return a.CustomerID == customerID && a.HashedAccountNumber == hash
	})
}

func (r *MockRepository) FindByExternalItem(itemID string) ([]*model.Authorization, error) {
	return r.filter(func(a *model.Authorization) bool {
		return itemID != "" && a.ExternalItemID == itemID
	})
}

func (r *MockRepository) filter(keep func(*model.Authorization) bool) ([]*model.Authorization, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Authorization
	for _, a := range r.Authorizations {
		if keep(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	SortByCreated(out)
	return out, nil
}

func (r *MockRepository) UpdateStatus(authorizationID string, status model.Status, reason string) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.Authorizations {
		if a.ID != authorizationID {
			continue
		}
		if a.Status == model.StatusRevoked {
			if status == model.StatusRevoked {
				return nil
			}
			return &model.InvalidTransition{AuthorizationID: a.ID, From: a.Status, To: status}
		}
		now := base.NewTime(time.Now())
		a.Status = status
		a.StatusReason = reason
		a.Updated = now
		if status == model.StatusRevoked {
			a.IsDefault = false
			a.RevokedAt = &now
		}
		return nil
	}
	return &model.NotFound{Kind: "authorization", ID: authorizationID}
}

func (r *MockRepository) SetDefault(authorizationID string) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var target *model.Authorization
	for _, a := range r.Authorizations {
		if a.ID == authorizationID {
			target = a
		}
	}
	if target == nil {
		return &model.NotFound{Kind: "authorization", ID: authorizationID}
	}
	if target.Status != model.StatusActive {
		return &model.InvalidTransition{AuthorizationID: target.ID, From: target.Status, To: model.StatusActive}
	}
	for _, a := range r.Authorizations {
		if a.CustomerID == target.CustomerID {
			a.IsDefault = a.ID == target.ID
		}
	}
	return nil
}
