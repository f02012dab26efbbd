// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package resolution

import (
	"sync"
	"time"

	"github.com/moov-io/autopay/pkg/model"

	"github.com/moov-io/base"
)

type MockRepository struct {
	Loans map[string]*model.Loan
	Err   error

	mu sync.Mutex
}

func (r *MockRepository) GetLoan(loanID string) (*model.Loan, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if loan, ok := r.Loans[loanID]; ok {
		cp := *loan
		return &cp, nil
	}
	return nil, nil
}

func (r *MockRepository) SaveLoan(loanID, customerID string) (*model.Loan, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	if r.Loans == nil {
		r.Loans = make(map[string]*model.Loan)
	}
	now := base.NewTime(time.Now())
	loan, ok := r.Loans[loanID]
	switch {
	case !ok:
		r.Loans[loanID] = &model.Loan{ID: loanID, CustomerID: customerID, Created: now, Updated: now}
	case loan.CustomerID != customerID:
		loan.CustomerID = customerID
		loan.AuthorizationID = ""
		loan.Updated = now
	}
	r.mu.Unlock()

	return r.GetLoan(loanID)
}

func (r *MockRepository) SetAuthorization(loanID, authorizationID string) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	loan, ok := r.Loans[loanID]
	if !ok {
		return &model.NotFound{Kind: "loan", ID: loanID}
	}
	loan.AuthorizationID = authorizationID
	loan.Updated = base.NewTime(time.Now())
	return nil
}
