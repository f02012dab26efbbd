// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package status

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/moov-io/autopay/pkg/authorizations"
	"github.com/moov-io/autopay/pkg/model"
	"github.com/moov-io/autopay/pkg/resolution"

	"github.com/moov-io/base"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

func invoice(status model.InvoiceStatus) *model.Invoice {
	due, _ := model.NewAmountFromCents("USD", 12530)
	return &model.Invoice{ID: "in_1", Status: status, AmountDue: due}
}

func TestProject(t *testing.T) {
	active := &model.ResolvedAccount{
		HasAccount:       true,
		ResolutionSource: model.ResolvedFromCustomerDefault,
		Authorization: &model.Authorization{
			Status:       model.StatusActive,
			BankName:     "First Bank",
			AccountLast4: "6789",
		},
	}
	paused := &model.ResolvedAccount{
		HasAccount:    true,
		Authorization: &model.Authorization{Status: model.StatusPaused},
	}
	none := &model.ResolvedAccount{ResolutionSource: model.ResolvedNone}

	cases := []struct {
		resolved *model.ResolvedAccount
		invoice  *model.Invoice
		state    State
		tone     Tone
	}{
		{active, nil, StateActive, ToneGreen},
		{active, invoice(model.InvoiceOpen), StatePaymentDue, ToneBlue},
		{active, invoice(model.InvoicePaid), StatePaid, ToneGreen},
		{active, invoice(model.InvoiceVoid), StateActive, ToneGreen},
		{active, invoice(model.InvoicePaymentFailed), StatePaymentFailed, ToneRed},
		{active, invoice(model.InvoiceActionRequired), StateActionRequired, ToneOrange},
		{paused, invoice(model.InvoiceOpen), StatePaused, ToneOrange},
		{paused, invoice(model.InvoicePaymentFailed), StatePaymentFailed, ToneRed},
		{none, nil, StateNoAccount, ToneGray},
		{nil, nil, StateNoAccount, ToneGray},
	}
	for i := range cases {
		ind := Project(cases[i].resolved, cases[i].invoice)
		if ind.State != cases[i].state || ind.Tone != cases[i].tone {
			t.Errorf("#%d: got %#v", i, ind)
		}
		if ind.Label == "" {
			t.Errorf("#%d: missing label", i)
		}
	}

	ind := Project(active, nil)
	require.Equal(t, "Autopay active: First Bank ****6789", ind.Label)

	ind = Project(active, invoice(model.InvoiceOpen))
	require.Equal(t, "Payment due: USD 125.30", ind.Label)

	// replaced invoices don't count
	replaced := invoice(model.InvoicePaymentFailed)
	replaced.ReplacedBy = "in_2"
	require.Equal(t, StateActive, Project(active, replaced).State)
}

type mockInvoices struct {
	invoices map[string]*model.Invoice
	err      error
}

func (m *mockInvoices) LatestInvoice(loanID string) (*model.Invoice, error) {
	return m.invoices[loanID], m.err
}

func TestRouter(t *testing.T) {
	customerID, loanID := base.ID(), base.ID()
	auth := &model.Authorization{
		ID:           base.ID(),
		CustomerID:   customerID,
		AccountLast4: "1234",
		AccountType:  model.Checking,
		Status:       model.StatusActive,
		Source:       model.SourceManual,
		IsDefault:    true,
		Created:      base.NewTime(time.Now()),
	}
	engine := resolution.NewEngine(log.NewNopLogger(), &resolution.MockRepository{}, &authorizations.MockRepository{
		Authorizations: []*model.Authorization{auth},
	}, nil)
	_, err := engine.RegisterLoan(loanID, customerID)
	require.NoError(t, err)

	invoices := &mockInvoices{invoices: map[string]*model.Invoice{loanID: invoice(model.InvoiceOpen)}}

	r := mux.NewRouter()
	NewRouter(log.NewNopLogger(), NewService(engine, invoices)).RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", fmt.Sprintf("/loans/%s/authorization", loanID), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var status AuthorizationStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	require.True(t, status.HasAuthorization)
	require.Equal(t, auth.ID, status.AuthorizationID)
	require.Equal(t, "1234", status.AccountLast4)
	require.Equal(t, model.ResolvedFromCustomerDefault, status.ResolutionSource)
	require.Equal(t, StatePaymentDue, status.Indicator.State)
	require.Equal(t, "in_1", status.Invoice.ID)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", fmt.Sprintf("/loans/%s/authorization", base.ID()), nil))
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	// without billing
	r = mux.NewRouter()
	NewRouter(log.NewNopLogger(), NewService(engine, nil)).RegisterRoutes(r)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", fmt.Sprintf("/loans/%s/authorization", loanID), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
