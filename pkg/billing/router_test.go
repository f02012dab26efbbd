// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package billing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/moov-io/autopay/pkg/model"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

func TestRouter(t *testing.T) {
	st := newServiceTest(t)
	r := mux.NewRouter()
	NewRouter(log.NewNopLogger(), st.Service).RegisterRoutes(r)

	body := `{"email": "jane@example.com", "name": "Jane Doe", "amount": "USD 99.10"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", fmt.Sprintf("/loans/%s/invoices", st.loanID), strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var inv model.Invoice
	require.NoError(t, json.NewDecoder(w.Body).Decode(&inv))
	require.Equal(t, int64(9910), inv.AmountDue.Cents())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", fmt.Sprintf("/loans/%s/invoices", st.loanID), strings.NewReader(`{"amount": "USD 1.00"}`)))
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", fmt.Sprintf("/invoices/%s", inv.ID), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/invoices/in_missing?refresh=true", nil))
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", fmt.Sprintf("/invoices/%s/regenerate", inv.ID), nil))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var replacement model.Invoice
	require.NoError(t, json.NewDecoder(w.Body).Decode(&replacement))
	require.NotEqual(t, inv.ID, replacement.ID)
}
