// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/moov-io/autopay/pkg/authorizations"
	"github.com/moov-io/autopay/pkg/model"

	"github.com/moov-io/base"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (*testController, *mux.Router) {
	tc := newTestController(t, &authorizations.MockRepository{})
	r := mux.NewRouter()
	NewRouter(log.NewNopLogger(), tc.Controller).RegisterRoutes(r)
	return tc, r
}

func TestRouter__SetupBankAccount(t *testing.T) {
	tc, r := setupRouter(t)
	customerID := base.ID()

	body := `{"routingNumber": "273976369", "accountNumber": "123456789", "confirmAccountNumber": "123456789", "consent": true, "accountType": "Checking"}`
	req := httptest.NewRequest("POST", fmt.Sprintf("/customers/%s/bank-accounts", customerID), strings.NewReader(body))
	req.Header.Set("X-Forwarded-For", "1.2.3.4")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	w.Flush()
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var auth model.Authorization
	require.NoError(t, json.NewDecoder(w.Body).Decode(&auth))
	require.Equal(t, customerID, auth.CustomerID)
	require.Equal(t, "1.2.3.4", auth.AuthorizationIP)
	require.True(t, auth.IsDefault)
	require.NotContains(t, w.Body.String(), "achq-token")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", fmt.Sprintf("/customers/%s/bank-accounts", customerID), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var auths []*model.Authorization
	require.NoError(t, json.NewDecoder(w.Body).Decode(&auths))
	require.Len(t, auths, 1)

	// confirmation mismatch
	body = `{"routingNumber": "273976369", "accountNumber": "1234567", "confirmAccountNumber": "1234568", "consent": true}`
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", fmt.Sprintf("/customers/%s/bank-accounts", customerID), strings.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), `"field":"confirmAccountNumber"`)

	tc.verifier.Verification.Status = model.VerificationNegative
	body = `{"routingNumber": "273976369", "accountNumber": "55554444", "confirmAccountNumber": "55554444", "consent": true}`
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", fmt.Sprintf("/customers/%s/bank-accounts", customerID), strings.NewReader(body)))
	require.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())
}

func TestRouter__Transitions(t *testing.T) {
	tc, r := setupRouter(t)

	auth, err := tc.Setup(context.Background(), manualRequest(base.ID(), false))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", fmt.Sprintf("/bank-accounts/%s/pause", auth.ID), strings.NewReader(`{"reason": "vacation"}`)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), `"status":"paused"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("PUT", fmt.Sprintf("/bank-accounts/%s/default", auth.ID), nil))
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", fmt.Sprintf("/bank-accounts/%s/resume", auth.ID), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("PUT", fmt.Sprintf("/bank-accounts/%s/default", auth.ID), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for i := 0; i < 2; i++ {
		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("POST", fmt.Sprintf("/bank-accounts/%s/revoke", auth.ID), nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Contains(t, w.Body.String(), `"status":"revoked"`)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", fmt.Sprintf("/bank-accounts/%s/resume", auth.ID), nil))
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", fmt.Sprintf("/bank-accounts/%s/pause", base.ID()), nil))
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
}
