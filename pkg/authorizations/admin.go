// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package authorizations

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/moov-io/autopay/pkg/model"

	"github.com/moov-io/base/admin"
	moovhttp "github.com/moov-io/base/http"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

// RegisterAdminRoutes exposes read-only views of stored authorizations,
// including Revoked ones which the public API hides.
func RegisterAdminRoutes(logger log.Logger, svc *admin.Server, repo Repository) {
	svc.AddHandler("/authorizations/{authorizationID}", getAuthorization(logger, repo))
	svc.AddHandler("/customers/{customerID}/authorizations", getCustomerAuthorizations(logger, repo))
}

func getAuthorization(logger log.Logger, repo Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if r.Method != "GET" {
			moovhttp.Problem(w, fmt.Errorf("unsupported HTTP verb: %s", r.Method))
			return
		}

		authorizationID := mux.Vars(r)["authorizationID"]
		auth, err := repo.Get(authorizationID)
		if err != nil {
			logger.Log("authorizations", fmt.Sprintf("admin: problem reading authorization=%s: %v", authorizationID, err), "requestID", moovhttp.GetRequestID(r))
			moovhttp.Problem(w, err)
			return
		}
		if auth == nil {
			http.NotFound(w, r)
			return
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(auth)
	}
}

func getCustomerAuthorizations(logger log.Logger, repo Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if r.Method != "GET" {
			moovhttp.Problem(w, fmt.Errorf("unsupported HTTP verb: %s", r.Method))
			return
		}

		customerID := mux.Vars(r)["customerID"]
		auths, err := repo.ListByCustomer(customerID)
		if err != nil {
			logger.Log("authorizations", fmt.Sprintf("admin: problem listing customer=%s: %v", customerID, err), "requestID", moovhttp.GetRequestID(r))
			moovhttp.Problem(w, err)
			return
		}
		if auths == nil {
			auths = []*model.Authorization{}
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(auths)
	}
}
