// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package validation

import (
	"encoding/json"
	"net/http"

	"github.com/moov-io/autopay/internal/route"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

type Router struct {
	ValidateManualEntry http.HandlerFunc
}

func NewRouter(logger log.Logger) *Router {
	return &Router{
		ValidateManualEntry: validateManualEntry(logger),
	}
}

func (c *Router) RegisterRoutes(r *mux.Router) {
	r.Methods("POST").Path("/bank-accounts/validate").HandlerFunc(c.ValidateManualEntry)
}

type validateResponse struct {
	Valid bool `json:"valid"`
}

func validateManualEntry(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		var entry ManualEntry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			responder.Problem(err)
			return
		}
		if err := entry.Validate(); err != nil {
			responder.Problem(err)
			return
		}
		responder.JSON(http.StatusOK, validateResponse{Valid: true})
	}
}
