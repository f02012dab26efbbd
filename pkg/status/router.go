// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package status

import (
	"net/http"

	"github.com/moov-io/autopay/internal/route"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

type Router struct {
	GetAuthorizationStatus http.HandlerFunc
}

func NewRouter(logger log.Logger, service *Service) *Router {
	return &Router{
		GetAuthorizationStatus: getAuthorizationStatus(logger, service),
	}
}

func (c *Router) RegisterRoutes(r *mux.Router) {
	r.Methods("GET").Path("/loans/{loanID}/authorization").HandlerFunc(c.GetAuthorizationStatus)
}

func getAuthorizationStatus(logger log.Logger, service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		status, err := service.AuthorizationStatus(route.ReadPathID("loanID", r))
		if err != nil {
			responder.Problem(err)
			return
		}
		responder.JSON(http.StatusOK, status)
	}
}
