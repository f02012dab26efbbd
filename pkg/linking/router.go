// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package linking

import (
	"encoding/json"
	"net/http"

	"github.com/moov-io/autopay/internal/route"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

type Router struct {
	GetAvailability http.HandlerFunc
	CreateLinkToken http.HandlerFunc
	CompleteLink    http.HandlerFunc
}

func NewRouter(logger log.Logger, coordinator *Coordinator) *Router {
	return &Router{
		GetAvailability: getAvailability(logger, coordinator),
		CreateLinkToken: createLinkToken(logger, coordinator),
		CompleteLink:    completeLink(logger, coordinator),
	}
}

func (c *Router) RegisterRoutes(r *mux.Router) {
	r.Methods("GET").Path("/linking/availability").HandlerFunc(c.GetAvailability)
	r.Methods("POST").Path("/customers/{customerID}/link-tokens").HandlerFunc(c.CreateLinkToken)
	r.Methods("POST").Path("/customers/{customerID}/link-callbacks").HandlerFunc(c.CompleteLink)
}

func getAvailability(logger log.Logger, coordinator *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)
		responder.JSON(http.StatusOK, coordinator.Availability())
	}
}

func createLinkToken(logger log.Logger, coordinator *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		sess, err := coordinator.CreateLinkToken(responder.Context(), route.ReadPathID("customerID", r))
		if err != nil {
			responder.Problem(err)
			return
		}
		responder.JSON(http.StatusOK, sess)
	}
}

func completeLink(logger log.Logger, coordinator *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		var cb Callback
		if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
			responder.Problem(err)
			return
		}
		cb.AuthorizationIP = route.RemoteAddr(r)

		customerID := route.ReadPathID("customerID", r)
		outcome, err := coordinator.Complete(responder.Context(), customerID, cb)
		if err != nil {
			responder.Log("linking", "problem completing link", "customerID", customerID, "error", err)
			responder.Problem(err)
			return
		}
		status := http.StatusOK
		if outcome.Result == ResultLinked {
			status = http.StatusCreated
		}
		responder.JSON(status, outcome)
	}
}
