// Copyright 2019 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package events

import (
	"net/http"

	"github.com/moov-io/autopay/internal/route"
	"github.com/moov-io/autopay/pkg/model"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

type Router struct {
	GetCustomerEvents http.HandlerFunc
	GetEvent          http.HandlerFunc
}

func NewRouter(logger log.Logger, repo Repository) *Router {
	return &Router{
		GetCustomerEvents: getCustomerEvents(logger, repo),
		GetEvent:          getEvent(logger, repo),
	}
}

func (c *Router) RegisterRoutes(r *mux.Router) {
	r.Methods("GET").Path("/customers/{customerID}/events").HandlerFunc(c.GetCustomerEvents)
	r.Methods("GET").Path("/customers/{customerID}/events/{eventID}").HandlerFunc(c.GetEvent)
}

func getCustomerEvents(logger log.Logger, repo Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		customerID := route.ReadPathID("customerID", r)
		events, err := repo.GetCustomerEvents(customerID, route.ReadLimit(r), route.ReadOffset(r))
		if err != nil {
			responder.Log("events", err, "customerID", customerID)
			responder.Problem(err)
			return
		}
		if events == nil {
			events = []*Event{}
		}
		responder.JSON(http.StatusOK, events)
	}
}

func getEvent(logger log.Logger, repo Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		customerID, eventID := route.ReadPathID("customerID", r), route.ReadPathID("eventID", r)
		event, err := repo.GetEvent(eventID, customerID)
		if err != nil {
			responder.Problem(err)
			return
		}
		if event == nil {
			responder.Problem(&model.NotFound{Kind: "event", ID: eventID})
			return
		}
		responder.JSON(http.StatusOK, event)
	}
}
