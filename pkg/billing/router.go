// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package billing

import (
	"encoding/json"
	"net/http"

	"github.com/moov-io/autopay/internal/route"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

type Router struct {
	CreateInvoice     http.HandlerFunc
	RegenerateInvoice http.HandlerFunc
	GetInvoice        http.HandlerFunc
}

func NewRouter(logger log.Logger, service *Service) *Router {
	return &Router{
		CreateInvoice:     createInvoice(logger, service),
		RegenerateInvoice: regenerateInvoice(logger, service),
		GetInvoice:        getInvoice(logger, service),
	}
}

func (c *Router) RegisterRoutes(r *mux.Router) {
	r.Methods("POST").Path("/loans/{loanID}/invoices").HandlerFunc(c.CreateInvoice)
	r.Methods("POST").Path("/invoices/{invoiceID}/regenerate").HandlerFunc(c.RegenerateInvoice)
	r.Methods("GET").Path("/invoices/{invoiceID}").HandlerFunc(c.GetInvoice)
}

func getInvoiceID(r *http.Request) string {
	return route.ReadPathID("invoiceID", r)
}

func createInvoice(logger log.Logger, service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responder.Problem(err)
			return
		}
		loanID := route.ReadPathID("loanID", r)
		inv, err := service.CreateInvoice(responder.Context(), loanID, req)
		if err != nil {
			responder.Log("billing", "problem creating invoice", "loanID", loanID, "error", err)
			responder.Problem(err)
			return
		}
		responder.JSON(http.StatusCreated, inv)
	}
}

func regenerateInvoice(logger log.Logger, service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		inv, err := service.RegenerateInvoice(responder.Context(), getInvoiceID(r))
		if err != nil {
			responder.Log("billing", "problem regenerating invoice", "invoiceID", getInvoiceID(r), "error", err)
			responder.Problem(err)
			return
		}
		responder.JSON(http.StatusCreated, inv)
	}
}

func getInvoice(logger log.Logger, service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		inv, err := service.GetInvoice(responder.Context(), getInvoiceID(r), route.ReadFlag(r, "refresh"))
		if err != nil {
			responder.Problem(err)
			return
		}
		responder.JSON(http.StatusOK, inv)
	}
}
