// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package resolution

import (
	"encoding/json"
	"net/http"

	"github.com/moov-io/autopay/internal/route"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

type Router struct {
	GetLoanAccountInfo http.HandlerFunc
	RegisterLoan       http.HandlerFunc
	SetLoanAccount     http.HandlerFunc
}

func NewRouter(logger log.Logger, engine *Engine) *Router {
	return &Router{
		GetLoanAccountInfo: getLoanAccountInfo(logger, engine),
		RegisterLoan:       registerLoan(logger, engine),
		SetLoanAccount:     setLoanAccount(logger, engine),
	}
}

func (c *Router) RegisterRoutes(r *mux.Router) {
	r.Methods("GET").Path("/loans/{loanID}/payment-account").HandlerFunc(c.GetLoanAccountInfo)
	r.Methods("PUT").Path("/loans/{loanID}").HandlerFunc(c.RegisterLoan)
	r.Methods("PUT").Path("/loans/{loanID}/payment-account").HandlerFunc(c.SetLoanAccount)
}

func getLoanID(r *http.Request) string {
	return route.ReadPathID("loanID", r)
}

func getLoanAccountInfo(logger log.Logger, engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		resolved, err := engine.Resolve(getLoanID(r))
		if err != nil {
			responder.Problem(err)
			return
		}
		responder.JSON(http.StatusOK, resolved)
	}
}

type registerLoanRequest struct {
	CustomerID string `json:"customerID"`
}

func registerLoan(logger log.Logger, engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		var req registerLoanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responder.Problem(err)
			return
		}
		loan, err := engine.RegisterLoan(getLoanID(r), req.CustomerID)
		if err != nil {
			responder.Log("resolution", "problem registering loan", "loanID", getLoanID(r), "error", err)
			responder.Problem(err)
			return
		}
		responder.JSON(http.StatusOK, loan)
	}
}

type setLoanAccountRequest struct {
	// AuthorizationID is null or empty to use the customer's default.
	AuthorizationID *string `json:"authorizationID"`
}

func setLoanAccount(logger log.Logger, engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		var req setLoanAccountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responder.Problem(err)
			return
		}
		var authorizationID string
		if req.AuthorizationID != nil {
			authorizationID = *req.AuthorizationID
		}
		resolved, err := engine.SetLoanAccount(getLoanID(r), authorizationID)
		if err != nil {
			responder.Problem(err)
			return
		}
		responder.JSON(http.StatusOK, resolved)
	}
}
