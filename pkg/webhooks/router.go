// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package webhooks

import (
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"

	"github.com/moov-io/autopay/internal/route"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

const maxPayloadBytes = 1 << 16

type Router struct {
	StripeWebhook    http.HandlerFunc
	PlaidWebhook     http.HandlerFunc
	ACHReturnWebhook http.HandlerFunc
}

func NewRouter(logger log.Logger, processor *Processor) *Router {
	return &Router{
		StripeWebhook:    stripeWebhook(logger, processor),
		PlaidWebhook:     plaidWebhook(logger, processor),
		ACHReturnWebhook: achReturnWebhook(logger, processor),
	}
}

func (c *Router) RegisterRoutes(r *mux.Router) {
	r.Methods("POST").Path("/webhooks/stripe").HandlerFunc(c.StripeWebhook)
	r.Methods("POST").Path("/webhooks/plaid").HandlerFunc(c.PlaidWebhook)
	r.Methods("POST").Path("/webhooks/ach-returns").HandlerFunc(c.ACHReturnWebhook)
}

func readPayload(r *http.Request) ([]byte, error) {
	return ioutil.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
}

func stripeWebhook(logger log.Logger, processor *Processor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		payload, err := readPayload(r)
		if err != nil {
			responder.Problem(err)
			return
		}
		res, err := processor.HandleStripe(payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			responder.Log("webhooks", "problem with stripe webhook", "error", err)
			responder.Problem(err)
			return
		}
		responder.JSON(http.StatusOK, res)
	}
}

func plaidWebhook(logger log.Logger, processor *Processor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		payload, err := readPayload(r)
		if err != nil {
			responder.Problem(err)
			return
		}
		res, err := processor.HandlePlaid(responder.Context(), payload, r.Header.Get(plaidVerificationHeader))
		if err != nil {
			responder.Log("webhooks", "problem with plaid webhook", "error", err)
			responder.Problem(err)
			return
		}
		responder.JSON(http.StatusOK, res)
	}
}

func achReturnWebhook(logger log.Logger, processor *Processor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		var ret ACHReturn
		if err := json.NewDecoder(io.LimitReader(r.Body, maxPayloadBytes)).Decode(&ret); err != nil {
			responder.Problem(err)
			return
		}
		res, err := processor.HandleACHReturn(responder.Context(), ret)
		if err != nil {
			responder.Log("webhooks", "problem with ACH return", "eventID", ret.EventID, "error", err)
			responder.Problem(err)
			return
		}
		responder.JSON(http.StatusOK, res)
	}
}
