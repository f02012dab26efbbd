// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package lifecycle

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/moov-io/autopay/internal/route"
	"github.com/moov-io/autopay/pkg/model"
	"github.com/moov-io/autopay/pkg/validation"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

type Router struct {
	logger     log.Logger
	controller *Controller

	GetCustomerAccounts http.HandlerFunc
	SetupBankAccount    http.HandlerFunc
	SetDefaultAccount   http.HandlerFunc
	PauseAuthorization  http.HandlerFunc
	ResumeAuthorization http.HandlerFunc
	RevokeAuthorization http.HandlerFunc
}

func NewRouter(logger log.Logger, controller *Controller) *Router {
	return &Router{
		logger:              logger,
		controller:          controller,
		GetCustomerAccounts: getCustomerAccounts(logger, controller),
		SetupBankAccount:    setupBankAccount(logger, controller),
		SetDefaultAccount:   setDefaultAccount(logger, controller),
		PauseAuthorization:  pauseAuthorization(logger, controller),
		ResumeAuthorization: resumeAuthorization(logger, controller),
		RevokeAuthorization: revokeAuthorization(logger, controller),
	}
}

func (c *Router) RegisterRoutes(r *mux.Router) {
	r.Methods("GET").Path("/customers/{customerID}/bank-accounts").HandlerFunc(c.GetCustomerAccounts)
	r.Methods("POST").Path("/customers/{customerID}/bank-accounts").HandlerFunc(c.SetupBankAccount)
	r.Methods("PUT").Path("/bank-accounts/{authorizationID}/default").HandlerFunc(c.SetDefaultAccount)
	r.Methods("POST").Path("/bank-accounts/{authorizationID}/pause").HandlerFunc(c.PauseAuthorization)
	r.Methods("POST").Path("/bank-accounts/{authorizationID}/resume").HandlerFunc(c.ResumeAuthorization)
	r.Methods("POST").Path("/bank-accounts/{authorizationID}/revoke").HandlerFunc(c.RevokeAuthorization)
}

func getAuthorizationID(r *http.Request) string {
	return route.ReadPathID("authorizationID", r)
}

func getCustomerAccounts(logger log.Logger, controller *Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		customerID := route.ReadPathID("customerID", r)
		auths, err := controller.CustomerAccounts(customerID)
		if err != nil {
			responder.Log("lifecycle", err, "customerID", customerID)
			responder.Problem(err)
			return
		}
		if auths == nil {
			auths = []*model.Authorization{}
		}
		responder.JSON(http.StatusOK, auths)
	}
}

type setupRequest struct {
	validation.ManualEntry

	AccountType  model.AccountType `json:"accountType"`
	BankName     string            `json:"bankName"`
	CustomerName string            `json:"customerName"`
	IsDefault    bool              `json:"isDefault"`
}

func setupBankAccount(logger log.Logger, controller *Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		var req setupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responder.Problem(err)
			return
		}

		customerID := route.ReadPathID("customerID", r)
		auth, err := controller.Setup(responder.Context(), SetupRequest{
			CustomerID:      customerID,
			CustomerName:    req.CustomerName,
			Manual:          &req.ManualEntry,
			AccountType:     req.AccountType,
			BankName:        req.BankName,
			IsDefault:       req.IsDefault,
			AuthorizationIP: route.RemoteAddr(r),
		})
		if err != nil {
			responder.Log("lifecycle", "problem setting up bank account", "customerID", customerID, "error", err)
			responder.Problem(err)
			return
		}
		responder.JSON(http.StatusCreated, auth)
	}
}

func setDefaultAccount(logger log.Logger, controller *Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		auth, err := controller.SetDefault(responder.Context(), getAuthorizationID(r))
		if err != nil {
			responder.Problem(err)
			return
		}
		responder.JSON(http.StatusOK, auth)
	}
}

type transitionRequest struct {
	Reason string `json:"reason"`
}

// readReason accepts an empty body since the reason is optional.
func readReason(r *http.Request) (string, error) {
	var req transitionRequest
	if r.Body == nil {
		return "", nil
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		return "", err
	}
	return req.Reason, nil
}

func pauseAuthorization(logger log.Logger, controller *Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		reason, err := readReason(r)
		if err != nil {
			responder.Problem(err)
			return
		}
		auth, err := controller.Pause(responder.Context(), getAuthorizationID(r), reason)
		if err != nil {
			responder.Problem(err)
			return
		}
		responder.JSON(http.StatusOK, auth)
	}
}

func resumeAuthorization(logger log.Logger, controller *Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		auth, err := controller.Resume(responder.Context(), getAuthorizationID(r))
		if err != nil {
			responder.Problem(err)
			return
		}
		responder.JSON(http.StatusOK, auth)
	}
}

func revokeAuthorization(logger log.Logger, controller *Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		reason, err := readReason(r)
		if err != nil {
			responder.Problem(err)
			return
		}
		auth, err := controller.Revoke(responder.Context(), getAuthorizationID(r), reason)
		if err != nil {
			responder.Log("lifecycle", "problem revoking authorization", "authorizationID", getAuthorizationID(r), "error", err)
			responder.Problem(err)
			return
		}
		responder.JSON(http.StatusOK, auth)
	}
}
