// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package billing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/moov-io/autopay/pkg/config"
	"github.com/moov-io/autopay/pkg/model"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

// stripeServer answers the handful of Stripe API calls the adapter makes.
type stripeServer struct {
	*httptest.Server

	mu        sync.Mutex
	invoices  map[string]map[string]string // id -> status, amount
	customers int
	counter   int
	voided    []string
	items     []string
}

func newStripeServer(t *testing.T) *stripeServer {
	t.Helper()

	ss := &stripeServer{invoices: make(map[string]map[string]string)}
	r := mux.NewRouter()
	r.Methods("GET").Path("/v1/customers").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ss.mu.Lock()
		defer ss.mu.Unlock()
		data := "[]"
		if ss.customers > 0 {
			data = `[{"id": "cus_123", "object": "customer", "email": "jane@example.com"}]`
		}
		fmt.Fprintf(w, `{"object": "list", "url": "/v1/customers", "has_more": false, "data": %s}`, data)
	})
	r.Methods("POST").Path("/v1/customers").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ss.mu.Lock()
		ss.customers++
		ss.mu.Unlock()
		fmt.Fprint(w, `{"id": "cus_123", "object": "customer", "email": "jane@example.com"}`)
	})
	r.Methods("POST").Path("/v1/invoices").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		ss.mu.Lock()
		defer ss.mu.Unlock()
		ss.counter++
		id := fmt.Sprintf("in_%d", ss.counter)
		ss.invoices[id] = map[string]string{
			"status":           "draft",
			"collection":       r.Form.Get("collection_method"),
			"loan_id":          r.Form.Get("metadata[loan_id]"),
			"authorization_id": r.Form.Get("metadata[authorization_id]"),
		}
		ss.writeInvoice(w, id)
	})
	r.Methods("POST").Path("/v1/invoiceitems").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		ss.mu.Lock()
		defer ss.mu.Unlock()
		if inv, ok := ss.invoices[r.Form.Get("invoice")]; ok {
			inv["amount"] = r.Form.Get("amount")
			inv["currency"] = r.Form.Get("currency")
		}
		ss.items = append(ss.items, r.Form.Get("amount"))
		fmt.Fprint(w, `{"id": "ii_1", "object": "invoiceitem"}`)
	})
	r.Methods("POST").Path("/v1/invoices/{id}/finalize").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ss.mu.Lock()
		defer ss.mu.Unlock()
		id := mux.Vars(r)["id"]
		ss.invoices[id]["status"] = "open"
		ss.writeInvoice(w, id)
	})
	r.Methods("POST").Path("/v1/invoices/{id}/void").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ss.mu.Lock()
		defer ss.mu.Unlock()
		id := mux.Vars(r)["id"]
		ss.invoices[id]["status"] = "void"
		ss.voided = append(ss.voided, id)
		ss.writeInvoice(w, id)
	})
	r.Methods("GET").Path("/v1/invoices/{id}").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ss.mu.Lock()
		defer ss.mu.Unlock()
		id := mux.Vars(r)["id"]
		if _, ok := ss.invoices[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `{"error": {"type": "invalid_request_error", "message": "No such invoice: '%s'"}}`, id)
			return
		}
		ss.writeInvoice(w, id)
	})
	ss.Server = httptest.NewServer(r)
	return ss
}

func (ss *stripeServer) writeInvoice(w http.ResponseWriter, id string) {
	inv := ss.invoices[id]
	amount := inv["amount"]
	if amount == "" {
		amount = "0"
	}
	paid := "0"
	if inv["status"] == "paid" {
		paid = amount
	}
	currency := inv["currency"]
	if currency == "" {
		currency = "usd"
	}
	fmt.Fprintf(w, `{"id": %q, "object": "invoice", "status": %q, "customer": "cus_123", "currency": %q, "amount_due": %s, "amount_paid": %s, "hosted_invoice_url": "https://invoice.stripe.com/i/%s", "description": "Loan payment", "metadata": {"loan_id": %q, "authorization_id": %q}}`,
		id, inv["status"], currency, amount, paid, id, inv["loan_id"], inv["authorization_id"])
}

func newTestStripe(t *testing.T, ss *stripeServer) *Stripe {
	t.Helper()

	cfg := config.Empty().Billing
	cfg.Stripe = &config.Stripe{
		SecretKey:  "sk_test_123",
		BackendURL: ss.URL,
	}
	client, err := NewStripe(log.NewNopLogger(), cfg)
	require.NoError(t, err)
	return client
}

func TestStripe__CreateInvoice(t *testing.T) {
	ss := newStripeServer(t)
	defer ss.Close()
	client := newTestStripe(t, ss)

	amount, _ := model.ParseAmount("USD 12.53")
	inv, err := client.CreateInvoice(context.Background(), InvoiceRequest{
		LoanID:          "loan-1",
		AuthorizationID: "auth-1",
		CustomerEmail:   "jane@example.com",
		CustomerName:    "Jane Doe",
		Amount:          amount,
	})
	require.NoError(t, err)
	require.Equal(t, "in_1", inv.ID)
	require.Equal(t, model.InvoiceOpen, inv.Status)
	require.Equal(t, int64(1253), inv.AmountDue.Cents())
	require.Equal(t, "USD", inv.AmountDue.Symbol())
	require.Equal(t, "loan-1", inv.LoanID)
	require.Equal(t, "auth-1", inv.AuthorizationID)
	require.Equal(t, "https://invoice.stripe.com/i/in_1", inv.HostedURL)
	require.Equal(t, "send_invoice", ss.invoices["in_1"]["collection"])
	require.Equal(t, []string{"1253"}, ss.items)

	// the customer is found by email the second time
	_, err = client.CreateInvoice(context.Background(), InvoiceRequest{
		LoanID:        "loan-1",
		CustomerEmail: "jane@example.com",
		Amount:        amount,
	})
	require.NoError(t, err)
	require.Equal(t, 1, ss.customers)

	_, err = client.CreateInvoice(context.Background(), InvoiceRequest{LoanID: "loan-1", Amount: amount})
	require.True(t, model.IsValidation(err), "unexpected error: %v", err)
}

func TestStripe__RegenerateInvoice(t *testing.T) {
	ss := newStripeServer(t)
	defer ss.Close()
	client := newTestStripe(t, ss)

	amount, _ := model.ParseAmount("USD 40.00")
	inv, err := client.CreateInvoice(context.Background(), InvoiceRequest{
		LoanID:          "loan-2",
		AuthorizationID: "auth-2",
		CustomerEmail:   "jane@example.com",
		Amount:          amount,
	})
	require.NoError(t, err)

	replacement, err := client.RegenerateInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.NotEqual(t, inv.ID, replacement.ID)
	require.Equal(t, int64(4000), replacement.AmountDue.Cents())
	require.Equal(t, "loan-2", replacement.LoanID)
	require.Equal(t, []string{inv.ID}, ss.voided)

	status, err := client.InvoiceStatus(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, model.InvoiceVoid, status.Status)

	// paid invoices can't be regenerated
	ss.mu.Lock()
	ss.invoices[replacement.ID]["status"] = "paid"
	ss.mu.Unlock()
	_, err = client.RegenerateInvoice(context.Background(), replacement.ID)
	require.True(t, model.IsValidation(err), "unexpected error: %v", err)

	_, err = client.InvoiceStatus(context.Background(), "in_missing")
	require.True(t, model.IsNotFound(err), "unexpected error: %v", err)
}

func TestStripe__NewStripe(t *testing.T) {
	_, err := NewStripe(log.NewNopLogger(), config.Empty().Billing)
	require.Error(t, err)
}
