// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package plaid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/moov-io/autopay/pkg/config"
	"github.com/moov-io/autopay/pkg/model"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	handler := http.NewServeMux()
	reply := func(path string, body interface{}) {
		handler.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			var req map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Error(err)
			}
			if req["client_id"] != "client" || req["secret"] != "secret" {
				t.Errorf("%s: missing credentials: %v", path, req)
			}
			if path == "/processor/token/create" && req["processor"] != "achq" {
				t.Errorf("processor=%v", req["processor"])
			}
			json.NewEncoder(w).Encode(body)
		})
	}
	reply("/link/token/create", map[string]interface{}{
		"link_token": "link-sandbox-123",
		"expiration": "2020-12-01T20:00:00Z",
	})
	reply("/item/public_token/exchange", map[string]interface{}{
		"access_token": "access-sandbox-123",
		"item_id":      "item-1",
	})
	reply("/accounts/get", map[string]interface{}{
		"accounts": []map[string]interface{}{
			{"account_id": "acct-1", "mask": "0000", "name": "Plaid Checking", "subtype": "checking"},
			{"account_id": "acct-2", "mask": "1111", "name": "Plaid Saving", "subtype": "savings"},
		},
		"item": map[string]interface{}{
			"item_id":        "item-1",
			"institution_id": "ins_1",
		},
	})
	reply("/processor/token/create", map[string]interface{}{
		"processor_token": "processor-sandbox-123",
	})
	handler.HandleFunc("/institutions/get_by_id", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error_type": "INVALID_INPUT", "error_code": "INVALID_INSTITUTION", "error_message": "unknown"}`))
	})
	return httptest.NewServer(handler)
}

func testClient(t *testing.T, baseURL string) *Plaid {
	t.Helper()
	client, err := NewClient(log.NewNopLogger(), &config.Plaid{
		ClientID: "client",
		Secret:   "secret",
	})
	require.NoError(t, err)
	client.baseURL = baseURL
	return client
}

func TestPlaid__CreateLinkToken(t *testing.T) {
	server := testServer(t)
	defer server.Close()

	token, err := testClient(t, server.URL).CreateLinkToken(context.Background(), "customer")
	require.NoError(t, err)
	require.Equal(t, "link-sandbox-123", token.Token)
	require.Equal(t, 2020, token.Expiration.Year())
}

func TestPlaid__ExchangePublicToken(t *testing.T) {
	server := testServer(t)
	defer server.Close()

	client := testClient(t, server.URL)
	account, err := client.ExchangePublicToken(context.Background(), "public-sandbox-123", "acct-2")
	require.NoError(t, err)
	require.Equal(t, "processor-sandbox-123", account.ProcessorToken)
	require.Equal(t, "item-1", account.ItemID)
	require.Equal(t, "1111", account.AccountLast4)
	require.Equal(t, model.Savings, account.AccountType)

	// institution lookup failed so the account's name is kept
	require.Equal(t, "Plaid Saving", account.BankName)

	_, err = client.ExchangePublicToken(context.Background(), "public-sandbox-123", "acct-3")
	require.True(t, model.IsExternalLink(err))
}

func TestPlaid__Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error_type": "RATE_LIMIT_EXCEEDED", "error_code": "RATE_LIMIT", "error_message": "slow down"}`))
	}))
	defer server.Close()

	_, err := testClient(t, server.URL).CreateLinkToken(context.Background(), "customer")
	require.True(t, model.IsExternalLink(err))
	require.True(t, err.(*model.ExternalLinkError).Retryable)
	require.Contains(t, err.Error(), "slow down")

	server.Close()
	_, err = testClient(t, server.URL).CreateLinkToken(context.Background(), "customer")
	require.True(t, model.IsExternalLink(err))
	require.True(t, err.(*model.ExternalLinkError).Retryable)
}

func TestLastFour(t *testing.T) {
	require.Equal(t, "6789", lastFour("123456789"))
	require.Equal(t, "00", lastFour("00"))
}
