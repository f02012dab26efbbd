// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/moov-io/autopay/internal/trace"
	"github.com/moov-io/autopay/pkg/config"
	"github.com/moov-io/autopay/pkg/model"

	"github.com/go-kit/kit/log"
)

const (
	providerName = "plaid"

	// processor receives the account via processor tokens so we never hold account numbers.
	processor = "achq"
)

type Client interface {
	// CreateLinkToken returns a short-lived token the linking widget is opened with.
	CreateLinkToken(ctx context.Context, customerID string) (*LinkToken, error)

	// ExchangePublicToken turns the widget's public token into a permanent
	// processor token for accountID.
	ExchangePublicToken(ctx context.Context, publicToken, accountID string) (*Account, error)
}

type LinkToken struct {
	Token      string    `json:"linkToken"`
	Expiration time.Time `json:"expiration"`
}

type Account struct {
	ProcessorToken string
	ItemID         string
	AccountID      string
	BankName       string
	AccountLast4   string
	AccountType    model.AccountType
}

var (
	defaultHttpClient = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     1 * time.Minute,
		},
	}
)

func NewClient(logger log.Logger, cfg *config.Plaid) (*Plaid, error) {
	if cfg == nil {
		return nil, errors.New("nil Plaid config")
	}
	client := defaultHttpClient
	if cfg.Timeout > 0 {
		client = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: defaultHttpClient.Transport,
		}
	}
	return &Plaid{
		cfg:     *cfg,
		client:  client,
		baseURL: cfg.BaseURL(),
		logger:  logger,
	}, nil
}

type Plaid struct {
	cfg     config.Plaid
	client  *http.Client
	baseURL string

	logger log.Logger
}

type linkTokenUser struct {
	ClientUserID string `json:"client_user_id"`
}

type linkTokenRequest struct {
	User           linkTokenUser          `json:"user"`
	ClientName     string                 `json:"client_name"`
	Products       []string               `json:"products"`
	CountryCodes   []string               `json:"country_codes"`
	Language       string                 `json:"language"`
	Webhook        string                 `json:"webhook,omitempty"`
	AccountFilters map[string]interface{} `json:"account_filters"`
}

type linkTokenResponse struct {
	LinkToken  string    `json:"link_token"`
	Expiration time.Time `json:"expiration"`
}

func (p *Plaid) CreateLinkToken(ctx context.Context, customerID string) (*LinkToken, error) {
	clientName := p.cfg.ClientName
	if clientName == "" {
		clientName = "Autopay"
	}
	req := linkTokenRequest{
		User:         linkTokenUser{ClientUserID: customerID},
		ClientName:   clientName,
		Products:     []string{"auth"},
		CountryCodes: []string{"US"},
		Language:     "en",
		Webhook:      p.cfg.WebhookURL,
		AccountFilters: map[string]interface{}{
			"depository": map[string]interface{}{
				"account_subtypes": []string{"checking", "savings"},
			},
		},
	}
	var resp linkTokenResponse
	if err := p.post(ctx, "/link/token/create", req, &resp); err != nil {
		return nil, err
	}
	if resp.LinkToken == "" {
		return nil, &model.ExternalLinkError{Provider: providerName, Err: errors.New("no link token returned")}
	}
	return &LinkToken{Token: resp.LinkToken, Expiration: resp.Expiration}, nil
}

type accountsResponse struct {
	Accounts []struct {
		AccountID string `json:"account_id"`
		Mask      string `json:"mask"`
		Name      string `json:"name"`
		Subtype   string `json:"subtype"`
	} `json:"accounts"`
	Item struct {
		ItemID        string `json:"item_id"`
		InstitutionID string `json:"institution_id"`
	} `json:"item"`
}

func (p *Plaid) ExchangePublicToken(ctx context.Context, publicToken, accountID string) (*Account, error) {
	var exchange struct {
		AccessToken string `json:"access_token"`
		ItemID      string `json:"item_id"`
	}
	if err := p.post(ctx, "/item/public_token/exchange", map[string]string{"public_token": publicToken}, &exchange); err != nil {
		return nil, err
	}

	var accounts accountsResponse
	if err := p.post(ctx, "/accounts/get", map[string]string{"access_token": exchange.AccessToken}, &accounts); err != nil {
		return nil, err
	}
	out := &Account{
		ItemID:    exchange.ItemID,
		AccountID: accountID,
	}
	if out.ItemID == "" {
		out.ItemID = accounts.Item.ItemID
	}
	found := false
	for _, acct := range accounts.Accounts {
		if acct.AccountID != accountID {
			continue
		}
		found = true
		out.BankName = acct.Name
		out.AccountLast4 = lastFour(acct.Mask)
		out.AccountType = model.Checking
		if strings.EqualFold(acct.Subtype, "savings") {
			out.AccountType = model.Savings
		}
	}
	if !found {
		return nil, &model.ExternalLinkError{Provider: providerName, Err: fmt.Errorf("selected account %s not found", accountID)}
	}

	var processorToken struct {
		ProcessorToken string `json:"processor_token"`
	}
	err := p.post(ctx, "/processor/token/create", map[string]string{
		"access_token": exchange.AccessToken,
		"account_id":   accountID,
		"processor":    processor,
	}, &processorToken)
	if err != nil {
		return nil, err
	}
	out.ProcessorToken = processorToken.ProcessorToken

	if name := p.institutionName(ctx, accounts.Item.InstitutionID); name != "" {
		out.BankName = name
	}
	return out, nil
}

// institutionName is best effort, the account's own name is used when it fails.
func (p *Plaid) institutionName(ctx context.Context, institutionID string) string {
	if institutionID == "" {
		return ""
	}
	var resp struct {
		Institution struct {
			Name string `json:"name"`
		} `json:"institution"`
	}
	err := p.post(ctx, "/institutions/get_by_id", map[string]interface{}{
		"institution_id": institutionID,
		"country_codes":  []string{"US"},
	}, &resp)
	if err != nil {
		p.logger.Log("plaid", fmt.Sprintf("problem looking up institution=%s: %v", institutionID, err))
		return ""
	}
	return resp.Institution.Name
}

type errorResponse struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	RequestID    string `json:"request_id"`
}

func (e errorResponse) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.ErrorMessage)
}

func (e errorResponse) retryable() bool {
	switch e.ErrorType {
	case "API_ERROR", "RATE_LIMIT_EXCEEDED", "INSTITUTION_ERROR":
		return true
	}
	return false
}

// post sends body with our credentials merged in and decodes the reply into out.
func (p *Plaid) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := withCredentials(body, p.cfg.ClientID, p.cfg.GetSecret())
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	req, span := trace.Client(req, "plaid"+strings.ReplaceAll(path, "/", "-"))
	defer span.Finish()

	resp, err := p.client.Do(req)
	if err != nil {
		p.trackError(path)
		return &model.ExternalLinkError{Provider: providerName, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	bs, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		p.trackError(path)
		return &model.ExternalLinkError{Provider: providerName, Retryable: true, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.trackError(path)
		var perr errorResponse
		if err := json.Unmarshal(bs, &perr); err != nil || perr.ErrorCode == "" {
			return &model.ExternalLinkError{
				Provider:  providerName,
				Retryable: resp.StatusCode >= 500,
				Err:       fmt.Errorf("%s: unexpected HTTP status %s", path, resp.Status),
			}
		}
		p.logger.Log("plaid", fmt.Sprintf("%s failed: %v", path, perr), "plaidRequestID", perr.RequestID)
		return &model.ExternalLinkError{Provider: providerName, Retryable: perr.retryable() || resp.StatusCode >= 500, Err: perr}
	}
	if err := json.Unmarshal(bs, out); err != nil {
		return &model.ExternalLinkError{Provider: providerName, Err: fmt.Errorf("%s: decoding response: %v", path, err)}
	}
	return nil
}

func withCredentials(body interface{}, clientID, secret string) ([]byte, error) {
	bs, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]interface{})
	if err := json.Unmarshal(bs, &fields); err != nil {
		return nil, err
	}
	fields["client_id"] = clientID
	fields["secret"] = secret
	return json.Marshal(fields)
}

func lastFour(mask string) string {
	if len(mask) > 4 {
		return mask[len(mask)-4:]
	}
	return mask
}
