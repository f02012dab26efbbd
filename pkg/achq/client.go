// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package achq talks to the ACHQ payment gateway which tokenizes bank accounts
// and runs ExpressVerify checks against them.
package achq

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/moov-io/autopay/internal/trace"
	"github.com/moov-io/autopay/pkg/config"
	"github.com/moov-io/autopay/pkg/model"

	"github.com/go-kit/kit/log"
)

const providerName = "achq"

type Client interface {
	Verify(ctx context.Context, req VerifyRequest) (*Verification, error)
}

type VerifyRequest struct {
	RoutingNumber string
	AccountNumber string
	AccountType   model.AccountType
	CustomerName  string
}

// Verification is the gateway's answer for one bank account.
type Verification struct {
	Token    string
	BankName string
	Status   model.VerificationStatus
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

func NewClient(logger log.Logger, cfg *config.ACHQ) (*ACHQ, error) {
	if cfg == nil {
		return nil, errors.New("nil ACHQ config")
	}
	client := defaultHttpClient
	if cfg.Timeout > 0 {
		client = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: defaultHttpClient.Transport,
		}
	}
	return &ACHQ{
		cfg:      *cfg,
		client:   client,
		endpoint: cfg.GetEndpoint(),
		logger:   logger,
	}, nil
}

type ACHQ struct {
	cfg      config.ACHQ
	client   *http.Client
	endpoint string

	logger log.Logger
}

func (a *ACHQ) Verify(ctx context.Context, req VerifyRequest) (*Verification, error) {
	params := url.Values{}
	params.Set("RoutingNumber", req.RoutingNumber)
	params.Set("AccountNumber", req.AccountNumber)
	params.Set("AccountType", accountType(req.AccountType))
	params.Set("CheckType", checkType(a.cfg.CheckType))
	params.Set("Billing_CustomerName", req.CustomerName)
	params.Set("Create_ACHQToken", "Yes")
	if a.cfg.ExpressVerify {
		params.Set("Run_ExpressVerify", "Yes")
	}

	resp, err := a.do(ctx, "ECheck.CreateToken", params)
	if err != nil {
		return nil, err
	}
	token := resp.Get("ACHQToken")
	if token == "" {
		a.trackError("ECheck.CreateToken")
		return nil, &model.ExternalLinkError{Provider: providerName, Err: errors.New("no account token returned")}
	}
	status := model.VerificationUnknown
	if a.cfg.ExpressVerify {
		status = model.ParseVerificationStatus(resp.Get("ExpressVerify_Status"))
	}
	return &Verification{
		Token:    token,
		BankName: resp.Get("BankName"),
		Status:   status,
	}, nil
}

func (a *ACHQ) do(ctx context.Context, command string, params url.Values) (response, error) {
	params.Set("Command", command)
	params.Set("MerchantID", a.cfg.MerchantID)
	params.Set("Merchant_GateID", a.cfg.GateID)
	params.Set("Merchant_GateKey", a.cfg.GetGateKey())
	if a.cfg.ProviderID != "" {
		params.Set("ProviderID", a.cfg.ProviderID)
		params.Set("Provider_GateID", a.cfg.ProviderGateID)
		params.Set("Provider_GateKey", a.cfg.ProviderGateKey)
	}
	if a.cfg.TestMode {
		params.Set("TestMode", "On")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	req, span := trace.Client(req, "achq-"+strings.ToLower(command))
	defer span.Finish()

	resp, err := a.client.Do(req)
	if err != nil {
		a.trackError(command)
		return nil, &model.ExternalLinkError{Provider: providerName, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	bs, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		a.trackError(command)
		return nil, &model.ExternalLinkError{Provider: providerName, Retryable: true, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		a.trackError(command)
		return nil, &model.ExternalLinkError{
			Provider:  providerName,
			Retryable: resp.StatusCode >= 500,
			Err:       fmt.Errorf("%s: unexpected HTTP status %s", command, resp.Status),
		}
	}

	out := parseResponse(string(bs))
	if !out.approved() {
		a.trackError(command)
		a.logger.Log("achq", fmt.Sprintf("%s declined: code=%s", command, out.errorCode()))
		return nil, &model.ExternalLinkError{Provider: providerName, Err: errors.New(out.errorMessage())}
	}
	return out, nil
}

// response holds the gateway's Key=Value|Key=Value reply.
type response map[string]string

func parseResponse(body string) response {
	out := make(response)
	for _, pair := range strings.Split(strings.TrimSpace(body), "|") {
		idx := strings.Index(pair, "=")
		if idx < 0 {
			continue
		}
		out[strings.TrimSpace(pair[:idx])] = strings.TrimSpace(pair[idx+1:])
	}
	return out
}

func (r response) Get(key string) string {
	return r[key]
}

func (r response) approved() bool {
	switch strings.ToUpper(r.Get("Status")) {
	case "APPROVED", "SUCCESS", "OK":
		return true
	}
	return false
}

func (r response) errorMessage() string {
	for _, key := range []string{"Message", "ErrorMessage"} {
		if v := r.Get(key); v != "" {
			return v
		}
	}
	return "unknown error"
}

func (r response) errorCode() string {
	if v := r.Get("ErrorCode"); v != "" {
		return v
	}
	return r.Get("Code")
}

func accountType(t model.AccountType) string {
	if t == model.Savings {
		return "Savings"
	}
	return "Checking"
}

func checkType(v string) string {
	if strings.EqualFold(v, "business") {
		return "Business"
	}
	return "Personal"
}
