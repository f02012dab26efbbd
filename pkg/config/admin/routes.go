// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package admin

import (
	"encoding/json"
	"net/http"

	"github.com/moov-io/autopay/pkg/config"

	"github.com/moov-io/base/admin"
)

// RegisterRoutes adds the config endpoints to the autopay admin HTTP server
func RegisterRoutes(svc *admin.Server, cfg *config.Config) {
	if cfg.Admin.DisableConfigEndpoint {
		return
	}

	svc.AddHandler("/config", marshalConfig(cfg))
	svc.AddHandler("/config/providers", marshalProviders(cfg))
}

// Secret values are tagged json:"-" on the config structs so they never render here.
func marshalConfig(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, cfg)
	}
}

// Providers reports which external integrations autopay will call.
type Providers struct {
	Plaid     bool   `json:"plaid"`
	ACHQ      bool   `json:"achq"`
	Stripe    bool   `json:"stripe"`
	PagerDuty bool   `json:"pagerduty"`
	Redis     bool   `json:"redis"`
	Jaeger    bool   `json:"jaeger"`
	Database  string `json:"database"`
	Secrets   string `json:"secrets"`
}

func providers(cfg *config.Config) Providers {
	out := Providers{
		Plaid:     cfg.Linking.Plaid != nil,
		ACHQ:      cfg.Verification.ACHQ != nil,
		Stripe:    cfg.Billing.Stripe != nil,
		PagerDuty: cfg.Alerting.PagerDuty != nil,
		Redis:     cfg.Idempotency.Redis != nil,
		Jaeger:    cfg.Tracing.Jaeger != nil,
		Database:  "sqlite",
		Secrets:   "local",
	}
	if cfg.Database.MySQL != nil {
		out.Database = "mysql"
	}
	if cfg.Secrets.GCP != nil {
		out.Secrets = "gcpkms"
	}
	return out
}

func marshalProviders(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, providers(cfg))
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
