// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package plaid

import (
	"net/url"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	plaidClientErrors = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "plaid_client_errors",
		Help: "Counter of errors with the Plaid API",
	}, []string{"instance", "operation"})
)

func (p *Plaid) trackError(operation string) {
	host := "N/A"
	if u, _ := url.Parse(p.baseURL); u != nil && u.Host != "" {
		host = u.Host
	}
	plaidClientErrors.With("instance", host, "operation", operation).Add(1)
}
