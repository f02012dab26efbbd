// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package achq

import (
	"net/url"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	achqClientErrors = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "achq_client_errors",
		Help: "Counter of errors with the ACHQ gateway",
	}, []string{"instance", "operation"})
)

func (a *ACHQ) trackError(operation string) {
	host := "N/A"
	if u, _ := url.Parse(a.endpoint); u != nil && u.Host != "" {
		host = u.Host
	}
	achqClientErrors.With("instance", host, "operation", operation).Add(1)
}
