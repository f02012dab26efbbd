// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/moov-io/autopay/internal/trace"
	"github.com/moov-io/autopay/pkg/model"

	moovhttp "github.com/moov-io/base/http"
	"github.com/moov-io/base/idempotent"
	"github.com/moov-io/base/idempotent/lru"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/gorilla/mux"
	opentracing "github.com/opentracing/opentracing-go"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	// IdempotentRecorder remembers X-Idempotency-Key values. It's replaced on startup
	// when a shared store is configured.
	IdempotentRecorder idempotent.Recorder = lru.New()

	// Prometheus Metrics
	Histogram = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Name: "http_response_duration_seconds",
		Help: "Histogram representing the http response durations",
	}, []string{"route"})
)

type Responder struct {
	XRequestID string

	logger log.Logger

	request *http.Request
	span    opentracing.Span

	writer *moovhttp.ResponseWriter
	seen   bool
}

func NewResponder(logger log.Logger, w http.ResponseWriter, r *http.Request) *Responder {
	resp := &Responder{
		XRequestID: moovhttp.GetRequestID(r),
		logger:     logger,
		request:    r,
	}
	resp.setSpan()

	writer, err := wrapResponseWriter(logger, w, r)
	resp.writer = writer
	if err != nil {
		resp.seen = true
		resp.finishSpan()
	}
	return resp
}

// Context carries the request's span so provider calls can join the trace.
func (r *Responder) Context() context.Context {
	if r == nil || r.request == nil {
		return context.Background()
	}
	ctx := r.request.Context()
	if r.span != nil {
		ctx = opentracing.ContextWithSpan(ctx, r.span)
	}
	return ctx
}

func (r *Responder) Log(kvpairs ...interface{}) {
	if r == nil || r.writer == nil {
		return
	}
	var args = []interface{}{
		"requestID", r.XRequestID,
	}
	args = append(args, kvpairs...)
	r.logger.Log(args...)
}

// Respond runs fn unless the request was already answered because its
// idempotency key was seen before.
func (r *Responder) Respond(fn func(http.ResponseWriter)) {
	if r == nil || r.seen {
		return
	}
	r.finishSpan()
	r.writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	fn(r.writer)
}

// JSON writes v with the given HTTP status.
func (r *Responder) JSON(status int, v interface{}) {
	r.Respond(func(w http.ResponseWriter) {
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	})
}

type errorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Problem writes err with a status code matching its kind. Unclassified errors are a 400.
func (r *Responder) Problem(err error) {
	if r == nil || r.seen {
		return
	}
	r.finishSpan()
	r.writer.Header().Set("Content-Type", "application/json; charset=utf-8")

	status, body := classify(err)
	if status == http.StatusBadRequest && body.Field == "" {
		moovhttp.Problem(r.writer, err)
		return
	}
	r.writer.WriteHeader(status)
	json.NewEncoder(r.writer).Encode(body)
}

func classify(err error) (int, errorResponse) {
	body := errorResponse{Error: err.Error()}

	var validation *model.ValidationError
	var external *model.ExternalLinkError
	switch {
	case errors.As(err, &validation):
		body.Field = validation.Field
		body.Error = validation.Message
		return http.StatusBadRequest, body
	case model.IsNotFound(err):
		return http.StatusNotFound, body
	case model.IsInvalidTransition(err):
		return http.StatusConflict, body
	case model.IsCrossCustomer(err):
		return http.StatusForbidden, body
	case model.IsRateLimited(err):
		return http.StatusTooManyRequests, body
	case errors.As(err, &external):
		body.Retryable = external.Retryable
		return http.StatusBadGateway, body
	}
	return http.StatusBadRequest, body
}

func (r *Responder) setSpan() {
	if r == nil || r.request == nil {
		return
	}
	name := fmt.Sprintf("%s-%s", strings.ToLower(r.request.Method), CleanPath(r.request.URL.Path))
	r.span = trace.FromRequest(name, r.request)
}

func (r *Responder) finishSpan() {
	if r != nil && r.span != nil {
		r.span.Finish()
	}
}

func wrapResponseWriter(logger log.Logger, w http.ResponseWriter, r *http.Request) (*moovhttp.ResponseWriter, error) {
	name := fmt.Sprintf("%s-%s", strings.ToLower(r.Method), CleanPath(r.URL.Path))
	ww := moovhttp.Wrap(logger, Histogram.With("route", name), w, r)

	if _, seen := idempotent.FromRequest(r, IdempotentRecorder); seen {
		idempotent.SeenBefore(ww)
		return ww, idempotent.ErrSeenBefore
	}
	return ww, nil
}

var baseIdRegex = regexp.MustCompile(`([a-f0-9]{40})`)

// CleanPath takes a URL path and formats it for Prometheus metrics
//
// This method replaces /'s with -'s and strips out moov/base.ID() values from URL path slugs.
func CleanPath(path string) string {
	parts := strings.Split(path, "/")
	var out []string
	for i := range parts {
		if parts[i] == "" || baseIdRegex.MatchString(parts[i]) {
			continue // assume it's a moov/base.ID() value
		}
		out = append(out, parts[i])
	}
	return strings.Join(out, "-")
}

func ReadPathID(name string, r *http.Request) string {
	return mux.Vars(r)[name]
}

func PingRoute(logger log.Logger, r *mux.Router) {
	r.Methods("GET").Path("/ping").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		moovhttp.SetAccessControlAllowHeaders(w, r.Header.Get("Origin"))
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("PONG"))
	})
}
