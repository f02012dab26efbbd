// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package trace

import (
	"net/http"
	"testing"

	"github.com/moov-io/autopay/pkg/config"

	"github.com/go-kit/kit/log"
	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go"
)

func TestConstantTracing(t *testing.T) {
	tracer, closer, err := NewConstantTracer(log.NewNopLogger(), "test")
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	createParentWithChild(tracer)
}

func TestProbabilisticTracing(t *testing.T) {
	tracer, closer, err := NewProbabilisticTracer(log.NewNopLogger(), "test", 0.5)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	createParentWithChild(tracer)
}

func TestNew(t *testing.T) {
	tracer, closer, err := New(log.NewNopLogger(), config.Tracing{})
	if err != nil || tracer == nil {
		t.Fatalf("tracer=%v error=%v", tracer, err)
	}
	if err := closer.Close(); err != nil {
		t.Error(err)
	}

	tracer, closer, err = New(log.NewNopLogger(), config.Tracing{
		Jaeger: &config.Jaeger{SampleRate: 1.0},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()
	createParentWithChild(tracer)
}

func createParentWithChild(tracer opentracing.Tracer) {
	parent := tracer.StartSpan("say-hello")

	child := tracer.StartSpan("child", opentracing.ChildOf(parent.Context()))
	child.Finish()

	parent.Finish()
}

func TestDecorateHttpRequest(t *testing.T) {
	tracer, closer, err := NewConstantTracer(log.NewNopLogger(), "http-test")
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	span := tracer.StartSpan("service-ping")
	defer span.Finish()

	req, _ := http.NewRequest("GET", "/ping", nil)
	req = DecorateHttpRequest(req, span)

	if v := req.Header.Get(jaeger.TraceContextHeaderName); v == "" {
		t.Errorf("missing trace header: %#v", req.Header)
	}
}

func TestFromRequest(t *testing.T) {
	_, closer, err := NewConstantTracer(log.NewNopLogger(), "http-test")
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	req, _ := http.NewRequest("GET", "/ping", nil)

	span := FromRequest("service-ping", req)
	if span == nil {
		t.Fatal("nil Span")
	}
	if v := req.Header.Get(jaeger.TraceContextHeaderName); v != "" {
		t.Errorf("unexpected trace header: %#v", req.Header)
	}

	req2, _ := http.NewRequest("DELETE", "/foo/id", nil)
	req2 = DecorateHttpRequest(req2, FromRequest("removal", req))
	if v := req2.Header.Get(jaeger.TraceContextHeaderName); v == "" {
		t.Errorf("expected trace header: %#v", req2.Header)
	}
}
