// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package route

import (
	"net/http"
	"net/url"
	"testing"
)

func TestReadLimit(t *testing.T) {
	cases := map[string]int64{
		"/customers/foo/events?limit=27":   27,
		"/customers/foo/events?limit=2700": 1000,
		"/customers/foo/events?limit=-4":   100,
		"/customers/foo/events?limit=abc":  100,
		"/customers/foo/events":            100,
	}
	for path, expected := range cases {
		if limit := ReadLimit(makeRequest(t, path)); limit != expected {
			t.Errorf("%s: limit=%d", path, limit)
		}
	}
}

func TestReadOffset(t *testing.T) {
	if offset := ReadOffset(makeRequest(t, "/customers/foo/events?offset=27")); offset != 27 {
		t.Errorf("offset=%d", offset)
	}
	if offset := ReadOffset(makeRequest(t, "/customers/foo/events?offset=-3")); offset != 0 {
		t.Errorf("offset=%d", offset)
	}
	if offset := ReadOffset(makeRequest(t, "/customers/foo/events")); offset != 0 {
		t.Errorf("offset=%d", offset)
	}
}

func TestReadFlag(t *testing.T) {
	if !ReadFlag(makeRequest(t, "/invoices/in_1?refresh=true"), "refresh") {
		t.Error("expected refresh")
	}
	if !ReadFlag(makeRequest(t, "/invoices/in_1?refresh=YES"), "refresh") {
		t.Error("expected refresh")
	}
	if ReadFlag(makeRequest(t, "/invoices/in_1?refresh=0"), "refresh") {
		t.Error("unexpected refresh")
	}
	if ReadFlag(makeRequest(t, "/invoices/in_1"), "refresh") {
		t.Error("unexpected refresh")
	}
}

func makeRequest(t *testing.T, in string) *http.Request {
	t.Helper()
	u, err := url.Parse("http://localhost:8082" + in)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Request{
		URL: u,
	}
}
