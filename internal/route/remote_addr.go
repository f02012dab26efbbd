// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package route

import (
	"net"
	"net/http"
	"os"
	"strings"
)

var (
	remoteAddrHeaderName = func() string {
		if v := os.Getenv("REMOTE_ADDRESS_HEADER"); v != "" {
			return v
		}
		return "X-Forwarded-For"
	}()
)

// RemoteAddr attempts to return the real IP address of the client which made r.
// This relies on proxies infront of autopay to set the X-Forwarded-For header,
// otherwise the connection's address is used.
func RemoteAddr(r *http.Request) string {
	if v := remoteAddr(r.Header, remoteAddrHeaderName); v != "" {
		return v
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func remoteAddr(h http.Header, headerName string) string {
	if v := h.Get(headerName); v != "" {
		parts := strings.Split(v, ",")
		return strings.TrimSpace(parts[0])
	}
	return ""
}
