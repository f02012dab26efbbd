// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package util

import (
	"strconv"
	"strings"
)

// Or returns the first option which isn't blank, trimmed of whitespace.
func Or(options ...string) string {
	for _, opt := range options {
		if v := strings.TrimSpace(opt); v != "" {
			return v
		}
	}
	return ""
}

// Yes reports if in is an affirmative flag value. It accepts "yes", "on" and
// anything strconv.ParseBool understands as true, ignoring case.
func Yes(in string) bool {
	in = strings.ToLower(strings.TrimSpace(in))
	switch in {
	case "yes", "y", "on":
		return true
	}
	v, _ := strconv.ParseBool(in)
	return v
}
