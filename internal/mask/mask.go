// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package mask

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Password turns 'password' into 'p******d'
func Password(s string) string {
	if utf8.RuneCountInString(s) < 3 {
		return "**" // too short, we can't mask anything
	}
	first, last := s[0:1], s[len(s)-1:]
	return fmt.Sprintf("%s%s%s", first, strings.Repeat("*", len(s)-2), last)
}

// Key keeps the provider prefix of an API key visible, so 'sk_test_abc123'
// renders as 'sk_test_****23'.
func Key(s string) string {
	idx := strings.LastIndex(s, "_")
	if idx < 0 || len(s)-idx-1 < 3 {
		return Password(s)
	}
	prefix, rest := s[:idx+1], s[idx+1:]
	return prefix + strings.Repeat("*", len(rest)-2) + rest[len(rest)-2:]
}
