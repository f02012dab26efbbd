// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package lifecycle

import (
	"github.com/moov-io/autopay/pkg/model"
)

var statusTransitionChart = StatusTransitionChart{
	model.StatusSetupPending: {model.StatusActive},
	model.StatusActive:       {model.StatusPaused, model.StatusRevoked},
	model.StatusPaused:       {model.StatusActive, model.StatusRevoked},
}

// StatusTransitionChart lists the statuses reachable from each status.
// Revoked has no entry as it's terminal.
type StatusTransitionChart map[model.Status][]model.Status

func (s StatusTransitionChart) Allowed(from, to model.Status) bool {
	list, exists := s[from]
	if !exists {
		return false
	}
	for _, status := range list {
		if status == to {
			return true
		}
	}
	return false
}

// Allowed reports if an authorization may move between the two statuses.
func Allowed(from, to model.Status) bool {
	return statusTransitionChart.Allowed(from, to)
}
