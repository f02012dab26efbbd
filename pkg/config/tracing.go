// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
)

type Tracing struct {
	Jaeger *Jaeger
}

func (cfg Tracing) Validate() error {
	if j := cfg.Jaeger; j != nil {
		if j.SampleRate < 0 || j.SampleRate > 1 {
			return errors.New("jaeger: sample rate must be between 0 and 1")
		}
	}
	return nil
}

type Jaeger struct {
	ServiceName string

	// SampleRate of 1.0 records every span, lower values sample probabilistically.
	SampleRate float64
}
