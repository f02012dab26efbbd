// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"strings"
	"time"

	"github.com/moov-io/base/http/bind"

	"github.com/go-kit/kit/log"
	"github.com/spf13/viper"
)

type Config struct {
	Logger  log.Logger `yaml:"-" json:"-"`
	Logging Logging

	Http  HTTP
	Admin Admin

	Database Database
	Secrets  Secrets

	Scheduling   Scheduling
	Linking      Linking
	Verification Verification
	Billing      Billing

	Idempotency Idempotency
	Alerting    Alerting
	Tracing     Tracing
}

type Logging struct {
	Format string
	Level  string
}

func Empty() *Config {
	return &Config{
		Logger: log.NewNopLogger(),
		Admin: Admin{
			BindAddress: bind.Admin("autopay"),
		},
		Http: HTTP{
			BindAddress: bind.HTTP("autopay"),
		},
		Database: Database{
			// Set the default path inside this path if no other database is defined.
			SQLite: &SQLite{
				Path: "autopay.db",
			},
		},
		Scheduling: Scheduling{
			Stream: &SchedulingStream{
				InMem: &InMemStream{
					URL: "mem://autopay-scheduling",
				},
			},
		},
		Billing: Billing{
			Currency:         "USD",
			DaysUntilDue:     30,
			InvoiceRateLimit: 5 * time.Second,
		},
		Verification: Verification{
			SECCode: "WEB",
		},
	}
}

func FromFile(path string) (*Config, error) {
	cfg := Empty()
	if path != "" {
		bs, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %v", path, err)
		}
		return Read(bs)
	}
	cfg = setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Read(data []byte) (*Config, error) {
	vip := viper.New()
	vip.SetConfigType("yaml")
	if err := vip.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("problem reading config: %v", err)
	}

	cfg := Empty()
	if err := vip.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("problem unmarshaling config: %v", err)
	}

	cfg = setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogger(cfg *Config) *Config {
	if strings.EqualFold(cfg.Logging.Format, "json") {
		cfg.Logger = log.NewJSONLogger(os.Stderr)
	} else {
		cfg.Logger = log.NewLogfmtLogger(os.Stderr)
	}

	cfg.Logger = log.With(cfg.Logger, "ts", log.DefaultTimestampUTC)
	cfg.Logger = log.With(cfg.Logger, "caller", log.DefaultCaller)

	return cfg
}

// Validate checks a Config fields and performs various confirmations
// their values conform to expectations.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.New("missing Config")
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %v", err)
	}
	if err := cfg.Secrets.Validate(); err != nil {
		return fmt.Errorf("secrets: %v", err)
	}
	if err := cfg.Scheduling.Validate(); err != nil {
		return fmt.Errorf("scheduling: %v", err)
	}
	if err := cfg.Linking.Validate(); err != nil {
		return fmt.Errorf("linking: %v", err)
	}
	if err := cfg.Verification.Validate(); err != nil {
		return fmt.Errorf("verification: %v", err)
	}
	if err := cfg.Billing.Validate(); err != nil {
		return fmt.Errorf("billing: %v", err)
	}
	if err := cfg.Idempotency.Validate(); err != nil {
		return fmt.Errorf("idempotency: %v", err)
	}
	if err := cfg.Alerting.Validate(); err != nil {
		return fmt.Errorf("alerting: %v", err)
	}
	if err := cfg.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %v", err)
	}
	return nil
}
