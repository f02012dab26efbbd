// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var hundred = decimal.NewFromInt(100)

// Amount represents units of a particular currency.
type Amount struct {
	value  decimal.Decimal
	symbol string // ISO 4217, i.e. USD, GBP
}

// NewAmount returns an Amount after validating the ISO 4217 currency symbol.
// Values are rounded to cents.
func NewAmount(symbol string, value decimal.Decimal) (*Amount, error) {
	unit, err := currency.ParseISO(symbol)
	if err != nil {
		return nil, err
	}
	if value.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", value)
	}
	return &Amount{value: value.Round(2), symbol: unit.String()}, nil
}

// NewAmountFromCents returns an Amount from an integer number of cents.
// Example: ("usd", 111) is "USD 1.11"
func NewAmountFromCents(symbol string, cents int64) (*Amount, error) {
	return NewAmount(strings.ToUpper(symbol), decimal.New(cents, -2))
}

// Cents returns the amount as an integer number of minor units.
// Example: "USD 1.11" returns 111
func (a *Amount) Cents() int64 {
	if a == nil {
		return 0
	}
	return a.value.Mul(hundred).IntPart()
}

// Symbol returns the ISO 4217 currency code.
func (a *Amount) Symbol() string {
	if a == nil || a.symbol == "" {
		return "USD"
	}
	return a.symbol
}

func (a *Amount) Validate() error {
	if a == nil {
		return errors.New("nil Amount")
	}
	if _, err := currency.ParseISO(a.symbol); err != nil {
		return err
	}
	if !a.value.IsPositive() {
		return errors.New("amount must be positive")
	}
	return nil
}

// Equal reports if both amounts have the same currency and value. Two nil amounts are equal.
func (a *Amount) Equal(other *Amount) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.symbol == other.symbol && a.value.Equal(other.value)
}

// String returns an amount formatted with the currency.
// Examples:
//   USD 12.53
//   GBP 4.02
func (a *Amount) String() string {
	if a == nil || a.symbol == "" {
		return "USD 0.00"
	}
	return fmt.Sprintf("%s %s", a.symbol, a.value.StringFixed(2))
}

// ParseAmount attempts to read a string as a valid currency symbol and number.
// Examples:
//   USD 12.53
func ParseAmount(in string) (*Amount, error) {
	parts := strings.Fields(in)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid Amount format: %q", in)
	}
	value, err := decimal.NewFromString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %v", parts[1], err)
	}
	return NewAmount(parts[0], value)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	amt, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = *amt
	return nil
}
