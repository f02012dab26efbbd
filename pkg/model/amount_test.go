// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAmount(t *testing.T) {
	// happy path
	amt, err := NewAmount("USD", decimal.RequireFromString("12.00"))
	if err != nil {
		t.Fatal(err)
	}
	if v := amt.String(); v != "USD 12.00" {
		t.Errorf("got %q", v)
	}

	// rounded to cents
	amt, err = NewAmount("USD", decimal.RequireFromString("12.345"))
	if err != nil {
		t.Fatal(err)
	}
	if v := amt.String(); v != "USD 12.35" {
		t.Errorf("got %q", v)
	}

	// invalid
	if _, err := NewAmount("", decimal.Zero); err == nil {
		t.Errorf("expected error")
	}
	if _, err := NewAmount("USD", decimal.NewFromInt(-1)); err == nil {
		t.Errorf("expected error")
	}
}

func TestAmount__Cents(t *testing.T) {
	amt, err := NewAmountFromCents("usd", 1266)
	if err != nil {
		t.Fatal(err)
	}
	if amt.String() != "USD 12.66" {
		t.Errorf("got %q", amt.String())
	}
	if n := amt.Cents(); n != 1266 {
		t.Errorf("got %d", n)
	}

	var nilAmt *Amount
	if n := nilAmt.Cents(); n != 0 {
		t.Errorf("got %d", n)
	}
}

func TestAmount__Equal(t *testing.T) {
	a, _ := NewAmountFromCents("USD", 100)
	b, _ := ParseAmount("USD 1.00")
	if !a.Equal(b) {
		t.Errorf("%s != %s", a, b)
	}

	c, _ := NewAmountFromCents("GBP", 100)
	if a.Equal(c) {
		t.Errorf("%s == %s", a, c)
	}

	var nilAmt *Amount
	if a.Equal(nilAmt) || !nilAmt.Equal(nil) {
		t.Error("unexpected nil comparison")
	}
}

func TestAmount__JSON(t *testing.T) {
	var amt Amount
	if err := json.Unmarshal([]byte(`"USD 41.12"`), &amt); err != nil {
		t.Fatal(err)
	}
	if amt.Cents() != 4112 {
		t.Errorf("got %d", amt.Cents())
	}

	bs, err := json.Marshal(amt)
	if err != nil {
		t.Fatal(err)
	}
	if v := string(bs); v != `"USD 41.12"` {
		t.Errorf("got %s", v)
	}

	if err := json.Unmarshal([]byte(`"41.12"`), &amt); err == nil {
		t.Error("expected error")
	}
}

func TestAmount__Validate(t *testing.T) {
	var amt *Amount
	if err := amt.Validate(); err == nil {
		t.Error("expected error")
	}
	zero, _ := NewAmountFromCents("USD", 0)
	if err := zero.Validate(); err == nil {
		t.Error("expected error")
	}
	one, _ := NewAmountFromCents("USD", 1)
	if err := one.Validate(); err != nil {
		t.Error(err)
	}
}
