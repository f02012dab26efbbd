// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package database

import (
	"errors"
	"testing"
)

func TestMySQL__basic(t *testing.T) {
	db := CreateTestMySQLDB(t)
	defer db.Close()

	if err := db.DB.Ping(); err != nil {
		t.Fatal(err)
	}

	// webhook events are unique per provider
	if _, err := db.DB.Exec(`insert into webhook_events(provider, event_id, event_type) values ('stripe', 'evt_1', 'invoice.paid');`); err != nil {
		t.Fatal(err)
	}
	_, err := db.DB.Exec(`insert into webhook_events(provider, event_id, event_type) values ('stripe', 'evt_1', 'invoice.paid');`)
	if !UniqueViolation(err) {
		t.Errorf("expected unique violation: %v", err)
	}
}

func TestMySQLUniqueViolation(t *testing.T) {
	err := errors.New(`problem creating authorization="282f6ffcd9ba5b029afbf2b739ee826e22d9df3b": Error 1062: Duplicate entry '282f6ffcd9ba5b029afbf2b739ee826e22d9df3b' for key 'PRIMARY'`)
	if !MySQLUniqueViolation(err) {
		t.Error("should have matched unique violation")
	}
}
