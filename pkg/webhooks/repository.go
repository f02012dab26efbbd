// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package webhooks

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/moov-io/autopay/pkg/database"
)

// Repository remembers which provider events were processed.
type Repository interface {
	Seen(provider, eventID string) (bool, error)

	// Record marks the event as processed. Recording an event twice is not an error.
	Record(provider, eventID, eventType string) error
}

func NewRepo(db *sql.DB) *SQLRepo {
	return &SQLRepo{db: db}
}

type SQLRepo struct {
	db *sql.DB
}

func (r *SQLRepo) Close() error {
	return r.db.Close()
}

func (r *SQLRepo) Seen(provider, eventID string) (bool, error) {
	query := `select count(*) from webhook_events where provider = ? and event_id = ?;`
	var n int
	if err := r.db.QueryRow(query, provider, eventID).Scan(&n); err != nil {
		return false, fmt.Errorf("webhook event lookup: %w", err)
	}
	return n > 0, nil
}

func (r *SQLRepo) Record(provider, eventID, eventType string) error {
	query := `insert into webhook_events (provider, event_id, event_type, received_at) values (?, ?, ?, ?);`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	if _, err := stmt.Exec(provider, eventID, eventType, time.Now().UTC()); err != nil {
		if database.UniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("record webhook event: %w", err)
	}
	return nil
}

type MockRepository struct {
	Err error

	mu     sync.Mutex
	events map[string]string
}

func (r *MockRepository) Seen(provider, eventID string) (bool, error) {
	if r.Err != nil {
		return false, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.events[provider+"/"+eventID]
	return ok, nil
}

func (r *MockRepository) Record(provider, eventID, eventType string) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = make(map[string]string)
	}
	r.events[provider+"/"+eventID] = eventType
	return nil
}
