// Copyright 2019 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package events

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/moov-io/autopay/pkg/database"

	"github.com/moov-io/base"
)

type Repository interface {
	GetEvent(eventID string, customerID string) (*Event, error)
	GetCustomerEvents(customerID string, limit, offset int64) ([]*Event, error)

	WriteEvent(customerID string, event *Event) error
}

func NewRepo(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

type SQLRepository struct {
	db *sql.DB
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func (r *SQLRepository) WriteEvent(customerID string, event *Event) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("write event: begin: %w", err)
	}

	now := time.Now().UTC()
	query := `insert into events (event_id, customer_id, topic, message, type, created_at) values (?, ?, ?, ?, ?, ?)`
	stmt, err := tx.Prepare(query)
	if err != nil {
		return database.Rollback(tx, fmt.Errorf("write event: prepare: %w", err))
	}
	defer stmt.Close()

	if _, err = stmt.Exec(event.ID, customerID, event.Topic, event.Message, event.Type, now); err != nil {
		return database.Rollback(tx, fmt.Errorf("write event: exec: %w", err))
	}

	query = "insert into event_metadata (event_id, customer_id, `key`, value) values (?, ?, ?, ?);"
	metaStmt, err := tx.Prepare(query)
	if err != nil {
		return database.Rollback(tx, fmt.Errorf("write event: metadata prepare: %w", err))
	}
	defer metaStmt.Close()

	for k, v := range event.Metadata {
		if _, err := metaStmt.Exec(event.ID, customerID, k, v); err != nil {
			return database.Rollback(tx, fmt.Errorf("write event metadata: %w", err))
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	event.CustomerID = customerID
	event.Created = base.NewTime(now)
	return nil
}

func (r *SQLRepository) GetEvent(eventID string, customerID string) (*Event, error) {
	query := `select event_id, customer_id, topic, message, type, created_at from events
where event_id = ? and customer_id = ?
limit 1`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var event Event
	var created time.Time
	if err := stmt.QueryRow(eventID, customerID).Scan(&event.ID, &event.CustomerID, &event.Topic, &event.Message, &event.Type, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	event.Created = base.NewTime(created)

	event.Metadata, err = r.getEventMetadata(event.ID)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// GetCustomerEvents returns a customer's events newest first. A limit of zero returns up to 100.
func (r *SQLRepository) GetCustomerEvents(customerID string, limit, offset int64) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `select event_id from events where customer_id = ? order by created_at desc limit ? offset ?;`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	rows, err := stmt.Query(customerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var eventIDs []string
	for rows.Next() {
		var row string
		if err := rows.Scan(&row); err != nil {
			return nil, fmt.Errorf("get customer events: scan: %w", err)
		}
		eventIDs = append(eventIDs, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []*Event
	for i := range eventIDs {
		event, err := r.GetEvent(eventIDs[i], customerID)
		if err != nil {
			return nil, err
		}
		if event != nil {
			out = append(out, event)
		}
	}
	return out, nil
}

func (r *SQLRepository) getEventMetadata(eventID string) (map[string]string, error) {
	query := "select `key`, value from event_metadata where event_id = ?;"
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	rows, err := stmt.Query(eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		key, value := "", ""
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		if key != "" {
			out[key] = value
		}
	}
	return out, rows.Err()
}
