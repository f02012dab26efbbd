// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package authorizations

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/moov-io/autopay/pkg/database"
	"github.com/moov-io/autopay/pkg/model"

	"github.com/moov-io/base"
)

type Repository interface {
	Create(auth *model.Authorization) error
	Get(authorizationID string) (*model.Authorization, error)
	ListByCustomer(customerID string) ([]*model.Authorization, error)

	UpdateStatus(authorizationID string, status model.Status, reason string) error
	SetDefault(authorizationID string) error

	FindByAccountHash(customerID, hash string) ([]*model.Authorization, error)
	FindByExternalItem(itemID string) ([]*model.Authorization, error)
}

func NewRepo(db *sql.DB) *sqlRepo {
	return &sqlRepo{db: db}
}

type sqlRepo struct {
	db *sql.DB
}

const authorizationColumns = `authorization_id, customer_id, bank_name, account_last4, routing_last4, account_type, status, status_reason, is_default, source, verification_status, sec_code, consent_captured_at, authorization_ip, encrypted_token, account_number_hash, external_item_id, created_at, last_updated_at, revoked_at`

func (r *sqlRepo) Create(auth *model.Authorization) error {
	if err := auth.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if auth.Created.IsZero() {
		auth.Created = base.NewTime(now)
	}
	auth.Updated = base.NewTime(now)

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	if auth.IsDefault {
		if err := clearDefaults(tx, auth.CustomerID, now); err != nil {
			return database.Rollback(tx, err)
		}
	}

	query := `insert into authorizations (` + authorizationColumns + `) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	stmt, err := tx.Prepare(query)
	if err != nil {
		return database.Rollback(tx, fmt.Errorf("create authorization: prepare: %w", err))
	}
	defer stmt.Close()

	var consent, revoked *time.Time
	if !auth.ConsentCaptured.IsZero() {
		t := auth.ConsentCaptured.Time.UTC()
		consent = &t
	}
	if auth.RevokedAt != nil {
		t := auth.RevokedAt.Time.UTC()
		revoked = &t
	}

	_, err = stmt.Exec(
		auth.ID, auth.CustomerID, auth.BankName, auth.AccountLast4, auth.RoutingLast4, auth.AccountType,
		auth.Status, auth.StatusReason, auth.IsDefault, auth.Source, auth.VerificationStatus, auth.SECCode,
		consent, auth.AuthorizationIP, auth.EncryptedToken, auth.HashedAccountNumber, auth.ExternalItemID,
		auth.Created.Time.UTC(), now, revoked,
	)
	if err != nil {
		return database.Rollback(tx, fmt.Errorf("create authorization: %w", err))
	}
	return tx.Commit()
}

func clearDefaults(tx *sql.Tx, customerID string, now time.Time) error {
	query := `update authorizations set is_default = ?, last_updated_at = ? where customer_id = ? and is_default = ?;`
	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(false, now, customerID, true)
	return err
}

func (r *sqlRepo) Get(authorizationID string) (*model.Authorization, error) {
	query := `select ` + authorizationColumns + ` from authorizations where authorization_id = ? limit 1;`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	auth, err := scanAuthorization(stmt.QueryRow(authorizationID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return auth, nil
}

func (r *sqlRepo) ListByCustomer(customerID string) ([]*model.Authorization, error) {
	query := `select ` + authorizationColumns + ` from authorizations where customer_id = ? order by created_at asc;`
	return r.list(query, customerID)
}

func (r *sqlRepo) FindByAccountHash(customerID, hash string) ([]*model.Authorization, error) {
	query := `select ` + authorizationColumns + ` from authorizations where customer_id = ? and account_number_hash = ? order by created_at asc;`
	return r.list(query, customerID, hash)
}

func (r *sqlRepo) FindByExternalItem(itemID string) ([]*model.Authorization, error) {
	if itemID == "" {
		return nil, nil
	}
	query := `select ` + authorizationColumns + ` from authorizations where external_item_id = ? order by created_at asc;`
	return r.list(query, itemID)
}

func (r *sqlRepo) list(query string, args ...interface{}) ([]*model.Authorization, error) {
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Authorization
	for rows.Next() {
		auth, err := scanAuthorization(rows)
		if err != nil {
			return nil, fmt.Errorf("list authorizations: scan: %w", err)
		}
		out = append(out, auth)
	}
	SortByCreated(out)
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAuthorization(row scanner) (*model.Authorization, error) {
	var auth model.Authorization
	var consent, revoked sql.NullTime
	var created, updated time.Time
	err := row.Scan(
		&auth.ID, &auth.CustomerID, &auth.BankName, &auth.AccountLast4, &auth.RoutingLast4, &auth.AccountType,
		&auth.Status, &auth.StatusReason, &auth.IsDefault, &auth.Source, &auth.VerificationStatus, &auth.SECCode,
		&consent, &auth.AuthorizationIP, &auth.EncryptedToken, &auth.HashedAccountNumber, &auth.ExternalItemID,
		&created, &updated, &revoked,
	)
	if err != nil {
		return nil, err
	}
	auth.Created = base.NewTime(created)
	auth.Updated = base.NewTime(updated)
	if consent.Valid {
		auth.ConsentCaptured = base.NewTime(consent.Time)
	}
	if revoked.Valid {
		t := base.NewTime(revoked.Time)
		auth.RevokedAt = &t
	}
	return &auth, nil
}

func (r *sqlRepo) UpdateStatus(authorizationID string, status model.Status, reason string) error {
	if err := status.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()

	var res sql.Result
	var err error
	if status == model.StatusRevoked {
		query := `update authorizations set status = ?, status_reason = ?, is_default = ?, revoked_at = ?, last_updated_at = ? where authorization_id = ? and status <> ?;`
		res, err = r.exec(query, status, reason, false, now, now, authorizationID, model.StatusRevoked)
	} else {
		// Revoked is terminal, so it's never overwritten here.
		query := `update authorizations set status = ?, status_reason = ?, last_updated_at = ? where authorization_id = ? and status <> ?;`
		res, err = r.exec(query, status, reason, now, authorizationID, model.StatusRevoked)
	}
	if err != nil {
		return fmt.Errorf("update authorization status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.missingOrRevoked(authorizationID, status)
	}
	return nil
}

func (r *sqlRepo) SetDefault(authorizationID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	var customerID string
	var status model.Status
	row := tx.QueryRow(`select customer_id, status from authorizations where authorization_id = ? limit 1;`, authorizationID)
	if err := row.Scan(&customerID, &status); err != nil {
		if err == sql.ErrNoRows {
			return database.Rollback(tx, &model.NotFound{Kind: "authorization", ID: authorizationID})
		}
		return database.Rollback(tx, err)
	}
	if status != model.StatusActive {
		return database.Rollback(tx, &model.InvalidTransition{AuthorizationID: authorizationID, From: status, To: model.StatusActive})
	}

	now := time.Now().UTC()
	if err := clearDefaults(tx, customerID, now); err != nil {
		return database.Rollback(tx, err)
	}
	if _, err := tx.Exec(`update authorizations set is_default = ?, last_updated_at = ? where authorization_id = ?;`, true, now, authorizationID); err != nil {
		return database.Rollback(tx, fmt.Errorf("set default: %w", err))
	}
	return tx.Commit()
}

func (r *sqlRepo) exec(query string, args ...interface{}) (sql.Result, error) {
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	return stmt.Exec(args...)
}

func (r *sqlRepo) missingOrRevoked(authorizationID string, to model.Status) error {
	auth, err := r.Get(authorizationID)
	if err != nil {
		return err
	}
	if auth == nil {
		return &model.NotFound{Kind: "authorization", ID: authorizationID}
	}
	if auth.Status == model.StatusRevoked && to != model.StatusRevoked {
		return &model.InvalidTransition{AuthorizationID: authorizationID, From: auth.Status, To: to}
	}
	return nil
}

// SortByCreated orders authorizations oldest first, breaking ties on ID.
func SortByCreated(auths []*model.Authorization) {
	sort.SliceStable(auths, func(i, j int) bool {
		ti, tj := auths[i].Created.Time, auths[j].Created.Time
		if ti.Equal(tj) {
			return auths[i].ID < auths[j].ID
		}
		return ti.Before(tj)
	})
}

