// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package resolution

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/moov-io/autopay/pkg/database"
	"github.com/moov-io/autopay/pkg/model"

	"github.com/moov-io/base"
)

// Repository stores loans and their payment account overrides.
type Repository interface {
	GetLoan(loanID string) (*model.Loan, error)

	// SaveLoan records the loan's applicant, creating the loan if needed. The
	// override is cleared when the applicant changes.
	SaveLoan(loanID, customerID string) (*model.Loan, error)

	// SetAuthorization binds the loan to authorizationID, or clears the binding when empty.
	SetAuthorization(loanID, authorizationID string) error
}

func NewRepo(db *sql.DB) *sqlRepo {
	return &sqlRepo{db: db}
}

type sqlRepo struct {
	db *sql.DB
}

func (r *sqlRepo) GetLoan(loanID string) (*model.Loan, error) {
	return getLoan(r.db, loanID)
}

type queryer interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

func getLoan(q queryer, loanID string) (*model.Loan, error) {
	var loan model.Loan
	var authorizationID sql.NullString
	var created, updated time.Time

	row := q.QueryRow(`select loan_id, customer_id, authorization_id, created_at, last_updated_at from loans where loan_id = ? limit 1;`, loanID)
	if err := row.Scan(&loan.ID, &loan.CustomerID, &authorizationID, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get loan: %w", err)
	}
	loan.AuthorizationID = authorizationID.String
	loan.Created = base.NewTime(created)
	loan.Updated = base.NewTime(updated)
	return &loan, nil
}

func (r *sqlRepo) SaveLoan(loanID, customerID string) (*model.Loan, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}

	existing, err := getLoan(tx, loanID)
	if err != nil {
		return nil, database.Rollback(tx, err)
	}

	now := time.Now().UTC()
	switch {
	case existing == nil:
		query := `insert into loans (loan_id, customer_id, authorization_id, created_at, last_updated_at) values (?, ?, ?, ?, ?);`
		if _, err := tx.Exec(query, loanID, customerID, nil, now, now); err != nil {
			return nil, database.Rollback(tx, fmt.Errorf("save loan: %w", err))
		}

	case existing.CustomerID != customerID:
		query := `update loans set customer_id = ?, authorization_id = ?, last_updated_at = ? where loan_id = ?;`
		if _, err := tx.Exec(query, customerID, nil, now, loanID); err != nil {
			return nil, database.Rollback(tx, fmt.Errorf("save loan: %w", err))
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r.GetLoan(loanID)
}

func (r *sqlRepo) SetAuthorization(loanID, authorizationID string) error {
	var authID interface{}
	if authorizationID != "" {
		authID = authorizationID
	}
	query := `update loans set authorization_id = ?, last_updated_at = ? where loan_id = ?;`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(authID, time.Now().UTC(), loanID)
	if err != nil {
		return fmt.Errorf("set loan authorization: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports zero rows when nothing changed
		loan, err := r.GetLoan(loanID)
		if err != nil {
			return err
		}
		if loan == nil {
			return &model.NotFound{Kind: "loan", ID: loanID}
		}
	}
	return nil
}
