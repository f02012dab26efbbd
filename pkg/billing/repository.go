// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package billing

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/moov-io/autopay/pkg/model"

	"github.com/moov-io/base"
)

type Repository interface {
	GetInvoice(invoiceID string) (*model.Invoice, error)

	// ListLoanInvoices returns a loan's invoices, newest first.
	ListLoanInvoices(loanID string) ([]*model.Invoice, error)

	SaveInvoice(inv *model.Invoice) error

	// UpdateStatus records a status change reported by the provider. A nil
	// amountPaid keeps the stored value.
	UpdateStatus(invoiceID string, status model.InvoiceStatus, amountPaid *model.Amount) error

	MarkReplaced(invoiceID, replacedBy string) error
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

const invoiceColumns = `invoice_id, loan_id, authorization_id, status, amount_currency, amount_due, amount_paid, hosted_url, replaced_by, created_at, last_updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row scanner) (*model.Invoice, error) {
	var inv model.Invoice
	var authorizationID, status, symbol, hostedURL, replacedBy sql.NullString
	var due, paid sql.NullInt64
	var created, updated time.Time

	if err := row.Scan(&inv.ID, &inv.LoanID, &authorizationID, &status, &symbol, &due, &paid, &hostedURL, &replacedBy, &created, &updated); err != nil {
		return nil, err
	}
	inv.AuthorizationID = authorizationID.String
	inv.Status = model.ParseInvoiceStatus(status.String)
	inv.HostedURL = hostedURL.String
	inv.ReplacedBy = replacedBy.String
	inv.Created = base.NewTime(created)
	inv.Updated = base.NewTime(updated)

	var err error
	if inv.AmountDue, err = model.NewAmountFromCents(symbol.String, due.Int64); err != nil {
		return nil, fmt.Errorf("invoice %s amount due: %v", inv.ID, err)
	}
	if inv.AmountPaid, err = model.NewAmountFromCents(symbol.String, paid.Int64); err != nil {
		return nil, fmt.Errorf("invoice %s amount paid: %v", inv.ID, err)
	}
	return &inv, nil
}

func (r *SQLRepo) GetInvoice(invoiceID string) (*model.Invoice, error) {
	query := fmt.Sprintf(`select %s from invoices where invoice_id = ? limit 1;`, invoiceColumns)
	inv, err := scanInvoice(r.db.QueryRow(query, invoiceID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

func (r *SQLRepo) ListLoanInvoices(loanID string) ([]*model.Invoice, error) {
	query := fmt.Sprintf(`select %s from invoices where loan_id = ?;`, invoiceColumns)
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	rows, err := stmt.Query(loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("list invoices: %w", err)
		}
		out = append(out, inv)
	}
	sortNewestFirst(out)
	return out, rows.Err()
}

func sortNewestFirst(invoices []*model.Invoice) {
	sort.SliceStable(invoices, func(i, j int) bool {
		return invoices[i].Created.Time.After(invoices[j].Created.Time)
	})
}

func (r *SQLRepo) SaveInvoice(inv *model.Invoice) error {
	if inv == nil {
		return fmt.Errorf("nil %T", inv)
	}
	query := `insert into invoices (invoice_id, loan_id, authorization_id, status, amount_currency, amount_due, amount_paid, hosted_url, replaced_by, created_at, last_updated_at) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(
		inv.ID, inv.LoanID, inv.AuthorizationID, string(inv.Status),
		inv.AmountDue.Symbol(), inv.AmountDue.Cents(), inv.AmountPaid.Cents(),
		inv.HostedURL, inv.ReplacedBy, inv.Created.Time, inv.Updated.Time,
	)
	if err != nil {
		return fmt.Errorf("save invoice: %w", err)
	}
	return nil
}

func (r *SQLRepo) UpdateStatus(invoiceID string, status model.InvoiceStatus, amountPaid *model.Amount) error {
	var res sql.Result
	var err error
	now := time.Now().UTC()
	if amountPaid != nil {
		query := `update invoices set status = ?, amount_paid = ?, last_updated_at = ? where invoice_id = ?;`
		res, err = r.db.Exec(query, string(status), amountPaid.Cents(), now, invoiceID)
	} else {
		query := `update invoices set status = ?, last_updated_at = ? where invoice_id = ?;`
		res, err = r.db.Exec(query, string(status), now, invoiceID)
	}
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	return r.checkUpdated(res, invoiceID)
}

func (r *SQLRepo) MarkReplaced(invoiceID, replacedBy string) error {
	query := `update invoices set replaced_by = ?, status = ?, last_updated_at = ? where invoice_id = ?;`
	res, err := r.db.Exec(query, replacedBy, string(model.InvoiceVoid), time.Now().UTC(), invoiceID)
	if err != nil {
		return fmt.Errorf("mark invoice replaced: %w", err)
	}
	return r.checkUpdated(res, invoiceID)
}

func (r *SQLRepo) checkUpdated(res sql.Result, invoiceID string) error {
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// MySQL reports zero rows when nothing changed
	inv, err := r.GetInvoice(invoiceID)
	if err != nil {
		return err
	}
	if inv == nil {
		return &model.NotFound{Kind: "invoice", ID: invoiceID}
	}
	return nil
}
