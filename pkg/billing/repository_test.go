// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package billing

import (
	"testing"
	"time"

	"github.com/moov-io/autopay/pkg/database"
	"github.com/moov-io/autopay/pkg/model"

	"github.com/moov-io/base"
	"github.com/stretchr/testify/require"
)

func testInvoice(t *testing.T, loanID string, cents int64, created time.Time) *model.Invoice {
	t.Helper()

	due, err := model.NewAmountFromCents("USD", cents)
	require.NoError(t, err)
	paid, err := model.NewAmountFromCents("USD", 0)
	require.NoError(t, err)

	return &model.Invoice{
		ID:              "in_" + base.ID()[:12],
		LoanID:          loanID,
		AuthorizationID: base.ID(),
		Status:          model.InvoiceOpen,
		AmountDue:       due,
		AmountPaid:      paid,
		HostedURL:       "https://invoice.stripe.com/i/test",
		Created:         base.NewTime(created),
		Updated:         base.NewTime(created),
	}
}

func TestRepository(t *testing.T) {
	check := func(t *testing.T, repo Repository) {
		loanID := base.ID()

		inv, err := repo.GetInvoice("in_missing")
		require.NoError(t, err)
		require.Nil(t, inv)

		err = repo.UpdateStatus("in_missing", model.InvoicePaid, nil)
		require.True(t, model.IsNotFound(err), "unexpected error: %v", err)

		older := testInvoice(t, loanID, 1253, time.Now().Add(-time.Hour))
		newer := testInvoice(t, loanID, 1253, time.Now())
		require.NoError(t, repo.SaveInvoice(older))
		require.NoError(t, repo.SaveInvoice(newer))
		require.NoError(t, repo.SaveInvoice(testInvoice(t, base.ID(), 500, time.Now())))

		inv, err = repo.GetInvoice(older.ID)
		require.NoError(t, err)
		require.Equal(t, older.LoanID, inv.LoanID)
		require.Equal(t, int64(1253), inv.AmountDue.Cents())
		require.Equal(t, "USD", inv.AmountDue.Symbol())
		require.Equal(t, model.InvoiceOpen, inv.Status)

		invoices, err := repo.ListLoanInvoices(loanID)
		require.NoError(t, err)
		require.Len(t, invoices, 2)
		require.Equal(t, newer.ID, invoices[0].ID)

		paid, _ := model.NewAmountFromCents("USD", 1253)
		require.NoError(t, repo.UpdateStatus(newer.ID, model.InvoicePaid, paid))
		require.NoError(t, repo.UpdateStatus(newer.ID, model.InvoicePaid, nil))
		inv, err = repo.GetInvoice(newer.ID)
		require.NoError(t, err)
		require.Equal(t, model.InvoicePaid, inv.Status)
		require.Equal(t, int64(1253), inv.AmountPaid.Cents())

		require.NoError(t, repo.MarkReplaced(older.ID, newer.ID))
		inv, err = repo.GetInvoice(older.ID)
		require.NoError(t, err)
		require.Equal(t, model.InvoiceVoid, inv.Status)
		require.Equal(t, newer.ID, inv.ReplacedBy)
	}

	// Mock
	check(t, &MockRepository{})

	// SQLite tests
	sqliteDB := database.CreateTestSqliteDB(t)
	defer sqliteDB.Close()
	check(t, NewRepo(sqliteDB.DB))

	// MySQL tests
	mysqlDB := database.CreateTestMySQLDB(t)
	defer mysqlDB.Close()
	check(t, NewRepo(mysqlDB.DB))
}
