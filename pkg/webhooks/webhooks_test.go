// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package webhooks

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/moov-io/autopay/internal/secrets"
	"github.com/moov-io/autopay/pkg/authorizations"
	"github.com/moov-io/autopay/pkg/billing"
	"github.com/moov-io/autopay/pkg/config"
	"github.com/moov-io/autopay/pkg/database"
	"github.com/moov-io/autopay/pkg/events"
	"github.com/moov-io/autopay/pkg/lifecycle"
	"github.com/moov-io/autopay/pkg/model"
	"github.com/moov-io/autopay/pkg/notify"
	"github.com/moov-io/autopay/pkg/plaid"
	"github.com/moov-io/autopay/pkg/resolution"
	"github.com/moov-io/autopay/pkg/scheduling"

	"github.com/moov-io/base"

	"github.com/go-kit/kit/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"
)

const (
	testWebhookSecret = "whsec_test"
	testPlaidKeyID    = "6c5516e1-92dc-479e-a8ff-5a51992e0001"
)

type processorTest struct {
	*Processor

	customerID string
	loanID     string

	repo      *MockRepository
	auths     *authorizations.MockRepository
	scheduler *scheduling.MockPublisher
	invoices  *billing.MockRepository
	alerts    *notify.MockSender
	billing   *billing.Service

	plaid    *plaid.MockClient
	plaidKey *ecdsa.PrivateKey
}

func newProcessorTest(t *testing.T, auths ...*model.Authorization) *processorTest {
	t.Helper()

	pt := &processorTest{
		customerID: base.ID(),
		loanID:     base.ID(),
		repo:       &MockRepository{},
		auths:      &authorizations.MockRepository{Authorizations: auths},
		scheduler:  &scheduling.MockPublisher{},
		invoices:   &billing.MockRepository{},
		alerts:     &notify.MockSender{},
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	pt.plaidKey = key
	pt.plaid = &plaid.MockClient{
		WebhookKeys: map[string]*ecdsa.PublicKey{testPlaidKeyID: &key.PublicKey},
	}

	logger := log.NewNopLogger()
	emitter := events.NewEmitter(logger, &events.MockRepository{})

	controller := lifecycle.NewController(logger, config.Verification{SECCode: "WEB"}, pt.auths, secrets.TestTokenKeeper(t), emitter, nil, pt.scheduler)

	engine := resolution.NewEngine(logger, &resolution.MockRepository{}, pt.auths, emitter)
	_, err = engine.RegisterLoan(pt.loanID, pt.customerID)
	require.NoError(t, err)
	pt.billing = billing.NewService(logger, config.Empty().Billing, pt.invoices, &billing.MockProvider{}, engine, emitter)

	pt.Processor = NewProcessor(logger, pt.repo, pt.auths, controller, pt.billing, pt.alerts, testWebhookSecret, pt.plaid)
	return pt
}

func linkedAuthorization(customerID, itemID string, status model.Status) *model.Authorization {
	return &model.Authorization{
		ID:             base.ID(),
		CustomerID:     customerID,
		AccountType:    model.Checking,
		Status:         status,
		Source:         model.SourceLinked,
		ExternalItemID: itemID,
		Created:        base.NewTime(time.Now()),
	}
}

func signStripePayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func stripeInvoiceEvent(eventID, eventType, invoiceID string, amountPaid int64) []byte {
	return []byte(fmt.Sprintf(`{
  "id": %q,
  "object": "event",
  "api_version": %q,
  "type": %q,
  "data": {
    "object": {"id": %q, "object": "invoice", "status": "open", "currency": "usd", "amount_due": 2500, "amount_paid": %d}
  }
}`, eventID, stripe.APIVersion, eventType, invoiceID, amountPaid))
}

func signPlaidPayload(t *testing.T, key *ecdsa.PrivateKey, keyID string, payload []byte, issued time.Time) string {
	t.Helper()
	sum := sha256.Sum256(payload)
	token := jwt.NewWithClaims(jwt.SigningMethodES256, plaidClaims{
		BodySHA256: hex.EncodeToString(sum[:]),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(issued),
		},
	})
	token.Header["kid"] = keyID
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func (pt *processorTest) handleSignedPlaid(ctx context.Context, t *testing.T, payload []byte) (*Result, error) {
	t.Helper()
	return pt.HandlePlaid(ctx, payload, signPlaidPayload(t, pt.plaidKey, testPlaidKeyID, payload, time.Now()))
}

func (pt *processorTest) seedInvoice(t *testing.T, invoiceID string) {
	t.Helper()
	due, _ := model.NewAmountFromCents("USD", 2500)
	paid, _ := model.NewAmountFromCents("USD", 0)
	require.NoError(t, pt.invoices.SaveInvoice(&model.Invoice{
		ID:         invoiceID,
		LoanID:     pt.loanID,
		Status:     model.InvoiceOpen,
		AmountDue:  due,
		AmountPaid: paid,
		Created:    base.NewTime(time.Now()),
	}))
}

func TestProcessor__Stripe(t *testing.T) {
	pt := newProcessorTest(t)
	pt.seedInvoice(t, "in_1")

	payload := stripeInvoiceEvent("evt_1", "invoice.paid", "in_1", 2500)
	res, err := pt.HandleStripe(payload, signStripePayload(payload, testWebhookSecret))
	require.NoError(t, err)
	require.Equal(t, "paid", res.Action)
	require.False(t, res.Duplicate)

	inv, err := pt.invoices.GetInvoice("in_1")
	require.NoError(t, err)
	require.Equal(t, model.InvoicePaid, inv.Status)
	require.Equal(t, int64(2500), inv.AmountPaid.Cents())

	// redelivery
	res, err = pt.HandleStripe(payload, signStripePayload(payload, testWebhookSecret))
	require.NoError(t, err)
	require.True(t, res.Duplicate)

	// bad signature
	_, err = pt.HandleStripe(payload, signStripePayload(payload, "whsec_other"))
	require.True(t, model.IsValidation(err), "unexpected error: %v", err)

	// other event types are acknowledged
	payload = stripeInvoiceEvent("evt_2", "invoice.created", "in_1", 0)
	res, err = pt.HandleStripe(payload, signStripePayload(payload, testWebhookSecret))
	require.NoError(t, err)
	require.Equal(t, ActionIgnored, res.Action)

	// unknown invoices are acknowledged
	payload = stripeInvoiceEvent("evt_3", "invoice.voided", "in_unknown", 0)
	res, err = pt.HandleStripe(payload, signStripePayload(payload, testWebhookSecret))
	require.NoError(t, err)
	require.Equal(t, ActionIgnored, res.Action)
}

func TestProcessor__StripePaymentFailed(t *testing.T) {
	pt := newProcessorTest(t)
	pt.seedInvoice(t, "in_2")

	payload := stripeInvoiceEvent("evt_10", "invoice.payment_failed", "in_2", 0)
	res, err := pt.HandleStripe(payload, signStripePayload(payload, testWebhookSecret))
	require.NoError(t, err)
	require.Equal(t, string(model.InvoicePaymentFailed), res.Action)
	require.True(t, pt.alerts.InfoWasCalled())

	// storage failures are retried by stripe
	pt.seedInvoice(t, "in_3")
	pt.invoices.Err = errors.New("bad thing")
	payload = stripeInvoiceEvent("evt_11", "invoice.paid", "in_3", 2500)
	_, err = pt.HandleStripe(payload, signStripePayload(payload, testWebhookSecret))
	require.Error(t, err)
	require.True(t, pt.alerts.CriticalWasCalled())

	seen, err := pt.repo.Seen(providerStripe, "evt_11")
	require.NoError(t, err)
	require.False(t, seen)
}

func TestProcessor__Plaid(t *testing.T) {
	customerID := base.ID()
	active := linkedAuthorization(customerID, "item-1", model.StatusActive)
	paused := linkedAuthorization(customerID, "item-1", model.StatusPaused)
	revoked := linkedAuthorization(customerID, "item-1", model.StatusRevoked)
	other := linkedAuthorization(customerID, "item-2", model.StatusActive)

	pt := newProcessorTest(t, active, paused, revoked, other)
	ctx := context.Background()

	res, err := pt.handleSignedPlaid(ctx, t, []byte(`{"webhook_type": "ITEM", "webhook_code": "ERROR", "item_id": "item-1", "error": {"error_code": "ITEM_LOGIN_REQUIRED"}}`))
	require.NoError(t, err)
	require.Equal(t, ActionPaused, res.Action)
	require.Equal(t, "ITEM.ERROR.ITEM_LOGIN_REQUIRED", res.EventType)

	auth, _ := pt.auths.Get(active.ID)
	require.Equal(t, model.StatusPaused, auth.Status)
	auth, _ = pt.auths.Get(other.ID)
	require.Equal(t, model.StatusActive, auth.Status)

	body := []byte(`{"webhook_type": "ITEM", "webhook_code": "USER_PERMISSION_REVOKED", "item_id": "item-1"}`)
	res, err = pt.handleSignedPlaid(ctx, t, body)
	require.NoError(t, err)
	require.Equal(t, ActionRevoked, res.Action)
	for _, id := range []string{active.ID, paused.ID} {
		auth, _ := pt.auths.Get(id)
		require.Equal(t, model.StatusRevoked, auth.Status)
	}
	require.Contains(t, pt.scheduler.Signals(), scheduling.SignalCancel)

	res, err = pt.handleSignedPlaid(ctx, t, body)
	require.NoError(t, err)
	require.True(t, res.Duplicate)

	res, err = pt.handleSignedPlaid(ctx, t, []byte(`{"webhook_type": "TRANSACTIONS", "webhook_code": "DEFAULT_UPDATE", "item_id": "item-2"}`))
	require.NoError(t, err)
	require.Equal(t, ActionIgnored, res.Action)

	_, err = pt.handleSignedPlaid(ctx, t, []byte(`{"item_id": "item-2"}`))
	require.True(t, model.IsValidation(err), "unexpected error: %v", err)
}

func TestProcessor__PlaidVerification(t *testing.T) {
	auth := linkedAuthorization(base.ID(), "item-1", model.StatusActive)
	pt := newProcessorTest(t, auth)
	ctx := context.Background()

	body := []byte(`{"webhook_type": "ITEM", "webhook_code": "USER_PERMISSION_REVOKED", "item_id": "item-1"}`)
	now := time.Now()

	other, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	hmacToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, plaidClaims{
		RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(now)},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	cases := map[string]string{
		"unsigned":    "",
		"garbage":     "not.a.jwt",
		"other body":  signPlaidPayload(t, pt.plaidKey, testPlaidKeyID, []byte(`{}`), now),
		"too old":     signPlaidPayload(t, pt.plaidKey, testPlaidKeyID, body, now.Add(-10*time.Minute)),
		"future":      signPlaidPayload(t, pt.plaidKey, testPlaidKeyID, body, now.Add(time.Hour)),
		"wrong key":   signPlaidPayload(t, other, testPlaidKeyID, body, now),
		"unknown kid": signPlaidPayload(t, pt.plaidKey, "kid-unknown", body, now),
		"hmac signed": hmacToken,
	}
	for name, token := range cases {
		_, err := pt.HandlePlaid(ctx, body, token)
		require.Error(t, err, name)
		require.True(t, model.IsValidation(err), "%s: unexpected error: %v", name, err)
	}

	// nothing was applied or recorded
	stored, _ := pt.auths.Get(auth.ID)
	require.Equal(t, model.StatusActive, stored.Status)
	require.Empty(t, pt.scheduler.Signals())

	res, err := pt.handleSignedPlaid(ctx, t, body)
	require.NoError(t, err)
	require.Equal(t, ActionRevoked, res.Action)

	// keys are cached once fetched
	pt.plaid.WebhookKeys = nil
	res, err = pt.handleSignedPlaid(ctx, t, []byte(`{"webhook_type": "ITEM", "webhook_code": "PENDING_EXPIRATION", "item_id": "item-1"}`))
	require.NoError(t, err)
	require.Equal(t, ActionIgnored, res.Action)
}

func TestProcessor__PlaidNotConfigured(t *testing.T) {
	pt := newProcessorTest(t)
	pt.Processor.plaid = newPlaidVerifier(nil)

	body := []byte(`{"webhook_type": "ITEM", "webhook_code": "USER_PERMISSION_REVOKED", "item_id": "item-1"}`)
	_, err := pt.handleSignedPlaid(context.Background(), t, body)
	require.True(t, model.IsValidation(err), "unexpected error: %v", err)
}

func TestProcessor__ACHReturn(t *testing.T) {
	customerID := base.ID()
	auth := linkedAuthorization(customerID, "", model.StatusActive)
	auth.Source = model.SourceManual

	pt := newProcessorTest(t, auth)
	ctx := context.Background()

	// insufficient funds leaves the authorization alone
	res, err := pt.HandleACHReturn(ctx, ACHReturn{EventID: base.ID(), AuthorizationID: auth.ID, ReturnCode: "R01"})
	require.NoError(t, err)
	require.Equal(t, ActionIgnored, res.Action)
	require.True(t, pt.alerts.InfoWasCalled())

	ret := ACHReturn{EventID: base.ID(), AuthorizationID: auth.ID, ReturnCode: "r02", TraceNumber: "121042880000001"}
	res, err = pt.HandleACHReturn(ctx, ret)
	require.NoError(t, err)
	require.Equal(t, ActionRevoked, res.Action)
	require.Equal(t, "R02", res.EventType)

	stored, _ := pt.auths.Get(auth.ID)
	require.Equal(t, model.StatusRevoked, stored.Status)
	require.Contains(t, stored.StatusReason, "R02")

	res, err = pt.HandleACHReturn(ctx, ret)
	require.NoError(t, err)
	require.True(t, res.Duplicate)

	// a second revoking return for a revoked authorization is fine
	res, err = pt.HandleACHReturn(ctx, ACHReturn{EventID: base.ID(), AuthorizationID: auth.ID, ReturnCode: "R07"})
	require.NoError(t, err)
	require.Equal(t, ActionRevoked, res.Action)

	_, err = pt.HandleACHReturn(ctx, ACHReturn{EventID: base.ID(), AuthorizationID: auth.ID, ReturnCode: "X99"})
	require.True(t, model.IsValidation(err), "unexpected error: %v", err)

	require.False(t, pt.alerts.CriticalWasCalled())
}

func TestProcessor__ACHReturnUnknownAuthorization(t *testing.T) {
	pt := newProcessorTest(t)
	ctx := context.Background()

	ret := ACHReturn{EventID: base.ID(), AuthorizationID: base.ID(), ReturnCode: "R03"}
	res, err := pt.HandleACHReturn(ctx, ret)
	require.NoError(t, err)
	require.Equal(t, ActionIgnored, res.Action)
	require.False(t, pt.alerts.CriticalWasCalled())

	// redeliveries are acknowledged as duplicates
	res, err = pt.HandleACHReturn(ctx, ret)
	require.NoError(t, err)
	require.True(t, res.Duplicate)

	seen, err := pt.repo.Seen(providerACH, ret.EventID)
	require.NoError(t, err)
	require.True(t, seen)
	require.Empty(t, pt.scheduler.Signals())
}

func TestRepository(t *testing.T) {
	check := func(t *testing.T, repo Repository) {
		eventID := base.ID()

		seen, err := repo.Seen(providerStripe, eventID)
		require.NoError(t, err)
		require.False(t, seen)

		require.NoError(t, repo.Record(providerStripe, eventID, "invoice.paid"))
		require.NoError(t, repo.Record(providerStripe, eventID, "invoice.paid"))

		seen, err = repo.Seen(providerStripe, eventID)
		require.NoError(t, err)
		require.True(t, seen)

		seen, err = repo.Seen(providerPlaid, eventID)
		require.NoError(t, err)
		require.False(t, seen)
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
