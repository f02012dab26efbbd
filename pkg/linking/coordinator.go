// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package linking runs the account-linking widget flow: issue a link token,
// receive the widget's callback and hand the exchanged account to lifecycle.
package linking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/moov-io/autopay/pkg/lifecycle"
	"github.com/moov-io/autopay/pkg/model"
	"github.com/moov-io/autopay/pkg/notify"
	"github.com/moov-io/autopay/pkg/plaid"
	"github.com/moov-io/autopay/pkg/validation"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/google/uuid"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	linkOutcomes = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "link_session_outcomes",
		Help: "Counter of account-linking callbacks by outcome",
	}, []string{"result"})

	sessionTTL = 4 * time.Hour
)

type Result string

const (
	ResultLinked      Result = "linked"
	ResultManualEntry Result = "manual_entry_required"
	ResultCancelled   Result = "cancelled"
)

// Outcome is what a callback produced. Clients show the manual entry form
// when Result is ResultManualEntry.
type Outcome struct {
	Result        Result               `json:"result"`
	Authorization *model.Authorization `json:"authorization,omitempty"`
	Reason        string               `json:"reason,omitempty"`
	Retryable     bool                 `json:"retryable,omitempty"`
}

type Availability struct {
	Available   bool   `json:"available"`
	Environment string `json:"environment,omitempty"`
}

// Session is one customer's pass through the linking widget.
type Session struct {
	ID         string    `json:"sessionID"`
	CustomerID string    `json:"customerID"`
	LinkToken  string    `json:"linkToken"`
	Expiration time.Time `json:"expiration"`
	Created    time.Time `json:"created"`
	Result     Result    `json:"result,omitempty"`
}

// WidgetError is reported by the linking widget when it couldn't finish.
type WidgetError struct {
	Code    string `json:"errorCode"`
	Message string `json:"errorMessage"`
}

// Callback is delivered once the customer leaves the linking widget. Exactly one
// of PublicToken, Error or ManualEntry is expected. None of them means the
// customer cancelled.
type Callback struct {
	SessionID   string `json:"sessionID"`
	PublicToken string `json:"publicToken"`
	AccountID   string `json:"accountID"`
	IsDefault   bool   `json:"isDefault"`

	Error *WidgetError `json:"error"`

	ManualEntry  *validation.ManualEntry `json:"manualEntry"`
	AccountType  model.AccountType       `json:"accountType"`
	BankName     string                  `json:"bankName"`
	CustomerName string                  `json:"customerName"`

	AuthorizationIP string `json:"-"`
}

type Coordinator struct {
	logger      log.Logger
	client      plaid.Client
	environment string

	controller *lifecycle.Controller
	alerts     notify.Sender

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewCoordinator returns a Coordinator. Linking is reported unavailable when
// client is nil, and every callback then falls back to manual entry.
func NewCoordinator(logger log.Logger, client plaid.Client, environment string, controller *lifecycle.Controller, alerts notify.Sender) *Coordinator {
	if environment == "" {
		environment = "sandbox"
	}
	return &Coordinator{
		logger:      logger,
		client:      client,
		environment: strings.ToLower(environment),
		controller:  controller,
		alerts:      alerts,
		sessions:    make(map[string]*Session),
	}
}

func (c *Coordinator) Availability() Availability {
	if c.client == nil {
		return Availability{Available: false}
	}
	return Availability{Available: true, Environment: c.environment}
}

var errLinkingUnavailable = errors.New("account linking is not configured")

// CreateLinkToken starts a Session for customerID.
func (c *Coordinator) CreateLinkToken(ctx context.Context, customerID string) (*Session, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, &model.ValidationError{Field: "customerID", Message: "missing customer"}
	}
	if c.client == nil {
		return nil, &model.ExternalLinkError{Provider: "plaid", Err: errLinkingUnavailable}
	}

	token, err := c.client.CreateLinkToken(ctx, customerID)
	if err != nil {
		c.alert("problem creating link token", err, customerID)
		return nil, err
	}

	now := time.Now()
	sess := &Session{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		LinkToken:  token.Token,
		Expiration: token.Expiration,
		Created:    now,
	}
	c.mu.Lock()
	c.sessions[sess.ID] = sess
	c.expireSessions(now)
	c.mu.Unlock()

	c.logger.Log("linking", "created link token", "customerID", customerID, "sessionID", sess.ID)
	return sess, nil
}

// expireSessions must be called with c.mu held.
func (c *Coordinator) expireSessions(now time.Time) {
	for id, sess := range c.sessions {
		if now.Sub(sess.Created) > sessionTTL {
			delete(c.sessions, id)
		}
	}
}

// Session returns a copy of the Session, if it's still tracked.
func (c *Coordinator) Session(sessionID string) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sess, ok := c.sessions[sessionID]; ok {
		cp := *sess
		return &cp
	}
	return nil
}

// finish records result on the session when it belongs to customerID.
func (c *Coordinator) finish(sessionID, customerID string, result Result) {
	linkOutcomes.With("result", string(result)).Add(1)
	if sessionID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[sessionID]
	if !ok {
		return
	}
	if sess.CustomerID != customerID {
		c.logger.Log("linking", "ignoring callback for another customer's session", "customerID", customerID, "sessionID", sessionID, "level", "warn")
		return
	}
	sess.Result = result
}

// Complete handles the widget's callback for customerID.
func (c *Coordinator) Complete(ctx context.Context, customerID string, cb Callback) (*Outcome, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, &model.ValidationError{Field: "customerID", Message: "missing customer"}
	}

	switch {
	case cb.ManualEntry != nil:
		return c.SubmitManualEntry(ctx, customerID, cb)

	case cb.Error != nil:
		c.logger.Log("linking", "widget reported an error", "customerID", customerID, "sessionID", cb.SessionID, "errorCode", cb.Error.Code)
		c.finish(cb.SessionID, customerID, ResultManualEntry)
		return &Outcome{Result: ResultManualEntry, Reason: cb.Error.Message}, nil

	case cb.PublicToken == "":
		c.finish(cb.SessionID, customerID, ResultCancelled)
		return &Outcome{Result: ResultCancelled}, nil
	}

	if c.client == nil {
		c.finish(cb.SessionID, customerID, ResultManualEntry)
		return &Outcome{Result: ResultManualEntry, Reason: errLinkingUnavailable.Error()}, nil
	}
	if cb.AccountID == "" {
		return nil, &model.ValidationError{Field: "accountID", Message: "missing selected account"}
	}

	account, err := c.client.ExchangePublicToken(ctx, cb.PublicToken, cb.AccountID)
	if err != nil {
		return c.fallback(cb, customerID, err)
	}

	auth, err := c.controller.Setup(ctx, lifecycle.SetupRequest{
		CustomerID: customerID,
		Linked: &lifecycle.LinkedAccount{
			ProcessorToken: account.ProcessorToken,
			ItemID:         account.ItemID,
			BankName:       account.BankName,
			AccountLast4:   account.AccountLast4,
			AccountType:    account.AccountType,
		},
		IsDefault:       cb.IsDefault,
		AuthorizationIP: cb.AuthorizationIP,
	})
	if err != nil {
		if model.IsExternalLink(err) {
			return c.fallback(cb, customerID, err)
		}
		return nil, err
	}
	c.finish(cb.SessionID, customerID, ResultLinked)
	return &Outcome{Result: ResultLinked, Authorization: auth}, nil
}

// fallback asks the customer for manual entry after a provider failure.
func (c *Coordinator) fallback(cb Callback, customerID string, err error) (*Outcome, error) {
	c.alert("problem exchanging public token", err, customerID)
	c.finish(cb.SessionID, customerID, ResultManualEntry)

	out := &Outcome{Result: ResultManualEntry, Reason: err.Error()}
	var external *model.ExternalLinkError
	if errors.As(err, &external) {
		out.Retryable = external.Retryable
	}
	return out, nil
}

// SubmitManualEntry sets up the account the customer typed in after linking failed.
func (c *Coordinator) SubmitManualEntry(ctx context.Context, customerID string, cb Callback) (*Outcome, error) {
	auth, err := c.controller.Setup(ctx, lifecycle.SetupRequest{
		CustomerID:      customerID,
		CustomerName:    cb.CustomerName,
		Manual:          cb.ManualEntry,
		AccountType:     cb.AccountType,
		BankName:        cb.BankName,
		IsDefault:       cb.IsDefault,
		AuthorizationIP: cb.AuthorizationIP,
	})
	if err != nil {
		return nil, err
	}
	c.finish(cb.SessionID, customerID, ResultLinked)
	return &Outcome{Result: ResultLinked, Authorization: auth}, nil
}

func (c *Coordinator) alert(summary string, err error, customerID string) {
	c.logger.Log("linking", fmt.Sprintf("%s: %v", summary, err), "customerID", customerID)

	var external *model.ExternalLinkError
	if c.alerts == nil || !errors.As(err, &external) || !external.Retryable {
		return
	}
	// retryable failures are provider outages rather than a customer's bad credentials
	c.alerts.Critical(&notify.Message{
		Component: "linking",
		Summary:   fmt.Sprintf("%s: %v", summary, err),
		Details:   map[string]string{"customerID": customerID},
	})
}
