// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package lifecycle moves authorizations through setup, pause, resume and revoke
// and keeps each customer's default account consistent while doing so.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/moov-io/autopay/internal/hash"
	"github.com/moov-io/autopay/internal/secrets"
	"github.com/moov-io/autopay/pkg/achq"
	"github.com/moov-io/autopay/pkg/authorizations"
	"github.com/moov-io/autopay/pkg/config"
	"github.com/moov-io/autopay/pkg/events"
	"github.com/moov-io/autopay/pkg/model"
	"github.com/moov-io/autopay/pkg/scheduling"
	"github.com/moov-io/autopay/pkg/validation"

	"github.com/moov-io/base"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	transitionsProcessed = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "authorization_transitions",
		Help: "Counter of authorization status and default changes",
	}, []string{"to", "outcome"})
)

const defaultProviderTimeout = 30 * time.Second

// SetupRequest carries either manually entered account details or an account
// already exchanged with the linking provider.
type SetupRequest struct {
	CustomerID   string
	CustomerName string

	Manual      *validation.ManualEntry
	AccountType model.AccountType
	BankName    string

	Linked *LinkedAccount

	IsDefault       bool
	AuthorizationIP string
}

// LinkedAccount is the permanent account reference returned by the linking provider.
type LinkedAccount struct {
	ProcessorToken string
	ItemID         string
	BankName       string
	AccountLast4   string
	AccountType    model.AccountType
}

// Command asks for an authorization to reach a status. Webhook handlers and
// HTTP routes both deliver their requests this way.
type Command struct {
	AuthorizationID string
	Target          model.Status
	Reason          string
}

type Controller struct {
	logger log.Logger

	repo    authorizations.Repository
	locker  *authorizations.Locker
	keeper  *secrets.TokenKeeper
	emitter *events.Emitter

	verifier  achq.Client
	scheduler scheduling.Publisher

	cfg     config.Verification
	timeout time.Duration
}

// NewController returns a Controller. A nil verifier skips bank verification and
// stores manual accounts as unverified.
func NewController(
	logger log.Logger,
	cfg config.Verification,
	repo authorizations.Repository,
	keeper *secrets.TokenKeeper,
	emitter *events.Emitter,
	verifier achq.Client,
	scheduler scheduling.Publisher,
) *Controller {
	timeout := defaultProviderTimeout
	if cfg.ACHQ != nil && cfg.ACHQ.Timeout > 0 {
		timeout = cfg.ACHQ.Timeout
	}
	return &Controller{
		logger:    logger,
		repo:      repo,
		locker:    authorizations.NewLocker(),
		keeper:    keeper,
		emitter:   emitter,
		verifier:  verifier,
		scheduler: scheduler,
		cfg:       cfg,
		timeout:   timeout,
	}
}

// Get returns the authorization or NotFound.
func (c *Controller) Get(authorizationID string) (*model.Authorization, error) {
	auth, err := c.repo.Get(authorizationID)
	if err != nil {
		return nil, err
	}
	if auth == nil {
		return nil, &model.NotFound{Kind: "authorization", ID: authorizationID}
	}
	return auth, nil
}

// CustomerAccounts returns the customer's Active and Paused authorizations,
// the default first and then newest first.
func (c *Controller) CustomerAccounts(customerID string) ([]*model.Authorization, error) {
	auths, err := c.repo.ListByCustomer(customerID)
	if err != nil {
		return nil, err
	}
	var out []*model.Authorization
	for i := len(auths) - 1; i >= 0; i-- {
		if auths[i].Status == model.StatusRevoked {
			continue
		}
		if auths[i].IsDefault {
			out = append([]*model.Authorization{auths[i]}, out...)
		} else {
			out = append(out, auths[i])
		}
	}
	return out, nil
}

// Setup verifies the account and stores it as an Active authorization. Nothing
// is written when validation or the provider fails.
func (c *Controller) Setup(ctx context.Context, req SetupRequest) (*model.Authorization, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, &model.ValidationError{Field: "customerID", Message: "missing customer"}
	}

	auth := &model.Authorization{
		ID:              base.ID(),
		CustomerID:      req.CustomerID,
		Status:          model.StatusSetupPending,
		SECCode:         strings.ToUpper(c.cfg.SECCode),
		AuthorizationIP: req.AuthorizationIP,
	}

	var err error
	switch {
	case req.Manual != nil && req.Linked != nil:
		return nil, &model.ValidationError{Message: "provide manual entry or a linked account, not both"}
	case req.Manual != nil:
		err = c.setupManual(ctx, req, auth)
	case req.Linked != nil:
		err = c.setupLinked(ctx, req, auth)
	default:
		return nil, &model.ValidationError{Message: "missing bank account details"}
	}
	if err != nil {
		transitionsProcessed.With("to", string(model.StatusActive), "outcome", "error").Add(1)
		return nil, err
	}

	unlock := c.locker.Lock(auth.CustomerID)
	defer unlock()

	existing, err := c.repo.ListByCustomer(auth.CustomerID)
	if err != nil {
		return nil, err
	}
	if auth.HashedAccountNumber != "" && duplicate(existing, auth.HashedAccountNumber) {
		return nil, errDuplicateAccount
	}

	auth.Status = model.StatusActive
	auth.IsDefault = authorizations.ShouldMarkDefault(existing, req.IsDefault)
	auth.ConsentCaptured = base.NewTime(time.Now())
	if err := c.repo.Create(auth); err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}
	transitionsProcessed.With("to", string(model.StatusActive), "outcome", "success").Add(1)

	c.logger.Log("lifecycle", "created authorization", "authorizationID", auth.ID, "customerID", auth.CustomerID, "source", auth.Source, "default", auth.IsDefault)
	c.emitter.Emit(auth.CustomerID, events.AuthorizationEvent, "authorization.created", fmt.Sprintf("%s account ending in %s", auth.Source, auth.AccountLast4), map[string]string{
		"authorizationID": auth.ID,
		"default":         fmt.Sprintf("%v", auth.IsDefault),
	})
	return c.Get(auth.ID)
}

var errDuplicateAccount = &model.ValidationError{Field: "accountNumber", Message: "this bank account is already set up"}

func duplicate(auths []*model.Authorization, hashed string) bool {
	for i := range auths {
		if auths[i].HashedAccountNumber == hashed && auths[i].Status != model.StatusRevoked {
			return true
		}
	}
	return false
}

func (c *Controller) setupManual(ctx context.Context, req SetupRequest, auth *model.Authorization) error {
	if err := req.Manual.Validate(); err != nil {
		return err
	}
	accountType := req.AccountType
	if accountType == "" {
		accountType = model.Checking
	}
	if err := accountType.Validate(); err != nil {
		return &model.ValidationError{Field: "accountType", Message: err.Error()}
	}

	routing, account := validation.Digits(req.Manual.RoutingNumber), validation.Digits(req.Manual.AccountNumber)
	hashed, err := hash.AccountNumber(routing, account)
	if err != nil {
		return err
	}
	existing, err := c.repo.FindByAccountHash(req.CustomerID, hashed)
	if err != nil {
		return err
	}
	if duplicate(existing, hashed) {
		return errDuplicateAccount
	}

	auth.Source = model.SourceManual
	auth.AccountType = accountType
	auth.BankName = req.BankName
	auth.AccountLast4 = validation.LastFour(account)
	auth.RoutingLast4 = validation.LastFour(routing)
	auth.HashedAccountNumber = hashed
	auth.VerificationStatus = model.VerificationUnknown

	token := routing + ":" + account
	if c.verifier != nil {
		ctx, cancelFn := context.WithTimeout(ctx, c.timeout)
		defer cancelFn()

		verification, err := c.verifier.Verify(ctx, achq.VerifyRequest{
			RoutingNumber: routing,
			AccountNumber: account,
			AccountType:   accountType,
			CustomerName:  req.CustomerName,
		})
		if err != nil {
			return err
		}
		if err := c.checkVerification(verification.Status); err != nil {
			return err
		}
		token = verification.Token
		auth.VerificationStatus = verification.Status
		if verification.BankName != "" {
			auth.BankName = verification.BankName
		}
	}
	auth.EncryptedToken, err = c.encrypt(ctx, token)
	return err
}

func (c *Controller) checkVerification(status model.VerificationStatus) error {
	switch status {
	case model.VerificationNegative:
		return &model.ExternalLinkError{Provider: "achq", Err: errors.New("bank account failed verification")}
	case model.VerificationUnknown:
		if !c.cfg.AllowUnknownAccounts {
			return &model.ExternalLinkError{Provider: "achq", Err: errors.New("bank account could not be verified")}
		}
	}
	return nil
}

func (c *Controller) setupLinked(ctx context.Context, req SetupRequest, auth *model.Authorization) error {
	linked := req.Linked
	if linked.ProcessorToken == "" {
		return &model.ValidationError{Field: "processorToken", Message: "missing linked account reference"}
	}
	accountType := linked.AccountType
	if accountType == "" {
		accountType = model.Checking
	}
	if err := accountType.Validate(); err != nil {
		return &model.ValidationError{Field: "accountType", Message: err.Error()}
	}

	auth.Source = model.SourceLinked
	auth.AccountType = accountType
	auth.BankName = linked.BankName
	auth.AccountLast4 = linked.AccountLast4
	auth.ExternalItemID = linked.ItemID
	auth.VerificationStatus = model.VerificationPositive

	var err error
	auth.EncryptedToken, err = c.encrypt(ctx, linked.ProcessorToken)
	return err
}

func (c *Controller) encrypt(ctx context.Context, token string) (string, error) {
	return c.keeper.Seal(ctx, token)
}

func (c *Controller) Pause(ctx context.Context, authorizationID, reason string) (*model.Authorization, error) {
	return c.Apply(ctx, Command{AuthorizationID: authorizationID, Target: model.StatusPaused, Reason: reason})
}

func (c *Controller) Resume(ctx context.Context, authorizationID string) (*model.Authorization, error) {
	return c.Apply(ctx, Command{AuthorizationID: authorizationID, Target: model.StatusActive})
}

func (c *Controller) Revoke(ctx context.Context, authorizationID, reason string) (*model.Authorization, error) {
	return c.Apply(ctx, Command{AuthorizationID: authorizationID, Target: model.StatusRevoked, Reason: reason})
}

// Apply moves an authorization to cmd.Target. When the authorization already
// holds that status no signals are sent. A repeated revoke still re-elects a
// default if the customer was left without one.
func (c *Controller) Apply(ctx context.Context, cmd Command) (*model.Authorization, error) {
	auth, err := c.Get(cmd.AuthorizationID)
	if err != nil {
		return nil, err
	}

	unlock := c.locker.Lock(auth.CustomerID)
	defer unlock()

	// re-read now that no other change for this customer is in flight
	auth, err = c.Get(cmd.AuthorizationID)
	if err != nil {
		return nil, err
	}
	if auth.Status == cmd.Target {
		if cmd.Target == model.StatusRevoked {
			// finish a re-election an earlier revoke couldn't complete
			if err := c.reelectDefault(auth); err != nil {
				return nil, err
			}
		}
		return auth, nil
	}
	if !Allowed(auth.Status, cmd.Target) {
		transitionsProcessed.With("to", string(cmd.Target), "outcome", "rejected").Add(1)
		return nil, &model.InvalidTransition{AuthorizationID: auth.ID, From: auth.Status, To: cmd.Target}
	}

	if err := c.signal(ctx, auth, cmd); err != nil {
		transitionsProcessed.With("to", string(cmd.Target), "outcome", "error").Add(1)
		return nil, err
	}
	if err := c.repo.UpdateStatus(auth.ID, cmd.Target, cmd.Reason); err != nil {
		return nil, err
	}
	if cmd.Target == model.StatusRevoked {
		if err := c.reelectDefault(auth); err != nil {
			return nil, err
		}
	}
	transitionsProcessed.With("to", string(cmd.Target), "outcome", "success").Add(1)

	c.logger.Log("lifecycle", fmt.Sprintf("authorization moved from %s to %s", auth.Status, cmd.Target), "authorizationID", auth.ID, "customerID", auth.CustomerID)
	c.emitter.Emit(auth.CustomerID, events.AuthorizationEvent, "authorization."+string(cmd.Target), cmd.Reason, map[string]string{
		"authorizationID": auth.ID,
		"from":            string(auth.Status),
	})
	return c.Get(auth.ID)
}

func (c *Controller) signal(ctx context.Context, auth *model.Authorization, cmd Command) error {
	if c.scheduler == nil {
		return nil
	}
	ctx, cancelFn := context.WithTimeout(ctx, c.timeout)
	defer cancelFn()

	var err error
	switch cmd.Target {
	case model.StatusPaused:
		err = c.scheduler.SuspendScheduledPayments(ctx, auth, cmd.Reason)
	case model.StatusActive:
		err = c.scheduler.ResumeScheduledPayments(ctx, auth)
	case model.StatusRevoked:
		err = c.scheduler.CancelScheduledPayments(ctx, auth, cmd.Reason)
	}
	if err != nil {
		return &model.ExternalLinkError{Provider: "scheduling", Retryable: true, Err: err}
	}
	return nil
}

func (c *Controller) reelectDefault(revoked *model.Authorization) error {
	auths, err := c.repo.ListByCustomer(revoked.CustomerID)
	if err != nil {
		return err
	}
	next := authorizations.ReelectDefault(auths, revoked.ID)
	if next == nil {
		return nil
	}
	if err := c.repo.SetDefault(next.ID); err != nil {
		return fmt.Errorf("re-electing default: %w", err)
	}
	c.logger.Log("lifecycle", "re-elected default authorization", "authorizationID", next.ID, "customerID", next.CustomerID, "revokedID", revoked.ID)
	c.emitter.Emit(next.CustomerID, events.AuthorizationEvent, "authorization.default", "re-elected after revoke", map[string]string{
		"authorizationID": next.ID,
		"revokedID":       revoked.ID,
	})
	return nil
}

// SetDefault marks an Active authorization as the customer's default.
func (c *Controller) SetDefault(ctx context.Context, authorizationID string) (*model.Authorization, error) {
	auth, err := c.Get(authorizationID)
	if err != nil {
		return nil, err
	}

	unlock := c.locker.Lock(auth.CustomerID)
	defer unlock()

	auth, err = c.Get(authorizationID)
	if err != nil {
		return nil, err
	}
	if auth.Status != model.StatusActive {
		return nil, &model.InvalidTransition{AuthorizationID: auth.ID, From: auth.Status, To: model.StatusActive}
	}
	if auth.IsDefault {
		return auth, nil
	}
	if err := c.repo.SetDefault(auth.ID); err != nil {
		return nil, err
	}
	transitionsProcessed.With("to", "default", "outcome", "success").Add(1)

	c.logger.Log("lifecycle", "changed default authorization", "authorizationID", auth.ID, "customerID", auth.CustomerID)
	c.emitter.Emit(auth.CustomerID, events.AuthorizationEvent, "authorization.default", "set by customer", map[string]string{
		"authorizationID": auth.ID,
	})
	return c.Get(auth.ID)
}
