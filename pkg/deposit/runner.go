// Package deposit drives one payment demo run: create a wallet, ask for a
// payment and wait until it shows up in the wallet's transactions.
package deposit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/swanchain/deposit-watch/pkg/blockwallets"
	"github.com/swanchain/deposit-watch/pkg/log"
	"github.com/swanchain/deposit-watch/pkg/model"
	"github.com/swanchain/deposit-watch/pkg/notify"
	"github.com/swanchain/deposit-watch/pkg/watcher"
)

// MinimumAmount is the smallest payment the provider records.
const MinimumAmount = "0.000001"

type State int

const (
	StateCreatingWallet State = iota
	StateAwaitingPayment
	StatePolling
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreatingWallet:
		return "creating-wallet"
	case StateAwaitingPayment:
		return "awaiting-payment"
	case StatePolling:
		return "polling"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type WalletCreator interface {
	CreateWallet(ctx context.Context, categoryID int) (*blockwallets.Wallet, error)
}

type TransactionWaiter interface {
	WaitForTransaction(ctx context.Context, address string, tokenType blockwallets.TokenType) (*watcher.Result, error)
}

// Recorder persists the run's wallet and deposit. Implemented by store.Store.
type Recorder interface {
	SaveWallet(ctx context.Context, wallet model.Wallet) error
	SaveDeposit(ctx context.Context, deposit model.Deposit) (int64, error)
}

type HealthChecker interface {
	Check(ctx context.Context) error
}

// Runner holds the collaborators of a run. Recorder, Notifier and Health
// are optional.
type Runner struct {
	Creator    WalletCreator
	Waiter     TransactionWaiter
	Currency   blockwallets.Currency
	CategoryID int

	Recorder Recorder
	Notifier notify.Notifier
	Health   HealthChecker

	NewRunID func() string
	Now      func() time.Time
}

// Report describes how far a run got.
type Report struct {
	RunID       string
	State       State
	Address     string
	Currency    blockwallets.Currency
	TokenType   blockwallets.TokenType
	Transaction *blockwallets.Transaction
	Attempts    int
}

// Summary is the received amount with six decimals and its type, or "" if
// nothing was received.
func (r *Report) Summary() string {
	if r.Transaction == nil {
		return ""
	}
	return r.Transaction.String()
}

// Run executes one run. The returned report is never nil; on failure its
// State is StateFailed and the error says which step failed.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:    r.newRunID(),
		State:    StateCreatingWallet,
		Currency: r.Currency,
	}
	logger := log.WithField("run_id", report.RunID)

	tokenType, err := r.Currency.TokenType()
	if err != nil {
		return r.fail(report, logger, err)
	}
	report.TokenType = tokenType

	wallet, err := r.Creator.CreateWallet(ctx, r.CategoryID)
	if err != nil {
		return r.fail(report, logger, fmt.Errorf("creating wallet: %w", err))
	}
	report.Address = wallet.Address
	report.State = StateAwaitingPayment
	logger = logger.WithField("address", wallet.Address)
	logger.Infof("New wallet address: %s", wallet.Address)
	r.recordWallet(ctx, logger, report)

	logger.Infof("Please send at least %s %s to %s", MinimumAmount, r.Currency, wallet.Address)

	if r.Health != nil {
		if err := r.Health.Check(ctx); err != nil {
			logger.Warnf("Chain health check failed: %s", err)
		}
	}

	report.State = StatePolling
	logger.Infof("Waiting for the latest transactions of %s...", wallet.Address)
	result, err := r.Waiter.WaitForTransaction(ctx, wallet.Address, report.TokenType)
	if err != nil {
		return r.fail(report, logger, fmt.Errorf("waiting for payment: %w", err))
	}

	report.Transaction = &result.Transaction
	report.Attempts = result.Attempts
	report.State = StateDone
	logger.Infof("Latest transaction amount: %s", report.Summary())

	r.recordDeposit(ctx, logger, report)
	r.notify(ctx, logger, report)
	return report, nil
}

func (r *Runner) fail(report *Report, logger *logrus.Entry, err error) (*Report, error) {
	report.State = StateFailed
	logger.Errorf("Run failed: %s", err)
	return report, err
}

func (r *Runner) recordWallet(ctx context.Context, logger *logrus.Entry, report *Report) {
	if r.Recorder == nil {
		return
	}
	err := r.Recorder.SaveWallet(ctx, model.Wallet{
		Address:    report.Address,
		RunID:      report.RunID,
		CategoryID: r.CategoryID,
		CreatedAt:  r.now(),
	})
	if err != nil {
		logger.Warnf("Could not record wallet: %s", err)
	}
}

func (r *Runner) recordDeposit(ctx context.Context, logger *logrus.Entry, report *Report) {
	if r.Recorder == nil {
		return
	}
	id, err := r.Recorder.SaveDeposit(ctx, model.Deposit{
		RunID:           report.RunID,
		Address:         report.Address,
		TokenType:       string(report.TokenType),
		Amount:          report.Transaction.Amount,
		TransactionType: report.Transaction.TransactionType,
		ObservedAt:      r.now(),
	})
	if err != nil {
		logger.Warnf("Could not record deposit: %s", err)
		return
	}
	logger.Debugf("Recorded deposit %d", id)
}

func (r *Runner) notify(ctx context.Context, logger *logrus.Entry, report *Report) {
	if r.Notifier == nil {
		return
	}
	message := fmt.Sprintf("Wallet %s received %s.", report.Address, report.Summary())
	if err := r.Notifier.Notify(ctx, "Deposit received", message); err != nil {
		logger.Warnf("Could not send deposit notification: %s", err)
	}
}

func (r *Runner) newRunID() string {
	if r.NewRunID == nil {
		return uuid.NewString()
	}
	return r.NewRunID()
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}
