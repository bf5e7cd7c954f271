// Package watcher polls a wallet's transaction history until a payment shows up.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron"
	"github.com/swanchain/deposit-watch/pkg/blockwallets"
	"github.com/swanchain/deposit-watch/pkg/log"
)

// DefaultInterval is the delay between two queries when no schedule is set.
const DefaultInterval = 20 * time.Second

// ErrPollTimeout is returned when the attempt limit or the deadline is
// reached before any transaction arrived.
var ErrPollTimeout = errors.New("no transaction received before the poll limit")

// TransactionQuerier is implemented by [blockwallets.Client].
type TransactionQuerier interface {
	QueryTransactions(ctx context.Context, address string, tokenType blockwallets.TokenType) ([]blockwallets.Transaction, error)
}

// Sleeper blocks for d or until ctx is done, whichever comes first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to [Sleeper].
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ParseSchedule parses a cron spec with a leading seconds field, or a
// descriptor such as "@every 20s". An empty spec yields [DefaultInterval].
//
// "@every" keeps its exact duration; cron.Every would truncate it to whole
// seconds.
func ParseSchedule(spec string) (cron.Schedule, error) {
	if spec == "" {
		return cron.ConstantDelaySchedule{Delay: DefaultInterval}, nil
	}
	if every, ok := strings.CutPrefix(spec, "@every "); ok {
		delay, err := time.ParseDuration(strings.TrimSpace(every))
		if err != nil || delay <= 0 {
			return nil, fmt.Errorf("invalid poll schedule %q: want a positive duration", spec)
		}
		return cron.ConstantDelaySchedule{Delay: delay}, nil
	}
	schedule, err := cron.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid poll schedule %q: %w", spec, err)
	}
	return schedule, nil
}

// Poller repeatedly queries the same address and token type until the
// provider returns at least one transaction.
type Poller struct {
	Querier TransactionQuerier

	// Schedule decides when the next query happens. Defaults to every 20s.
	Schedule cron.Schedule

	// MaxAttempts bounds the number of queries. Zero means unbounded.
	MaxAttempts int

	// Timeout bounds the whole wait. Zero means no deadline.
	Timeout time.Duration

	Sleeper Sleeper
	Now     func() time.Time
}

// Result is the newest transaction seen and the number of queries it took.
type Result struct {
	Transaction blockwallets.Transaction
	Attempts    int
}

// WaitForTransaction polls until a transaction arrives and returns the first
// (newest) record.
//
// Failed queries are logged and retried on the next tick, except
// authentication failures which are returned immediately. Reaching
// MaxAttempts or Timeout returns an error wrapping [ErrPollTimeout];
// cancelling ctx returns ctx's error.
func (p *Poller) WaitForTransaction(
	ctx context.Context,
	address string,
	tokenType blockwallets.TokenType,
) (*Result, error) {
	parent := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	logger := log.WithField("address", address).WithField("token_type", tokenType)

	for attempt := 1; ; attempt++ {
		txs, err := p.Querier.QueryTransactions(ctx, address, tokenType)
		switch {
		case err == nil && len(txs) > 0:
			return &Result{Transaction: txs[0], Attempts: attempt}, nil
		case blockwallets.IsAuth(err):
			return nil, fmt.Errorf("polling stopped: %w", err)
		case ctx.Err() != nil:
			return nil, p.stopped(parent, ctx.Err(), attempt)
		case err != nil:
			logger.Warnf("attempt %d: query failed, retrying: %s", attempt, err)
		default:
			logger.Debugf("attempt %d: no transaction yet", attempt)
		}

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return nil, fmt.Errorf("%w after %d attempts", ErrPollTimeout, attempt)
		}

		if err := p.sleeper().Sleep(ctx, p.nextWait()); err != nil {
			return nil, p.stopped(parent, err, attempt)
		}
	}
}

func (p *Poller) stopped(parent context.Context, err error, attempt int) error {
	if parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s (%d attempts)", ErrPollTimeout, p.Timeout, attempt)
	}
	return err
}

// nextWait is the delay before the next query. Fixed intervals are used as
// is since ConstantDelaySchedule.Next drops the sub-second part of now.
func (p *Poller) nextWait() time.Duration {
	switch schedule := p.Schedule.(type) {
	case nil:
		return DefaultInterval
	case cron.ConstantDelaySchedule:
		return schedule.Delay
	case *cron.ConstantDelaySchedule:
		return schedule.Delay
	default:
		now := p.now()
		return schedule.Next(now).Sub(now)
	}
}

func (p *Poller) sleeper() Sleeper {
	if p.Sleeper == nil {
		return timerSleeper{}
	}
	return p.Sleeper
}

func (p *Poller) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}
