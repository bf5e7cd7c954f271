package deposit

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swanchain/deposit-watch/pkg/blockwallets"
	"github.com/swanchain/deposit-watch/pkg/model"
	"github.com/swanchain/deposit-watch/pkg/watcher"
)

// fakeProvider serves the two BlockWallets endpoints from canned bodies.
type fakeProvider struct {
	mu sync.Mutex

	createStatus int
	createBody   string
	pollBodies   []string

	polls   []string
	creates int
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch r.URL.Path {
	case "/api/v1/block/wallets":
		p.creates++
		if p.createStatus != 0 {
			w.WriteHeader(p.createStatus)
		}
		io.WriteString(w, p.createBody)
	case "/api/v1/block/trons/transaction/record/gather":
		p.polls = append(p.polls, r.URL.RawQuery)
		i := len(p.polls) - 1
		if i >= len(p.pollBodies) {
			i = len(p.pollBodies) - 1
		}
		io.WriteString(w, p.pollBodies[i])
	default:
		http.NotFound(w, r)
	}
}

type recordingSleeper struct {
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func newRunner(t *testing.T, provider *fakeProvider, currency blockwallets.Currency) (*Runner, *recordingSleeper) {
	t.Helper()
	srv := httptest.NewServer(provider)
	t.Cleanup(srv.Close)

	client := blockwallets.NewClient(srv.URL, "k1", srv.Client())
	sleeper := &recordingSleeper{}
	now := time.Date(2026, 10, 17, 12, 0, 0, 500_000_000, time.UTC)

	return &Runner{
		Creator:    client,
		Currency:   currency,
		CategoryID: blockwallets.DefaultBlockCategoryID,
		Waiter: &watcher.Poller{
			Querier: client,
			Sleeper: sleeper,
			Now:     func() time.Time { return now },
		},
		NewRunID: func() string { return "run-1" },
		Now:      func() time.Time { return now },
	}, sleeper
}

func TestRunReceivesPayment(t *testing.T) {
	provider := &fakeProvider{
		createBody: `{"data":{"result":{"address":"T123"}}}`,
		pollBodies: []string{
			`{"data":{"results":[]}}`,
			`{"data":{"results":[]}}`,
			`{"data":{"results":[{"amount":1.5,"transaction_type":"TRX"}]}}`,
		},
	}
	runner, sleeper := newRunner(t, provider, blockwallets.CurrencyTRX)

	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, "T123", report.Address)
	assert.Equal(t, "1.500000 TRX", report.Summary())
	assert.Equal(t, 3, report.Attempts)
	assert.Equal(t, 1, provider.creates)
	assert.Equal(t, []string{
		"address=T123&token_type=TRX",
		"address=T123&token_type=TRX",
		"address=T123&token_type=TRX",
	}, provider.polls)
	assert.Equal(t, []time.Duration{20 * time.Second, 20 * time.Second}, sleeper.waits)
}

func TestRunUSDTQueriesTRC20(t *testing.T) {
	provider := &fakeProvider{
		createBody: `{"data":{"result":{"address":"T456"}}}`,
		pollBodies: []string{`{"data":{"results":[{"amount":"25","transaction_type":"USDT"}]}}`},
	}
	runner, sleeper := newRunner(t, provider, blockwallets.CurrencyUSDT)

	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, blockwallets.TokenTypeTRC20, report.TokenType)
	assert.Equal(t, "25.000000 USDT", report.Summary())
	assert.Equal(t, []string{"address=T456&token_type=TRC20"}, provider.polls)
	assert.Empty(t, sleeper.waits)
}

func TestRunInvalidKey(t *testing.T) {
	provider := &fakeProvider{
		createStatus: http.StatusUnauthorized,
		createBody:   `{"error":{"message":"invalid key"}}`,
	}
	runner, sleeper := newRunner(t, provider, blockwallets.CurrencyTRX)

	report, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid key")
	assert.True(t, blockwallets.IsAuth(err))

	assert.Equal(t, StateFailed, report.State)
	assert.Empty(t, report.Address)
	assert.Empty(t, report.Summary())
	assert.Empty(t, provider.polls)
	assert.Empty(t, sleeper.waits)
}

func TestRunMissingAddress(t *testing.T) {
	provider := &fakeProvider{createBody: `{"data":{"result":{"address":""}}}`}
	runner, _ := newRunner(t, provider, blockwallets.CurrencyTRX)

	report, err := runner.Run(context.Background())
	assert.Equal(t, blockwallets.KindMalformed, blockwallets.KindOf(err))
	assert.Equal(t, StateFailed, report.State)
	assert.Empty(t, provider.polls)
}

func TestRunPollTimeout(t *testing.T) {
	provider := &fakeProvider{
		createBody: `{"data":{"result":{"address":"T123"}}}`,
		pollBodies: []string{`{"data":{"results":[]}}`},
	}
	runner, _ := newRunner(t, provider, blockwallets.CurrencyTRX)
	runner.Waiter.(*watcher.Poller).MaxAttempts = 2

	report, err := runner.Run(context.Background())
	assert.ErrorIs(t, err, watcher.ErrPollTimeout)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, "T123", report.Address)
	assert.Len(t, provider.polls, 2)
}

func TestRunUnknownCurrency(t *testing.T) {
	provider := &fakeProvider{createBody: `{"data":{"result":{"address":"T123"}}}`}
	runner, _ := newRunner(t, provider, blockwallets.Currency("DOGE"))

	report, err := runner.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StateFailed, report.State)
	assert.Empty(t, report.Address)
	assert.Zero(t, provider.creates, "no wallet may be created for an unsupported currency")
	assert.Empty(t, provider.polls)
}

type memoryRecorder struct {
	wallets  []model.Wallet
	deposits []model.Deposit
	err      error
}

func (m *memoryRecorder) SaveWallet(ctx context.Context, wallet model.Wallet) error {
	m.wallets = append(m.wallets, wallet)
	return m.err
}

func (m *memoryRecorder) SaveDeposit(ctx context.Context, deposit model.Deposit) (int64, error) {
	m.deposits = append(m.deposits, deposit)
	return int64(len(m.deposits)), m.err
}

type captureNotifier struct {
	subject, message string
}

func (c *captureNotifier) Notify(ctx context.Context, subject, message string) error {
	c.subject, c.message = subject, message
	return errors.New("webhook down")
}

type stubHealth struct {
	checked bool
}

func (s *stubHealth) Check(ctx context.Context) error {
	s.checked = true
	return errors.New("node unreachable")
}

func TestRunRecordsAndNotifies(t *testing.T) {
	provider := &fakeProvider{
		createBody: `{"data":{"result":{"address":"T123"}}}`,
		pollBodies: []string{`{"data":{"results":[{"amount":0.000001,"transaction_type":"TRX"}]}}`},
	}
	runner, _ := newRunner(t, provider, blockwallets.CurrencyTRX)
	recorder := &memoryRecorder{}
	notifier := &captureNotifier{}
	health := &stubHealth{}
	runner.Recorder = recorder
	runner.Notifier = notifier
	runner.Health = health

	report, err := runner.Run(context.Background())
	require.NoError(t, err, "recorder, notifier and health failures must not fail the run")
	assert.Equal(t, StateDone, report.State)
	assert.True(t, health.checked)

	require.Len(t, recorder.wallets, 1)
	assert.Equal(t, model.Wallet{
		Address:    "T123",
		RunID:      "run-1",
		CategoryID: 1,
		CreatedAt:  time.Date(2026, 10, 17, 12, 0, 0, 500_000_000, time.UTC),
	}, recorder.wallets[0])

	require.Len(t, recorder.deposits, 1)
	assert.Equal(t, "TRX", recorder.deposits[0].TokenType)
	assert.Equal(t, "0.000001", recorder.deposits[0].Amount.StringFixed(6))

	assert.Equal(t, "Deposit received", notifier.subject)
	assert.Equal(t, "Wallet T123 received 0.000001 TRX.", notifier.message)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "polling", StatePolling.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "state(9)", State(9).String())
}
