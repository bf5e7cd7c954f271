package blockwallets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/swanchain/deposit-watch/pkg/log"
)

// BaseURL is the production API URL.
const BaseURL = "https://api.blockwallets.io"

const (
	walletsEndpoint     = "/api/v1/block/wallets"
	transactionEndpoint = "/api/v1/block/trons/transaction/record/gather"

	apiKeyHeader = "api-key"
)

// Client issues authenticated calls to the BlockWallets API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a Client for the API at baseURL, authenticated with apiKey.
//
// Uses [BaseURL] if baseURL is empty and [http.DefaultClient] if httpClient is nil.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

type createWalletRequest struct {
	BlockCategoryID int `json:"block_category_id"`
}

// CreateWallet asks the provider for a new wallet in the given block category.
// There are no retries: a failed attempt returns an [*APIError].
func (c *Client) CreateWallet(ctx context.Context, categoryID int) (*Wallet, error) {
	const op = "CreateWallet"

	body, err := json.Marshal(createWalletRequest{BlockCategoryID: categoryID})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+walletsEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	env, err := c.do(op, req)
	if err != nil {
		logFailure(err, logrus.ErrorLevel)
		return nil, err
	}

	if env.Data == nil || env.Data.Result == nil || env.Data.Result.Address == "" {
		err := &APIError{Op: op, Kind: KindMalformed, StatusCode: http.StatusOK, Err: errors.New("response has no data.result.address")}
		if env.Error != nil && env.Error.Message != "" {
			err.Kind = KindProvider
			err.Message = env.Error.Message
		}
		logFailure(err, logrus.ErrorLevel)
		return nil, err
	}

	return &Wallet{Address: env.Data.Result.Address}, nil
}

// QueryTransactions returns the gathered transaction records of address for
// the given token type, newest first. An empty slice means nothing arrived yet.
func (c *Client) QueryTransactions(ctx context.Context, address string, tokenType TokenType) ([]Transaction, error) {
	const op = "QueryTransactions"

	if address == "" {
		return nil, fmt.Errorf("%s: empty address", op)
	}
	if !tokenType.Valid() {
		return nil, fmt.Errorf("%s: invalid token type %q", op, string(tokenType))
	}

	query := make(url.Values)
	query.Set("address", address)
	query.Set("token_type", string(tokenType))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+transactionEndpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")

	env, err := c.do(op, req)
	if err != nil {
		logFailure(err, logrus.DebugLevel)
		return nil, err
	}

	if env.Data == nil {
		err := &APIError{Op: op, Kind: KindMalformed, StatusCode: http.StatusOK, Err: errors.New("response has no data")}
		if env.Error != nil && env.Error.Message != "" {
			err.Kind = KindProvider
			err.Message = env.Error.Message
		}
		logFailure(err, logrus.DebugLevel)
		return nil, err
	}

	return env.Data.Results, nil
}

// do sends req with the API key attached and decodes the response envelope.
// The raw body is logged on success.
func (c *Client) do(op string, req *http.Request) (*envelope, error) {
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Op: op, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Op: op, Kind: KindTransport, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading body: %w", err)}
	}

	if err := checkHTTPResponse(op, resp.StatusCode, rawBody); err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return nil, &APIError{Op: op, Kind: KindMalformed, StatusCode: resp.StatusCode, Err: err}
	}

	log.WithField("op", op).Infof("response:\n%s", prettyJSON(rawBody))
	return &env, nil
}

func checkHTTPResponse(op string, status int, rawBody []byte) error {
	if status == http.StatusOK {
		return nil
	}

	apiErr := &APIError{Op: op, Kind: kindForStatus(status), StatusCode: status}

	var env envelope
	if err := json.Unmarshal(rawBody, &env); err == nil && env.Error != nil && env.Error.Message != "" {
		apiErr.Message = env.Error.Message
	} else if len(rawBody) > 0 {
		apiErr.Err = errors.New(strings.TrimSpace(string(rawBody)))
	}
	return apiErr
}

// logFailure logs a failed call at level. Query failures use Debug since
// the poller reports them itself.
func logFailure(err error, level logrus.Level) {
	log.WithField("kind", KindOf(err)).Logf(level, "request failed: %s", err)
}

func prettyJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "    "); err != nil {
		return string(raw)
	}
	return buf.String()
}
