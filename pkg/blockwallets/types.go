package blockwallets

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultBlockCategoryID is the block category of TRON wallets.
const DefaultBlockCategoryID = 1

type (
	// TokenType selects which transfers the gather endpoint returns.
	TokenType string

	// Currency is what the payer is asked to send.
	Currency string
)

const (
	TokenTypeTRX   TokenType = "TRX"   // Native TRON coin.
	TokenTypeTRC20 TokenType = "TRC20" // TRC20 tokens, USDT in practice.

	CurrencyTRX  Currency = "TRX"
	CurrencyUSDT Currency = "USDT"
)

// Valid reports whether t is a token type the provider understands.
func (t TokenType) Valid() bool {
	return t == TokenTypeTRX || t == TokenTypeTRC20
}

// ParseCurrency parses a currency name case-insensitively.
func ParseCurrency(s string) (Currency, error) {
	switch c := Currency(strings.ToUpper(strings.TrimSpace(s))); c {
	case CurrencyTRX, CurrencyUSDT:
		return c, nil
	default:
		return "", fmt.Errorf("unsupported currency %q (want TRX or USDT)", s)
	}
}

// TokenType maps the currency to the token type used when querying
// transactions.
func (c Currency) TokenType() (TokenType, error) {
	switch c {
	case CurrencyTRX:
		return TokenTypeTRX, nil
	case CurrencyUSDT:
		return TokenTypeTRC20, nil
	default:
		return "", fmt.Errorf("unsupported currency %q", string(c))
	}
}

// Wallet is a provider-managed receiving address.
type Wallet struct {
	Address string `json:"address"`
}

// Transaction is one gathered transaction record of a wallet.
type Transaction struct {
	// Amount is denominated in the token itself, not in its smallest unit.
	Amount decimal.Decimal `json:"amount"`

	// TransactionType is the token symbol, e.g. "TRX" or "USDT".
	TransactionType string `json:"transaction_type"`
}

// String renders the amount with six decimals followed by the type,
// e.g. "1.500000 TRX".
func (tx Transaction) String() string {
	return tx.Amount.StringFixed(6) + " " + tx.TransactionType
}

type providerError struct {
	Message string `json:"message"`
}

type envelope struct {
	Data  *envelopeData  `json:"data"`
	Error *providerError `json:"error"`
}

type envelopeData struct {
	Result  *Wallet       `json:"result"`
	Results []Transaction `json:"results"`
}
