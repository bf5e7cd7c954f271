package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deposit is an incoming transaction observed on a watched wallet.
type Deposit struct {
	ID              int64           `db:"id"`
	RunID           string          `db:"run_id"`
	Address         string          `db:"address"`
	TokenType       string          `db:"token_type"`
	Amount          decimal.Decimal `db:"amount"`
	TransactionType string          `db:"transaction_type"`
	ObservedAt      time.Time       `db:"observed_at"`
}
