// Package store persists created wallets and observed deposits in Postgres.
package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/swanchain/deposit-watch/pkg/log"
	"github.com/swanchain/deposit-watch/pkg/model"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS deposit_wallet (
		address     TEXT PRIMARY KEY,
		run_id      TEXT NOT NULL,
		category_id INTEGER NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS deposit (
		id               BIGSERIAL PRIMARY KEY,
		run_id           TEXT NOT NULL,
		address          TEXT NOT NULL REFERENCES deposit_wallet (address),
		token_type       TEXT NOT NULL,
		amount           NUMERIC(38, 6) NOT NULL,
		transaction_type TEXT NOT NULL,
		observed_at      TIMESTAMPTZ NOT NULL
	)`,
}

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			log.Errorf("Error creating schema: %s", err)
			return err
		}
	}
	return nil
}

// SaveWallet records a created wallet. Recording the same address twice is a no-op.
func (s *Store) SaveWallet(ctx context.Context, wallet model.Wallet) error {
	insertQuery := `
		INSERT INTO deposit_wallet (address, run_id, category_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, insertQuery, wallet.Address, wallet.RunID, wallet.CategoryID, wallet.CreatedAt)
	if err != nil {
		log.Errorf("Error inserting wallet %s: %s", wallet.Address, err)
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Errorf("Error getting rows affected: %s", err)
		return err
	}
	if rowsAffected == 0 {
		log.Infof("Wallet %s was already recorded", wallet.Address)
	}
	return nil
}

// SaveDeposit records an observed deposit and returns its id.
func (s *Store) SaveDeposit(ctx context.Context, deposit model.Deposit) (int64, error) {
	insertQuery := `
		INSERT INTO deposit (run_id, address, token_type, amount, transaction_type, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id int64
	err := s.db.QueryRowxContext(ctx, insertQuery,
		deposit.RunID,
		deposit.Address,
		deposit.TokenType,
		deposit.Amount,
		deposit.TransactionType,
		deposit.ObservedAt,
	).Scan(&id)
	if err != nil {
		log.Errorf("Error inserting deposit for %s: %s", deposit.Address, err)
		return 0, err
	}
	return id, nil
}

// GetDeposits lists the deposits recorded for address, newest first.
func (s *Store) GetDeposits(ctx context.Context, address string) ([]model.Deposit, error) {
	var deposits []model.Deposit
	err := s.db.SelectContext(ctx, &deposits,
		"SELECT id, run_id, address, token_type, amount, transaction_type, observed_at FROM deposit WHERE address = $1 ORDER BY observed_at DESC",
		address)
	if err != nil {
		log.Errorf("Error retrieving deposits for %s: %s", address, err)
		return nil, err
	}
	log.Debugf("Number of deposits retrieved for %s: %d", address, len(deposits))
	return deposits, nil
}
