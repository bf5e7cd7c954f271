package model

import "time"

type Wallet struct {
	Address    string    `db:"address"`
	RunID      string    `db:"run_id"`
	CategoryID int       `db:"category_id"`
	CreatedAt  time.Time `db:"created_at"`
}
