package database

import (
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/swanchain/deposit-watch/pkg/config"
	"github.com/swanchain/deposit-watch/pkg/log"
)

func ConnectToDB(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		log.Errorf("Failed to open database: %v", err)
		return nil, err
	}

	err = db.Ping()
	if err != nil {
		log.Errorf("Failed to connect to database: %v", err)
		db.Close()
		return nil, err
	}

	log.Infof("Connected to database %s on %s", cfg.Name, cfg.Host)
	return db, nil
}
