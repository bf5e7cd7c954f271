package database

import (
	"os"
	"testing"

	"github.com/swanchain/deposit-watch/pkg/config"
)

func TestConnectToDB(t *testing.T) {
	if os.Getenv("INFO_DB_HOST") == "" {
		t.Skip("INFO_DB_HOST not set")
	}

	cfg := config.DatabaseConfig{
		Host:     os.Getenv("INFO_DB_HOST"),
		Port:     os.Getenv("INFO_DB_PORT"),
		User:     os.Getenv("INFO_DB_USERNAME"),
		Password: os.Getenv("INFO_DB_PASSWORD"),
		Name:     os.Getenv("INFO_DB_NAME"),
		SSLMode:  "disable",
	}
	db, err := ConnectToDB(cfg)
	if err != nil {
		t.Fatalf("ConnectToDB() returned error: %v", err)
	}
	defer db.Close()

	var result string
	err = db.Get(&result, "SELECT 'success'")
	if err != nil {
		t.Errorf("Failed to perform read operation: %v", err)
	}

	if result != "success" {
		t.Errorf("Unexpected result: got %v, want 'success'", result)
	}
}

func TestConnectToDBUnreachable(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "127.0.0.1", Port: "1", User: "u", Name: "d", SSLMode: "disable"}
	if _, err := ConnectToDB(cfg); err == nil {
		t.Errorf("ConnectToDB() should fail when nothing listens on the port")
	}
}
