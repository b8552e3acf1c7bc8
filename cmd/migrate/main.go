package main

import (
	"database/sql"
	"os"

	"github.com/navid-fn/tradesniper/configs"
	"github.com/navid-fn/tradesniper/internal/migrations"

	_ "github.com/ClickHouse/clickhouse-go/v2" // ClickHouse driver
	"github.com/pressly/goose/v3"
)

func main() {
	cfg := configs.AppLoad()
	logger := configs.NewLogger(cfg.LogLevel)

	db, err := sql.Open("clickhouse", cfg.ClickHouse.DSN)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.WithError(err).Error("Failed to ping database")
		os.Exit(1)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("clickhouse"); err != nil {
		logger.WithError(err).Error("Goose: failed to set dialect")
		os.Exit(1)
	}

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	logger.WithField("command", command).Info("Running database migrations...")
	switch command {
	case "up":
		err = goose.Up(db, ".")
	case "down":
		err = goose.Down(db, ".")
	case "status":
		err = goose.Status(db, ".")
	default:
		logger.WithField("command", command).Error("Unknown command, expected up, down or status")
		os.Exit(2)
	}
	if err != nil {
		logger.WithError(err).Error("Goose migration failed")
		os.Exit(1)
	}

	logger.Info("Migrations completed successfully")
}
