package main

import (
	"os"

	"github.com/navid-fn/tradesniper/configs"
	"github.com/navid-fn/tradesniper/internal/mockbackend"
)

func main() {
	cfg := configs.AppLoad()
	logger := configs.NewLogger(cfg.LogLevel)

	backend := mockbackend.New(logger)
	if cfg.MockBackend.UserID != "" {
		token := backend.Register(cfg.MockBackend.UserID, "", "")
		logger.WithField("authorization_token", token).Info("Registered development user")
	}

	logger.WithField("addr", cfg.MockBackend.Addr).Info("Mock grant backend listening")
	if err := backend.Router().Run(cfg.MockBackend.Addr); err != nil {
		logger.WithError(err).Error("mock backend stopped")
		os.Exit(1)
	}
}
