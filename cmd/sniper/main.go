package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/navid-fn/tradesniper/configs"
	"github.com/navid-fn/tradesniper/internal/autobuy"
	"github.com/navid-fn/tradesniper/internal/credentials"
	"github.com/navid-fn/tradesniper/internal/dedup"
	"github.com/navid-fn/tradesniper/internal/events"
	"github.com/navid-fn/tradesniper/internal/failure"
	"github.com/navid-fn/tradesniper/internal/faulttolerance"
	"github.com/navid-fn/tradesniper/internal/flags"
	"github.com/navid-fn/tradesniper/internal/governor"
	"github.com/navid-fn/tradesniper/internal/grant"
	"github.com/navid-fn/tradesniper/internal/history"
	"github.com/navid-fn/tradesniper/internal/models"
	"github.com/navid-fn/tradesniper/internal/server"
	"github.com/navid-fn/tradesniper/internal/storage"
	"github.com/navid-fn/tradesniper/internal/stream"
	"github.com/navid-fn/tradesniper/internal/teleport"
	"github.com/navid-fn/tradesniper/internal/tradeapi"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg := configs.AppLoad()
	logger := configs.NewLogger(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("sniper stopped with error")
		os.Exit(1)
	}
}

func run(cfg *configs.AppConfig, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gov := governor.New(governor.Config{
		FetchInterval:   cfg.Pacing.FetchInterval,
		WhisperInterval: cfg.Pacing.WhisperInterval,
	})
	creds := credentials.NewStore(cfg.Credentials.POESESSID, cfg.Credentials.CFClearance, cfg.Credentials.AuthorizationToken)
	if st := creds.Status(); !st.HasSession {
		logger.Warn("POESESSID not configured; waiting for it from the extension or the control API")
	} else {
		logger.WithField("poesessid", failure.Mask(cfg.Credentials.POESESSID)).Info("Session cookie loaded")
	}

	trade := tradeapi.NewClient(tradeapi.Config{
		FetchURL:       cfg.Trade.FetchURL,
		WhisperURL:     cfg.Trade.WhisperURL,
		QueryID:        cfg.Trade.QueryID,
		Realm:          cfg.Trade.Realm,
		Origin:         cfg.Trade.Origin,
		UserAgent:      cfg.Trade.UserAgent,
		RequestTimeout: cfg.Pacing.HTTPTimeout,
	}, gov, logger)
	queue := tradeapi.NewQueue(trade, creds, logger)
	granter := grant.NewClient(cfg.Backend.URL, cfg.Pacing.HTTPTimeout, logger)

	flagValues := flags.NewMemory()
	querier := flags.NewQuerier(flagValues, cfg.Pacing.FlagTimeout, logger)

	clicker, err := autobuy.NewClicker(cfg.Autobuy.Clicker, logger)
	if err != nil {
		return err
	}
	if py, ok := clicker.(autobuy.PyAutoGUI); ok {
		if err := py.CheckRequirements(ctx); err != nil {
			logger.WithError(err).Warn("pyautogui is not available, auto-buy clicks will fail")
		}
	}
	session := autobuy.NewSession(autobuy.Grid{
		TopLeftX:     cfg.Grid.TopLeftX,
		TopLeftY:     cfg.Grid.TopLeftY,
		SquareWidth:  cfg.Grid.SquareWidth,
		SquareHeight: cfg.Grid.SquareHeight,
		Cols:         cfg.Grid.Cols,
		Rows:         cfg.Grid.Rows,
	}, clicker, cfg.Autobuy.ClickInterval, logger)
	defer session.Stop()

	health := faulttolerance.NewHealthMonitor(30*time.Second, logger)
	health.AddCheck("grant_backend", true, func(ctx context.Context) error {
		_, err := granter.Profile(ctx, creds.Get().AuthorizationToken)
		var httpErr *failure.HTTPError
		if errors.As(err, &httpErr) && httpErr.Status == 0 {
			return err
		}
		return nil
	})

	recent := history.NewRecent(history.DefaultRecentSize)
	reporters := teleport.MultiReporter{teleport.NewLogReporter(logger), recent}

	var wg sync.WaitGroup
	spawn := func(name string, fn func(ctx context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).WithField("worker", name).Error("worker stopped")
			}
		}()
	}

	if cfg.ClickHouse.Enabled {
		store, err := storage.NewClickHouseStorage(cfg.ClickHouse.DSN)
		if err != nil {
			return fmt.Errorf("clickhouse: %w", err)
		}
		defer store.Close()

		breaker := faulttolerance.NewBreaker(faulttolerance.BreakerConfig{Name: "clickhouse"}, logger)
		recorder := history.NewRecorder(store, history.RecorderConfig{
			BatchSize:    cfg.History.BatchSize,
			BatchTimeout: cfg.History.BatchTimeout,
		}, breaker, logger)
		reporters = append(reporters, recorder)
		health.AddCheck("clickhouse", false, store.Ping)
		spawn("history", recorder.Run)
	}

	if cfg.Kafka.Enabled {
		breaker := faulttolerance.NewBreaker(faulttolerance.BreakerConfig{Name: "kafka"}, logger)
		publisher, err := events.NewKafkaPublisher(cfg.Kafka.Broker, cfg.Kafka.Topic, breaker, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()

		reporters = append(reporters, publisher)
		health.AddCheck("kafka", false, func(context.Context) error {
			if breaker.State() == faulttolerance.BreakerOpen {
				return faulttolerance.ErrBreakerOpen
			}
			return nil
		})
	}

	controller := teleport.NewController(teleport.Config{
		PurchaseCooldown: cfg.Pacing.PurchaseCooldown,
		SettleDelay:      cfg.Pacing.SettleDelay,
		WarningDelay:     cfg.Pacing.WarningDelay,
	}, teleport.Deps{
		Filter:    dedup.NewFilter(),
		Fetcher:   queue,
		Whisperer: trade,
		Granter:   granter,
		Flags:     querier,
		Driver:    session,
		Creds:     creds,
		Reporter:  reporters,
		Logger:    logger,
	})
	defer controller.Close()

	flagValues.OnChange(func(f flags.Flag, enabled bool) {
		controller.OnFlagChange(string(f), enabled)
	})

	var streamState server.StreamState
	if cfg.Stream.URL != "" {
		listener := stream.NewListener(stream.Config{
			URL:       cfg.Stream.URL,
			Origin:    cfg.Trade.Origin,
			UserAgent: cfg.Trade.UserAgent,
		}, creds, func(ctx context.Context, ev models.Event) {
			controller.HandleEvent(ctx, ev)
		}, logger)
		streamState = listener
		spawn("stream", listener.Run)
	} else {
		logger.Info("STREAM_URL not set, accepting events from the extension relay only")
	}

	spawn("fetch_queue", queue.Run)
	spawn("health", func(ctx context.Context) error {
		health.Run(ctx)
		return nil
	})

	router := server.NewRouter(&server.Config{
		Pipeline:    controller,
		Fetcher:     queue,
		Profiles:    granter,
		Driver:      session,
		Credentials: creds,
		Flags:       flagValues,
		Recent:      recent,
		Health:      health,
		Governor:    gov,
		Stream:      streamState,
		Logger:      logger,
		DebugMode:   cfg.Server.DebugMode,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("Control API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal, gracefully shutting down...")
	case err := <-serverErr:
		stop()
		wg.Wait()
		return fmt.Errorf("control API: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("control API shutdown")
	}

	wg.Wait()
	logger.Info("Shutdown complete")
	return nil
}
