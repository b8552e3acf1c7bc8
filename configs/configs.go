// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables; a .env file is honoured for local development.
package configs

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// LogLevel is a logrus level name ("debug", "info", ...).
	LogLevel string

	Trade       TradeConfig
	Pacing      PacingConfig
	Backend     BackendConfig
	Stream      StreamConfig
	Credentials CredentialConfig
	Grid        GridConfig
	Autobuy     AutobuyConfig
	Server      ServerConfig
	Kafka       KafkaConfig
	ClickHouse  ClickHouseConfig
	History     HistoryConfig
	MockBackend MockBackendConfig
}

// TradeConfig describes the trade site endpoints.
type TradeConfig struct {
	// FetchURL is the trade-detail endpoint; the trade identifier is appended as a path segment.
	FetchURL string

	// WhisperURL is the purchase-intent endpoint.
	WhisperURL string

	// QueryID is the fixed search-query id sent with every detail request.
	QueryID string

	// Realm is the game realm sent with every detail request (e.g. "poe2").
	Realm string

	// Origin and UserAgent are sent on every outbound request and on the stream handshake.
	Origin    string
	UserAgent string
}

// PacingConfig holds every interval and timeout of the purchase pipeline.
type PacingConfig struct {
	FetchInterval    time.Duration
	WhisperInterval  time.Duration
	PurchaseCooldown time.Duration
	SettleDelay      time.Duration
	WarningDelay     time.Duration
	FlagTimeout      time.Duration
	HTTPTimeout      time.Duration
}

// BackendConfig points at the metered-access grant backend.
type BackendConfig struct {
	URL string
}

// StreamConfig holds live-search WebSocket settings.
type StreamConfig struct {
	// URL is optional; when empty the service only receives events through the relay endpoint.
	URL string
}

// CredentialConfig holds initial credentials. They may be replaced at runtime through the control API.
type CredentialConfig struct {
	POESESSID          string
	CFClearance        string
	AuthorizationToken string
}

// GridConfig maps stash grid cells to screen pixels.
type GridConfig struct {
	TopLeftX     int
	TopLeftY     int
	SquareWidth  int
	SquareHeight int
	Cols         int
	Rows         int
}

// AutobuyConfig holds click automation settings.
type AutobuyConfig struct {
	ClickInterval time.Duration

	// Clicker is "pyautogui" or "dry-run".
	Clicker string
}

// ServerConfig holds control API settings.
type ServerConfig struct {
	Addr      string
	DebugMode bool
}

// KafkaConfig holds Kafka connection settings for attempt events.
type KafkaConfig struct {
	Enabled bool

	// Broker is the Kafka broker address (e.g., "localhost:9092").
	Broker string

	// Topic receives one message per finished purchase attempt.
	Topic string
}

// ClickHouseConfig holds attempt history storage settings.
type ClickHouseConfig struct {
	Enabled bool
	DSN     string
}

// HistoryConfig holds settings for batch persistence of attempt records.
type HistoryConfig struct {
	// BatchSize is the maximum number of records to accumulate before flushing.
	BatchSize int

	// BatchTimeout is the maximum time to wait before flushing.
	BatchTimeout time.Duration
}

// MockBackendConfig configures the development grant backend.
type MockBackendConfig struct {
	Addr string

	// UserID, when set, is registered at startup and its token logged.
	UserID string
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	return &AppConfig{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Trade: TradeConfig{
			FetchURL:   getEnv("TRADE_FETCH_URL", "https://www.pathofexile.com/api/trade2/fetch"),
			WhisperURL: getEnv("TRADE_WHISPER_URL", "https://www.pathofexile.com/api/trade2/whisper"),
			QueryID:    getEnv("TRADE_QUERY_ID", "M7EwoaMtJ"),
			Realm:      getEnv("TRADE_REALM", "poe2"),
			Origin:     getEnv("TRADE_ORIGIN", "https://www.pathofexile.com"),
			UserAgent: getEnv("TRADE_USER_AGENT",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36"),
		},
		Pacing: PacingConfig{
			FetchInterval:    getEnvDuration("FETCH_INTERVAL", 2*time.Second),
			WhisperInterval:  getEnvDuration("WHISPER_INTERVAL", 10*time.Second),
			PurchaseCooldown: getEnvDuration("PURCHASE_COOLDOWN", 10*time.Second),
			SettleDelay:      getEnvDuration("AUTOBUY_SETTLE_DELAY", 4*time.Second),
			WarningDelay:     getEnvDuration("AUTOBUY_WARNING_DELAY", 3*time.Second),
			FlagTimeout:      getEnvDuration("FLAG_TIMEOUT", time.Second),
			HTTPTimeout:      getEnvDuration("HTTP_TIMEOUT", 10*time.Second),
		},
		Backend: BackendConfig{
			URL: strings.TrimSuffix(getEnv("BACKEND_URL", "http://localhost:3001"), "/"),
		},
		Stream: StreamConfig{
			URL: getEnv("STREAM_URL", ""),
		},
		Credentials: CredentialConfig{
			POESESSID:          getEnv("POESESSID", ""),
			CFClearance:        getEnv("CF_CLEARANCE", ""),
			AuthorizationToken: getEnv("AUTH_TOKEN", ""),
		},
		Grid: GridConfig{
			TopLeftX:     getEnvInt("GRID_TOP_LEFT_X", 415),
			TopLeftY:     getEnvInt("GRID_TOP_LEFT_Y", 300),
			SquareWidth:  getEnvInt("GRID_SQUARE_WIDTH", 70),
			SquareHeight: getEnvInt("GRID_SQUARE_HEIGHT", 70),
			Cols:         getEnvInt("GRID_COLS", 12),
			Rows:         getEnvInt("GRID_ROWS", 12),
		},
		Autobuy: AutobuyConfig{
			ClickInterval: getEnvDuration("AUTOBUY_CLICK_INTERVAL", 200*time.Millisecond),
			Clicker:       getEnv("AUTOBUY_CLICKER", "pyautogui"),
		},
		Server: ServerConfig{
			Addr:      getEnv("SERVER_ADDR", "127.0.0.1:8080"),
			DebugMode: getEnvBool("DEBUGMODE", false),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Broker:  getEnv("KAFKA_BROKER", "localhost:9092"),
			Topic:   getEnv("KAFKA_ATTEMPT_TOPIC", "tradesniper_attempts"),
		},
		ClickHouse: ClickHouseConfig{
			Enabled: getEnvBool("CLICKHOUSE_ENABLED", false),
			DSN:     getDatabaseDSN(),
		},
		History: HistoryConfig{
			BatchSize:    getEnvInt("HISTORY_BATCH_SIZE", 50),
			BatchTimeout: getEnvDuration("HISTORY_BATCH_TIMEOUT", 5*time.Second),
		},
		MockBackend: MockBackendConfig{
			Addr:   getEnv("MOCK_BACKEND_ADDR", "127.0.0.1:3001"),
			UserID: getEnv("MOCK_BACKEND_USER", ""),
		},
	}
}

// NewLogger builds the process logger.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}

// getDatabaseDSN constructs the ClickHouse DSN from environment variables.
func getDatabaseDSN() string {
	if dsn := getEnv("CLICKHOUSE_DSN", ""); dsn != "" {
		return dsn
	}
	return "clickhouse://" + getEnv("CLICKHOUSE_USER", "default") + ":" +
		getEnv("CLICKHOUSE_PASSWORD", "") + "@" +
		getEnv("CLICKHOUSE_HOST", "localhost") + ":" +
		getEnv("CLICKHOUSE_TCP_PORT", "9000") + "/" +
		getEnv("CLICKHOUSE_DB", "default") + "?dial_timeout=10s&read_timeout=20s"
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration accepts Go durations ("1500ms", "2s") or plain milliseconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if ms, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
