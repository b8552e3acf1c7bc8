// Package storage persists finished purchase attempts in ClickHouse.
package storage

import (
	"context"
	"time"

	"github.com/navid-fn/tradesniper/internal/models"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"
)

// Storage defines the attempt history store.
// Implementations must be safe for concurrent use.
type Storage interface {
	// InsertAttempts writes a batch of attempt records.
	InsertAttempts(ctx context.Context, records []models.AttemptRecord) error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Close releases database connection resources.
	Close() error
}

type clickhouseStorage struct {
	conn driver.Conn
}

// NewClickHouseStorage parses the DSN, opens a connection and pings it.
// Returns an error if the server cannot be reached within 5 seconds.
func NewClickHouseStorage(dsn string) (Storage, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return &clickhouseStorage{conn: conn}, nil
}

const insertAttempts = `
	INSERT INTO purchase_attempt (
		id, trade_id, attempt_key, source,
		state, reason, status, error,
		item, account, stash_name, stash_x, stash_y,
		price_amount, price_currency,
		started_at, finished_at, inserted_at
	)
`

// InsertAttempts uses a single batch per call; all rows share inserted_at.
func (s *clickhouseStorage) InsertAttempts(ctx context.Context, records []models.AttemptRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, insertAttempts)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, r := range records {
		if err := batch.Append(attemptRow(r, now)...); err != nil {
			batch.Abort()
			return err
		}
	}

	return batch.Send()
}

func (s *clickhouseStorage) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func (s *clickhouseStorage) Close() error {
	return s.conn.Close()
}

// attemptRow flattens a record into the purchase_attempt column order.
// Missing stash coordinates are stored as -1.
func attemptRow(r models.AttemptRecord, insertedAt time.Time) []any {
	stashName, stashX, stashY := "", int32(-1), int32(-1)
	if r.Stash != nil {
		stashName, stashX, stashY = r.Stash.Name, int32(r.Stash.X), int32(r.Stash.Y)
	}
	amount, currency := decimal.Zero, ""
	if r.Price != nil {
		amount, currency = r.Price.Amount, r.Price.Currency
	}

	return []any{
		r.ID,
		r.TradeID,
		r.Key,
		r.Source,
		r.State.String(),
		r.Reason,
		int32(r.Status),
		r.Error,
		r.Item,
		r.Account,
		stashName,
		stashX,
		stashY,
		amount,
		currency,
		r.StartedAt,
		r.FinishedAt,
		insertedAt,
	}
}
