package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/trailverse/analytics/infrastructure/retry"
	"github.com/trailverse/analytics/internal/domain"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	pingTimeout            = 5 * time.Second

	// insertBatchSize is the maximum number of rows per INSERT statement.
	insertBatchSize = 50
)

// Config holds database connection settings.
type Config struct {
	Host        string `env:"POSTGRES_HOST"     yaml:"host"`
	Port        int    `env:"POSTGRES_PORT"     yaml:"port"`
	User        string `env:"POSTGRES_USER"     yaml:"user"`
	Password    string `env:"POSTGRES_PASSWORD" yaml:"password"` //nolint:gosec // connection config
	DBName      string `env:"POSTGRES_DB"       yaml:"dbname"`
	SSLMode     string `env:"POSTGRES_SSLMODE"  yaml:"sslmode"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE"   yaml:"auto_migrate"`
}

// DSN renders the lib/pq connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Connect opens a PostgreSQL connection pool and waits for the server to
// answer, retrying transient failures.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	pingErr := retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	return db, nil
}

// PostgresStore implements Store on the analytics_events table.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps db.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var eventColumns = []string{
	"id", "event_kind", "event_category", "user_id", "session_id", "occurred_at", "metadata",
	"park_code", "blog_id", "event_ref_id", "review_id", "conversation_id",
	"duration_ms", "response_time_ms", "error_message", "error_stack", "error_code",
	"device_type", "device_brand", "device_model", "browser_name", "browser_version",
	"os_name", "os_version", "country", "region", "city", "latitude", "longitude",
	"user_agent", "ip_address", "referrer", "page_url", "page_title",
}

var insertPrefix = "INSERT INTO analytics_events (" + strings.Join(eventColumns, ", ") + ") VALUES "

// PartialWriteError reports events WriteEvents could not store. Every
// other event in the call was written.
type PartialWriteError struct {
	Failed int
	Total  int
	// Err is the first failure.
	Err error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%d of %d events not written: %v", e.Failed, e.Total, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// WriteEvents inserts events in multi-row statements of insertBatchSize.
// Chunks are independent. When a chunk is rejected for a reason other than
// a connection problem it is retried row by row, so only the offending rows
// are lost. Any loss is reported as a *PartialWriteError.
func (s *PostgresStore) WriteEvents(ctx context.Context, events []domain.Event) error {
	var (
		failed   int
		firstErr error
	)
	note := func(n int, err error) {
		failed += n
		if firstErr == nil {
			firstErr = err
		}
	}

	for start := 0; start < len(events); start += insertBatchSize {
		chunk := events[start:min(start+insertBatchSize, len(events))]

		err := s.batchInsert(ctx, chunk)
		if err == nil {
			continue
		}
		if len(chunk) == 1 || ctx.Err() != nil || retry.IsTransient(err) {
			note(len(chunk), err)
			continue
		}

		for i := range chunk {
			if rowErr := s.batchInsert(ctx, chunk[i:i+1]); rowErr != nil {
				note(1, rowErr)
			}
		}
	}

	if failed == 0 {
		return nil
	}
	return &PartialWriteError{Failed: failed, Total: len(events), Err: firstErr}
}

func (s *PostgresStore) batchInsert(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	args := make([]any, 0, len(events)*len(eventColumns))
	var sb strings.Builder
	sb.WriteString(insertPrefix)

	for i := range events {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeValueTuple(&sb, i, len(eventColumns))

		row, err := eventArgs(&events[i])
		if err != nil {
			return err
		}
		args = append(args, row...)
	}

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("exec batch insert: %w", err)
	}
	return nil
}

// writeValueTuple writes ($n, ..., $n+cols-1) for row rowIndex.
func writeValueTuple(sb *strings.Builder, rowIndex, cols int) {
	base := rowIndex * cols
	sb.WriteByte('(')
	for c := 1; c <= cols; c++ {
		if c > 1 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "$%d", base+c)
	}
	sb.WriteByte(')')
}

func eventArgs(e *domain.Event) ([]any, error) {
	metadata, err := domain.MarshalPayload(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", e.ID, err)
	}

	ctx := e.Context
	return []any{
		e.ID.String(), string(e.Kind), string(e.Category), nullString(e.UserID), e.SessionID,
		e.Timestamp, string(metadata),
		nullString(e.Content.ParkCode), nullString(e.Content.BlogID), nullString(e.Content.EventID),
		nullString(e.Content.ReviewID), nullString(e.Content.ConversationID),
		e.Timing.DurationMs, e.Timing.ResponseTimeMs,
		nullString(e.Error.Message), nullString(e.Error.Stack), nullString(e.Error.Code),
		nullString(ctx.Device.Type), nullString(ctx.Device.Brand), nullString(ctx.Device.Model),
		nullString(ctx.Browser.Name), nullString(ctx.Browser.Version),
		nullString(ctx.OS.Name), nullString(ctx.OS.Version),
		nullString(ctx.Location.Country), nullString(ctx.Location.Region), nullString(ctx.Location.City),
		ctx.Location.Latitude, ctx.Location.Longitude,
		nullString(ctx.UserAgent), nullString(ctx.IPAddress), nullString(ctx.Referrer),
		nullString(ctx.PageURL), nullString(ctx.PageTitle),
	}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
