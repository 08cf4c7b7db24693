package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// riverQueueBackend inserts events straight into a River jobs table so a
// River worker pool can pick them up. The river client itself is not
// needed on the publishing side.
type riverQueueBackend struct {
	db  *sql.DB
	cfg RiverQueueConfig
}

func newRiverQueueBackend(cfg RiverQueueConfig) (*riverQueueBackend, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("riverqueue dsn is required")
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &riverQueueBackend{db: db, cfg: cfg}, nil
}

// Publish inserts one job row carrying the raw event payload.
func (b *riverQueueBackend) Publish(ctx context.Context, topic string, event Event) error {
	args := []byte(event.RawPayload)
	if len(args) == 0 {
		encoded, err := json.Marshal(event)
		if err != nil {
			return err
		}
		args = encoded
	}

	metadata, err := json.Marshal(map[string]interface{}{
		"event":      event.Name,
		"repository": event.Repository,
		"topic":      topic,
	})
	if err != nil {
		return err
	}

	table := strings.TrimSpace(b.cfg.Table)
	if table == "" {
		table = "river_job"
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (args, kind, max_attempts, metadata, priority, queue, scheduled_at, tags)
VALUES ($1, $2, $3, $4, $5, $6, now(), $7)`,
		table,
	)

	_, err = b.db.ExecContext(
		ctx,
		query,
		string(args),
		b.cfg.Kind,
		b.cfg.MaxAttempts,
		string(metadata),
		b.cfg.Priority,
		b.cfg.Queue,
		pq.Array(b.cfg.Tags),
	)
	return err
}

func (b *riverQueueBackend) PublishForDrivers(ctx context.Context, topic string, event Event, drivers []string) error {
	return b.Publish(ctx, topic, event)
}

func (b *riverQueueBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
