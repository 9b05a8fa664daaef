// Package store persists terminal call records to Postgres. Persistence
// is optional: when no database URL is configured the daemon runs with
// the webhook as its only sink.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/talmor-labs/callflow/internal/memory"
)

// Store writes call records.
type Store interface {
	// SaveCall persists one terminal summary.
	SaveCall(ctx context.Context, summary memory.Summary) error

	// Close releases the connection pool.
	Close()
}

// Postgres implements Store over a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// Open connects to the database and ensures the calls table exists.
func Open(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS calls (
	call_id        text PRIMARY KEY,
	started_at     timestamptz NOT NULL,
	duration_secs  integer NOT NULL,
	customer_name  text,
	outcome        text,
	next_action    text,
	sentiment      text,
	total_turns    integer NOT NULL,
	needs          jsonb,
	objections     jsonb,
	interests      jsonb,
	stages         jsonb,
	transcript     jsonb
)`

func (p *Postgres) migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating calls table: %w", err)
	}
	return nil
}

// SaveCall inserts the summary; a replayed call id updates in place.
func (p *Postgres) SaveCall(ctx context.Context, summary memory.Summary) error {
	needs, _ := json.Marshal(summary.Needs)
	objections, _ := json.Marshal(summary.Objections)
	interests, _ := json.Marshal(summary.Interests)
	stages, _ := json.Marshal(summary.TimePerStage)
	transcript, _ := json.Marshal(summary.Transcript)

	_, err := p.pool.Exec(ctx, `
		INSERT INTO calls (
			call_id, started_at, duration_secs, customer_name, outcome,
			next_action, sentiment, total_turns, needs, objections,
			interests, stages, transcript
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (call_id) DO UPDATE SET
			duration_secs = EXCLUDED.duration_secs,
			outcome       = EXCLUDED.outcome,
			next_action   = EXCLUDED.next_action,
			sentiment     = EXCLUDED.sentiment,
			total_turns   = EXCLUDED.total_turns,
			needs         = EXCLUDED.needs,
			objections    = EXCLUDED.objections,
			interests     = EXCLUDED.interests,
			stages        = EXCLUDED.stages,
			transcript    = EXCLUDED.transcript`,
		summary.CallID,
		summary.StartedAt,
		summary.Duration,
		summary.Customer.Name,
		string(summary.Outcome),
		summary.NextAction,
		string(summary.Sentiment),
		summary.TotalTurns,
		needs, objections, interests, stages, transcript,
	)
	if err != nil {
		return fmt.Errorf("inserting call record: %w", err)
	}

	slog.Debug("call record persisted", "call_id", summary.CallID)
	return nil
}

// Close shuts down the pool.
func (p *Postgres) Close() { p.pool.Close() }
