package upstream

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Postgres serves lookups from a local table instead of a remote service.
// It doubles as the write side for seeding entries.
type Postgres struct {
	db     *sqlx.DB
	schema string

	tracer trace.Tracer
}

func NewPostgres(db *sqlx.DB, schema string) *Postgres {
	tracer := otel.Tracer("taskcache/upstream/postgres")

	return &Postgres{
		db:     db,
		schema: schema,

		tracer: tracer,
	}
}

type dbLookupsEntry struct {
	LookupKey string    `db:"lookup_key"`
	Payload   []byte    `db:"payload"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (p *Postgres) Fetch(ctx context.Context, key string) ([]byte, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.Fetch")
	defer span.End()

	var entry dbLookupsEntry
	err := p.db.GetContext(ctx, &entry, fmt.Sprintf(`SELECT
		lookup_key, payload, updated_at
		FROM %s.lookups
		WHERE lookup_key = $1`,
		pq.QuoteIdentifier(p.schema),
	),
		key,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No entry found
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("%w: failed to select lookups entry: %w", ErrUpstreamUnavailable, err)
	}

	return entry.Payload, nil
}

// Store upserts the payload for key, making it the value served by
// subsequent fetches.
func (p *Postgres) Store(ctx context.Context, key string, payload []byte, updatedAt time.Time) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.Store")
	defer span.End()

	_, err := p.db.ExecContext(
		ctx,
		fmt.Sprintf(`INSERT INTO %s.lookups
		(lookup_key, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (lookup_key)
		DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at`,
			pq.QuoteIdentifier(p.schema),
		),
		key,
		payload,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert or update lookups entry: %w", err)
	}

	return nil
}
