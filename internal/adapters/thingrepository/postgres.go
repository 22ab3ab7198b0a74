package thingrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Amund211/thingcache/internal/adapters/cache"
	"github.com/Amund211/thingcache/internal/domain"
	"github.com/Amund211/thingcache/internal/reporting"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Postgres struct {
	db     *sqlx.DB
	schema string

	tracer trace.Tracer
}

func NewPostgres(db *sqlx.DB, schema string) *Postgres {
	tracer := otel.Tracer("thingcache/thingrepository/postgres")

	return &Postgres{
		db:     db,
		schema: schema,

		tracer: tracer,
	}
}

type dbThingEntry struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Payload   []byte    `db:"payload"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (p *Postgres) StoreThing(ctx context.Context, thing domain.Thing) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.StoreThing")
	defer span.End()

	if thing.ID == "" {
		err := fmt.Errorf("thing id is empty")
		reporting.Report(ctx, err)
		return err
	}

	payload := thing.Payload
	if payload == nil {
		payload = []byte{}
	}

	_, err := p.db.ExecContext(
		ctx,
		fmt.Sprintf(`INSERT INTO %s.things
		(id, name, payload, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at`,
			pq.QuoteIdentifier(p.schema),
		),
		thing.ID,
		thing.Name,
		payload,
		thing.UpdatedAt,
	)
	if err != nil {
		err := fmt.Errorf("failed to upsert thing: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"id":        thing.ID,
			"updatedAt": thing.UpdatedAt.Format(time.RFC3339),
		})
		return err
	}

	return nil
}

func (p *Postgres) RemoveThing(ctx context.Context, id string) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.RemoveThing")
	defer span.End()

	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`
			DELETE FROM %s.things
			WHERE id = $1`,
		pq.QuoteIdentifier(p.schema),
	),
		id,
	)
	if err != nil {
		err := fmt.Errorf("failed to delete thing: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"id": id,
		})
		return err
	}

	return nil
}

// TryRead looks up a thing by id. A missing row is NotFound, not an error.
func (p *Postgres) TryRead(ctx context.Context, id string) (cache.Outcome[domain.Thing], error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.TryRead")
	defer span.End()

	var entry dbThingEntry
	err := p.db.GetContext(ctx, &entry, fmt.Sprintf(`SELECT
		id, name, payload, updated_at
		FROM %s.things
		WHERE id = $1`,
		pq.QuoteIdentifier(p.schema),
	),
		id,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cache.NotFound[domain.Thing](), nil
		}
		err := fmt.Errorf("failed to select thing: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"id": id,
		})
		return cache.NotFound[domain.Thing](), err
	}

	return cache.Found(domain.Thing{
		ID:        entry.ID,
		Name:      entry.Name,
		Payload:   entry.Payload,
		UpdatedAt: entry.UpdatedAt.UTC(),
	}), nil
}
