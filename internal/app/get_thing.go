package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Amund211/thingcache/internal/adapters/cache"
	"github.com/Amund211/thingcache/internal/domain"
	"github.com/Amund211/thingcache/internal/reporting"
)

type GetThing func(ctx context.Context, thingID string) (domain.Thing, error)

type thingReader interface {
	Get(ctx context.Context, key string) (cache.Outcome[domain.Thing], error)
}

func BuildGetThingWithCache(thingCache thingReader) GetThing {
	return func(ctx context.Context, thingID string) (domain.Thing, error) {
		idLength := len(thingID)
		if idLength == 0 || idLength > 100 {
			err := fmt.Errorf("invalid thing id length")
			reporting.Report(ctx, err, map[string]string{
				"thingId": thingID,
				"length":  strconv.Itoa(idLength),
			})
			return domain.Thing{}, err
		}

		outcome, err := thingCache.Get(ctx, thingID)
		if err != nil {
			// NOTE: Lookup implementations handle their own error reporting
			return domain.Thing{}, fmt.Errorf("failed to get thing from cache: %w", err)
		}

		thing, found := outcome.Value()
		if !found {
			return domain.Thing{}, domain.ErrThingNotFound
		}

		return thing, nil
	}
}
