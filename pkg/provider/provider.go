// Package provider implements metadata enrichment sources and the ordered
// set that the refresh orchestrator drives. Sources apply what they know onto
// an item and report whether anything changed; fields an operator locked are
// never overwritten.
package provider

import (
	"context"

	"github.com/kinoteka/kinoteka/pkg/media"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// Source is one metadata origin. Slow sources are network-bound or otherwise
// expensive and only run when a refresh explicitly allows them.
type Source interface {
	Name() string
	Slow() bool
	Enrich(ctx context.Context, item *media.Item, force bool) (bool, error)
}

// Set runs sources in registration order. It satisfies the orchestrator's
// provider contract.
type Set struct {
	sources []Source
}

func NewSet(sources ...Source) *Set {
	return &Set{sources: sources}
}

// EnrichMetadata applies every eligible source to item and reports whether
// any of them changed it. The first source failure stops the pass; changes
// already applied by earlier sources stay applied.
func (s *Set) EnrichMetadata(ctx context.Context, item *media.Item, forceRefresh, allowSlowProviders bool) (bool, error) {
	log := logger.FromContext(ctx)

	changed := false
	for _, src := range s.sources {
		if src.Slow() && !allowSlowProviders {
			continue
		}
		if err := ctx.Err(); err != nil {
			return changed, errors.WithStack(err)
		}

		srcChanged, err := src.Enrich(ctx, item, forceRefresh)
		if err != nil {
			return changed, err
		}
		if srcChanged {
			log.Info("source enriched item", logger.Data{"source": src.Name(), "item_id": item.ID})
			changed = true
		}
	}
	return changed, nil
}
