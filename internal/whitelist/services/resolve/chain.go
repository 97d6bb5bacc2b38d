// Package resolve turns display names into stable identifiers by trying an
// ordered list of sources until one yields a result. The whitelist store
// goes first so that re-adding a previously known player costs no network
// round trip; an external profile service covers the rest.
package resolve

import (
	"context"
	"fmt"

	"github.com/minehattan/whitelister/internal/whitelist/domain"
	"github.com/minehattan/whitelister/internal/whitelist/repos/store"
)

// Resolver is one source of name-to-identifier resolution. The boolean
// reports whether a profile was found; "not found" is not an error.
type Resolver interface {
	FindByName(ctx context.Context, name string) (domain.Profile, bool, error)
}

// Chain queries its sources in order, short-circuiting on the first result.
// A source's hard failure propagates immediately; a miss falls through to
// the next source.
type Chain struct {
	sources []Resolver
}

// NewChain builds a Chain over the given sources, tried in argument order.
func NewChain(sources ...Resolver) *Chain {
	return &Chain{sources: sources}
}

// FindByName resolves a display name. Both returns are zero when no source
// knows the name, which is not an error.
func (c *Chain) FindByName(ctx context.Context, name string) (domain.Profile, bool, error) {
	for _, src := range c.sources {
		p, ok, err := src.FindByName(ctx, name)
		if err != nil {
			return domain.Profile{}, false, fmt.Errorf("%w: %v", domain.ErrResolution, err)
		}
		if ok {
			return p, true, nil
		}
	}
	return domain.Profile{}, false, nil
}

// storeResolver adapts a whitelist store into a Resolver, answering purely
// from locally known entries.
type storeResolver struct {
	store store.Store
}

// FromStore returns a Resolver backed by the given whitelist store.
func FromStore(s store.Store) Resolver {
	return &storeResolver{store: s}
}

func (r *storeResolver) FindByName(ctx context.Context, name string) (domain.Profile, bool, error) {
	id, ok, err := r.store.ResolveIdentifier(ctx, name)
	if err != nil {
		return domain.Profile{}, false, err
	}
	if !ok {
		return domain.Profile{}, false, nil
	}
	return domain.Profile{ID: id, Name: name}, true, nil
}
