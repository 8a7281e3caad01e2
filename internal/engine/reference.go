package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/fairlend/peerscope/internal/crosswalk"
	"github.com/fairlend/peerscope/internal/model"
	"github.com/fairlend/peerscope/internal/refcache"
	"github.com/fairlend/peerscope/internal/scope"
)

// ReferenceTTL is how long cached reference lists stay fresh. The
// underlying tables change at most once per reporting cycle.
const ReferenceTTL = time.Hour

// ReferenceSource is the storage surface the cached reference wraps: metro
// membership plus the boundary crosswalk.
type ReferenceSource interface {
	scope.ReferenceData
	CrosswalkEntries(ctx context.Context) ([]crosswalk.Entry, error)
}

// CachedReference wraps a ReferenceSource with the owned TTL cache so
// repeated analyses don't reload static reference tables per request.
type CachedReference struct {
	cache  *refcache.Cache
	source ReferenceSource
}

// NewCachedReference wraps source with cache.
func NewCachedReference(cache *refcache.Cache, source ReferenceSource) *CachedReference {
	return &CachedReference{cache: cache, source: source}
}

// MetroMembers returns the metro membership map, served from cache when
// fresh.
func (c *CachedReference) MetroMembers(ctx context.Context) (map[string][]model.GeoCode, error) {
	v, err := c.cache.GetOrLoad(ctx, "metro-members", func(ctx context.Context) (any, error) {
		return c.source.MetroMembers(ctx)
	})
	if err != nil {
		return nil, err
	}

	members, ok := v.(map[string][]model.GeoCode)
	if !ok {
		return nil, fmt.Errorf("unexpected cached type %T for metro membership", v)
	}
	return members, nil
}

// Normalizer returns the record-level boundary normalizer, built once from
// the crosswalk table and served from cache thereafter.
func (c *CachedReference) Normalizer(ctx context.Context) (*crosswalk.Normalizer, error) {
	v, err := c.cache.GetOrLoad(ctx, "crosswalk-normalizer", func(ctx context.Context) (any, error) {
		entries, err := c.source.CrosswalkEntries(ctx)
		if err != nil {
			return nil, err
		}
		return crosswalk.New(entries), nil
	})
	if err != nil {
		return nil, err
	}

	norm, ok := v.(*crosswalk.Normalizer)
	if !ok {
		return nil, fmt.Errorf("unexpected cached type %T for crosswalk normalizer", v)
	}
	return norm, nil
}
