package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fairlend/peerscope/internal/aggregate"
	"github.com/fairlend/peerscope/internal/config"
	"github.com/fairlend/peerscope/internal/engine"
	"github.com/fairlend/peerscope/internal/filter"
	"github.com/fairlend/peerscope/internal/model"
	"github.com/fairlend/peerscope/internal/refcache"
	"github.com/fairlend/peerscope/internal/scope"
	"github.com/fairlend/peerscope/internal/storage"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/viper"
)

// initStore initializes the analytical store with proper path expansion.
func initStore(ctx context.Context) (*storage.Store, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDBPath
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewStore(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// analysisDeps wires the engine components over one store.
type analysisDeps struct {
	store    *storage.Store
	cache    *refcache.Cache
	agg      *aggregate.Engine
	resolver *scope.Resolver
	analyzer *engine.Analyzer
}

func (d *analysisDeps) Close() {
	d.cache.Close()
	_ = d.store.Close()
}

// buildDeps constructs the analyzer stack. When showProgress is set, the
// aggregation engine reports chunk completion on a terminal progress bar.
func buildDeps(ctx context.Context, showProgress bool) (*analysisDeps, error) {
	store, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	cfg := aggregate.Config{
		ChunkSize: viper.GetInt("aggregate.chunk_size"),
	}
	if showProgress {
		var bar *progressbar.ProgressBar
		cfg.OnChunk = func(done, total int) {
			if bar == nil {
				bar = progressbar.Default(int64(total), "aggregating")
			}
			_ = bar.Set(done)
		}
	}

	cache := refcache.New(time.Hour)
	agg := aggregate.NewWithConfig(store, cfg)
	resolver := scope.NewResolver(agg, engine.NewCachedReference(cache, store))

	return &analysisDeps{
		store:    store,
		cache:    cache,
		agg:      agg,
		resolver: resolver,
		analyzer: engine.NewAnalyzer(agg, resolver, store),
	}, nil
}

// scopeSpecFromFlags assembles a scope specification from command flags.
func scopeSpecFromFlags(strategy string, geos []string) (model.ScopeSpec, error) {
	spec := model.ScopeSpec{Strategy: model.ScopeStrategy(strategy)}
	for _, g := range geos {
		spec.CustomUnits = append(spec.CustomUnits, model.GeoCode(strings.TrimSpace(g)))
	}

	if !spec.Strategy.Valid() {
		return spec, fmt.Errorf("unknown scope strategy %q (one of: custom, all-active, volume-threshold, presence-threshold)", strategy)
	}
	return spec, nil
}

// filterOptionsFromFlags assembles filter options from command flags.
func filterOptionsFromFlags(disposition string, occupancy, propertyTypes, financing, loanCategories []string, includeRescission bool) filter.Options {
	return filter.Options{
		Disposition:               filter.Disposition(disposition),
		Occupancy:                 occupancy,
		PropertyTypes:             propertyTypes,
		Financing:                 financing,
		LoanCategories:            loanCategories,
		IncludeRescissionEligible: includeRescission,
	}
}

// formatAmount renders a whole-dollar amount with thousands separators.
func formatAmount(amount int64) string {
	s := fmt.Sprintf("%d", amount)
	if len(s) <= 3 {
		return "$" + s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	return "$" + strings.Join(parts, ",")
}
