package refcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetOrLoad(t *testing.T) {
	cache := New(time.Minute)
	defer cache.Close()

	loads := 0
	loader := func(_ context.Context) (any, error) {
		loads++
		return []string{"09110", "09120"}, nil
	}

	ctx := context.Background()

	v, err := cache.GetOrLoad(ctx, "metros", loader)
	require.NoError(t, err)
	assert.Equal(t, []string{"09110", "09120"}, v)
	assert.Equal(t, 1, loads)

	// Second hit is served from cache.
	v, err = cache.GetOrLoad(ctx, "metros", loader)
	require.NoError(t, err)
	assert.Equal(t, []string{"09110", "09120"}, v)
	assert.Equal(t, 1, loads)
	assert.Equal(t, 1, cache.size())
}

func TestCache_LoaderErrorNotCached(t *testing.T) {
	cache := New(time.Minute)
	defer cache.Close()

	wantErr := errors.New("backend unavailable")
	calls := 0
	loader := func(_ context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, wantErr
		}
		return "loaded", nil
	}

	ctx := context.Background()

	_, err := cache.GetOrLoad(ctx, "crosswalk", loader)
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 0, cache.size())

	v, err := cache.GetOrLoad(ctx, "crosswalk", loader)
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)
}

func TestCache_ExpiryTriggersReload(t *testing.T) {
	cache := New(10 * time.Millisecond)
	defer cache.Close()

	loads := 0
	loader := func(_ context.Context) (any, error) {
		loads++
		return loads, nil
	}

	ctx := context.Background()

	v, err := cache.GetOrLoad(ctx, "k", loader)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	time.Sleep(20 * time.Millisecond)

	v, err = cache.GetOrLoad(ctx, "k", loader)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestCache_Invalidate(t *testing.T) {
	cache := New(time.Minute)
	defer cache.Close()

	loads := 0
	loader := func(_ context.Context) (any, error) {
		loads++
		return loads, nil
	}

	ctx := context.Background()
	_, err := cache.GetOrLoad(ctx, "k", loader)
	require.NoError(t, err)

	cache.Invalidate("k")

	v, err := cache.GetOrLoad(ctx, "k", loader)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}
