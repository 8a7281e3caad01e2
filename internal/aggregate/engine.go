// Package aggregate implements the batched aggregation engine: it
// partitions identifier lists into bounded chunks, issues one grouped-sum
// query per chunk against the analytical backend, and merges partial
// results additively.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fairlend/peerscope/internal/model"
	"github.com/fairlend/peerscope/internal/query"
)

// Dimension identifies which column an entity identifier list filters.
type Dimension string

const (
	// DimGeoCode filters by the normalized geographic code.
	DimGeoCode Dimension = "geo_code"
	// DimLenderID filters by lender identifier.
	DimLenderID Dimension = "lender_id"
)

// GroupBy identifies the grouping key of an aggregation.
type GroupBy string

const (
	// GroupByGeo groups by the normalized geographic code.
	GroupByGeo GroupBy = "geo_code"
	// GroupByLender groups by lender identifier.
	GroupByLender GroupBy = "lender_id"
	// GroupByMetro groups by metro area code via the reference geography
	// table.
	GroupByMetro GroupBy = "metro_code"
)

// Source selects the fact table an aggregation reads.
type Source string

const (
	// SourceFacts reads the transaction fact table; Amount and Count carry
	// summed amounts and record counts.
	SourceFacts Source = "facts"
	// SourceOffices reads the physical office location table; only Count is
	// meaningful.
	SourceOffices Source = "offices"
)

// Request describes one grouped aggregation.
type Request struct {
	EntityIDs []string
	Dimension Dimension
	GroupBy   GroupBy
	Years     model.YearRange
	Filters   query.PredicateSet
	Source    Source
}

// Row is one merged result group.
type Row struct {
	Key    string
	Amount int64
	Count  int64
}

// Result is the merged outcome of a batched aggregation. Partial is true
// when at least one chunk failed; the merged rows then undercount by the
// failed chunks' contribution.
type Result struct {
	Rows    map[string]Row
	Errors  []error
	Partial bool
}

// TotalAmount sums the merged amounts across all groups.
func (r *Result) TotalAmount() int64 {
	var total int64
	for _, row := range r.Rows {
		total += row.Amount
	}
	return total
}

// TotalCount sums the merged counts across all groups.
func (r *Result) TotalCount() int64 {
	var total int64
	for _, row := range r.Rows {
		total += row.Count
	}
	return total
}

// ChunkError records the failure of one aggregation chunk. It is non-fatal:
// the engine logs it, folds it into Result.Partial, and continues.
type ChunkError struct {
	Err   error
	Chunk int
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("aggregation chunk %d failed: %v", e.Chunk, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// Backend executes one chunk's grouped-sum query. The request it receives
// carries at most the engine's chunk size of entity identifiers.
type Backend interface {
	GroupedSum(ctx context.Context, req Request) ([]Row, error)
}

// Config holds engine settings.
type Config struct {
	// ChunkSize is the maximum predicate-list size B the backend accepts.
	ChunkSize int
	// OnChunk, when set, is invoked after each chunk with progress counts.
	OnChunk func(done, total int)
}

// DefaultChunkSize is a conservative bound under typical backend
// predicate-list limits.
const DefaultChunkSize = 150

// Engine is the batched aggregation engine.
type Engine struct {
	backend   Backend
	onChunk   func(done, total int)
	chunkSize int
}

// New creates an engine with default configuration.
func New(backend Backend) *Engine {
	return NewWithConfig(backend, Config{})
}

// NewWithConfig creates an engine with custom configuration.
func NewWithConfig(backend Backend, cfg Config) *Engine {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	return &Engine{
		backend:   backend,
		chunkSize: cfg.ChunkSize,
		onChunk:   cfg.OnChunk,
	}
}

// Aggregate partitions the request's entity identifiers into consecutive
// chunks, issues one grouped query per chunk, and merges results by
// summing measures for identical group keys. Chunk processing order does
// not affect the merged result. A failed chunk is logged and skipped;
// remaining chunks still run and the result is flagged partial. Only the
// running accumulator plus one chunk's rows are held in memory.
func (e *Engine) Aggregate(ctx context.Context, req Request) (*Result, error) {
	result := &Result{Rows: make(map[string]Row)}

	chunks := chunkIDs(req.EntityIDs, e.chunkSize)
	for i, chunk := range chunks {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		chunkReq := req
		chunkReq.EntityIDs = chunk

		rows, err := e.backend.GroupedSum(ctx, chunkReq)
		if err != nil {
			chunkErr := &ChunkError{Chunk: i, Err: err}
			slog.Warn("aggregation chunk failed, continuing",
				"chunk", i,
				"chunk_count", len(chunks),
				"ids", len(chunk),
				"source", req.Source,
				"error", err)
			result.Errors = append(result.Errors, chunkErr)
			result.Partial = true
			continue
		}

		for _, row := range rows {
			merged := result.Rows[row.Key]
			merged.Key = row.Key
			merged.Amount += row.Amount
			merged.Count += row.Count
			result.Rows[row.Key] = merged
		}

		if e.onChunk != nil {
			e.onChunk(i+1, len(chunks))
		}
	}

	return result, nil
}

// chunkIDs partitions ids into consecutive slices of at most size elements.
func chunkIDs(ids []string, size int) [][]string {
	if len(ids) == 0 {
		// A request without an entity list is a single unfiltered query.
		return [][]string{nil}
	}

	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
