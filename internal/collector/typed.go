package collector

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/vivenda-group/geoseed-cli/internal/feature"
)

// ParseFunc converts one raw record into a domain value. A SkipError
// excludes the record from its batch without aborting the page.
type ParseFunc[T any] func(raw json.RawMessage) (T, error)

// Typed wraps a raw batch iterator with per-record parsing. Parse
// skips are logged and counted, never propagated.
type Typed[T any] struct {
	batches *Batches
	parse   ParseFunc[T]
	dataset string
	skipped int
}

// NewTyped builds a typed iterator over a paged source.
func NewTyped[T any](fetch FetchFunc, batchSize int, parse ParseFunc[T], dataset string) *Typed[T] {
	return &Typed[T]{
		batches: New(fetch, batchSize),
		parse:   parse,
		dataset: dataset,
	}
}

// TypedFromSlice builds a typed iterator over in-memory records.
func TypedFromSlice[T any](records []json.RawMessage, batchSize int, parse ParseFunc[T], dataset string) *Typed[T] {
	return &Typed[T]{
		batches: FromSlice(records, batchSize),
		parse:   parse,
		dataset: dataset,
	}
}

// Next yields the parsed values of the next page. A page may come back
// shorter than requested, or empty, when records were skipped.
func (t *Typed[T]) Next(ctx context.Context) ([]T, bool, error) {
	raw, ok, err := t.batches.Next(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}

	out := make([]T, 0, len(raw))
	for _, r := range raw {
		v, err := t.parse(r)
		if err != nil {
			if feature.IsSkip(err) {
				t.skipped++
				logSkip(t.dataset, err)
				continue
			}
			return nil, false, err
		}
		out = append(out, v)
	}
	return out, true, nil
}

// Skipped returns the number of records excluded so far.
func (t *Typed[T]) Skipped() int { return t.skipped }

func logSkip(dataset string, err error) {
	fields := []zap.Field{
		zap.String("dataset", dataset),
		zap.Error(err),
	}
	var se *feature.SkipError
	if errors.As(err, &se) {
		fields = append(fields, zap.String("raw", se.Raw))
	}
	zap.L().Warn("skipping malformed record", fields...)
}
