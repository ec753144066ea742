// Package collector drives a paged source to exhaustion, yielding
// batches of raw records and, one layer up, parsed entities.
package collector

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
)

// Cursor addresses one page of a source: limit is the requested batch
// size, offset is 0-based and advances by limit.
type Cursor struct {
	Limit  int
	Offset int
}

// NewCursor returns the initial cursor for a collection run.
func NewCursor(limit int) Cursor {
	return Cursor{Limit: limit, Offset: 0}
}

// Query renders the cursor as source query parameters.
func (c Cursor) Query() url.Values {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(c.Limit))
	v.Set("offset", strconv.Itoa(c.Offset))
	return v
}

// Advance derives the next cursor from the previous cursor's query
// parameters, parse-then-increment, so iteration stays resumable when
// cursors are externalized.
func Advance(prev url.Values) (Cursor, error) {
	limit, err := strconv.Atoi(prev.Get("limit"))
	if err != nil || limit <= 0 {
		return Cursor{}, eris.Errorf("collector: invalid limit %q in cursor", prev.Get("limit"))
	}
	offset, err := strconv.Atoi(prev.Get("offset"))
	if err != nil || offset < 0 {
		return Cursor{}, eris.Errorf("collector: invalid offset %q in cursor", prev.Get("offset"))
	}
	return Cursor{Limit: limit, Offset: offset + limit}, nil
}

// FetchFunc fetches one page of raw records for a cursor. Any error is
// unrecoverable for the collection run; retries, if wanted, belong to
// the caller's run boundary.
type FetchFunc func(ctx context.Context, c Cursor) ([]json.RawMessage, error)

// Batches lazily iterates a source page by page. Iteration stops after
// the first page whose item count is strictly less than the requested
// batch size; that short page is still yielded. The source is never
// asked for a definitive total.
type Batches struct {
	fetch  FetchFunc
	cursor Cursor
	done   bool
	err    error
}

// New returns a batch iterator starting at limit=batchSize, offset=0.
func New(fetch FetchFunc, batchSize int) *Batches {
	return &Batches{fetch: fetch, cursor: NewCursor(batchSize)}
}

// Next yields the next page. ok is false once the source is exhausted
// or a fetch has failed; after a failure the error is returned and
// iteration ends.
func (b *Batches) Next(ctx context.Context) (items []json.RawMessage, ok bool, err error) {
	if b.done {
		return nil, false, b.err
	}

	items, err = b.fetch(ctx, b.cursor)
	if err != nil {
		b.done = true
		b.err = eris.Wrapf(err, "collector: fetch page at offset %d", b.cursor.Offset)
		return nil, false, b.err
	}

	if len(items) < b.cursor.Limit {
		// Exhausted: yield the short page, then stop.
		b.done = true
		return items, true, nil
	}

	next, err := Advance(b.cursor.Query())
	if err != nil {
		b.done = true
		b.err = err
		return nil, false, b.err
	}
	b.cursor = next
	return items, true, nil
}

// FromSlice adapts an in-memory record list (archive and scrape-job
// sources) to the same batch protocol.
func FromSlice(records []json.RawMessage, batchSize int) *Batches {
	fetch := func(_ context.Context, c Cursor) ([]json.RawMessage, error) {
		if c.Offset >= len(records) {
			return nil, nil
		}
		end := c.Offset + c.Limit
		if end > len(records) {
			end = len(records)
		}
		return records[c.Offset:end], nil
	}
	return New(fetch, batchSize)
}
