// Package seeder writes collected entities into the store in batches,
// one run-scoped transaction per seeding stage.
package seeder

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vivenda-group/geoseed-cli/internal/store"
)

// Config tunes the persistence coordinator.
type Config struct {
	// FlushEvery is the number of buffered records written to the
	// session at a time. Purely a memory-management measure: the
	// surrounding transaction still commits exactly once per run.
	FlushEvery int
}

const defaultFlushEvery = 50

// Summary reports the outcome of one seeding run.
type Summary struct {
	RunID     string
	Stage     string
	Persisted int
	Skipped   int
	// AlreadySeeded is set when the idempotence guard found existing
	// rows and the run performed zero writes.
	AlreadySeeded bool
}

// Source yields batches of parseable values until exhaustion.
type Source[T any] interface {
	Next(ctx context.Context) ([]T, bool, error)
	Skipped() int
}

// InsertFunc persists one value inside the run's session.
type InsertFunc[T any] func(ctx context.Context, tx store.Session, v T) error

// Run consumes src to exhaustion and persists every value inside one
// transaction. The "seeding necessary" check runs inside that same
// transaction; a populated store makes the run a no-op, not an upsert.
// Any failure rolls the entire run back and surfaces wrapped with the
// stage name.
func Run[T any](ctx context.Context, st store.Store, cfg Config, stage string, kind store.Kind, src Source[T], insert InsertFunc[T]) (*Summary, error) {
	flushEvery := cfg.FlushEvery
	if flushEvery <= 0 {
		flushEvery = defaultFlushEvery
	}

	sum := &Summary{RunID: uuid.NewString(), Stage: stage}
	log := zap.L().With(
		zap.String("stage", stage),
		zap.String("run_id", sum.RunID),
	)

	err := st.InTx(ctx, func(tx store.Session) error {
		existing, err := tx.Count(ctx, kind)
		if err != nil {
			return err
		}
		if existing > 0 {
			sum.AlreadySeeded = true
			log.Info("seeding not necessary", zap.Int64("existing", existing))
			return nil
		}

		buf := make([]T, 0, flushEvery)
		flush := func() error {
			for _, v := range buf {
				if err := insert(ctx, tx, v); err != nil {
					return err
				}
			}
			if len(buf) > 0 {
				log.Debug("flushed batch", zap.Int("size", len(buf)))
			}
			buf = buf[:0]
			return nil
		}

		for {
			batch, ok, err := src.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			for _, v := range batch {
				buf = append(buf, v)
				sum.Persisted++
				if len(buf) >= flushEvery {
					if err := flush(); err != nil {
						return err
					}
				}
			}
		}
		return flush()
	})

	sum.Skipped = src.Skipped()
	if err != nil {
		return nil, eris.Wrapf(err, "seeder: stage %s", stage)
	}

	if !sum.AlreadySeeded {
		log.Info("seeding run complete",
			zap.Int("persisted", sum.Persisted),
			zap.Int("skipped", sum.Skipped),
		)
	}
	return sum, nil
}
