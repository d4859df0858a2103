package trend

import (
	"context"
	"fmt"
	"time"

	"signalbot/internal/logger"
	"signalbot/internal/signal"
)

// Record is one durable trend sample.
type Record struct {
	Key   signal.TrendKey
	Value float64
	At    time.Time
}

// Journal is an append-only log of trend samples used to warm-start a Store.
type Journal interface {
	Append(ctx context.Context, rec Record) error
	Replay(ctx context.Context, fn func(Record)) error
	Close() error
}

// Hydrate replays journal into store; later records overwrite earlier ones.
func Hydrate(ctx context.Context, store *Store, journal Journal) (int, error) {
	if store == nil || journal == nil {
		return 0, nil
	}
	n := 0
	err := journal.Replay(ctx, func(rec Record) {
		store.Set(rec.Key, rec.Value)
		n++
	})
	if err != nil {
		return n, fmt.Errorf("replay trend journal: %w", err)
	}
	logger.Infof("trend store hydrated: %d records, %d keys", n, store.Len())
	return n, nil
}

// NopJournal discards writes and replays nothing.
type NopJournal struct{}

func (NopJournal) Append(context.Context, Record) error        { return nil }
func (NopJournal) Replay(context.Context, func(Record)) error { return nil }
func (NopJournal) Close() error                               { return nil }
