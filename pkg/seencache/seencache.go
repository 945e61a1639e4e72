package seencache

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/tiplinehq/tipline/pkg/common/logger"
	"github.com/tiplinehq/tipline/pkg/model"
	"github.com/tiplinehq/tipline/pkg/repository"
)

// Config holds dependencies and configuration for the seen-event cache.
type Config struct {
	RecordRepo        repository.Repository[model.TransactionRecord]
	ExpectedItems     uint    // estimated number of recorded events
	FalsePositiveRate float64 // desired false positive rate
	BatchSize         int     // batch size for paginated warm loads
}

// Cache is a bloom prefilter over already-recorded source event ids. A
// negative answer is authoritative (the id was never added), so the caller
// can skip the DB existence probe. A positive answer may be a false
// positive and MUST be confirmed against the ledger before skipping an
// event.
type Cache struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	config Config
}

func New(cfg Config) *Cache {
	if cfg.ExpectedItems == 0 {
		cfg.ExpectedItems = 100_000
	}
	if cfg.FalsePositiveRate == 0 {
		cfg.FalsePositiveRate = 0.01
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1000
	}
	return &Cache{
		filter: bloom.NewWithEstimates(cfg.ExpectedItems, cfg.FalsePositiveRate),
		config: cfg,
	}
}

// WarmLoad seeds the filter from existing ledger rows in batches.
func (c *Cache) WarmLoad(ctx context.Context) error {
	offset := 0
	total := 0

	for {
		records, err := c.config.RecordRepo.Find(ctx, repository.FindOptions{
			Select: repository.Select("source_event_id"),
			Limit:  uint(c.config.BatchSize),
			Offset: uint(offset),
		})
		if err != nil {
			return err
		}
		if len(records) == 0 {
			break
		}

		c.mu.Lock()
		for _, rec := range records {
			c.filter.AddString(rec.SourceEventID)
		}
		c.mu.Unlock()

		total += len(records)
		offset += c.config.BatchSize
		if len(records) < c.config.BatchSize {
			break
		}
	}

	logger.Info("Seen-event cache warmed", "records", total)
	return nil
}

func (c *Cache) Add(sourceEventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter.AddString(sourceEventID)
}

// MaybeSeen reports whether the id might have been recorded. False means
// definitely not recorded.
func (c *Cache) MaybeSeen(sourceEventID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter.TestString(sourceEventID)
}
