package poller

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tiplinehq/tipline/internal/command"
	"github.com/tiplinehq/tipline/internal/identity"
	"github.com/tiplinehq/tipline/internal/ledger"
	"github.com/tiplinehq/tipline/internal/social"
	"github.com/tiplinehq/tipline/internal/transfer"
	"github.com/tiplinehq/tipline/pkg/common/config"
	"github.com/tiplinehq/tipline/pkg/common/enum"
	"github.com/tiplinehq/tipline/pkg/common/logger"
	"github.com/tiplinehq/tipline/pkg/events"
	"github.com/tiplinehq/tipline/pkg/model"
	"github.com/tiplinehq/tipline/pkg/repository"
	"github.com/tiplinehq/tipline/pkg/retry"
	"github.com/tiplinehq/tipline/pkg/store/cursorstore"
)

// Deps groups the shared collaborators injected into both pollers.
type Deps struct {
	ChainName    string
	Keywords     []string
	Social       social.Reader
	Parser       *command.Parser
	Resolver     *identity.Resolver
	Recorder     *ledger.Recorder
	Executor     *transfer.Executor
	Cursors      cursorstore.Store
	Campaigns    repository.Repository[model.Campaign]
	Emitter      events.Emitter
	FailureQueue FailureQueue
	Config       config.PollerItem
}

// BasePoller holds the state and cycle loop shared by both poller kinds.
// One cycle runs to completion before the next tick fires; cycles never
// overlap within a process.
type BasePoller struct {
	ctx    context.Context
	cancel context.CancelFunc
	kind   enum.PollerKind
	logger *slog.Logger
	stats  Stats

	deps Deps
}

func newBasePoller(ctx context.Context, deps Deps, kind enum.PollerKind) *BasePoller {
	ctx, cancel := context.WithCancel(ctx)
	log := logger.With(
		slog.String("poller", strings.ToUpper(string(kind))),
		slog.String("chain", deps.ChainName),
	)

	return &BasePoller{
		ctx:    ctx,
		cancel: cancel,
		kind:   kind,
		logger: log,
		deps:   deps,
	}
}

func (bp *BasePoller) Name() string {
	return string(bp.kind)
}

func (bp *BasePoller) Stats() StatsSnapshot {
	return bp.stats.Snapshot()
}

// Stop stops the poller loop.
func (bp *BasePoller) Stop() {
	bp.cancel()
	bp.logger.Info("Poller stopped")
}

// run executes the given cycle repeatedly at PollInterval. A failing cycle
// is retried with backoff within the tick, then surrendered until the next
// tick; the error never escapes the loop.
func (bp *BasePoller) run(cycle func() (int, error)) {
	ticker := time.NewTicker(bp.deps.Config.PollInterval)
	defer ticker.Stop()

	const retryInterval = 2 * time.Second

	for {
		select {
		case <-bp.ctx.Done():
			bp.logger.Info("Context done, stopping poller loop")
			return
		case <-ticker.C:
			var processed int
			err := retry.Exponential(func() error {
				var cycleErr error
				processed, cycleErr = cycle()
				return cycleErr
			}, retry.ExponentialConfig{
				InitialInterval: retryInterval,
				MaxElapsedTime:  bp.deps.Config.PollInterval * 4,
				OnRetry: func(err error, next time.Duration) {
					bp.logger.Debug("Retrying cycle", "err", err, "next_retry_in", next)
				},
			})

			bp.stats.cycleDone(processed, err != nil)
			if err != nil {
				bp.logger.Error("Cycle error", "err", err)
				if bp.deps.Emitter != nil {
					_ = bp.deps.Emitter.EmitError(bp.deps.ChainName, err)
				}
				continue
			}

			if processed > 0 {
				bp.logger.Info("Cycle complete", "processed", processed)
			}
		}
	}
}

// loadCursor fetches the persisted watermark for key ("" when none).
func (bp *BasePoller) loadCursor(key string) string {
	cursor, err := bp.deps.Cursors.GetCursor(key)
	if err != nil {
		bp.logger.Warn("Cannot load cursor, rescanning recent window", "key", key, "err", err)
		return ""
	}
	return cursor
}

// advanceCursor persists the new watermark if it moved forward.
func (bp *BasePoller) advanceCursor(key, current, candidate string) string {
	if candidate == "" || social.CompareIDs(candidate, current) <= 0 {
		return current
	}
	if err := bp.deps.Cursors.SaveCursor(key, candidate); err != nil {
		bp.logger.Warn("Cannot persist cursor", "key", key, "err", err)
	}
	return candidate
}

// record writes a ledger row and emits it; a store failure is an
// infrastructure error for the caller to propagate, so the event is
// naturally retried next cycle.
func (bp *BasePoller) record(rec *model.TransactionRecord) error {
	inserted, err := bp.deps.Recorder.Record(bp.ctx, rec)
	if err != nil {
		bp.enqueueFailure(rec.SourceEventID)
		return err
	}
	if inserted {
		bp.emitRecord(rec)
	}
	return nil
}

func (bp *BasePoller) emitRecord(rec *model.TransactionRecord) {
	if bp.deps.Emitter == nil {
		return
	}
	if err := bp.deps.Emitter.EmitRecord(bp.deps.ChainName, rec); err != nil {
		bp.logger.Warn("Failed to emit record", "source_event_id", rec.SourceEventID, "err", err)
	}
}

func (bp *BasePoller) enqueueFailure(eventID string) {
	if bp.deps.FailureQueue == nil {
		return
	}
	if err := bp.deps.FailureQueue.EnqueueFailedEvent(bp.ctx, bp.Name(), eventID); err != nil {
		bp.logger.Warn("Failed to enqueue failed event", "event_id", eventID, "err", err)
	}
}
