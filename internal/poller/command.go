package poller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tiplinehq/tipline/internal/command"
	"github.com/tiplinehq/tipline/internal/identity"
	"github.com/tiplinehq/tipline/internal/ledger"
	"github.com/tiplinehq/tipline/internal/social"
	"github.com/tiplinehq/tipline/internal/transfer"
	"github.com/tiplinehq/tipline/pkg/common/constant"
	"github.com/tiplinehq/tipline/pkg/common/enum"
	"github.com/tiplinehq/tipline/pkg/model"
)

const cursorKeyCommand = "command"

// CommandPoller watches the public timeline for p2p transfer commands
// addressed to the bot and executes them from the commanding user's own
// custodial account.
type CommandPoller struct {
	*BasePoller
	cursor string
}

func NewCommandPoller(ctx context.Context, deps Deps) *CommandPoller {
	cp := &CommandPoller{BasePoller: newBasePoller(ctx, deps, enum.PollerKindCommand)}
	cp.cursor = cp.loadCursor(cursorKeyCommand)
	return cp
}

func (cp *CommandPoller) Start() {
	cp.logger.Info("Starting command poller",
		"query", cp.deps.Config.SearchQuery,
		"cursor", cp.cursor,
	)
	go cp.run(cp.pollCommands)
}

// pollCommands runs one cycle: fetch new events past the watermark, process
// each independently, advance the watermark past everything seen. Fetch
// errors are cycle-level (nothing recorded, everything naturally retried);
// per-event errors are converted to ledger rows and never abort the rest.
func (cp *CommandPoller) pollCommands() (int, error) {
	evs, err := cp.deps.Social.Search(cp.ctx, cp.deps.Config.SearchQuery, cp.cursor, cp.deps.Config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("search commands: %w", err)
	}

	processed := 0
	for _, ev := range evs {
		ok, err := cp.processEvent(ev)
		if err != nil {
			// Infra failure mid-event: leave the event unrecorded so the
			// next cycle retries it, and stop advancing past it.
			cp.logger.Error("Event processing aborted", "event_id", ev.ID, "err", err)
			return processed, err
		}
		if ok {
			processed++
		}
		cp.cursor = cp.advanceCursor(cursorKeyCommand, cp.cursor, ev.ID)
	}
	return processed, nil
}

// processEvent handles one social event end to end. The returned bool is
// true only when at least one transfer completed.
func (cp *CommandPoller) processEvent(ev social.Event) (bool, error) {
	if ev.IsRepost {
		return false, nil
	}
	if !cp.mentionsKeyword(ev.Text) {
		return false, nil
	}

	// The bare event id keys whole-event rows (skips, pre-flight failures).
	// Per-recipient legs are keyed separately and deduped inside executeLegs,
	// so a partially recorded batch is not mistaken for a finished one.
	recorded, err := cp.deps.Recorder.AlreadyRecorded(cp.ctx, ev.ID)
	if err != nil {
		return false, err
	}
	if recorded {
		return false, nil
	}

	// A quote-repost that merely mentions the asset is not a command; it
	// needs an explicit imperative to be processed.
	if ev.IsQuote() && !cp.deps.Parser.HasImperative(ev.Text) {
		rec := ledger.Skipped(ev.ID, cp.deps.ChainName, enum.TxKindP2PCommand, ledger.ReasonQuoteNotCommand)
		return false, cp.record(rec)
	}

	intent, ok := cp.deps.Parser.Parse(ev.Text, ev.AuthorHandle)
	if !ok {
		rec := ledger.Skipped(ev.ID, cp.deps.ChainName, enum.TxKindP2PCommand, ledger.ReasonNotACommand)
		return false, cp.record(rec)
	}

	sender, senderAddr, err := cp.deps.Resolver.ResolveAddress(cp.ctx, ev.AuthorHandle)
	if err != nil {
		reason, ok := identityReason(err, ledger.ReasonSenderNotFound)
		if !ok {
			return false, fmt.Errorf("resolve sender %s: %w", ev.AuthorHandle, err)
		}
		rec := ledger.Skipped(ev.ID, cp.deps.ChainName, enum.TxKindP2PCommand, reason)
		return false, cp.record(rec)
	}

	legs := splitLegs(cp.deps.Executor, intent)
	total := decimal.Zero
	for _, leg := range legs {
		total = total.Add(leg)
	}

	balance, err := cp.deps.Executor.BalanceOf(cp.ctx, senderAddr)
	if err != nil {
		return false, fmt.Errorf("balance of sender %s: %w", ev.AuthorHandle, err)
	}
	if balance.LessThan(total) {
		reason := fmt.Sprintf("%s: balance %s, required %s",
			ledger.ReasonInsufficientFunds,
			cp.deps.Executor.FromBaseUnits(balance),
			cp.deps.Executor.FromBaseUnits(total),
		)
		rec := ledger.Failed(ev.ID, cp.deps.ChainName, enum.TxKindP2PCommand,
			cp.deps.Executor.FromBaseUnits(total), reason)
		rec.TxHash = constant.TxHashInsufficient
		rec.SenderID = &sender.ID
		return false, cp.record(rec)
	}

	return cp.executeLegs(ev, intent, sender, senderAddr, legs)
}

// executeLegs runs one transfer per recipient. An unresolved recipient
// skips only that leg; the others still proceed. Legs whose ledger row
// already exists are skipped, so a retried event only replays the legs a
// previous cycle failed to record.
func (cp *CommandPoller) executeLegs(
	ev social.Event,
	intent *command.Intent,
	sender *model.Profile,
	senderAddr string,
	legs []decimal.Decimal,
) (bool, error) {
	anyCompleted := false
	for i, tag := range intent.RecipientTags {
		legKey := ledger.LegKey(ev.ID, i)

		recorded, err := cp.deps.Recorder.AlreadyRecorded(cp.ctx, legKey)
		if err != nil {
			return anyCompleted, err
		}
		if recorded {
			continue
		}

		recipient, recipientAddr, err := cp.deps.Resolver.ResolveAddress(cp.ctx, tag)
		if err != nil {
			reason, ok := identityReason(err, ledger.ReasonRecipientNotFound)
			if !ok {
				return anyCompleted, fmt.Errorf("resolve recipient %s: %w", tag, err)
			}
			rec := ledger.Skipped(legKey, cp.deps.ChainName, enum.TxKindP2PCommand, reason)
			if err := cp.record(rec); err != nil {
				return anyCompleted, err
			}
			continue
		}

		memo := fmt.Sprintf("tipline:%s", ev.ID)
		res, err := cp.deps.Executor.TransferFrom(cp.ctx, senderAddr, recipientAddr, legs[i], memo)
		rec := cp.buildLegRecord(legKey, sender, recipient, legs[i], res, err)
		if err := cp.record(rec); err != nil {
			return anyCompleted, err
		}
		if rec.Status == enum.TxStatusCompleted {
			anyCompleted = true
		}
	}
	return anyCompleted, nil
}

func (cp *CommandPoller) buildLegRecord(
	legKey string,
	sender, recipient *model.Profile,
	amountBase decimal.Decimal,
	res *transfer.Result,
	execErr error,
) *model.TransactionRecord {
	if execErr != nil && errors.Is(execErr, transfer.ErrFeeLegFailed) {
		reason := fmt.Sprintf("%s: %v", ledger.ReasonFeeLegFailed, execErr)
		return &model.TransactionRecord{
			SourceEventID: legKey,
			Chain:         cp.deps.ChainName,
			TxHash:        res.TxHash,
			SenderID:      &sender.ID,
			ReceiverID:    &recipient.ID,
			Amount:        cp.deps.Executor.FromBaseUnits(res.Amount),
			Fee:           cp.deps.Executor.FromBaseUnits(res.Fee),
			Kind:          enum.TxKindP2PCommand,
			Status:        enum.TxStatusPartial,
			ErrorReason:   &reason,
		}
	}
	if execErr != nil {
		reason := fmt.Sprintf("%s: %v", ledger.ReasonTransferFailed, execErr)
		rec := ledger.Failed(legKey, cp.deps.ChainName, enum.TxKindP2PCommand,
			cp.deps.Executor.FromBaseUnits(amountBase), reason)
		rec.SenderID = &sender.ID
		rec.ReceiverID = &recipient.ID
		return rec
	}

	return &model.TransactionRecord{
		SourceEventID: legKey,
		Chain:         cp.deps.ChainName,
		TxHash:        res.TxHash,
		SenderID:      &sender.ID,
		ReceiverID:    &recipient.ID,
		Amount:        cp.deps.Executor.FromBaseUnits(res.Amount),
		Fee:           cp.deps.Executor.FromBaseUnits(res.Fee),
		Kind:          enum.TxKindP2PCommand,
		Status:        enum.TxStatusCompleted,
	}
}

// mentionsKeyword re-checks the bot trigger locally. The search query
// already filters server-side; this guards against overly broad queries.
// No configured keywords means the query is trusted as-is.
func (cp *CommandPoller) mentionsKeyword(text string) bool {
	if len(cp.deps.Keywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range cp.deps.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// identityReason maps a resolver failure to a ledger skip reason. Infra
// errors are not identity failures and must abort the event instead of
// producing a row, so the second return is false for them.
func identityReason(err error, notFound string) (string, bool) {
	switch {
	case errors.Is(err, identity.ErrNoPayAddress):
		return ledger.ReasonNoPayAddress, true
	case errors.Is(err, identity.ErrProfileNotFound):
		return notFound, true
	default:
		return "", false
	}
}

// splitLegs converts the intent amount to per-recipient base-unit amounts.
// With "each" every recipient gets the full amount; otherwise the amount is
// split evenly with the floor remainder going to the first recipient.
func splitLegs(ex *transfer.Executor, intent *command.Intent) []decimal.Decimal {
	n := len(intent.RecipientTags)
	gross := ex.ToBaseUnits(intent.Amount)

	legs := make([]decimal.Decimal, n)
	if intent.PerRecipient {
		for i := range legs {
			legs[i] = gross
		}
		return legs
	}

	share := gross.DivRound(decimal.NewFromInt(int64(n)), 8).Floor()
	remainder := gross.Sub(share.Mul(decimal.NewFromInt(int64(n))))
	for i := range legs {
		legs[i] = share
	}
	legs[0] = legs[0].Add(remainder)
	return legs
}
