package poller

import (
	"context"
	"errors"
	"fmt"

	"github.com/tiplinehq/tipline/internal/ledger"
	"github.com/tiplinehq/tipline/internal/social"
	"github.com/tiplinehq/tipline/internal/transfer"
	"github.com/tiplinehq/tipline/pkg/common/enum"
	"github.com/tiplinehq/tipline/pkg/model"
	"github.com/tiplinehq/tipline/pkg/repository"
)

// CampaignPoller watches the reply threads of active campaign announcements
// and grants the configured amount to each new participant, funded from the
// operator source account, until the campaign runs out of seats.
type CampaignPoller struct {
	*BasePoller
	cursors map[string]string
}

func NewCampaignPoller(ctx context.Context, deps Deps) *CampaignPoller {
	return &CampaignPoller{
		BasePoller: newBasePoller(ctx, deps, enum.PollerKindCampaign),
		cursors:    make(map[string]string),
	}
}

func (cp *CampaignPoller) Start() {
	cp.logger.Info("Starting campaign poller")
	go cp.run(cp.pollCampaigns)
}

func (cp *CampaignPoller) pollCampaigns() (int, error) {
	campaigns, err := cp.deps.Campaigns.Find(cp.ctx, repository.FindOptions{
		Where: repository.WhereType{"status": enum.CampaignStatusActive},
	})
	if err != nil {
		return 0, fmt.Errorf("list active campaigns: %w", err)
	}

	processed := 0
	for _, campaign := range campaigns {
		n, err := cp.pollCampaign(campaign)
		processed += n
		if err != nil {
			return processed, err
		}
	}
	return processed, nil
}

func (cp *CampaignPoller) pollCampaign(campaign *model.Campaign) (int, error) {
	if !campaign.HasCapacity() {
		cp.logger.Info("Campaign at capacity, no further grants",
			"campaign", campaign.Name,
			"participants", campaign.CurrentParticipants,
		)
		return 0, nil
	}

	key := campaignCursorKey(campaign)
	cursor, ok := cp.cursors[key]
	if !ok {
		cursor = cp.loadCursor(key)
	}

	replies, err := cp.deps.Social.Replies(cp.ctx, campaign.SourceEventID, cursor, cp.deps.Config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch replies for campaign %s: %w", campaign.Name, err)
	}

	granted := 0
	for _, ev := range replies {
		if !campaign.HasCapacity() {
			cp.logger.Info("Campaign filled mid-batch", "campaign", campaign.Name)
			break
		}
		ok, err := cp.processReply(campaign, ev)
		if err != nil {
			cp.logger.Error("Reply processing aborted", "event_id", ev.ID, "err", err)
			return granted, err
		}
		if ok {
			granted++
		}
		cursor = cp.advanceCursor(key, cursor, ev.ID)
	}
	cp.cursors[key] = cursor
	return granted, nil
}

// processReply grants the campaign amount to one reply author. True means
// the replier was paid and the campaign counters were advanced.
func (cp *CampaignPoller) processReply(campaign *model.Campaign, ev social.Event) (bool, error) {
	if ev.IsRepost {
		return false, nil
	}

	recorded, err := cp.deps.Recorder.AlreadyRecorded(cp.ctx, ev.ID)
	if err != nil {
		return false, err
	}
	if recorded {
		return false, nil
	}

	recipient, addr, err := cp.deps.Resolver.ResolveAddress(cp.ctx, ev.AuthorHandle)
	if err != nil {
		reason, ok := identityReason(err, ledger.ReasonRecipientNotFound)
		if !ok {
			return false, fmt.Errorf("resolve participant %s: %w", ev.AuthorHandle, err)
		}
		rec := ledger.Skipped(ev.ID, cp.deps.ChainName, enum.TxKindGrant, reason)
		rec.CampaignID = &campaign.ID
		return false, cp.record(rec)
	}

	amountBase := cp.deps.Executor.ToBaseUnits(campaign.GrantAmount)
	ref := fmt.Sprintf("campaign:%s", campaign.SourceEventID)
	res, execErr := cp.deps.Executor.Grant(cp.ctx, addr, amountBase, ref)

	var rec *model.TransactionRecord
	switch {
	case execErr != nil && errors.Is(execErr, transfer.ErrFeeLegFailed):
		// The replier was paid, only the fee leg died. Retrying would
		// double-pay them, so the partial state is recorded as its own
		// status with the recipient leg's hash.
		reason := fmt.Sprintf("%s: %v", ledger.ReasonFeeLegFailed, execErr)
		rec = &model.TransactionRecord{
			SourceEventID: ev.ID,
			Chain:         cp.deps.ChainName,
			TxHash:        res.TxHash,
			ReceiverID:    &recipient.ID,
			Amount:        cp.deps.Executor.FromBaseUnits(res.Amount),
			Fee:           cp.deps.Executor.FromBaseUnits(res.Fee),
			Kind:          enum.TxKindGrant,
			Status:        enum.TxStatusPartial,
			ErrorReason:   &reason,
		}
	case execErr != nil:
		reason := fmt.Sprintf("%s: %v", ledger.ReasonTransferFailed, execErr)
		rec = ledger.Failed(ev.ID, cp.deps.ChainName, enum.TxKindGrant, campaign.GrantAmount, reason)
	default:
		rec = &model.TransactionRecord{
			SourceEventID: ev.ID,
			Chain:         cp.deps.ChainName,
			TxHash:        res.TxHash,
			ReceiverID:    &recipient.ID,
			Amount:        cp.deps.Executor.FromBaseUnits(res.Amount),
			Fee:           cp.deps.Executor.FromBaseUnits(res.Fee),
			Kind:          enum.TxKindGrant,
			Status:        enum.TxStatusCompleted,
		}
	}
	rec.CampaignID = &campaign.ID

	inserted, err := cp.deps.Recorder.RecordGrant(cp.ctx, rec, campaign)
	if err != nil {
		cp.enqueueFailure(rec.SourceEventID)
		return false, err
	}
	if inserted {
		cp.emitRecord(rec)
	}

	// A partial grant still paid the replier, so it consumes a seat just
	// like a completed one.
	paid := inserted && rec.Status != enum.TxStatusFailed
	if paid {
		campaign.CurrentParticipants++
		campaign.BudgetSpent = campaign.BudgetSpent.Add(rec.Amount)
	}
	return paid, nil
}

func campaignCursorKey(campaign *model.Campaign) string {
	return "campaign_" + campaign.SourceEventID
}
