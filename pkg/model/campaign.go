package model

import (
	"github.com/shopspring/decimal"

	"github.com/tiplinehq/tipline/pkg/common/enum"
)

// Campaign is a funding program: users reply to SourceEventID and receive
// GrantAmount each, up to MaxParticipants.
type Campaign struct {
	BaseModel
	Name          string `gorm:"type:varchar(128)"                                          json:"name"`
	SourceEventID string `gorm:"not null;type:varchar(64);uniqueIndex:idx_unique_campaign_event" json:"source_event_id"`
	GrantAmount   decimal.Decimal     `gorm:"type:numeric(30,18);not null" json:"grant_amount"`
	// MaxParticipants nil means unlimited. Checked before execution, not
	// atomically reserved; see the recorder for the accepted overshoot.
	MaxParticipants     *int                `gorm:"type:int"                        json:"max_participants"`
	CurrentParticipants int                 `gorm:"not null;default:0"              json:"current_participants"`
	BudgetSpent         decimal.Decimal     `gorm:"type:numeric(30,18);not null;default:0" json:"budget_spent"`
	Status              enum.CampaignStatus `gorm:"type:varchar(16);not null;index" json:"status"`
}

// HasCapacity reports whether another grant fits under MaxParticipants.
func (c *Campaign) HasCapacity() bool {
	if c.MaxParticipants == nil {
		return true
	}
	return c.CurrentParticipants < *c.MaxParticipants
}
