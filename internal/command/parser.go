package command

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var (
	amountRe  = regexp.MustCompile(`\$(\d+(?:\.\d+)?)`)
	mentionRe = regexp.MustCompile(`@([A-Za-z0-9_]{1,32})`)
	verbRe    = regexp.MustCompile(`(?i)\b(send|tip|pay|transfer)\b`)
	eachRe    = regexp.MustCompile(`(?i)\beach\b`)
)

// Intent is the parsed form of a transfer command. It lives only for one
// processing pass and is never persisted.
type Intent struct {
	// Amount is the user-entered decimal, 0 < Amount <= the configured max.
	Amount decimal.Decimal
	// RecipientTags are the mentioned handles, lowercased, deduplicated,
	// with the bot's own handles and the author excluded.
	RecipientTags []string
	// PerRecipient is true when the "each" keyword is present: Amount goes
	// to every recipient. When false the amount is split evenly across
	// recipients (floor split in smallest units, remainder to the first).
	PerRecipient bool
}

// Parser turns free-text posts into Intents. Pure and deterministic: same
// text always yields the same result, matching is case-insensitive.
type Parser struct {
	botHandles map[string]struct{}
	maxAmount  decimal.Decimal
}

func NewParser(botHandles []string, maxAmount decimal.Decimal) *Parser {
	reserved := make(map[string]struct{}, len(botHandles))
	for _, h := range botHandles {
		reserved[strings.ToLower(strings.TrimPrefix(h, "@"))] = struct{}{}
	}
	return &Parser{
		botHandles: reserved,
		maxAmount:  maxAmount,
	}
}

// Parse extracts a transfer intent from text authored by author. It returns
// (nil, false) when the text is not a command: no currency amount, a
// non-positive or over-limit amount, or no recipients left after excluding
// the bot's handles and the author.
func (p *Parser) Parse(text, author string) (*Intent, bool) {
	m := amountRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}

	amount, err := decimal.NewFromString(m[1])
	if err != nil {
		return nil, false
	}
	if !amount.IsPositive() || amount.GreaterThan(p.maxAmount) {
		return nil, false
	}

	authorTag := strings.ToLower(strings.TrimPrefix(author, "@"))
	mentions := mentionRe.FindAllStringSubmatch(text, -1)
	tags := make([]string, 0, len(mentions))
	for _, mention := range mentions {
		tag := strings.ToLower(mention[1])
		if _, reserved := p.botHandles[tag]; reserved {
			continue
		}
		if tag == authorTag && authorTag != "" {
			continue
		}
		tags = append(tags, tag)
	}
	tags = lo.Uniq(tags)
	if len(tags) == 0 {
		return nil, false
	}

	return &Intent{
		Amount:        amount,
		RecipientTags: tags,
		PerRecipient:  eachRe.MatchString(text),
	}, true
}

// HasImperative reports whether text contains an explicit transfer verb.
// Quote-reposts without one are filtered out before parsing: mentioning the
// asset while quoting someone else's command is not itself a command.
func (p *Parser) HasImperative(text string) bool {
	return verbRe.MatchString(text)
}
