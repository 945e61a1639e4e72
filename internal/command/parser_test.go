package command

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	return NewParser([]string{"tipline", "tipline_bot"}, decimal.NewFromInt(100))
}

func TestParse_SimpleCommand(t *testing.T) {
	p := newTestParser()

	intent, ok := p.Parse("@tipline send $5 to @alice on base", "bob")
	require.True(t, ok)
	assert.True(t, intent.Amount.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, []string{"alice"}, intent.RecipientTags)
	assert.False(t, intent.PerRecipient)
}

func TestParse_EachKeyword(t *testing.T) {
	p := newTestParser()

	intent, ok := p.Parse("@tipline pay @a $1 each", "bob")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, intent.RecipientTags)
	assert.True(t, intent.PerRecipient)
}

func TestParse_NotACommand(t *testing.T) {
	p := newTestParser()

	_, ok := p.Parse("hello world", "bob")
	assert.False(t, ok)
}

func TestParse_NonPositiveAmount(t *testing.T) {
	p := newTestParser()

	_, ok := p.Parse("@tipline send $0 to @a", "bob")
	assert.False(t, ok)
}

func TestParse_ExceedsMax(t *testing.T) {
	p := newTestParser()

	_, ok := p.Parse("@tipline send $999999 to @a", "bob")
	assert.False(t, ok)
}

func TestParse_DecimalAmount(t *testing.T) {
	p := newTestParser()

	intent, ok := p.Parse("tip @carol $2.50", "bob")
	require.True(t, ok)
	assert.True(t, intent.Amount.Equal(decimal.RequireFromString("2.5")))
}

func TestParse_ExcludesBotHandlesCaseInsensitive(t *testing.T) {
	p := newTestParser()

	_, ok := p.Parse("@TipLine @TIPLINE_BOT send $5", "bob")
	assert.False(t, ok, "only reserved handles mentioned")
}

func TestParse_ExcludesAuthor(t *testing.T) {
	p := newTestParser()

	intent, ok := p.Parse("@tipline send $5 to @bob and @alice", "Bob")
	require.True(t, ok)
	assert.Equal(t, []string{"alice"}, intent.RecipientTags)
}

func TestParse_MultiRecipientDeduped(t *testing.T) {
	p := newTestParser()

	intent, ok := p.Parse("send $9 to @a @b @a @c", "bob")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, intent.RecipientTags)
}

func TestParse_Deterministic(t *testing.T) {
	p := newTestParser()

	first, ok1 := p.Parse("@tipline send $5 to @alice", "bob")
	second, ok2 := p.Parse("@tipline send $5 to @alice", "bob")
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, first, second)
}

func TestHasImperative(t *testing.T) {
	p := newTestParser()

	assert.True(t, p.HasImperative("send $5 to @a"))
	assert.True(t, p.HasImperative("please TIP @a $1"))
	assert.False(t, p.HasImperative("wow look at this $5 giveaway @a"))
}
