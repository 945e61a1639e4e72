package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiplinehq/tipline/pkg/model"
	"github.com/tiplinehq/tipline/pkg/repository"
)

// fakeProfileRepo returns canned profiles keyed by handle or tag.
type fakeProfileRepo struct {
	repository.Repository[model.Profile]
	profiles []*model.Profile
}

func (f *fakeProfileRepo) FindOne(ctx context.Context, options repository.FindOptions) (*model.Profile, error) {
	handle, _ := options.Where["social_handle"].(string)
	tag, _ := options.OrWhere["pay_tag"].(string)

	var matches []*model.Profile
	for _, p := range f.profiles {
		if p.SocialHandle == handle || (p.PayTag != "" && p.PayTag == tag) {
			matches = append(matches, p)
		}
	}
	if len(matches) != 1 {
		return nil, repository.ErrNotFound
	}
	return matches[0], nil
}

func TestResolve_ByHandle(t *testing.T) {
	r := NewResolver(&fakeProfileRepo{profiles: []*model.Profile{
		{SocialHandle: "alice", ChainAddress: "0xAAA"},
	}})

	profile, err := r.Resolve(context.Background(), "@Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.SocialHandle)
}

func TestResolve_ByPayTag(t *testing.T) {
	r := NewResolver(&fakeProfileRepo{profiles: []*model.Profile{
		{SocialHandle: "alice", PayTag: "alicepay", WalletAddress: "0xBBB"},
	}})

	profile, err := r.Resolve(context.Background(), "alicepay")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.SocialHandle)
}

func TestResolve_NotFound(t *testing.T) {
	r := NewResolver(&fakeProfileRepo{})

	_, err := r.Resolve(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestResolve_AmbiguousFailsSafe(t *testing.T) {
	r := NewResolver(&fakeProfileRepo{profiles: []*model.Profile{
		{SocialHandle: "dup", ChainAddress: "0x1"},
		{SocialHandle: "other", PayTag: "dup", ChainAddress: "0x2"},
	}})

	_, err := r.Resolve(context.Background(), "dup")
	assert.ErrorIs(t, err, ErrProfileNotFound, "two matches must not guess")
}

func TestResolveAddress_PrefersChainAddress(t *testing.T) {
	r := NewResolver(&fakeProfileRepo{profiles: []*model.Profile{
		{SocialHandle: "alice", ChainAddress: "0xCHAIN", WalletAddress: "0xGENERIC"},
	}})

	_, addr, err := r.ResolveAddress(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "0xCHAIN", addr)
}

func TestResolveAddress_FallsBackToWallet(t *testing.T) {
	r := NewResolver(&fakeProfileRepo{profiles: []*model.Profile{
		{SocialHandle: "alice", WalletAddress: "0xGENERIC"},
	}})

	_, addr, err := r.ResolveAddress(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "0xGENERIC", addr)
}

func TestResolveAddress_NoAddress(t *testing.T) {
	r := NewResolver(&fakeProfileRepo{profiles: []*model.Profile{
		{SocialHandle: "alice"},
	}})

	_, _, err := r.ResolveAddress(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrNoPayAddress)
}
