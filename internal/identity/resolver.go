package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tiplinehq/tipline/pkg/model"
	"github.com/tiplinehq/tipline/pkg/repository"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoPayAddress    = errors.New("profile has no usable payment address")
)

// Resolver maps a social handle or payment tag to a registered profile.
type Resolver struct {
	profiles repository.Repository[model.Profile]
}

func NewResolver(profiles repository.Repository[model.Profile]) *Resolver {
	return &Resolver{profiles: profiles}
}

// Resolve looks up the unique profile whose social handle or pay tag equals
// handleOrTag. Zero or multiple matches both fail with ErrProfileNotFound;
// the resolver never guesses between ambiguous identities.
func (r *Resolver) Resolve(ctx context.Context, handleOrTag string) (*model.Profile, error) {
	tag := strings.ToLower(strings.TrimPrefix(handleOrTag, "@"))
	if tag == "" {
		return nil, ErrProfileNotFound
	}

	profile, err := r.profiles.FindOne(ctx, repository.FindOptions{
		Where:   repository.WhereType{"social_handle": tag},
		OrWhere: repository.WhereType{"pay_tag": tag},
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, tag)
		}
		return nil, fmt.Errorf("resolve %s: %w", tag, err)
	}
	return profile, nil
}

// ResolveAddress resolves the profile and its payment address in one step.
// A profile without any usable address fails with ErrNoPayAddress.
func (r *Resolver) ResolveAddress(ctx context.Context, handleOrTag string) (*model.Profile, string, error) {
	profile, err := r.Resolve(ctx, handleOrTag)
	if err != nil {
		return nil, "", err
	}
	address := profile.PayAddress()
	if address == "" {
		return nil, "", fmt.Errorf("%w: %s", ErrNoPayAddress, handleOrTag)
	}
	return profile, address, nil
}
