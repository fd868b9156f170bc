package session

import (
	"context"

	"github.com/retribution/retctl/internal/constants"
	"github.com/retribution/retctl/internal/partials"
)

// PartialFetcher loads an HTML fragment by name.
type PartialFetcher interface {
	FetchPartial(ctx context.Context, name string) (string, error)
}

// PartialMounter mounts a mode by fetching its partial from the backend and
// using the fragment's heading as the screen title.
type PartialMounter struct {
	fetcher PartialFetcher
}

// NewPartialMounter creates a mounter backed by fetcher.
func NewPartialMounter(fetcher PartialFetcher) *PartialMounter {
	return &PartialMounter{fetcher: fetcher}
}

// Mount fetches the partial for s. Validating has no partial.
func (p *PartialMounter) Mount(ctx context.Context, s State) (string, error) {
	var name string
	switch s {
	case Unauthenticated:
		name = constants.PartialLogin
	case Control:
		name = constants.PartialControl
	default:
		return "", nil
	}

	fragment, err := p.fetcher.FetchPartial(ctx, name)
	if err != nil {
		return "", err
	}
	return partials.Title(fragment), nil
}
