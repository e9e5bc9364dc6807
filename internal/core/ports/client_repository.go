package ports

import (
	"context"

	"github.com/clientcheck/trust-system/internal/core/domain"
)

// ClientRepository persists client profiles and their derived aggregate.
type ClientRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.ClientProfile, error)
	Create(ctx context.Context, c *domain.ClientProfile) (*domain.ClientProfile, error)

	// UpdateAggregate overwrites the derived trust fields. Only the trust
	// aggregator calls this; last writer wins.
	UpdateAggregate(ctx context.Context, clientID int64, agg domain.ClientAggregate) error

	// ListIDs returns all non-deleted client ids. Used by the out-of-band
	// repair sweep only.
	ListIDs(ctx context.Context) ([]int64, error)
}
