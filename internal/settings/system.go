package settings

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/clusters"
)

// System defines the organization settings contract.
type System interface {
	Handler() *Handler
	Get(ctx context.Context, organizationID uuid.UUID) (*Settings, error)
	Update(ctx context.Context, organizationID uuid.UUID, cmd UpdateCommand) (*Settings, error)
	ClusterConfig(ctx context.Context, organizationID uuid.UUID) (clusters.Config, error)
	AutoDispatch(ctx context.Context, organizationID uuid.UUID) (bool, error)
}
