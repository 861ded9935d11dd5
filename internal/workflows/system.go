package workflows

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/pkg/pagination"
)

// System defines the public contract for workflow domain operations.
type System interface {
	Handler() *Handler

	Create(ctx context.Context, organizationID uuid.UUID, cmd CreateCommand) (*Workflow, error)

	List(
		ctx context.Context,
		organizationID uuid.UUID,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Workflow], error)

	// Find loads a workflow, scoped to organizationID when it is non-nil.
	Find(ctx context.Context, id uuid.UUID, organizationID *uuid.UUID) (*Workflow, error)
}
