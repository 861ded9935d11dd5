package steps

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/internal/faults"
	"github.com/JaimeStill/intent/pkg/repository"
)

const advanceQuery = `
	UPDATE workflows
	SET state = $1, updated_at = NOW()
	WHERE id = $2 AND state = $3`

// Validate fails with InvalidStepOrder when state is not the required step.
func Validate(state, required Step) error {
	if state != required {
		return faults.InvalidStepOrder(string(required), string(state), Position(required))
	}
	return nil
}

// ValidateTransition permits only a replay of the same step or a move to the
// immediate successor.
func ValidateTransition(from, to Step) error {
	if !from.Valid() || !to.Valid() {
		return faults.InvalidStepOrder(string(to), string(from), Position(to))
	}
	if to == from {
		return nil
	}
	if next, ok := Next(from); ok && next == to {
		return nil
	}
	return faults.InvalidStepOrder(string(to), string(from), Position(to))
}

// Advance moves a workflow from one state to the next with a conditional
// update. The update only applies while the persisted state still equals
// from; a zero-row result is reported as a RaceCondition.
func Advance(ctx context.Context, exec repository.Executor, workflowID uuid.UUID, from, to Step) error {
	if err := ValidateTransition(from, to); err != nil {
		return err
	}

	err := repository.ExecExpectOne(ctx, exec, advanceQuery, string(to), workflowID, string(from))
	if errors.Is(err, sql.ErrNoRows) {
		return faults.RaceCondition(workflowID)
	}
	if err != nil {
		return faults.Datastore(fmt.Sprintf("advance workflow %s", workflowID), err)
	}

	return nil
}
