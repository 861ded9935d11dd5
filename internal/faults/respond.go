package faults

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/intent/pkg/handlers"
)

// Respond writes err using the response contract for its kind.
// Untagged errors are written as 500 through handlers.RespondError.
func Respond(w http.ResponseWriter, logger *slog.Logger, err error) {
	fe, ok := As(err)
	if !ok {
		handlers.RespondError(w, logger, http.StatusInternalServerError, err)
		return
	}

	status := fe.Kind.Status()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "kind", fe.Kind, "error", err)
	} else {
		logger.Warn("request rejected", "kind", fe.Kind, "error", err)
	}

	if fe.Detail != nil {
		handlers.RespondJSON(w, status, fe.Detail)
		return
	}

	body := map[string]any{
		"error":   fe.Kind.Code(),
		"message": fe.Message,
	}
	if fe.WorkflowID != uuid.Nil {
		body["workflow_id"] = fe.WorkflowID
	}

	handlers.RespondJSON(w, status, body)
}
