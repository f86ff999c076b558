package ports

import (
	"context"
	"encoding/json"

	"github.com/bft-labs/fieldsync/internal/domain"
)

// RemoteStore performs mutations against the remote record service.
//
// Implementations return a *domain.ConnectivityError when the service could
// not be reached and a *domain.LogicalError when it rejected the request.
// Any other error is treated as logical by the classifier.
type RemoteStore interface {
	Perform(ctx context.Context, kind domain.Kind, payload json.RawMessage, idempotencyKey string) (json.RawMessage, error)
}
