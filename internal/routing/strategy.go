package routing

import (
	"context"

	"github.com/optiroute/backend/internal/models"
)

// Strategy solves a routing Model. Implementations are pure over their input
// and hold no state between invocations.
type Strategy interface {
	Solve(ctx context.Context, m Model) (models.RoutingResult, error)
}
