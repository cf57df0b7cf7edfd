package routing

import (
	"context"

	"github.com/optiroute/backend/internal/models"
)

// Store is the persistence surface the routing engine needs. *db.Store
// implements it; tests substitute an in-memory fake.
type Store interface {
	// ListTechnicians returns the company's technicians, narrowed to one when
	// technicianID is non-nil.
	ListTechnicians(ctx context.Context, companyID int64, technicianID *int64) ([]models.Technician, error)
	// ListMissions returns the company's missions in the given statuses. When
	// technicianID is non-nil only unassigned missions and missions already
	// held by that technician are returned.
	ListMissions(ctx context.Context, companyID int64, statuses []models.MissionStatus, technicianID *int64) ([]models.Mission, error)
	// ApplyRoutingUpdates persists one run's mission updates atomically:
	// assigns set technician/order/status, clears reset to pending with no
	// technician and no order. All of it commits or none of it does.
	ApplyRoutingUpdates(ctx context.Context, companyID int64, assigns []models.MissionAssignment, clears []int64) error
}
