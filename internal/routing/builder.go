package routing

import "github.com/optiroute/backend/internal/models"

const (
	defaultServiceMinutes = 30
	defaultCapacity       = 10
)

// Model is the solver-neutral routing problem handed to a Strategy.
type Model struct {
	Vehicles []models.RoutingVehicle
	Jobs     []models.RoutingJob
	// Pinned maps a job to the vehicle that must serve it (a mission already
	// assigned to a technician). Jobs absent from the map may be placed on
	// any vehicle. The remote solver ignores pins and reassigns freely.
	Pinned map[int64]int64
}

// Empty reports the "nothing to schedule" case.
func (m Model) Empty() bool {
	return len(m.Jobs) == 0
}

// BuildModel turns persisted technicians and missions into a routing Model.
// Returns ErrNoTechnicians when the company has no vehicles to route; an
// empty mission set yields an empty Model, which is a no-op, not an error.
func BuildModel(technicians []models.Technician, missions []models.Mission) (Model, error) {
	if len(technicians) == 0 {
		return Model{}, ErrNoTechnicians
	}

	m := Model{Pinned: map[int64]int64{}}

	vehicleIDs := map[int64]bool{}
	for _, t := range technicians {
		base := t.StartLocation.SolverPair()
		capacity := t.Capacity
		if capacity <= 0 {
			capacity = defaultCapacity
		}
		m.Vehicles = append(m.Vehicles, models.RoutingVehicle{
			ID:       t.ID,
			Start:    base,
			End:      base,
			Capacity: []int{capacity},
			Window:   WindowFor(models.SlotAny),
		})
		vehicleIDs[t.ID] = true
	}

	for _, mi := range missions {
		service := mi.DurationMinutes
		if service <= 0 {
			service = defaultServiceMinutes
		}
		m.Jobs = append(m.Jobs, models.RoutingJob{
			ID:             mi.ID,
			Location:       mi.Location.SolverPair(),
			ServiceSeconds: service * 60,
			Window:         WindowFor(mi.TimeSlot),
			Label:          mi.ClientName,
		})
		if mi.TechnicianID != nil && vehicleIDs[*mi.TechnicianID] {
			m.Pinned[mi.ID] = *mi.TechnicianID
		}
	}
	return m, nil
}
