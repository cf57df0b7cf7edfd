package routing

import (
	"context"
	"math"

	"github.com/optiroute/backend/internal/models"
)

// Reconciler applies a RoutingResult to mission rows and renders the
// caller-facing payload. All writes for one run go through a single
// ApplyRoutingUpdates call so a crash or concurrent run never observes a
// half-applied result.
type Reconciler struct {
	Store Store
}

// Apply builds the update batch from the result, persists it, and returns the
// display payload. Missions the result never mentions are left untouched.
//
// Missions in a protected status (in_progress, done) are shielded from the
// run: a result that would hand one to a different technician, or unassign
// it, is ignored for that mission.
func (r Reconciler) Apply(ctx context.Context, companyID int64, result models.RoutingResult, technicians []models.Technician, missions []models.Mission) (models.OptimizeResult, error) {
	missionByID := map[int64]models.Mission{}
	for _, m := range missions {
		missionByID[m.ID] = m
	}
	technicianName := map[int64]string{}
	for _, t := range technicians {
		technicianName[t.ID] = t.Name
	}

	out := models.OptimizeResult{
		Route:      []models.RouteStop{},
		Path:       [][2]float64{},
		Unassigned: []models.UnassignedStop{},
	}
	var assigns []models.MissionAssignment
	var clears []int64
	var totalMeters float64

	for _, a := range result.Assignments {
		step := 0
		for i, jobID := range a.OrderedJobIDs {
			mission, ok := missionByID[jobID]
			if !ok {
				continue
			}
			if mission.Status.Protected() && (mission.TechnicianID == nil || *mission.TechnicianID != a.TechnicianID) {
				continue
			}

			status := mission.Status
			if status == models.StatusPending {
				status = models.StatusAssigned
			}
			step++
			assigns = append(assigns, models.MissionAssignment{
				MissionID:    mission.ID,
				TechnicianID: a.TechnicianID,
				RouteOrder:   step,
				Status:       status,
			})

			var legMeters float64
			if i < len(a.LegDistancesM) {
				legMeters = a.LegDistancesM[i]
			}
			totalMeters += legMeters
			out.Route = append(out.Route, models.RouteStop{
				Step:           step,
				Client:         mission.ClientName,
				Address:        mission.Address,
				Lat:            mission.Location.Lat,
				Lng:            mission.Location.Lng,
				TimeSlot:       mission.TimeSlot,
				DistanceKm:     roundKm(legMeters / 1000),
				TechnicianName: technicianName[a.TechnicianID],
				Phone:          mission.Phone,
				Comments:       mission.Comments,
			})
		}
		out.Path = append(out.Path, a.PathPoints...)
	}

	for _, jobID := range result.UnassignedJobs {
		mission, ok := missionByID[jobID]
		if !ok {
			continue
		}
		if mission.Status.Protected() {
			continue
		}
		clears = append(clears, mission.ID)
		out.Unassigned = append(out.Unassigned, models.UnassignedStop{Client: mission.ClientName})
	}

	if err := r.Store.ApplyRoutingUpdates(ctx, companyID, assigns, clears); err != nil {
		return models.OptimizeResult{}, err
	}
	out.TotalDistanceKm = roundKm(totalMeters / 1000)
	return out, nil
}

func roundKm(km float64) float64 {
	return math.Round(km*100) / 100
}
