package routing

import (
	"context"
	"sort"

	"github.com/optiroute/backend/internal/models"
	"github.com/optiroute/backend/internal/utils"
)

// GreedyRouter sequences jobs with a deterministic nearest-neighbor walk.
// It runs entirely locally and always places every job it is given; it never
// reports anything unassigned. When Segmented is set, morning jobs (and
// "any" jobs, which share the morning window start) are sequenced before
// afternoon jobs, with the afternoon leg continuing from the last morning
// stop.
type GreedyRouter struct {
	Segmented bool
}

func NewGreedyRouter() GreedyRouter {
	return GreedyRouter{Segmented: true}
}

func (g GreedyRouter) Solve(_ context.Context, m Model) (models.RoutingResult, error) {
	byVehicle := partitionJobs(m)

	var result models.RoutingResult
	for _, v := range m.Vehicles {
		jobs := byVehicle[v.ID]
		if len(jobs) == 0 {
			continue
		}
		result.Assignments = append(result.Assignments, g.route(v, jobs))
	}
	return result, nil
}

// partitionJobs distributes jobs across vehicles before sequencing: pinned
// jobs stay with their technician, the rest go to the vehicle with the
// nearest start, lower vehicle id on ties.
func partitionJobs(m Model) map[int64][]models.RoutingJob {
	out := map[int64][]models.RoutingJob{}
	for _, j := range m.Jobs {
		if vid, ok := m.Pinned[j.ID]; ok {
			out[vid] = append(out[vid], j)
			continue
		}
		best := m.Vehicles[0]
		bestDist := pairDistanceKm(best.Start, j.Location)
		for _, v := range m.Vehicles[1:] {
			d := pairDistanceKm(v.Start, j.Location)
			if d < bestDist || (d == bestDist && v.ID < best.ID) {
				best = v
				bestDist = d
			}
		}
		out[best.ID] = append(out[best.ID], j)
	}
	return out
}

func (g GreedyRouter) route(v models.RoutingVehicle, jobs []models.RoutingJob) models.VehicleAssignment {
	groups := [][]models.RoutingJob{jobs}
	if g.Segmented {
		afternoonStart := WindowFor(models.SlotAfternoon)[0]
		var morning, afternoon []models.RoutingJob
		for _, j := range jobs {
			if j.Window[0] >= afternoonStart {
				afternoon = append(afternoon, j)
			} else {
				morning = append(morning, j)
			}
		}
		groups = [][]models.RoutingJob{morning, afternoon}
	}

	assignment := models.VehicleAssignment{
		TechnicianID: v.ID,
		PathPoints:   [][2]float64{{v.Start[1], v.Start[0]}},
	}
	current := v.Start
	for _, group := range groups {
		current = appendNearestNeighbor(&assignment, current, group)
	}
	return assignment
}

// appendNearestNeighbor walks the group from the given position, repeatedly
// taking the closest remaining job (lowest id on ties) until none are left.
// Returns the final position.
func appendNearestNeighbor(a *models.VehicleAssignment, from [2]float64, group []models.RoutingJob) [2]float64 {
	remaining := append([]models.RoutingJob(nil), group...)
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].ID < remaining[j].ID })

	current := from
	for len(remaining) > 0 {
		nearest := 0
		minDist := pairDistanceKm(current, remaining[0].Location)
		for i := 1; i < len(remaining); i++ {
			if d := pairDistanceKm(current, remaining[i].Location); d < minDist {
				minDist = d
				nearest = i
			}
		}
		job := remaining[nearest]
		a.OrderedJobIDs = append(a.OrderedJobIDs, job.ID)
		a.LegDistancesM = append(a.LegDistancesM, minDist*1000)
		a.PathPoints = append(a.PathPoints, [2]float64{job.Location[1], job.Location[0]})
		current = job.Location
		remaining = append(remaining[:nearest], remaining[nearest+1:]...)
	}
	return current
}

// pairDistanceKm measures great-circle distance between two [lng, lat] pairs.
func pairDistanceKm(a, b [2]float64) float64 {
	return utils.HaversineKm(a[1], a[0], b[1], b[0])
}
