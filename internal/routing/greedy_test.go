package routing

import (
	"context"
	"reflect"
	"testing"

	"github.com/optiroute/backend/internal/models"
)

func greedyModel(jobs []models.RoutingJob) Model {
	return Model{
		Vehicles: []models.RoutingVehicle{
			{ID: 1, Start: [2]float64{2.35, 48.85}, End: [2]float64{2.35, 48.85}, Window: WindowFor(models.SlotAny)},
		},
		Jobs:   jobs,
		Pinned: map[int64]int64{},
	}
}

func TestGreedyNearestNeighborOrder(t *testing.T) {
	// Job 20 is closer to the start than job 10; job 30 is closest to 10.
	m := greedyModel([]models.RoutingJob{
		{ID: 10, Location: [2]float64{2.40, 48.90}, Window: WindowFor(models.SlotAny)},
		{ID: 20, Location: [2]float64{2.36, 48.86}, Window: WindowFor(models.SlotAny)},
		{ID: 30, Location: [2]float64{2.41, 48.91}, Window: WindowFor(models.SlotAny)},
	})

	result, err := NewGreedyRouter().Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Assignments) != 1 {
		t.Fatalf("expected 1 assignment, got %d", len(result.Assignments))
	}
	a := result.Assignments[0]
	if !reflect.DeepEqual(a.OrderedJobIDs, []int64{20, 10, 30}) {
		t.Fatalf("unexpected order: %v", a.OrderedJobIDs)
	}
	if len(a.LegDistancesM) != 3 {
		t.Fatalf("expected a leg distance per stop, got %v", a.LegDistancesM)
	}
	if len(result.UnassignedJobs) != 0 {
		t.Fatalf("greedy strategy must place every job, got unassigned %v", result.UnassignedJobs)
	}
}

func TestGreedyTieBreakLowestID(t *testing.T) {
	loc := [2]float64{2.36, 48.86}
	m := greedyModel([]models.RoutingJob{
		{ID: 42, Location: loc, Window: WindowFor(models.SlotAny)},
		{ID: 7, Location: loc, Window: WindowFor(models.SlotAny)},
		{ID: 19, Location: loc, Window: WindowFor(models.SlotAny)},
	})

	result, err := NewGreedyRouter().Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.Assignments[0].OrderedJobIDs; !reflect.DeepEqual(got, []int64{7, 19, 42}) {
		t.Fatalf("expected lowest-id tie-break order, got %v", got)
	}
}

func TestGreedyDeterministic(t *testing.T) {
	m := greedyModel([]models.RoutingJob{
		{ID: 1, Location: [2]float64{2.40, 48.90}, Window: WindowFor(models.SlotAny)},
		{ID: 2, Location: [2]float64{2.30, 48.80}, Window: WindowFor(models.SlotAny)},
		{ID: 3, Location: [2]float64{2.36, 48.86}, Window: WindowFor(models.SlotAny)},
	})

	router := NewGreedyRouter()
	first, err := router.Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := router.Solve(context.Background(), m)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("expected identical results, got %v then %v", first, again)
		}
	}
}

func TestGreedySegmentsMorningBeforeAfternoon(t *testing.T) {
	// The afternoon job sits right next to the start; it must still come
	// after both morning-window jobs. "any" rides with the morning group.
	m := greedyModel([]models.RoutingJob{
		{ID: 1, Location: [2]float64{2.351, 48.851}, Window: WindowFor(models.SlotAfternoon)},
		{ID: 2, Location: [2]float64{2.40, 48.90}, Window: WindowFor(models.SlotMorning)},
		{ID: 3, Location: [2]float64{2.41, 48.91}, Window: WindowFor(models.SlotAny)},
	})

	result, err := NewGreedyRouter().Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.Assignments[0].OrderedJobIDs; !reflect.DeepEqual(got, []int64{2, 3, 1}) {
		t.Fatalf("expected morning jobs first, got %v", got)
	}
}

func TestGreedyPathStartsAtVehicle(t *testing.T) {
	m := greedyModel([]models.RoutingJob{
		{ID: 1, Location: [2]float64{2.40, 48.90}, Window: WindowFor(models.SlotAny)},
	})

	result, err := NewGreedyRouter().Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := result.Assignments[0].PathPoints
	if len(path) != 2 {
		t.Fatalf("expected start plus one stop, got %v", path)
	}
	if path[0] != [2]float64{48.85, 2.35} {
		t.Fatalf("path points must be [lat, lng] starting at the vehicle, got %v", path[0])
	}
	if path[1] != [2]float64{48.90, 2.40} {
		t.Fatalf("unexpected stop point %v", path[1])
	}
}

func TestGreedyPartitionAcrossVehicles(t *testing.T) {
	m := Model{
		Vehicles: []models.RoutingVehicle{
			{ID: 1, Start: [2]float64{2.35, 48.85}},
			{ID: 2, Start: [2]float64{2.60, 48.60}},
		},
		Jobs: []models.RoutingJob{
			// Near vehicle 1 but pinned to vehicle 2.
			{ID: 5, Location: [2]float64{2.36, 48.86}, Window: WindowFor(models.SlotAny)},
			// Near vehicle 2.
			{ID: 6, Location: [2]float64{2.59, 48.61}, Window: WindowFor(models.SlotAny)},
			// Near vehicle 1.
			{ID: 7, Location: [2]float64{2.34, 48.84}, Window: WindowFor(models.SlotAny)},
		},
		Pinned: map[int64]int64{5: 2},
	}

	result, err := NewGreedyRouter().Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	byVehicle := map[int64][]int64{}
	for _, a := range result.Assignments {
		byVehicle[a.TechnicianID] = a.OrderedJobIDs
	}
	if !reflect.DeepEqual(byVehicle[1], []int64{7}) {
		t.Fatalf("expected job 7 on vehicle 1, got %v", byVehicle[1])
	}
	if !reflect.DeepEqual(byVehicle[2], []int64{6, 5}) && !reflect.DeepEqual(byVehicle[2], []int64{5, 6}) {
		t.Fatalf("expected jobs 5 and 6 on vehicle 2, got %v", byVehicle[2])
	}
}
