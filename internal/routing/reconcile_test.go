package routing

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/optiroute/backend/internal/models"
)

type applyCall struct {
	assigns []models.MissionAssignment
	clears  []int64
}

type fakeStore struct {
	mu          sync.Mutex
	technicians []models.Technician
	missions    []models.Mission
	applyErr    error
	applied     []applyCall
}

func (f *fakeStore) ListTechnicians(_ context.Context, _ int64, technicianID *int64) ([]models.Technician, error) {
	if technicianID == nil {
		return f.technicians, nil
	}
	var out []models.Technician
	for _, t := range f.technicians {
		if t.ID == *technicianID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) ListMissions(_ context.Context, _ int64, statuses []models.MissionStatus, technicianID *int64) ([]models.Mission, error) {
	wanted := map[models.MissionStatus]bool{}
	for _, st := range statuses {
		wanted[st] = true
	}
	var out []models.Mission
	for _, m := range f.missions {
		if len(statuses) > 0 && !wanted[m.Status] {
			continue
		}
		if technicianID != nil && m.TechnicianID != nil && *m.TechnicianID != *technicianID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeStore) ApplyRoutingUpdates(_ context.Context, _ int64, assigns []models.MissionAssignment, clears []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, applyCall{assigns: assigns, clears: clears})
	return nil
}

func (f *fakeStore) lastApply(t *testing.T) applyCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.applied) == 0 {
		t.Fatalf("expected at least one batch of routing updates")
	}
	return f.applied[len(f.applied)-1]
}

func ptr(v int64) *int64 { return &v }

func TestReconcilerAssignsPendingMissions(t *testing.T) {
	store := &fakeStore{}
	technicians := []models.Technician{{ID: 1, Name: "Alice"}}
	missions := []models.Mission{
		{ID: 7, ClientName: "Dupont", Address: "12 rue des Lilas", Location: models.Location{Lat: 48.86, Lng: 2.36}, Status: models.StatusPending, TimeSlot: models.SlotMorning, Phone: "0601020304"},
		{ID: 8, ClientName: "Martin", Status: models.StatusPending},
	}
	result := models.RoutingResult{
		Assignments: []models.VehicleAssignment{
			{TechnicianID: 1, OrderedJobIDs: []int64{8, 7}, LegDistancesM: []float64{1500, 2930}, PathPoints: [][2]float64{{48.85, 2.35}, {48.86, 2.36}}},
		},
	}

	out, err := Reconciler{Store: store}.Apply(context.Background(), 1, result, technicians, missions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	call := store.lastApply(t)
	want := []models.MissionAssignment{
		{MissionID: 8, TechnicianID: 1, RouteOrder: 1, Status: models.StatusAssigned},
		{MissionID: 7, TechnicianID: 1, RouteOrder: 2, Status: models.StatusAssigned},
	}
	if !reflect.DeepEqual(call.assigns, want) {
		t.Fatalf("unexpected assigns: %+v", call.assigns)
	}
	if len(call.clears) != 0 {
		t.Fatalf("unexpected clears: %v", call.clears)
	}

	if len(out.Route) != 2 {
		t.Fatalf("expected 2 route stops, got %d", len(out.Route))
	}
	second := out.Route[1]
	if second.Step != 2 || second.Client != "Dupont" || second.TechnicianName != "Alice" {
		t.Fatalf("unexpected stop: %+v", second)
	}
	if second.DistanceKm != 2.93 {
		t.Fatalf("expected leg distance rounded to 2.93 km, got %v", second.DistanceKm)
	}
	if second.Lat != 48.86 || second.Lng != 2.36 || second.Phone != "0601020304" {
		t.Fatalf("unexpected stop details: %+v", second)
	}
	if out.TotalDistanceKm != 4.43 {
		t.Fatalf("expected total 4.43 km, got %v", out.TotalDistanceKm)
	}
	if len(out.Path) != 2 {
		t.Fatalf("expected combined path, got %v", out.Path)
	}
}

func TestReconcilerProtectsInProgressFromReassignment(t *testing.T) {
	store := &fakeStore{}
	technicians := []models.Technician{{ID: 1}, {ID: 2}}
	missions := []models.Mission{
		{ID: 7, ClientName: "Dupont", Status: models.StatusInProgress, TechnicianID: ptr(1)},
	}
	result := models.RoutingResult{
		Assignments: []models.VehicleAssignment{
			{TechnicianID: 2, OrderedJobIDs: []int64{7}, LegDistancesM: []float64{1000}},
		},
	}

	out, err := Reconciler{Store: store}.Apply(context.Background(), 1, result, technicians, missions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call := store.lastApply(t)
	if len(call.assigns) != 0 || len(call.clears) != 0 {
		t.Fatalf("protected mission must not be touched, got %+v", call)
	}
	if len(out.Route) != 0 {
		t.Fatalf("protected mission must not appear on another technician's route")
	}
}

func TestReconcilerKeepsStatusOnResequence(t *testing.T) {
	store := &fakeStore{}
	technicians := []models.Technician{{ID: 1}}
	missions := []models.Mission{
		{ID: 7, ClientName: "Dupont", Status: models.StatusInProgress, TechnicianID: ptr(1)},
		{ID: 8, ClientName: "Martin", Status: models.StatusAssigned, TechnicianID: ptr(1)},
	}
	result := models.RoutingResult{
		Assignments: []models.VehicleAssignment{
			{TechnicianID: 1, OrderedJobIDs: []int64{8, 7}, LegDistancesM: []float64{500, 700}},
		},
	}

	if _, err := (Reconciler{Store: store}).Apply(context.Background(), 1, result, technicians, missions); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call := store.lastApply(t)
	byMission := map[int64]models.MissionAssignment{}
	for _, a := range call.assigns {
		byMission[a.MissionID] = a
	}
	if byMission[7].Status != models.StatusInProgress {
		t.Fatalf("in_progress must be preserved, got %s", byMission[7].Status)
	}
	if byMission[8].Status != models.StatusAssigned {
		t.Fatalf("assigned must stay assigned, got %s", byMission[8].Status)
	}
	if byMission[8].RouteOrder != 1 || byMission[7].RouteOrder != 2 {
		t.Fatalf("unexpected route orders: %+v", call.assigns)
	}
}

func TestReconcilerRevertsUnassigned(t *testing.T) {
	store := &fakeStore{}
	missions := []models.Mission{
		{ID: 7, ClientName: "Dupont", Status: models.StatusAssigned, TechnicianID: ptr(1)},
		{ID: 9, ClientName: "Bernard", Status: models.StatusDone, TechnicianID: ptr(1)},
	}
	result := models.RoutingResult{UnassignedJobs: []int64{7, 9}}

	out, err := Reconciler{Store: store}.Apply(context.Background(), 1, result, nil, missions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call := store.lastApply(t)
	if !reflect.DeepEqual(call.clears, []int64{7}) {
		t.Fatalf("expected only the assigned mission cleared, got %v", call.clears)
	}
	if len(out.Unassigned) != 1 || out.Unassigned[0].Client != "Dupont" {
		t.Fatalf("unexpected unassigned list: %+v", out.Unassigned)
	}
}

func TestReconcilerStoreFailure(t *testing.T) {
	boom := errors.New("tx aborted")
	store := &fakeStore{applyErr: boom}
	missions := []models.Mission{{ID: 7, ClientName: "Dupont", Status: models.StatusPending}}
	result := models.RoutingResult{
		Assignments: []models.VehicleAssignment{{TechnicianID: 1, OrderedJobIDs: []int64{7}, LegDistancesM: []float64{100}}},
	}

	_, err := Reconciler{Store: store}.Apply(context.Background(), 1, result, nil, missions)
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
	if len(store.applied) != 0 {
		t.Fatalf("no batch must be recorded on failure")
	}
}
