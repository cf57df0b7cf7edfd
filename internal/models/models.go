package models

import (
	"strings"
	"time"
)

// Location is a pair of decimal-degree coordinates. All domain records store
// latitude first; the solver wire format wants longitude first, which is the
// single place transposition bugs creep in, so the conversion lives here.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SolverPair returns the [lng, lat] ordering used on the solver wire.
func (l Location) SolverPair() [2]float64 {
	return [2]float64{l.Lng, l.Lat}
}

type TimeSlot string

const (
	SlotMorning   TimeSlot = "morning"
	SlotAfternoon TimeSlot = "afternoon"
	SlotAny       TimeSlot = "any"
)

// ParseTimeSlot maps free-form input to a known slot, defaulting to SlotAny.
func ParseTimeSlot(value string) TimeSlot {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "morning":
		return SlotMorning
	case "afternoon":
		return SlotAfternoon
	default:
		return SlotAny
	}
}

type MissionStatus string

const (
	StatusPending    MissionStatus = "pending"
	StatusAssigned   MissionStatus = "assigned"
	StatusInProgress MissionStatus = "in_progress"
	StatusDone       MissionStatus = "done"
)

// Protected reports whether the status is driven by field activity and must
// never be changed by an optimization run.
func (s MissionStatus) Protected() bool {
	return s == StatusInProgress || s == StatusDone
}

type Technician struct {
	ID            int64    `json:"id"`
	CompanyID     int64    `json:"company_id"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	StartLocation Location `json:"start_location"`
	Capacity      int      `json:"capacity"`
}

type Mission struct {
	ID              int64         `json:"id"`
	CompanyID       int64         `json:"company_id"`
	ClientName      string        `json:"client_name"`
	Address         string        `json:"address"`
	Location        Location      `json:"location"`
	Status          MissionStatus `json:"status"`
	TimeSlot        TimeSlot      `json:"time_slot"`
	DurationMinutes int           `json:"duration_minutes"`
	TechnicianID    *int64        `json:"technician_id"`
	RouteOrder      *int          `json:"route_order"`
	Phone           string        `json:"phone,omitempty"`
	Comments        string        `json:"comments,omitempty"`
	Signature       string        `json:"signature,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// RoutingJob is the solver-neutral form of a Mission. Never persisted.
type RoutingJob struct {
	ID             int64
	Location       [2]float64 // lng, lat
	ServiceSeconds int
	Window         [2]int // seconds since midnight, [start, end)
	Label          string
}

// RoutingVehicle is the solver-neutral form of a Technician. Never persisted.
type RoutingVehicle struct {
	ID       int64
	Start    [2]float64 // lng, lat
	End      [2]float64 // lng, lat
	Capacity []int
	Window   [2]int
}

// VehicleAssignment is one technician's ordered route in a RoutingResult.
// LegDistancesM[i] is the distance in meters for the leg arriving at
// OrderedJobIDs[i]. PathPoints are [lat, lng] for display.
type VehicleAssignment struct {
	TechnicianID  int64
	OrderedJobIDs []int64
	LegDistancesM []float64
	PathPoints    [][2]float64
}

// RoutingResult is produced by a routing strategy and consumed exactly once
// by the reconciler; only its effects on mission rows survive.
type RoutingResult struct {
	Assignments    []VehicleAssignment
	UnassignedJobs []int64
}

// MissionAssignment is one row of the transactional batch the reconciler
// hands to the store.
type MissionAssignment struct {
	MissionID    int64
	TechnicianID int64
	RouteOrder   int
	Status       MissionStatus
}

// RouteStop is one display record of an optimized route.
type RouteStop struct {
	Step           int      `json:"step"`
	Client         string   `json:"client"`
	Address        string   `json:"address"`
	Lat            float64  `json:"lat"`
	Lng            float64  `json:"lng"`
	TimeSlot       TimeSlot `json:"time_slot"`
	DistanceKm     float64  `json:"distance_km"`
	TechnicianName string   `json:"technician_name"`
	Phone          string   `json:"phone,omitempty"`
	Comments       string   `json:"comments,omitempty"`
}

type UnassignedStop struct {
	Client string `json:"client"`
}

// OptimizeResult is the caller-facing payload of one optimization run.
type OptimizeResult struct {
	Route           []RouteStop      `json:"route"`
	Path            [][2]float64     `json:"path"`
	Unassigned      []UnassignedStop `json:"unassigned"`
	TotalDistanceKm float64          `json:"total_distance_km"`
}

type Run struct {
	ID         int64      `json:"id"`
	CompanyID  int64      `json:"company_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Status     string     `json:"status"`
	Summary    []byte     `json:"summary"`
}
