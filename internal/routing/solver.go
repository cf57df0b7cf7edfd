package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/twpayne/go-polyline"

	"github.com/optiroute/backend/internal/models"
)

// SolverGateway submits a Model to a remote VRP solver over HTTPS and
// normalizes its answer into a RoutingResult. One round trip per optimize
// call; the caller bounds the request with its context.
type SolverGateway struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

type solverJob struct {
	ID          int64      `json:"id"`
	Location    [2]float64 `json:"location"`
	Service     int        `json:"service"`
	TimeWindows [][2]int   `json:"time_windows"`
	Description string     `json:"description"`
}

type solverVehicle struct {
	ID         int64      `json:"id"`
	Profile    string     `json:"profile"`
	Start      [2]float64 `json:"start"`
	End        [2]float64 `json:"end"`
	Capacity   []int      `json:"capacity"`
	TimeWindow [2]int     `json:"time_window"`
}

type solverOptions struct {
	Geometry bool `json:"g"`
}

type solverRequest struct {
	Jobs     []solverJob     `json:"jobs"`
	Vehicles []solverVehicle `json:"vehicles"`
	Options  solverOptions   `json:"options"`
}

type solverStep struct {
	Type     string  `json:"type"`
	ID       *int64  `json:"id,omitempty"`
	Distance float64 `json:"distance"`
}

type solverRoute struct {
	Vehicle  int64        `json:"vehicle"`
	Distance float64      `json:"distance"`
	Geometry string       `json:"geometry"`
	Steps    []solverStep `json:"steps"`
}

type solverResponse struct {
	Code       int           `json:"code"`
	Error      string        `json:"error"`
	Routes     []solverRoute `json:"routes"`
	Unassigned []struct {
		ID int64 `json:"id"`
	} `json:"unassigned"`
}

func (g SolverGateway) Solve(ctx context.Context, m Model) (models.RoutingResult, error) {
	client := g.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req := solverRequest{Options: solverOptions{Geometry: true}}
	for _, j := range m.Jobs {
		req.Jobs = append(req.Jobs, solverJob{
			ID:          j.ID,
			Location:    j.Location,
			Service:     j.ServiceSeconds,
			TimeWindows: [][2]int{j.Window},
			Description: j.Label,
		})
	}
	for _, v := range m.Vehicles {
		req.Vehicles = append(req.Vehicles, solverVehicle{
			ID:         v.ID,
			Profile:    "driving-car",
			Start:      v.Start,
			End:        v.End,
			Capacity:   v.Capacity,
			TimeWindow: v.Window,
		})
	}

	body, _ := json.Marshal(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL, bytes.NewReader(body))
	if err != nil {
		return models.RoutingResult{}, &TransportError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.APIKey != "" {
		httpReq.Header.Set("Authorization", g.APIKey)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return models.RoutingResult{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.RoutingResult{}, &TransportError{StatusCode: resp.StatusCode}
	}

	var sr solverResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return models.RoutingResult{}, &SolverRejection{Reason: "malformed response body: " + err.Error()}
	}
	return normalizeResponse(m, sr)
}

// normalizeResponse validates the solver answer fully in memory before
// anything is persisted, in the order: explicit rejection, empty result,
// route extraction, unassigned extraction.
func normalizeResponse(m Model, sr solverResponse) (models.RoutingResult, error) {
	if sr.Code != 0 || sr.Error != "" {
		reason := sr.Error
		if reason == "" {
			reason = fmt.Sprintf("solver status code %d", sr.Code)
		}
		return models.RoutingResult{}, &SolverRejection{Reason: reason}
	}

	jobIDs := map[int64]bool{}
	for _, j := range m.Jobs {
		jobIDs[j.ID] = true
	}
	vehicleIDs := map[int64]bool{}
	for _, v := range m.Vehicles {
		vehicleIDs[v.ID] = true
	}

	if len(sr.Routes) == 0 {
		// Valid empty result: nothing could be placed anywhere.
		var all []int64
		for _, j := range m.Jobs {
			all = append(all, j.ID)
		}
		return models.RoutingResult{UnassignedJobs: all}, nil
	}

	var result models.RoutingResult
	for _, route := range sr.Routes {
		if !vehicleIDs[route.Vehicle] {
			return models.RoutingResult{}, &SolverRejection{Reason: fmt.Sprintf("route references unknown vehicle %d", route.Vehicle)}
		}
		assignment := models.VehicleAssignment{TechnicianID: route.Vehicle}
		for _, step := range route.Steps {
			if step.Type != "job" {
				continue
			}
			if step.ID == nil || !jobIDs[*step.ID] {
				return models.RoutingResult{}, &SolverRejection{Reason: "job step without a known job id"}
			}
			assignment.OrderedJobIDs = append(assignment.OrderedJobIDs, *step.ID)
			assignment.LegDistancesM = append(assignment.LegDistancesM, step.Distance)
		}
		if route.Geometry != "" {
			coords, _, err := polyline.DecodeCoords([]byte(route.Geometry))
			if err != nil {
				return models.RoutingResult{}, &SolverRejection{Reason: "undecodable route geometry: " + err.Error()}
			}
			for _, c := range coords {
				assignment.PathPoints = append(assignment.PathPoints, [2]float64{c[0], c[1]})
			}
		}
		result.Assignments = append(result.Assignments, assignment)
	}

	for _, u := range sr.Unassigned {
		if !jobIDs[u.ID] {
			return models.RoutingResult{}, &SolverRejection{Reason: fmt.Sprintf("unassigned entry references unknown job %d", u.ID)}
		}
		result.UnassignedJobs = append(result.UnassignedJobs, u.ID)
	}
	return result, nil
}
