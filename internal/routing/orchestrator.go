package routing

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/optiroute/backend/internal/models"
)

// RunRecorder captures the audit trail of optimization runs. Recording is
// best-effort: a failure to write the trail never fails the run itself.
type RunRecorder interface {
	BeginRun(ctx context.Context, companyID int64) (int64, error)
	FinishRun(ctx context.Context, runID int64, status string, summary []byte) error
}

// Orchestrator is the optimization entry point: it loads the company's
// technicians and missions, builds the routing model, solves it through the
// configured Strategy, and reconciles the result back into mission rows.
// Runs for the same company are serialized; different companies proceed
// concurrently.
type Orchestrator struct {
	Store        Store
	Strategy     Strategy
	Runs         RunRecorder
	SolveTimeout time.Duration
	Logger       zerolog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

var loadStatuses = []models.MissionStatus{
	models.StatusPending,
	models.StatusAssigned,
	models.StatusInProgress,
}

// Optimize runs one optimization for a company, optionally narrowed to a
// single technician (that technician's missions plus everything unassigned).
// Any failure before reconciliation leaves the store untouched.
func (o *Orchestrator) Optimize(ctx context.Context, companyID int64, technicianID *int64) (models.OptimizeResult, error) {
	lock := o.companyLock(companyID)
	lock.Lock()
	defer lock.Unlock()

	runID := o.beginRun(ctx, companyID)

	result, err := o.run(ctx, companyID, technicianID)
	if err != nil {
		o.finishRun(ctx, runID, "failed", nil)
		return models.OptimizeResult{}, err
	}
	o.finishRun(ctx, runID, "succeeded", runSummary(result))
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, companyID int64, technicianID *int64) (models.OptimizeResult, error) {
	technicians, err := o.Store.ListTechnicians(ctx, companyID, technicianID)
	if err != nil {
		return models.OptimizeResult{}, err
	}
	missions, err := o.Store.ListMissions(ctx, companyID, loadStatuses, technicianID)
	if err != nil {
		return models.OptimizeResult{}, err
	}

	model, err := BuildModel(technicians, missions)
	if err != nil {
		return models.OptimizeResult{}, err
	}
	if model.Empty() {
		return models.OptimizeResult{
			Route:      []models.RouteStop{},
			Path:       [][2]float64{},
			Unassigned: []models.UnassignedStop{},
		}, nil
	}

	solveCtx := ctx
	if o.SolveTimeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, o.SolveTimeout)
		defer cancel()
	}
	routingResult, err := o.Strategy.Solve(solveCtx, model)
	if err != nil {
		return models.OptimizeResult{}, err
	}

	out, err := Reconciler{Store: o.Store}.Apply(ctx, companyID, routingResult, technicians, missions)
	if err != nil {
		return models.OptimizeResult{}, err
	}
	o.Logger.Info().
		Int64("company_id", companyID).
		Int("stops", len(out.Route)).
		Int("unassigned", len(out.Unassigned)).
		Float64("total_distance_km", out.TotalDistanceKm).
		Msg("optimization run reconciled")
	return out, nil
}

func (o *Orchestrator) companyLock(companyID int64) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.locks == nil {
		o.locks = map[int64]*sync.Mutex{}
	}
	lock, ok := o.locks[companyID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[companyID] = lock
	}
	return lock
}

func (o *Orchestrator) beginRun(ctx context.Context, companyID int64) int64 {
	if o.Runs == nil {
		return 0
	}
	runID, err := o.Runs.BeginRun(ctx, companyID)
	if err != nil {
		o.Logger.Warn().Err(err).Int64("company_id", companyID).Msg("could not record run start")
		return 0
	}
	return runID
}

func (o *Orchestrator) finishRun(ctx context.Context, runID int64, status string, summary []byte) {
	if o.Runs == nil || runID == 0 {
		return
	}
	if err := o.Runs.FinishRun(ctx, runID, status, summary); err != nil {
		o.Logger.Warn().Err(err).Int64("run_id", runID).Msg("could not record run finish")
	}
}

func runSummary(result models.OptimizeResult) []byte {
	summary, _ := json.Marshal(map[string]any{
		"stops":             len(result.Route),
		"unassigned":        len(result.Unassigned),
		"total_distance_km": result.TotalDistanceKm,
	})
	return summary
}
