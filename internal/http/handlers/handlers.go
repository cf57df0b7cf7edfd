package handlers

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/optiroute/backend/internal/db"
	"github.com/optiroute/backend/internal/geocode"
	"github.com/optiroute/backend/internal/models"
	"github.com/optiroute/backend/internal/routing"
)

type Handler struct {
	Store        *db.Store
	Orchestrator *routing.Orchestrator
	Geocoder     geocode.Geocoder
	Validator    *validator.Validate
	Logger       zerolog.Logger
	AdminKey     string
}

const companyIDHeader = "X-Company-Id"

// companyID resolves the tenant from the request header; single-tenant
// deployments omit the header and land on company 1.
func companyID(c *gin.Context) int64 {
	raw := strings.TrimSpace(c.GetHeader(companyIDHeader))
	if raw == "" {
		return 1
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 1
	}
	return id
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary List missions
// @Tags missions
// @Produce json
// @Param status query string false "Filter by status"
// @Param technician_id query int false "Filter by technician"
// @Success 200 {object} map[string]any
// @Router /api/missions [get]
func (h *Handler) MissionsList(c *gin.Context) {
	var statuses []models.MissionStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			statuses = append(statuses, models.MissionStatus(strings.TrimSpace(part)))
		}
	}
	technicianID, err := optionalID(c.Query("technician_id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "technician_id must be a positive integer", nil)
		return
	}

	items, err := h.Store.ListMissions(c.Request.Context(), companyID(c), statuses, technicianID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list missions", err.Error())
		return
	}
	if items == nil {
		items = []models.Mission{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type CreateMissionRequest struct {
	ClientName      string   `json:"client_name" validate:"required"`
	Address         string   `json:"address" validate:"required"`
	Lat             *float64 `json:"lat"`
	Lng             *float64 `json:"lng"`
	TimeSlot        string   `json:"time_slot"`
	DurationMinutes int      `json:"duration_minutes" validate:"gte=0"`
	Phone           string   `json:"phone"`
	Comments        string   `json:"comments"`
}

// @Summary Create mission
// @Description Creates a pending mission, geocoding the address when no coordinates are provided
// @Tags missions
// @Accept json
// @Produce json
// @Param mission body CreateMissionRequest true "Mission"
// @Success 201 {object} models.Mission
// @Failure 400 {object} map[string]any
// @Router /api/missions [post]
func (h *Handler) MissionCreate(c *gin.Context) {
	var req CreateMissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	mission := models.Mission{
		CompanyID:       companyID(c),
		ClientName:      strings.TrimSpace(req.ClientName),
		Address:         strings.TrimSpace(req.Address),
		Status:          models.StatusPending,
		TimeSlot:        models.ParseTimeSlot(req.TimeSlot),
		DurationMinutes: req.DurationMinutes,
		Phone:           strings.TrimSpace(req.Phone),
		Comments:        req.Comments,
	}

	if req.Lat != nil && req.Lng != nil {
		mission.Location = models.Location{Lat: *req.Lat, Lng: *req.Lng}
	} else {
		loc, _, err := h.Geocoder.Geocode(c.Request.Context(), mission.Address)
		if errors.Is(err, geocode.ErrNotFound) {
			writeError(c, http.StatusBadRequest, "ADDRESS_NOT_FOUND", "Address could not be geocoded", mission.Address)
			return
		}
		if err != nil {
			writeError(c, http.StatusBadGateway, "GEOCODER_ERROR", "Geocoding failed", err.Error())
			return
		}
		mission.Location = loc
	}

	created, err := h.Store.CreateMission(c.Request.Context(), mission)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create mission", err.Error())
		return
	}
	c.JSON(http.StatusCreated, created)
}

type UpdateMissionStatusRequest struct {
	Status    string `json:"status" validate:"required"`
	Signature string `json:"signature"`
}

// @Summary Update mission status
// @Description Records field activity: assigned to in_progress, in_progress to done (with optional signature)
// @Tags missions
// @Accept json
// @Produce json
// @Param id path int true "Mission ID"
// @Param status body UpdateMissionStatusRequest true "New status"
// @Success 200 {object} map[string]any
// @Router /api/missions/{id}/status [patch]
func (h *Handler) MissionStatusUpdate(c *gin.Context) {
	missionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || missionID <= 0 {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid mission id", nil)
		return
	}
	var req UpdateMissionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	status := models.MissionStatus(strings.TrimSpace(req.Status))
	if status != models.StatusInProgress && status != models.StatusDone {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "status must be in_progress or done", nil)
		return
	}

	err = h.Store.UpdateMissionStatus(c.Request.Context(), companyID(c), missionID, status, req.Signature)
	if errors.Is(err, db.ErrNotFound) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Mission not found", nil)
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update mission", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) TechniciansList(c *gin.Context) {
	items, err := h.Store.ListTechnicians(c.Request.Context(), companyID(c), nil)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list technicians", err.Error())
		return
	}
	if items == nil {
		items = []models.Technician{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type CreateTechnicianRequest struct {
	Name     string  `json:"name" validate:"required"`
	Email    string  `json:"email" validate:"omitempty,email"`
	StartLat float64 `json:"start_lat" validate:"gte=-90,lte=90"`
	StartLng float64 `json:"start_lng" validate:"gte=-180,lte=180"`
	Capacity int     `json:"capacity" validate:"gte=0"`
}

func (h *Handler) TechnicianCreate(c *gin.Context) {
	var req CreateTechnicianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	created, err := h.Store.CreateTechnician(c.Request.Context(), models.Technician{
		CompanyID:     companyID(c),
		Name:          strings.TrimSpace(req.Name),
		Email:         strings.TrimSpace(req.Email),
		StartLocation: models.Location{Lat: req.StartLat, Lng: req.StartLng},
		Capacity:      req.Capacity,
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create technician", err.Error())
		return
	}
	c.JSON(http.StatusCreated, created)
}

// @Summary Run route optimization
// @Description Assigns and sequences the company's open missions, optionally for a single technician
// @Tags optimize
// @Produce json
// @Param technician_id query int false "Limit the run to one technician"
// @Success 200 {object} models.OptimizeResult
// @Failure 409 {object} map[string]any
// @Failure 422 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /api/optimize [post]
func (h *Handler) Optimize(c *gin.Context) {
	technicianID, err := optionalID(c.Query("technician_id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "technician_id must be a positive integer", nil)
		return
	}

	result, err := h.Orchestrator.Optimize(c.Request.Context(), companyID(c), technicianID)
	if err != nil {
		h.writeOptimizeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) writeOptimizeError(c *gin.Context, err error) {
	var cfgErr *routing.ConfigurationError
	var rejection *routing.SolverRejection
	var transport *routing.TransportError
	switch {
	case errors.As(err, &cfgErr):
		writeError(c, http.StatusConflict, "CONFIGURATION_ERROR", cfgErr.Reason, nil)
	case errors.As(err, &rejection):
		writeError(c, http.StatusUnprocessableEntity, "SOLVER_REJECTED", "Solver rejected the routing request", rejection.Reason)
	case errors.As(err, &transport):
		h.Logger.Error().Err(err).Msg("solver unreachable")
		writeError(c, http.StatusBadGateway, "SOLVER_UNAVAILABLE", "Solver request failed", transport.Error())
	default:
		h.Logger.Error().Err(err).Msg("optimization failed")
		writeError(c, http.StatusInternalServerError, "OPTIMIZE_ERROR", "Optimization failed", err.Error())
	}
}

// @Summary Latest run
// @Tags runs
// @Produce json
// @Success 200 {object} models.Run
// @Router /api/runs/latest [get]
func (h *Handler) RunsLatest(c *gin.Context) {
	run, err := h.Store.GetLatestRun(c.Request.Context(), companyID(c))
	if errors.Is(err, db.ErrNotFound) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "No runs found", nil)
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load run", err.Error())
		return
	}
	c.JSON(http.StatusOK, run)
}

type ImportSummary struct {
	Parsed   int      `json:"parsed"`
	Inserted int      `json:"inserted"`
	Errors   []string `json:"errors"`
}

// @Summary Import missions CSV
// @Description Bulk-loads pre-geocoded missions from a CSV upload
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param missions formData file true "missions.csv"
// @Success 200 {object} ImportSummary
// @Failure 400 {object} map[string]any
// @Router /api/import [post]
func (h *Handler) Import(c *gin.Context) {
	file, err := c.FormFile("missions")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "missions file required", nil)
		return
	}

	missions, parseErrs := parseMissionsCSV(file, companyID(c))
	summary := ImportSummary{Parsed: len(missions), Errors: parseErrs}
	if len(parseErrs) > 0 {
		writeError(c, http.StatusBadRequest, "CSV_PARSE_ERROR", "CSV validation errors", parseErrs)
		return
	}

	inserted, err := h.Store.ImportMissions(c.Request.Context(), missions)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert missions", err.Error())
		return
	}
	summary.Inserted = int(inserted)
	summary.Errors = []string{}
	c.JSON(http.StatusOK, summary)
}

func parseMissionsCSV(file *multipart.FileHeader, companyID int64) ([]models.Mission, []string) {
	f, err := file.Open()
	if err != nil {
		return nil, []string{err.Error()}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	headers, err := reader.Read()
	if err != nil {
		return nil, []string{"failed to read header"}
	}
	index := headerIndex(headers)

	var errs []string
	var out []models.Mission
	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}

		client := getField(rec, index, "client_name")
		address := getField(rec, index, "address")
		lat, latErr := strconv.ParseFloat(getField(rec, index, "lat"), 64)
		lng, lngErr := strconv.ParseFloat(getField(rec, index, "lng"), 64)
		if client == "" || address == "" || latErr != nil || lngErr != nil {
			errs = append(errs, "line "+strconv.Itoa(line)+": client_name, address, lat, lng required")
			continue
		}
		duration, _ := strconv.Atoi(getField(rec, index, "duration_minutes"))

		out = append(out, models.Mission{
			CompanyID:       companyID,
			ClientName:      client,
			Address:         address,
			Location:        models.Location{Lat: lat, Lng: lng},
			Status:          models.StatusPending,
			TimeSlot:        models.ParseTimeSlot(getField(rec, index, "time_slot")),
			DurationMinutes: duration,
			Phone:           getField(rec, index, "phone"),
			Comments:        getField(rec, index, "comments"),
		})
	}
	return out, errs
}

func headerIndex(headers []string) map[string]int {
	idx := map[string]int{}
	for i, h := range headers {
		h = strings.ReplaceAll(h, "\ufeff", "")
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func getField(rec []string, idx map[string]int, name string) string {
	pos, ok := idx[name]
	if !ok || pos >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[pos])
}

func optionalID(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.New("invalid id")
	}
	return &id, nil
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
