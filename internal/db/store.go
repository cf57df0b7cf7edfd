package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optiroute/backend/internal/models"
)

// ErrNotFound is returned when a targeted row does not exist for the company.
var ErrNotFound = errors.New("not found")

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const technicianColumns = `id, company_id, name, email, start_lat, start_lng, capacity`

func (s *Store) ListTechnicians(ctx context.Context, companyID int64, technicianID *int64) ([]models.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians WHERE company_id = $1`
	args := []any{companyID}
	if technicianID != nil {
		args = append(args, *technicianID)
		query += fmt.Sprintf(" AND id = $%d", len(args))
	}
	query += " ORDER BY id ASC"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Technician
	for rows.Next() {
		var t models.Technician
		if err := rows.Scan(&t.ID, &t.CompanyID, &t.Name, &t.Email, &t.StartLocation.Lat, &t.StartLocation.Lng, &t.Capacity); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) CreateTechnician(ctx context.Context, t models.Technician) (models.Technician, error) {
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO technicians (company_id, name, email, start_lat, start_lng, capacity)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, t.CompanyID, t.Name, t.Email, t.StartLocation.Lat, t.StartLocation.Lng, t.Capacity).Scan(&t.ID)
	return t, err
}

const missionColumns = `id, company_id, client_name, address, lat, lng, status, time_slot,
	duration_minutes, technician_id, route_order, phone, comments, signature, created_at`

func scanMission(row pgx.Row) (models.Mission, error) {
	var m models.Mission
	err := row.Scan(&m.ID, &m.CompanyID, &m.ClientName, &m.Address, &m.Location.Lat, &m.Location.Lng,
		&m.Status, &m.TimeSlot, &m.DurationMinutes, &m.TechnicianID, &m.RouteOrder,
		&m.Phone, &m.Comments, &m.Signature, &m.CreatedAt)
	return m, err
}

func (s *Store) ListMissions(ctx context.Context, companyID int64, statuses []models.MissionStatus, technicianID *int64) ([]models.Mission, error) {
	query := `SELECT ` + missionColumns + ` FROM missions WHERE company_id = $1`
	args := []any{companyID}
	if len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, st := range statuses {
			values = append(values, string(st))
		}
		args = append(args, values)
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	if technicianID != nil {
		args = append(args, *technicianID)
		query += fmt.Sprintf(" AND (technician_id IS NULL OR technician_id = $%d)", len(args))
	}
	query += " ORDER BY route_order ASC NULLS LAST, id ASC"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) GetMission(ctx context.Context, companyID, missionID int64) (models.Mission, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+missionColumns+` FROM missions WHERE company_id = $1 AND id = $2`, companyID, missionID)
	m, err := scanMission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Mission{}, ErrNotFound
	}
	return m, err
}

func (s *Store) CreateMission(ctx context.Context, m models.Mission) (models.Mission, error) {
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO missions (company_id, client_name, address, lat, lng, status, time_slot, duration_minutes, phone, comments)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id, created_at
	`, m.CompanyID, m.ClientName, m.Address, m.Location.Lat, m.Location.Lng, m.Status, m.TimeSlot, m.DurationMinutes, m.Phone, m.Comments).Scan(&m.ID, &m.CreatedAt)
	return m, err
}

// ImportMissions bulk-loads pre-geocoded missions with CopyFrom.
func (s *Store) ImportMissions(ctx context.Context, missions []models.Mission) (int64, error) {
	rows := make([][]any, 0, len(missions))
	for _, m := range missions {
		rows = append(rows, []any{m.CompanyID, m.ClientName, m.Address, m.Location.Lat, m.Location.Lng,
			string(m.Status), string(m.TimeSlot), m.DurationMinutes, m.Phone, m.Comments})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"missions"},
		[]string{"company_id", "client_name", "address", "lat", "lng", "status", "time_slot", "duration_minutes", "phone", "comments"},
		pgx.CopyFromRows(rows))
}

// UpdateMissionStatus records field activity on a mission, with an optional
// signature image captured at completion.
func (s *Store) UpdateMissionStatus(ctx context.Context, companyID, missionID int64, status models.MissionStatus, signature string) error {
	sets := []string{"status = $3"}
	args := []any{companyID, missionID, string(status)}
	if signature != "" {
		args = append(args, signature)
		sets = append(sets, fmt.Sprintf("signature = $%d", len(args)))
	}
	tag, err := s.Pool.Exec(ctx,
		`UPDATE missions SET `+strings.Join(sets, ", ")+` WHERE company_id = $1 AND id = $2`, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyRoutingUpdates commits one optimization run's effects in a single
// transaction. Route orders of every touched mission are nulled first so the
// per-mission updates cannot trip the (technician_id, route_order) unique
// constraint mid-flight.
func (s *Store) ApplyRoutingUpdates(ctx context.Context, companyID int64, assigns []models.MissionAssignment, clears []int64) error {
	if len(assigns) == 0 && len(clears) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		touched := make([]int64, 0, len(assigns)+len(clears))
		for _, a := range assigns {
			touched = append(touched, a.MissionID)
		}
		touched = append(touched, clears...)
		if _, err := tx.Exec(ctx, `UPDATE missions SET route_order = NULL WHERE company_id = $1 AND id = ANY($2)`, companyID, touched); err != nil {
			return err
		}
		for _, a := range assigns {
			if _, err := tx.Exec(ctx, `
				UPDATE missions SET technician_id = $3, route_order = $4, status = $5
				WHERE company_id = $1 AND id = $2
			`, companyID, a.MissionID, a.TechnicianID, a.RouteOrder, string(a.Status)); err != nil {
				return err
			}
		}
		if len(clears) > 0 {
			if _, err := tx.Exec(ctx, `
				UPDATE missions SET status = 'pending', technician_id = NULL, route_order = NULL
				WHERE company_id = $1 AND id = ANY($2)
			`, companyID, clears); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) BeginRun(ctx context.Context, companyID int64) (int64, error) {
	var id int64
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO optimization_runs (company_id, status, started_at) VALUES ($1, 'running', NOW()) RETURNING id
	`, companyID).Scan(&id)
	return id, err
}

func (s *Store) FinishRun(ctx context.Context, runID int64, status string, summary []byte) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE optimization_runs SET status = $1, summary = $2, finished_at = NOW() WHERE id = $3
	`, status, summary, runID)
	return err
}

func (s *Store) GetLatestRun(ctx context.Context, companyID int64) (models.Run, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, company_id, started_at, finished_at, status, summary
		FROM optimization_runs WHERE company_id = $1 ORDER BY started_at DESC LIMIT 1
	`, companyID)
	var r models.Run
	err := row.Scan(&r.ID, &r.CompanyID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.Summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Run{}, ErrNotFound
	}
	return r, err
}
