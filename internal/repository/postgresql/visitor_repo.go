package postgresql

import (
	"apartment_parking/internal/domain"
	"apartment_parking/internal/repository"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
)

const visitorColumns = `id, visitor_name, vehicle_number, vehicle_type, entry_time, exit_time, status, resident_id, slot_id, created_at, updated_at`

type pgVisitorRepository struct {
	db querier
}

func visitorFields(v *domain.Visitor) []any {
	return []any{
		&v.ID, &v.VisitorName, &v.VehicleNumber, &v.VehicleType, &v.EntryTime, &v.ExitTime,
		&v.Status, &v.ResidentID, &v.SlotID, &v.CreatedAt, &v.UpdatedAt,
	}
}

func normalizeVisitor(v *domain.Visitor) {
	v.EntryTime = v.EntryTime.In(time.UTC)
	if v.ExitTime.Valid {
		v.ExitTime.Time = v.ExitTime.Time.In(time.UTC)
	}
	v.CreatedAt = v.CreatedAt.In(time.UTC)
	v.UpdatedAt = v.UpdatedAt.In(time.UTC)
}

func scanVisitor(row rowScanner, v *domain.Visitor) error {
	if err := row.Scan(visitorFields(v)...); err != nil {
		return err
	}
	normalizeVisitor(v)
	return nil
}

func (r *pgVisitorRepository) Create(ctx context.Context, v *domain.Visitor) (*domain.Visitor, error) {
	query := `INSERT INTO visitors (visitor_name, vehicle_number, vehicle_type, entry_time, exit_time, status, resident_id, slot_id, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		v.VisitorName, v.VehicleNumber, v.VehicleType, v.EntryTime, v.ExitTime, v.Status, v.ResidentID, v.SlotID,
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: resident %d", repository.ErrNotFound, v.ResidentID)
		}
		return nil, fmt.Errorf("VisitorRepository.Create: %w", err)
	}
	normalizeVisitor(v)
	return v, nil
}

func (r *pgVisitorRepository) FindByID(ctx context.Context, id int) (*domain.Visitor, error) {
	v := &domain.Visitor{}
	query := `SELECT ` + visitorColumns + ` FROM visitors WHERE id = $1`
	if err := scanVisitor(r.db.QueryRowContext(ctx, query, id), v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("VisitorRepository.FindByID: %w", err)
	}
	return v, nil
}

func (r *pgVisitorRepository) FindAll(ctx context.Context, filter domain.VisitorFilter) ([]domain.VisitorDetail, error) {
	ds := dialect.From(goqu.T("visitors").As("v")).
		LeftJoin(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("v.resident_id")))).
		LeftJoin(goqu.T("slots").As("s"), goqu.On(goqu.I("s.id").Eq(goqu.I("v.slot_id")))).
		Select(
			"v.id", "v.visitor_name", "v.vehicle_number", "v.vehicle_type", "v.entry_time", "v.exit_time",
			"v.status", "v.resident_id", "v.slot_id", "v.created_at", "v.updated_at",
			"u.full_name", "s.slot_number",
		).
		Order(goqu.I("v.entry_time").Desc(), goqu.I("v.id").Desc())

	if filter.ResidentID > 0 {
		ds = ds.Where(goqu.I("v.resident_id").Eq(filter.ResidentID))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		ds = ds.Where(goqu.I("v.status").In(statuses))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		ds = ds.Limit(filter.Limit)
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("VisitorRepository.FindAll (build): %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("VisitorRepository.FindAll: %w", err)
	}
	defer rows.Close()

	visitors := []domain.VisitorDetail{}
	for rows.Next() {
		var d domain.VisitorDetail
		dest := append(visitorFields(&d.Visitor), &d.ResidentName, &d.SlotNumber)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("VisitorRepository.FindAll (scanning row): %w", err)
		}
		normalizeVisitor(&d.Visitor)
		visitors = append(visitors, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("VisitorRepository.FindAll (rows error): %w", err)
	}
	return visitors, nil
}

func (r *pgVisitorRepository) Transition(ctx context.Context, v *domain.Visitor, from domain.VisitorStatus) (*domain.Visitor, error) {
	query := `UPDATE visitors SET status = $1, slot_id = $2, exit_time = $3, updated_at = CURRENT_TIMESTAMP
	           WHERE id = $4 AND status = $5
	           RETURNING ` + visitorColumns
	updated := &domain.Visitor{}
	err := scanVisitor(r.db.QueryRowContext(ctx, query, v.Status, v.SlotID, v.ExitTime, v.ID, from), updated)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("VisitorRepository.Transition: %w", err)
	}

	current, err := r.FindByID(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: visitor %d is %s, not %s", repository.ErrInvalidTransition, v.ID, current.Status, from)
}

func (r *pgVisitorRepository) FindHolding(ctx context.Context, slotID int) (*domain.Visitor, error) {
	query := `SELECT ` + visitorColumns + ` FROM visitors
	           WHERE slot_id = $1 AND status = $2
	           ORDER BY id
	           LIMIT 1
	           FOR UPDATE`
	v := &domain.Visitor{}
	if err := scanVisitor(r.db.QueryRowContext(ctx, query, slotID, domain.VisitorApproved), v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("VisitorRepository.FindHolding: %w", err)
	}
	return v, nil
}

func (r *pgVisitorRepository) DeleteInStatus(ctx context.Context, id int, statuses []domain.VisitorStatus) (*domain.Visitor, error) {
	allowed := make([]string, len(statuses))
	for i, st := range statuses {
		allowed[i] = string(st)
	}

	query := `DELETE FROM visitors WHERE id = $1 AND status = ANY($2) RETURNING ` + visitorColumns
	deleted := &domain.Visitor{}
	err := scanVisitor(r.db.QueryRowContext(ctx, query, id, pq.Array(allowed)), deleted)
	if err == nil {
		return deleted, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("VisitorRepository.DeleteInStatus: %w", err)
	}

	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: visitor %d is %s", repository.ErrInvalidTransition, id, current.Status)
}

func (r *pgVisitorRepository) DeleteByResident(ctx context.Context, residentID int) ([]domain.Visitor, error) {
	rows, err := r.db.QueryContext(ctx, `DELETE FROM visitors WHERE resident_id = $1 RETURNING `+visitorColumns, residentID)
	if err != nil {
		return nil, fmt.Errorf("VisitorRepository.DeleteByResident: %w", err)
	}
	defer rows.Close()

	deleted := []domain.Visitor{}
	for rows.Next() {
		var v domain.Visitor
		if err := scanVisitor(rows, &v); err != nil {
			return nil, fmt.Errorf("VisitorRepository.DeleteByResident (scanning row): %w", err)
		}
		deleted = append(deleted, v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("VisitorRepository.DeleteByResident (rows error): %w", err)
	}
	return deleted, nil
}

func (r *pgVisitorRepository) CountByStatus(ctx context.Context, status domain.VisitorStatus) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM visitors WHERE status = $1`, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("VisitorRepository.CountByStatus: %w", err)
	}
	return count, nil
}
