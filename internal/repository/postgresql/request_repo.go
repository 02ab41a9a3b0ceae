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
)

const requestColumns = `id, request_type, description, status, resident_id, slot_id, created_at, updated_at`

type pgRequestRepository struct {
	db querier
}

func requestFields(req *domain.Request) []any {
	return []any{
		&req.ID, &req.RequestType, &req.Description, &req.Status,
		&req.ResidentID, &req.SlotID, &req.CreatedAt, &req.UpdatedAt,
	}
}

func scanRequest(row rowScanner, req *domain.Request) error {
	if err := row.Scan(requestFields(req)...); err != nil {
		return err
	}
	req.CreatedAt = req.CreatedAt.In(time.UTC)
	req.UpdatedAt = req.UpdatedAt.In(time.UTC)
	return nil
}

func (r *pgRequestRepository) Create(ctx context.Context, req *domain.Request) (*domain.Request, error) {
	if req.Status == "" {
		req.Status = domain.RequestPending
	}
	query := `INSERT INTO requests (request_type, description, status, resident_id, slot_id, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, req.RequestType, req.Description, req.Status, req.ResidentID, req.SlotID).
		Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: resident %d or slot %d", repository.ErrNotFound, req.ResidentID, req.SlotID)
		}
		return nil, fmt.Errorf("RequestRepository.Create: %w", err)
	}
	req.CreatedAt = req.CreatedAt.In(time.UTC)
	req.UpdatedAt = req.UpdatedAt.In(time.UTC)
	return req, nil
}

func (r *pgRequestRepository) FindByID(ctx context.Context, id int) (*domain.Request, error) {
	req := &domain.Request{}
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	if err := scanRequest(r.db.QueryRowContext(ctx, query, id), req); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("RequestRepository.FindByID: %w", err)
	}
	return req, nil
}

func (r *pgRequestRepository) FindAll(ctx context.Context, filter domain.RequestFilter) ([]domain.RequestDetail, error) {
	ds := dialect.From(goqu.T("requests").As("r")).
		LeftJoin(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("r.resident_id")))).
		LeftJoin(goqu.T("slots").As("s"), goqu.On(goqu.I("s.id").Eq(goqu.I("r.slot_id")))).
		Select(
			"r.id", "r.request_type", "r.description", "r.status", "r.resident_id", "r.slot_id",
			"r.created_at", "r.updated_at", "u.full_name", "s.slot_number",
		).
		Order(goqu.I("r.created_at").Desc(), goqu.I("r.id").Desc())

	if filter.ResidentID > 0 {
		ds = ds.Where(goqu.I("r.resident_id").Eq(filter.ResidentID))
	}
	if filter.Status != "" {
		ds = ds.Where(goqu.I("r.status").Eq(string(filter.Status)))
	}
	if filter.RequestType != "" {
		ds = ds.Where(goqu.I("r.request_type").Eq(string(filter.RequestType)))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		ds = ds.Limit(filter.Limit)
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("RequestRepository.FindAll (build): %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("RequestRepository.FindAll: %w", err)
	}
	defer rows.Close()

	requests := []domain.RequestDetail{}
	for rows.Next() {
		var d domain.RequestDetail
		dest := append(requestFields(&d.Request), &d.ResidentName, &d.SlotNumber)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("RequestRepository.FindAll (scanning row): %w", err)
		}
		d.CreatedAt = d.CreatedAt.In(time.UTC)
		d.UpdatedAt = d.UpdatedAt.In(time.UTC)
		requests = append(requests, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("RequestRepository.FindAll (rows error): %w", err)
	}
	return requests, nil
}

func (r *pgRequestRepository) Transition(ctx context.Context, id int, from, to domain.RequestStatus) (*domain.Request, error) {
	query := `UPDATE requests SET status = $1, updated_at = CURRENT_TIMESTAMP
	           WHERE id = $2 AND status = $3
	           RETURNING ` + requestColumns
	req := &domain.Request{}
	err := scanRequest(r.db.QueryRowContext(ctx, query, to, id, from), req)
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("RequestRepository.Transition: %w", err)
	}

	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: request %d is already %s", repository.ErrInvalidTransition, id, current.Status)
}

func (r *pgRequestRepository) DeleteByResident(ctx context.Context, residentID int) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM requests WHERE resident_id = $1`, residentID); err != nil {
		return fmt.Errorf("RequestRepository.DeleteByResident: %w", err)
	}
	return nil
}

func (r *pgRequestRepository) CountByStatus(ctx context.Context, status domain.RequestStatus) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM requests WHERE status = $1`, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("RequestRepository.CountByStatus: %w", err)
	}
	return count, nil
}
