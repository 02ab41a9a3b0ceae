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

const slotColumns = `id, slot_number, slot_type, status, created_at, updated_at`

type pgSlotRepository struct {
	db querier
}

func scanSlot(row rowScanner, slot *domain.Slot) error {
	if err := row.Scan(&slot.ID, &slot.SlotNumber, &slot.SlotType, &slot.Status, &slot.CreatedAt, &slot.UpdatedAt); err != nil {
		return err
	}
	slot.CreatedAt = slot.CreatedAt.In(time.UTC)
	slot.UpdatedAt = slot.UpdatedAt.In(time.UTC)
	return nil
}

func (r *pgSlotRepository) Create(ctx context.Context, slot *domain.Slot) (*domain.Slot, error) {
	if slot.Status == "" {
		slot.Status = domain.SlotAvailable
	}
	query := `INSERT INTO slots (slot_number, slot_type, status, created_at, updated_at)
	           VALUES ($1, $2, $3, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, slot.SlotNumber, slot.SlotType, slot.Status).
		Scan(&slot.ID, &slot.CreatedAt, &slot.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "slots_slot_number_key") {
			return nil, fmt.Errorf("%w: slot number '%s' already exists", repository.ErrDuplicateEntry, slot.SlotNumber)
		}
		return nil, fmt.Errorf("SlotRepository.Create: %w", err)
	}
	slot.CreatedAt = slot.CreatedAt.In(time.UTC)
	slot.UpdatedAt = slot.UpdatedAt.In(time.UTC)
	return slot, nil
}

func (r *pgSlotRepository) FindByID(ctx context.Context, id int) (*domain.Slot, error) {
	slot := &domain.Slot{}
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`
	if err := scanSlot(r.db.QueryRowContext(ctx, query, id), slot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("SlotRepository.FindByID: %w", err)
	}
	return slot, nil
}

func (r *pgSlotRepository) FindAll(ctx context.Context) ([]domain.SlotDetail, error) {
	query := `SELECT s.id, s.slot_number, s.slot_type, s.status, s.created_at, s.updated_at, u.id, u.full_name
	           FROM slots s
	           LEFT JOIN users u ON u.assigned_slot_id = s.id
	           ORDER BY s.slot_number`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("SlotRepository.FindAll: %w", err)
	}
	defer rows.Close()

	slots := []domain.SlotDetail{}
	for rows.Next() {
		var d domain.SlotDetail
		if err := rows.Scan(
			&d.ID, &d.SlotNumber, &d.SlotType, &d.Status, &d.CreatedAt, &d.UpdatedAt,
			&d.AssignedResidentID, &d.AssignedResidentName,
		); err != nil {
			return nil, fmt.Errorf("SlotRepository.FindAll (scanning row): %w", err)
		}
		d.CreatedAt = d.CreatedAt.In(time.UTC)
		d.UpdatedAt = d.UpdatedAt.In(time.UTC)
		slots = append(slots, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("SlotRepository.FindAll (rows error): %w", err)
	}
	return slots, nil
}

func (r *pgSlotRepository) Update(ctx context.Context, id int, patch domain.SlotPatch) (*domain.Slot, error) {
	record := goqu.Record{"updated_at": goqu.L("CURRENT_TIMESTAMP")}
	if patch.SlotNumber != nil {
		record["slot_number"] = *patch.SlotNumber
	}
	if patch.SlotType != nil {
		record["slot_type"] = string(*patch.SlotType)
	}

	query, args, err := dialect.Update("slots").
		Set(record).
		Where(goqu.C("id").Eq(id)).
		Returning("id", "slot_number", "slot_type", "status", "created_at", "updated_at").
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("SlotRepository.Update (build): %w", err)
	}

	slot := &domain.Slot{}
	if err := scanSlot(r.db.QueryRowContext(ctx, query, args...), slot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		if isUniqueViolation(err, "slots_slot_number_key") {
			return nil, fmt.Errorf("%w: slot number '%s' already exists", repository.ErrDuplicateEntry, *patch.SlotNumber)
		}
		return nil, fmt.Errorf("SlotRepository.Update: %w", err)
	}
	return slot, nil
}

func (r *pgSlotRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: slot %d is referenced by residents, visitors or requests", repository.ErrReferenced, id)
		}
		return fmt.Errorf("SlotRepository.Delete: %w", err)
	}
	return requireAffected(result, "SlotRepository.Delete")
}

func (r *pgSlotRepository) CompareAndSetStatus(ctx context.Context, id int, from []domain.SlotStatus, to domain.SlotStatus) (*domain.Slot, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	query := `UPDATE slots SET status = $1, updated_at = CURRENT_TIMESTAMP
	           WHERE id = $2 AND status = ANY($3)
	           RETURNING ` + slotColumns
	slot := &domain.Slot{}
	err := scanSlot(r.db.QueryRowContext(ctx, query, to, id, pq.Array(allowed)), slot)
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("SlotRepository.CompareAndSetStatus: %w", err)
	}

	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: slot %s is %s", repository.ErrSlotUnavailable, current.SlotNumber, current.Status)
}

func (r *pgSlotRepository) AllocateAvailable(ctx context.Context, slotType domain.VehicleType) (*domain.Slot, error) {
	query := `UPDATE slots SET status = 'occupied', updated_at = CURRENT_TIMESTAMP
	           WHERE id = (
	               SELECT s.id FROM slots s
	               WHERE s.slot_type = $1 AND s.status = 'available'
	                 AND NOT EXISTS (SELECT 1 FROM users u WHERE u.assigned_slot_id = s.id)
	                 AND NOT EXISTS (SELECT 1 FROM visitors v WHERE v.slot_id = s.id AND v.status = 'approved')
	               ORDER BY s.id
	               LIMIT 1
	               FOR UPDATE SKIP LOCKED
	           )
	           RETURNING ` + slotColumns
	slot := &domain.Slot{}
	if err := scanSlot(r.db.QueryRowContext(ctx, query, slotType), slot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no available %s slot", repository.ErrSlotUnavailable, slotType)
		}
		return nil, fmt.Errorf("SlotRepository.AllocateAvailable: %w", err)
	}
	return slot, nil
}

func (r *pgSlotRepository) CountByStatus(ctx context.Context) (map[domain.SlotStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM slots GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("SlotRepository.CountByStatus: %w", err)
	}
	defer rows.Close()

	counts := map[domain.SlotStatus]int{}
	for rows.Next() {
		var status domain.SlotStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("SlotRepository.CountByStatus (scanning row): %w", err)
		}
		counts[status] = n
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("SlotRepository.CountByStatus (rows error): %w", err)
	}
	return counts, nil
}
