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
	"gopkg.in/guregu/null.v4"
)

const userColumns = `id, email, password_hash, full_name, role, flat_number, phone_number, vehicle_type, assigned_slot_id, created_at, updated_at`

var userReturning = []any{
	"id", "email", "password_hash", "full_name", "role", "flat_number",
	"phone_number", "vehicle_type", "assigned_slot_id", "created_at", "updated_at",
}

type pgUserRepository struct {
	db querier
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, user *domain.User) error {
	err := row.Scan(
		&user.ID, &user.Email, &user.Password, &user.FullName, &user.Role, &user.FlatNumber,
		&user.PhoneNumber, &user.VehicleType, &user.AssignedSlotID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return err
	}
	user.CreatedAt = user.CreatedAt.In(time.UTC)
	user.UpdatedAt = user.UpdatedAt.In(time.UTC)
	return nil
}

func (r *pgUserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `INSERT INTO users (email, password_hash, full_name, role, flat_number, phone_number, vehicle_type, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.Password, user.FullName, user.Role, user.FlatNumber, user.PhoneNumber, user.VehicleType,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return nil, fmt.Errorf("%w: email '%s' is already registered", repository.ErrDuplicateEntry, user.Email)
		}
		return nil, fmt.Errorf("UserRepository.Create: %w", err)
	}
	user.CreatedAt = user.CreatedAt.In(time.UTC)
	user.UpdatedAt = user.UpdatedAt.In(time.UTC)
	return user, nil
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user := &domain.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	if err := scanUser(r.db.QueryRowContext(ctx, query, email), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("UserRepository.FindByEmail: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) FindByID(ctx context.Context, id int) (*domain.User, error) {
	user := &domain.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := scanUser(r.db.QueryRowContext(ctx, query, id), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("UserRepository.FindByID: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) FindAll(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	ds := dialect.From("users").Select(goqu.L(userColumns)).Order(goqu.C("id").Asc())
	if filter.Role != "" {
		ds = ds.Where(goqu.C("role").Eq(filter.Role))
	}
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("UserRepository.FindAll (build): %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("UserRepository.FindAll: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var user domain.User
		if err := scanUser(rows, &user); err != nil {
			return nil, fmt.Errorf("UserRepository.FindAll (scanning row): %w", err)
		}
		users = append(users, user)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("UserRepository.FindAll (rows error): %w", err)
	}
	return users, nil
}

func (r *pgUserRepository) FindByAssignedSlot(ctx context.Context, slotID int) (*domain.User, error) {
	user := &domain.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE assigned_slot_id = $1`
	if err := scanUser(r.db.QueryRowContext(ctx, query, slotID), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("UserRepository.FindByAssignedSlot: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) UpdateProfile(ctx context.Context, id int, patch domain.ProfilePatch) (*domain.User, error) {
	record := goqu.Record{"updated_at": goqu.L("CURRENT_TIMESTAMP")}
	if patch.FullName != nil {
		record["full_name"] = *patch.FullName
	}
	if patch.PhoneNumber != nil {
		record["phone_number"] = null.NewString(*patch.PhoneNumber, *patch.PhoneNumber != "")
	}
	if patch.VehicleType != nil {
		record["vehicle_type"] = null.NewString(*patch.VehicleType, *patch.VehicleType != "")
	}

	query, args, err := dialect.Update("users").
		Set(record).
		Where(goqu.C("id").Eq(id)).
		Returning(userReturning...).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("UserRepository.UpdateProfile (build): %w", err)
	}

	user := &domain.User{}
	if err := scanUser(r.db.QueryRowContext(ctx, query, args...), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("UserRepository.UpdateProfile: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		return fmt.Errorf("UserRepository.UpdatePassword: %w", err)
	}
	return requireAffected(result, "UserRepository.UpdatePassword")
}

func (r *pgUserRepository) SetAssignedSlot(ctx context.Context, id int, slotID null.Int) error {
	query := `UPDATE users SET assigned_slot_id = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, slotID, id)
	if err != nil {
		if isUniqueViolation(err, "users_assigned_slot_id_key") {
			return fmt.Errorf("%w: slot %d is assigned to another resident", repository.ErrSlotUnavailable, slotID.Int64)
		}
		return fmt.Errorf("UserRepository.SetAssignedSlot: %w", err)
	}
	return requireAffected(result, "UserRepository.SetAssignedSlot")
}

func (r *pgUserRepository) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM users WHERE role = $1`
	if err := r.db.QueryRowContext(ctx, query, role).Scan(&count); err != nil {
		return 0, fmt.Errorf("UserRepository.CountByRole: %w", err)
	}
	return count, nil
}

func (r *pgUserRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: user %d", repository.ErrReferenced, id)
		}
		return fmt.Errorf("UserRepository.Delete: %w", err)
	}
	return requireAffected(result, "UserRepository.Delete")
}

func requireAffected(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s (rows affected): %w", op, err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
