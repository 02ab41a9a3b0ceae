package postgresql

import (
	"apartment_parking/internal/domain"
	"apartment_parking/internal/repository"
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"
)

func setupMockStore(t *testing.T) (repository.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

var slotCols = []string{"id", "slot_number", "slot_type", "status", "created_at", "updated_at"}

func TestSlotRepository_CompareAndSetStatus(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("IST", 19800))
	from := []domain.SlotStatus{domain.SlotAvailable}

	t.Run("updates when status matches", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE slots SET status = $1`)).
			WithArgs(domain.SlotOccupied, 1, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(slotCols).AddRow(1, "A-01", "four_wheeler", "occupied", now, now))

		slot, err := store.Slots().CompareAndSetStatus(context.Background(), 1, from, domain.SlotOccupied)
		require.NoError(t, err)
		assert.Equal(t, domain.SlotOccupied, slot.Status)
		assert.Equal(t, time.UTC, slot.UpdatedAt.Location())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong status is unavailable", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE slots SET status = $1`)).
			WillReturnRows(sqlmock.NewRows(slotCols))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM slots WHERE id = $1`)).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows(slotCols).AddRow(1, "A-01", "four_wheeler", "damaged", now, now))

		_, err := store.Slots().CompareAndSetStatus(context.Background(), 1, from, domain.SlotOccupied)
		assert.ErrorIs(t, err, repository.ErrSlotUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing slot is not found", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE slots SET status = $1`)).
			WillReturnRows(sqlmock.NewRows(slotCols))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM slots WHERE id = $1`)).
			WillReturnRows(sqlmock.NewRows(slotCols))

		_, err := store.Slots().CompareAndSetStatus(context.Background(), 9, from, domain.SlotOccupied)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestSlotRepository_AllocateAvailable(t *testing.T) {
	now := time.Now()

	t.Run("takes first free slot of the type", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(`NOT EXISTS (SELECT 1 FROM visitors v WHERE v.slot_id = s.id AND v.status = 'approved')`)).
			WithArgs(domain.TwoWheeler).
			WillReturnRows(sqlmock.NewRows(slotCols).AddRow(3, "B-01", "two_wheeler", "occupied", now, now))

		slot, err := store.Slots().AllocateAvailable(context.Background(), domain.TwoWheeler)
		require.NoError(t, err)
		assert.Equal(t, 3, slot.ID)
		assert.Equal(t, domain.TwoWheeler, slot.SlotType)
	})

	t.Run("none free", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).WillReturnRows(sqlmock.NewRows(slotCols))

		_, err := store.Slots().AllocateAvailable(context.Background(), domain.FourWheeler)
		assert.ErrorIs(t, err, repository.ErrSlotUnavailable)
	})
}

func TestSlotRepository_CreateAndDeleteErrors(t *testing.T) {
	store, mock := setupMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO slots`)).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "slots_slot_number_key"})
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM slots WHERE id = $1`)).
		WithArgs(4).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "visitors_slot_id_fkey"})
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM slots WHERE id = $1`)).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.Slots().Create(context.Background(), &domain.Slot{SlotNumber: "A-01", SlotType: domain.FourWheeler})
	assert.ErrorIs(t, err, repository.ErrDuplicateEntry)

	err = store.Slots().Delete(context.Background(), 4)
	assert.ErrorIs(t, err, repository.ErrReferenced)

	err = store.Slots().Delete(context.Background(), 5)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_Update(t *testing.T) {
	store, mock := setupMockStore(t)
	now := time.Now()
	number := "C-10"
	mock.ExpectQuery(`UPDATE "slots" SET`).
		WillReturnRows(sqlmock.NewRows(slotCols).AddRow(2, "C-10", "four_wheeler", "available", now, now))

	slot, err := store.Slots().Update(context.Background(), 2, domain.SlotPatch{SlotNumber: &number})
	require.NoError(t, err)
	assert.Equal(t, "C-10", slot.SlotNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create(t *testing.T) {
	t.Run("duplicate email", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

		_, err := store.Users().Create(context.Background(), &domain.User{Email: "a@b.com"})
		assert.ErrorIs(t, err, repository.ErrDuplicateEntry)
	})

	t.Run("returns generated id", func(t *testing.T) {
		store, mock := setupMockStore(t)
		now := time.Now()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
			WithArgs("a@b.com", "hash", "Asha", domain.RoleResident, null.StringFrom("A-101"), null.String{}, null.String{}).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(7, now, now))

		user, err := store.Users().Create(context.Background(), &domain.User{
			Email: "a@b.com", Password: "hash", FullName: "Asha", Role: domain.RoleResident,
			FlatNumber: null.StringFrom("A-101"),
		})
		require.NoError(t, err)
		assert.Equal(t, 7, user.ID)
	})
}

func TestUserRepository_SetAssignedSlotHeldElsewhere(t *testing.T) {
	store, mock := setupMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET assigned_slot_id = $1`)).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_assigned_slot_id_key"})

	err := store.Users().SetAssignedSlot(context.Background(), 1, null.IntFrom(2))
	assert.ErrorIs(t, err, repository.ErrSlotUnavailable)
}

func TestUserRepository_FindByEmailNotFound(t *testing.T) {
	store, mock := setupMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = $1`)).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Users().FindByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestVisitorRepository_TransitionFromWrongStatus(t *testing.T) {
	store, mock := setupMockStore(t)
	now := time.Now()
	cols := []string{"id", "visitor_name", "vehicle_number", "vehicle_type", "entry_time", "exit_time",
		"status", "resident_id", "slot_id", "created_at", "updated_at"}

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE visitors SET status = $1`)).
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM visitors WHERE id = $1`)).
		WithArgs(11).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(11, "Ravi", "KA01AB1234", "four_wheeler", now, nil, "rejected", 1, nil, now, now))

	v := &domain.Visitor{ID: 11, Status: domain.VisitorApproved, SlotID: null.IntFrom(3)}
	_, err := store.Visitors().Transition(context.Background(), v, domain.VisitorPending)
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var visitorCols = []string{"id", "visitor_name", "vehicle_number", "vehicle_type", "entry_time", "exit_time",
	"status", "resident_id", "slot_id", "created_at", "updated_at"}

func TestVisitorRepository_DeleteInStatus(t *testing.T) {
	now := time.Now()
	cancellable := []domain.VisitorStatus{domain.VisitorPending, domain.VisitorApproved}

	t.Run("returns the deleted row", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(`DELETE FROM visitors WHERE id = $1 AND status = ANY($2) RETURNING`)).
			WithArgs(5, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(visitorCols).AddRow(5, "Ravi", "KA01AB1234", "four_wheeler", now, nil, "approved", 1, 3, now, now))

		v, err := store.Visitors().DeleteInStatus(context.Background(), 5, cancellable)
		require.NoError(t, err)
		assert.True(t, v.HoldsSlot())
		assert.Equal(t, int64(3), v.SlotID.Int64)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("visitor that already exited is kept", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(`DELETE FROM visitors WHERE id = $1 AND status = ANY($2)`)).
			WillReturnRows(sqlmock.NewRows(visitorCols))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM visitors WHERE id = $1`)).
			WithArgs(5).
			WillReturnRows(sqlmock.NewRows(visitorCols).AddRow(5, "Ravi", "KA01AB1234", "four_wheeler", now, now, "completed", 1, 3, now, now))

		_, err := store.Visitors().DeleteInStatus(context.Background(), 5, cancellable)
		assert.ErrorIs(t, err, repository.ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing visitor", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(`DELETE FROM visitors`)).WillReturnRows(sqlmock.NewRows(visitorCols))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM visitors WHERE id = $1`)).WillReturnRows(sqlmock.NewRows(visitorCols))

		_, err := store.Visitors().DeleteInStatus(context.Background(), 8, cancellable)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestVisitorRepository_DeleteByResidentReturnsRows(t *testing.T) {
	store, mock := setupMockStore(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`DELETE FROM visitors WHERE resident_id = $1 RETURNING`)).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(visitorCols).
			AddRow(5, "Ravi", "KA01AB1234", "four_wheeler", now, nil, "approved", 1, 3, now, now).
			AddRow(6, "Asha", "KA02CD5678", "two_wheeler", now, now, "completed", 1, 4, now, now))

	deleted, err := store.Visitors().DeleteByResident(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, deleted, 2)
	assert.True(t, deleted[0].HoldsSlot())
	assert.False(t, deleted[1].HoldsSlot())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitorRepository_FindHolding(t *testing.T) {
	store, mock := setupMockStore(t)
	now := time.Now()
	mock.ExpectQuery(`WHERE slot_id = \$1 AND status = \$2(.|\n)*FOR UPDATE`).
		WithArgs(3, domain.VisitorApproved).
		WillReturnRows(sqlmock.NewRows(visitorCols).AddRow(5, "Ravi", "KA01AB1234", "four_wheeler", now, nil, "approved", 1, 3, now, now))
	mock.ExpectQuery(`WHERE slot_id = \$1 AND status = \$2`).
		WithArgs(4, domain.VisitorApproved).
		WillReturnRows(sqlmock.NewRows(visitorCols))

	v, err := store.Visitors().FindHolding(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 5, v.ID)

	_, err = store.Visitors().FindHolding(context.Background(), 4)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitorRepository_FindAllFilters(t *testing.T) {
	store, mock := setupMockStore(t)
	now := time.Now()
	cols := []string{"id", "visitor_name", "vehicle_number", "vehicle_type", "entry_time", "exit_time",
		"status", "resident_id", "slot_id", "created_at", "updated_at", "full_name", "slot_number"}

	mock.ExpectQuery(`SELECT .* FROM "visitors" AS "v" LEFT JOIN "users" AS "u" .* LEFT JOIN "slots" AS "s" .* WHERE .*"v"."resident_id" = \$1.*"v"."status" IN \(\$2\)`).
		WithArgs(1, "pending").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(5, "Ravi", "KA01AB1234", "two_wheeler", now, nil, "pending", 1, nil, now, now, "Asha", nil))

	visitors, err := store.Visitors().FindAll(context.Background(), domain.VisitorFilter{
		ResidentID: 1,
		Statuses:   []domain.VisitorStatus{domain.VisitorPending},
	})
	require.NoError(t, err)
	require.Len(t, visitors, 1)
	assert.Equal(t, "Asha", visitors[0].ResidentName.String)
	assert.False(t, visitors[0].SlotNumber.Valid)
}

func TestRequestRepository_TransitionTerminal(t *testing.T) {
	store, mock := setupMockStore(t)
	now := time.Now()
	cols := []string{"id", "request_type", "description", "status", "resident_id", "slot_id", "created_at", "updated_at"}

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE requests SET status = $1`)).
		WithArgs(domain.RequestRejected, 4, domain.RequestPending).
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM requests WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(4, "damage_report", "leak", "approved", 1, 2, now, now))

	_, err := store.Requests().Transition(context.Background(), 4, domain.RequestPending, domain.RequestRejected)
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)
}

func TestNotificationRepository_MarkReadOtherUser(t *testing.T) {
	store, mock := setupMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`)).
		WithArgs(3, 99).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Notifications().MarkRead(context.Background(), 3, 99)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_WithTx(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET password_hash = $1`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithTx(context.Background(), func(tx repository.Repositories) error {
			return tx.Users().UpdatePassword(context.Background(), 1, "hash")
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		store, mock := setupMockStore(t)
		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := store.WithTx(context.Background(), func(tx repository.Repositories) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
