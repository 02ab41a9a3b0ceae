package postgresql

import (
	"apartment_parking/internal/repository"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var dialect = goqu.Dialect("postgres")

type repos struct {
	users         *pgUserRepository
	slots         *pgSlotRepository
	visitors      *pgVisitorRepository
	requests      *pgRequestRepository
	notifications *pgNotificationRepository
}

func newRepos(q querier) repos {
	return repos{
		users:         &pgUserRepository{db: q},
		slots:         &pgSlotRepository{db: q},
		visitors:      &pgVisitorRepository{db: q},
		requests:      &pgRequestRepository{db: q},
		notifications: &pgNotificationRepository{db: q},
	}
}

func (r repos) Users() repository.UserRepository                 { return r.users }
func (r repos) Slots() repository.SlotRepository                 { return r.slots }
func (r repos) Visitors() repository.VisitorRepository           { return r.visitors }
func (r repos) Requests() repository.RequestRepository           { return r.requests }
func (r repos) Notifications() repository.NotificationRepository { return r.notifications }

type pgStore struct {
	repos
	db *sql.DB
}

func NewStore(db *sql.DB) repository.Store {
	return &pgStore{repos: newRepos(db), db: db}
}

func (s *pgStore) WithTx(ctx context.Context, fn func(tx repository.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Store.WithTx (begin): %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(newRepos(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Error().Err(rbErr).Msg("transaction rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Store.WithTx (commit): %w", err)
	}
	return nil
}

func (s *pgStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func pgErrorCode(err error) (string, string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name(), pqErr.Constraint, true
	}
	return "", "", false
}

func isUniqueViolation(err error, constraint string) bool {
	code, name, ok := pgErrorCode(err)
	return ok && code == "unique_violation" && name == constraint
}

func isForeignKeyViolation(err error) bool {
	code, _, ok := pgErrorCode(err)
	return ok && code == "foreign_key_violation"
}
