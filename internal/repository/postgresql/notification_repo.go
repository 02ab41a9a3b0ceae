package postgresql

import (
	"apartment_parking/internal/domain"
	"apartment_parking/internal/repository"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const notificationColumns = `id, user_id, title, message, type, is_read, created_at`

type pgNotificationRepository struct {
	db querier
}

func scanNotification(row rowScanner, n *domain.Notification) error {
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt); err != nil {
		return err
	}
	n.CreatedAt = n.CreatedAt.In(time.UTC)
	return nil
}

func (r *pgNotificationRepository) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	query := `INSERT INTO notifications (user_id, title, message, type, is_read, created_at)
	           VALUES ($1, $2, $3, $4, FALSE, CURRENT_TIMESTAMP)
	           RETURNING id, is_read, created_at`
	err := r.db.QueryRowContext(ctx, query, n.UserID, n.Title, n.Message, n.Type).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("NotificationRepository.Create: %w", err)
	}
	n.CreatedAt = n.CreatedAt.In(time.UTC)
	return n, nil
}

func (r *pgNotificationRepository) FindByUser(ctx context.Context, userID int, unreadOnly bool) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("NotificationRepository.FindByUser: %w", err)
	}
	defer rows.Close()

	notifications := []domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		if err := scanNotification(rows, &n); err != nil {
			return nil, fmt.Errorf("NotificationRepository.FindByUser (scanning row): %w", err)
		}
		notifications = append(notifications, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("NotificationRepository.FindByUser (rows error): %w", err)
	}
	return notifications, nil
}

// MarkRead only touches notifications owned by userID; anything else is ErrNotFound.
func (r *pgNotificationRepository) MarkRead(ctx context.Context, id, userID int) (*domain.Notification, error) {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2 RETURNING ` + notificationColumns
	n := &domain.Notification{}
	if err := scanNotification(r.db.QueryRowContext(ctx, query, id, userID), n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("NotificationRepository.MarkRead: %w", err)
	}
	return n, nil
}

func (r *pgNotificationRepository) MarkAllRead(ctx context.Context, userID int) (int, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("NotificationRepository.MarkAllRead: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("NotificationRepository.MarkAllRead (rows affected): %w", err)
	}
	return int(n), nil
}

func (r *pgNotificationRepository) CountUnread(ctx context.Context, userID int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("NotificationRepository.CountUnread: %w", err)
	}
	return count, nil
}

func (r *pgNotificationRepository) DeleteByUser(ctx context.Context, userID int) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("NotificationRepository.DeleteByUser: %w", err)
	}
	return nil
}
