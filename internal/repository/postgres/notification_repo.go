// internal/repository/postgres/notification_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cargolink-service/internal/domain/notification"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	var metadataJSON []byte
	if n.Metadata != nil {
		b, err := json.Marshal(n.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal notification metadata: %w", err)
		}
		metadataJSON = b
	}

	n.CreatedAt = time.Now()
	err := r.db.QueryRow(ctx, `
		INSERT INTO notifications (identity_id, category, type, title, message, order_id, channels, metadata, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9)
		RETURNING id
	`, n.IdentityID, n.Category, n.Type, n.Title, n.Message, n.OrderID,
		pq.Array(n.Channels), metadataJSON, n.CreatedAt,
	).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ExistsSimilar checks the dedupe key {identity, category, type, order}. A
// nil orderID only matches rows with no order attached.
func (r *NotificationRepository) ExistsSimilar(ctx context.Context, identityID int64, category notification.Category, typ string, orderID *int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM notifications
			WHERE identity_id = $1 AND category = $2 AND type = $3
			  AND order_id IS NOT DISTINCT FROM $4
		)
	`, identityID, category, typ, orderID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check notification dedupe: %w", err)
	}
	return exists, nil
}

func (r *NotificationRepository) List(ctx context.Context, identityID int64, filters *notification.ListFilters) ([]notification.Notification, int64, error) {
	page := 1
	pageSize := 20
	if filters != nil {
		if filters.Page > 0 {
			page = filters.Page
		}
		if filters.PageSize > 0 && filters.PageSize <= 100 {
			pageSize = filters.PageSize
		}
	}

	where := `WHERE identity_id = $1`
	args := []interface{}{identityID}
	if filters != nil && filters.IsRead != nil {
		args = append(args, *filters.IsRead)
		where += fmt.Sprintf(` AND is_read = $%d`, len(args))
	}
	if filters != nil && filters.Category != nil {
		args = append(args, *filters.Category)
		where += fmt.Sprintf(` AND category = $%d`, len(args))
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM notifications ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	args = append(args, pageSize, (page-1)*pageSize)
	listQuery := fmt.Sprintf(`
		SELECT id, identity_id, category, type, title, message, order_id, channels, metadata, is_read, created_at, read_at
		FROM notifications %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []notification.Notification{}
	for rows.Next() {
		var n notification.Notification
		var metadataJSON []byte
		err := rows.Scan(
			&n.ID, &n.IdentityID, &n.Category, &n.Type, &n.Title, &n.Message,
			&n.OrderID, pq.Array(&n.Channels), &metadataJSON, &n.IsRead,
			&n.CreatedAt, &n.ReadAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &n.Metadata); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal notification metadata: %w", err)
			}
		}
		notifications = append(notifications, n)
	}
	return notifications, total, nil
}

func (r *NotificationRepository) MarkAsRead(ctx context.Context, id, identityID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE notifications
		SET is_read = true, read_at = NOW()
		WHERE id = $1 AND identity_id = $2 AND NOT is_read
	`, id, identityID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, identityID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE identity_id = $1 AND NOT is_read
	`, identityID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}
