package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"budgetme-notifications/internal/domain"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Notification, error)
	List(ctx context.Context, userID uuid.UUID, q domain.NotificationQuery) ([]*domain.Notification, int64, error)
	ListUnreadSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Notification, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) (bool, error)
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkManyAsRead(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) (int64, error)
	MarkClicked(ctx context.Context, id, userID uuid.UUID) (bool, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateContent(ctx context.Context, n *domain.Notification) error
	Delete(ctx context.Context, id, userID uuid.UUID) (bool, error)
	DeleteExpiredByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteExpiredRead(ctx context.Context) (int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	Counts(ctx context.Context, userID uuid.UUID) (*domain.NotificationCounts, error)
	CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time, exclude []uuid.UUID) (int64, error)
	Analytics(ctx context.Context, userID uuid.UUID, since time.Time) ([]domain.AnalyticsRow, error)
}

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// notificationRow adds the four related-entity columns the domain type folds
// into a single RelatedEntity.
type notificationRow struct {
	domain.Notification
	RelatedBudgetID      *uuid.UUID `db:"related_budget_id"`
	RelatedGoalID        *uuid.UUID `db:"related_goal_id"`
	RelatedFamilyID      *uuid.UUID `db:"related_family_id"`
	RelatedTransactionID *uuid.UUID `db:"related_transaction_id"`
}

func (r *notificationRow) toDomain() *domain.Notification {
	n := r.Notification
	n.Related = domain.RelatedFromColumns(r.RelatedBudgetID, r.RelatedGoalID, r.RelatedFamilyID, r.RelatedTransactionID)
	if n.Metadata == nil {
		n.Metadata = domain.Metadata{}
	}
	return &n
}

func rowsToDomain(rows []notificationRow) []*domain.Notification {
	out := make([]*domain.Notification, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out
}

const notExpired = `(expires_at IS NULL OR expires_at > NOW())`

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	budgetID, goalID, familyID, transactionID := n.Related.Columns()
	if n.Metadata == nil {
		n.Metadata = domain.Metadata{}
	}

	query := `
		INSERT INTO notifications (
			id, user_id, notification_type, event_type, title, message, priority, severity,
			is_read, read_at, is_actionable, action_url, action_text,
			related_budget_id, related_goal_id, related_family_id, related_transaction_id,
			metadata, created_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING created_at`

	return r.db.QueryRowxContext(ctx, query,
		n.ID, n.UserID, n.NotificationType, n.EventType, n.Title, n.Message, n.Priority, n.Severity,
		n.IsRead, n.ReadAt, n.IsActionable, n.ActionURL, n.ActionText,
		budgetID, goalID, familyID, transactionID,
		n.Metadata, n.CreatedAt, n.ExpiresAt,
	).Scan(&n.CreatedAt)
}

func (r *notificationRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Notification, error) {
	var row notificationRow
	query := `SELECT * FROM notifications WHERE id = $1 AND user_id = $2`

	err := r.db.GetContext(ctx, &row, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

var priorityRank = `CASE priority WHEN 'urgent' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END`

func (r *notificationRepository) List(ctx context.Context, userID uuid.UUID, q domain.NotificationQuery) ([]*domain.Notification, int64, error) {
	conds := []string{"user_id = $1", notExpired}
	args := []any{userID}
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if q.NotificationType != nil {
		add("notification_type = $%d", *q.NotificationType)
	}
	if q.EventType != nil {
		add("event_type = $%d", *q.EventType)
	}
	if q.Priority != nil {
		add("priority = $%d", *q.Priority)
	}
	if q.IsRead != nil {
		add("is_read = $%d", *q.IsRead)
	}
	if q.CreatedAfter != nil {
		add("created_at >= $%d", *q.CreatedAfter)
	}
	if q.CreatedBefore != nil {
		add("created_at <= $%d", *q.CreatedBefore)
	}
	where := strings.Join(conds, " AND ")

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM notifications WHERE `+where, args...); err != nil {
		return nil, 0, err
	}

	order := "created_at"
	switch q.SortBy {
	case domain.SortByPriority:
		order = priorityRank
	case domain.SortByIsRead:
		order = "is_read"
	}
	dir := "DESC"
	if q.SortOrder == domain.SortAsc {
		dir = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT * FROM notifications
		WHERE %s
		ORDER BY %s %s, created_at DESC, id
		LIMIT $%d OFFSET $%d`, where, order, dir, len(args)+1, len(args)+2)

	var rows []notificationRow
	if err := r.db.SelectContext(ctx, &rows, query, append(args, q.Limit, q.Offset)...); err != nil {
		return nil, 0, err
	}
	return rowsToDomain(rows), total, nil
}

func (r *notificationRepository) ListUnreadSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Notification, error) {
	query := `
		SELECT * FROM notifications
		WHERE user_id = $1 AND is_read = false AND created_at >= $2 AND ` + notExpired + `
		ORDER BY created_at DESC`

	var rows []notificationRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, since); err != nil {
		return nil, err
	}
	return rowsToDomain(rows), nil
}

// MarkAsRead reports whether the notification exists for the user. Already
// read rows are left untouched.
func (r *notificationRepository) MarkAsRead(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	query := `
		UPDATE notifications SET is_read = true, read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND user_id = $2
		RETURNING id`

	var got uuid.UUID
	err := r.db.GetContext(ctx, &got, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `UPDATE notifications SET is_read = true, read_at = NOW() WHERE user_id = $1 AND is_read = false`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *notificationRepository) MarkManyAsRead(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `
		UPDATE notifications SET is_read = true, read_at = NOW()
		WHERE user_id = $1 AND id = ANY($2::uuid[]) AND is_read = false`
	res, err := r.db.ExecContext(ctx, query, userID, pq.Array(uuidStrings(ids)))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *notificationRepository) MarkClicked(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	query := `
		UPDATE notifications
		SET clicked_at = COALESCE(clicked_at, NOW()), is_read = true, read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *notificationRepository) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE notifications SET delivered_at = $2 WHERE id = $1 AND delivered_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, id, at)
	return err
}

// UpdateContent persists a consolidation rewrite: title, message, metadata and
// read state.
func (r *notificationRepository) UpdateContent(ctx context.Context, n *domain.Notification) error {
	query := `
		UPDATE notifications
		SET title = $3, message = $4, metadata = $5, is_read = $6, read_at = $7
		WHERE id = $1 AND user_id = $2`
	_, err := r.db.ExecContext(ctx, query, n.ID, n.UserID, n.Title, n.Message, n.Metadata, n.IsRead, n.ReadAt)
	return err
}

func (r *notificationRepository) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *notificationRepository) DeleteExpiredByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `DELETE FROM notifications WHERE user_id = $1 AND expires_at IS NOT NULL AND expires_at <= NOW()`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpiredRead is the global sweep: only notifications that have both
// expired and been read are removed.
func (r *notificationRepository) DeleteExpiredRead(ctx context.Context) (int64, error) {
	query := `DELETE FROM notifications WHERE is_read = true AND expires_at IS NOT NULL AND expires_at <= NOW()`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false AND ` + notExpired
	err := r.db.GetContext(ctx, &count, query, userID)
	return count, err
}

func (r *notificationRepository) Counts(ctx context.Context, userID uuid.UUID) (*domain.NotificationCounts, error) {
	var rows []struct {
		NotificationType domain.NotificationType `db:"notification_type"`
		Priority         domain.Priority         `db:"priority"`
		Total            int64                   `db:"total"`
		Unread           int64                   `db:"unread"`
	}
	query := `
		SELECT notification_type, priority, COUNT(*) AS total,
			COUNT(*) FILTER (WHERE is_read = false) AS unread
		FROM notifications
		WHERE user_id = $1 AND ` + notExpired + `
		GROUP BY notification_type, priority`
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}

	counts := &domain.NotificationCounts{
		ByType:     make(map[domain.NotificationType]int64),
		ByPriority: make(map[domain.Priority]int64),
	}
	for _, row := range rows {
		counts.Total += row.Total
		counts.Unread += row.Unread
		counts.ByType[row.NotificationType] += row.Total
		counts.ByPriority[row.Priority] += row.Total
	}
	return counts, nil
}

func (r *notificationRepository) CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time, exclude []uuid.UUID) (int64, error) {
	var count int64
	query := `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND created_at >= $2 AND NOT (id = ANY($3::uuid[]))`
	err := r.db.GetContext(ctx, &count, query, userID, since, pq.Array(uuidStrings(exclude)))
	return count, err
}

func (r *notificationRepository) Analytics(ctx context.Context, userID uuid.UUID, since time.Time) ([]domain.AnalyticsRow, error) {
	query := `
		SELECT event_type,
			EXTRACT(HOUR FROM created_at AT TIME ZONE 'UTC')::int AS hour,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE is_read) AS read,
			COUNT(*) FILTER (WHERE is_actionable) AS actionable,
			COUNT(*) FILTER (WHERE is_actionable AND clicked_at IS NOT NULL) AS clicked
		FROM notifications
		WHERE user_id = $1 AND created_at >= $2
		GROUP BY event_type, hour`

	var rows []domain.AnalyticsRow
	err := r.db.SelectContext(ctx, &rows, query, userID, since)
	return rows, err
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
