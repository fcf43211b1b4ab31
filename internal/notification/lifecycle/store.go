// Package lifecycle owns notification records and orchestrates create,
// edit and trigger.
package lifecycle

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"loyalty-notify/internal/common/errors"
	"loyalty-notify/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const notificationColumns = `id, organization_id, title, body, status, sent_count,
	failed_count, created_by, created_at, updated_at, sent_at`

const queryInsertNotification = `
	INSERT INTO notifications (
		id, organization_id, title, body, status, sent_count, failed_count,
		created_by, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, 0, 0, $6, $7, $7)`

const querySelectNotification = `SELECT ` + notificationColumns + `
	FROM notifications
	WHERE id = $1`

const queryListNotifications = `SELECT ` + notificationColumns + `
	FROM notifications
	WHERE organization_id = $1 AND status = ANY($2)
	ORDER BY created_at DESC, id
	LIMIT $3`

const queryUpdateDraft = `
	UPDATE notifications
	SET title = $2, body = $3, updated_at = $4
	WHERE id = $1 AND status = 'draft'`

// queryTransition moves status only from the expected current status.
const queryTransition = `
	UPDATE notifications
	SET status = $3, updated_at = $4
	WHERE id = $1 AND status = $2`

// querySettle records the final counts and stamps sent_at exactly once.
const querySettle = `
	UPDATE notifications
	SET status = $3, sent_count = $4, failed_count = $5,
		sent_at = $6, updated_at = $6
	WHERE id = $1 AND status = $2 AND sent_at IS NULL`

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

var allStatuses = []string{
	string(models.StatusDraft),
	string(models.StatusSending),
	string(models.StatusSent),
	string(models.StatusFailed),
}

// Store is the data-access boundary for notifications. Every status write
// is checked against models.CanTransition and guarded by a conditional update.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a new draft and fills in its id and timestamps.
func (s *Store) Create(ctx context.Context, n *models.Notification) error {
	now := s.now()
	n.ID = uuid.NewString()
	n.Status = models.StatusDraft
	n.CreatedAt, n.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, queryInsertNotification,
		n.ID, n.OrganizationID, n.Title, n.Body, string(n.Status), n.CreatedBy, now)
	if err != nil {
		return errors.NewDatabaseQueryFailedError("create notification", err)
	}
	return nil
}

// Get loads a notification. Ids that are not UUIDs cannot exist and are
// reported as not found.
func (s *Store) Get(ctx context.Context, id string) (*models.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NewNotificationNotFoundError(id)
	}
	n, err := scanNotification(s.db.QueryRowContext(ctx, querySelectNotification, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotificationNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("get notification", err)
	}
	return n, nil
}

// List returns the organization's notifications newest first. An empty
// statuses filter matches every status.
func (s *Store) List(ctx context.Context, organizationID string, statuses []models.NotificationStatus, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	filter := allStatuses
	if len(statuses) > 0 {
		filter = make([]string, len(statuses))
		for i, st := range statuses {
			filter[i] = string(st)
		}
	}

	rows, err := s.db.QueryContext(ctx, queryListNotifications, organizationID, pq.Array(filter), limit)
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("list notifications", err)
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, errors.NewDatabaseQueryFailedError("list notifications", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseQueryFailedError("list notifications", err)
	}
	return out, nil
}

// UpdateDraft replaces title and body while the notification is a draft.
func (s *Store) UpdateDraft(ctx context.Context, id, title, body string) (*models.Notification, error) {
	res, err := s.db.ExecContext(ctx, queryUpdateDraft, id, title, body, s.now())
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("update notification", err)
	}
	if err := s.expectOneRow(ctx, res, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Store) MarkSending(ctx context.Context, id string) error {
	if err := checkTransition(id, models.StatusDraft, models.StatusSending); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, queryTransition, id,
		string(models.StatusDraft), string(models.StatusSending), s.now())
	if err != nil {
		return errors.NewDatabaseQueryFailedError("mark sending", err)
	}
	return s.expectOneRow(ctx, res, id)
}

func (s *Store) Complete(ctx context.Context, id string, result models.DispatchResult) error {
	return s.settle(ctx, id, models.StatusSent, result)
}

func (s *Store) MarkFailed(ctx context.Context, id string, result models.DispatchResult) error {
	return s.settle(ctx, id, models.StatusFailed, result)
}

func (s *Store) settle(ctx context.Context, id string, to models.NotificationStatus, result models.DispatchResult) error {
	if err := checkTransition(id, models.StatusSending, to); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, querySettle, id,
		string(models.StatusSending), string(to), result.SentCount, result.FailedCount, s.now())
	if err != nil {
		return errors.NewDatabaseQueryFailedError("settle notification", err)
	}
	return s.expectOneRow(ctx, res, id)
}

func checkTransition(id string, from, to models.NotificationStatus) error {
	if !models.CanTransition(from, to) {
		return errors.NewNotificationConflictError(id, string(from))
	}
	return nil
}

// expectOneRow turns a missed conditional update into not-found or conflict.
func (s *Store) expectOneRow(ctx context.Context, res sql.Result, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return errors.NewDatabaseQueryFailedError("rows affected", err)
	}
	if rows > 0 {
		return nil
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == models.StatusSending {
		return errors.NewDispatchInProgressError("notificationId: " + id)
	}
	return errors.NewNotificationConflictError(id, string(current.Status))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var (
		n      models.Notification
		status string
		sentAt sql.NullTime
	)
	err := row.Scan(&n.ID, &n.OrganizationID, &n.Title, &n.Body, &status,
		&n.SentCount, &n.FailedCount, &n.CreatedBy, &n.CreatedAt, &n.UpdatedAt, &sentAt)
	if err != nil {
		return nil, err
	}
	n.Status = models.NotificationStatus(status)
	if sentAt.Valid {
		t := sentAt.Time
		n.SentAt = &t
	}
	return &n, nil
}
