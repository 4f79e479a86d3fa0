package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-drive-api/internal/models"
)

const copyRequestColumns = `id, requester_id, requester_drive_id, recipient_id, recipient_drive_id, target_type, target_id,
       status, message, created_at, processed_at`

// CopyRequestRepository persists copy request workflow rows.
type CopyRequestRepository struct {
	db *sqlx.DB
}

// NewCopyRequestRepository constructs the repository.
func NewCopyRequestRepository(db *sqlx.DB) *CopyRequestRepository {
	return &CopyRequestRepository{db: db}
}

// Create inserts a new request in PENDING state.
func (r *CopyRequestRepository) Create(ctx context.Context, request *models.CopyRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	request.Status = models.CopyRequestPending
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO copy_requests (` + copyRequestColumns + `)
	VALUES (:id, :requester_id, :requester_drive_id, :recipient_id, :recipient_drive_id, :target_type, :target_id,
	:status, :message, :created_at, :processed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create copy request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *CopyRequestRepository) GetByID(ctx context.Context, id string) (*models.CopyRequest, error) {
	var request models.CopyRequest
	if err := r.db.GetContext(ctx, &request, `SELECT `+copyRequestColumns+` FROM copy_requests WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests matching the filter, newest first, with the total count.
func (r *CopyRequestRepository) List(ctx context.Context, filter models.CopyRequestFilter) ([]models.CopyRequest, int, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	if filter.RequesterID != "" {
		args = append(args, filter.RequesterID)
		conditions = append(conditions, fmt.Sprintf("requester_id = $%d", len(args)))
	}
	if filter.RecipientID != "" {
		args = append(args, filter.RecipientID)
		conditions = append(conditions, fmt.Sprintf("recipient_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM copy_requests`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count copy requests: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM copy_requests%s ORDER BY created_at DESC, id LIMIT %d OFFSET %d`, copyRequestColumns, where, limit, offset)

	var requests []models.CopyRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list copy requests: %w", err)
	}
	return requests, total, nil
}

// Transition moves a PENDING request to a terminal status. It reports false
// when the request is missing or no longer pending.
func (r *CopyRequestRepository) Transition(ctx context.Context, id string, status models.CopyRequestStatus, processedAt time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE copy_requests SET status = $2, processed_at = $3 WHERE id = $1 AND status = '%s'`, models.CopyRequestPending)
	result, err := r.db.ExecContext(ctx, query, id, status, processedAt)
	if err != nil {
		return false, fmt.Errorf("transition copy request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition copy request rows affected: %w", err)
	}
	return affected == 1, nil
}

// DeletePending removes a request only while it is still PENDING.
func (r *CopyRequestRepository) DeletePending(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM copy_requests WHERE id = $1 AND status = '%s'`, models.CopyRequestPending)
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete copy request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete copy request rows affected: %w", err)
	}
	return affected == 1, nil
}
