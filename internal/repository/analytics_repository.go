package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/docaccess-api/internal/models"
)

// ErrMirrorRowMissing is returned when a status update finds no mirror row, typically
// because the create event has not landed yet.
var ErrMirrorRowMissing = errors.New("analytics mirror row not found")

const mirrorColumns = `request_id, user_type, email, department, program, country, city, school, status, created_at, updated_at`

// AnalyticsRepository reads and writes the requesters_analytics mirror table.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository constructs the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Insert adds a mirror row. Replayed inserts for the same request are ignored.
func (r *AnalyticsRepository) Insert(ctx context.Context, record models.MirrorRecord) error {
	const query = `INSERT INTO requesters_analytics
	(request_id, user_type, email, department, program, country, city, school, status, created_at, updated_at)
	VALUES (:request_id, :user_type, :email, :department, :program, :country, :city, :school, :status, :created_at, :updated_at)
	ON CONFLICT (request_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("insert analytics mirror: %w", err)
	}
	return nil
}

// UpdateStatus sets the mirrored status for requestID.
func (r *AnalyticsRepository) UpdateStatus(ctx context.Context, requestID string, status models.RequestStatus, at time.Time) error {
	const query = `UPDATE requesters_analytics SET status = $1, updated_at = $2 WHERE request_id = $3`
	res, err := r.db.ExecContext(ctx, query, status, at, requestID)
	if err != nil {
		return fmt.Errorf("update analytics status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update analytics status rows: %w", err)
	}
	if affected == 0 {
		return ErrMirrorRowMissing
	}
	return nil
}

// List returns mirror rows matching the filter, newest first.
func (r *AnalyticsRepository) List(ctx context.Context, filter models.AnalyticsFilter) ([]models.MirrorRecord, error) {
	where, args := mirrorConditions(filter)
	query := "SELECT " + mirrorColumns + " FROM requesters_analytics" + where + " ORDER BY created_at DESC"
	var records []models.MirrorRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list analytics mirror: %w", err)
	}
	return records, nil
}

// Summary groups mirror rows by user type and status.
func (r *AnalyticsRepository) Summary(ctx context.Context, filter models.AnalyticsFilter) ([]models.AnalyticsBucket, error) {
	where, args := mirrorConditions(filter)
	query := "SELECT user_type, status, COUNT(*) AS total FROM requesters_analytics" + where +
		" GROUP BY user_type, status ORDER BY user_type, status"
	var buckets []models.AnalyticsBucket
	if err := r.db.SelectContext(ctx, &buckets, query, args...); err != nil {
		return nil, fmt.Errorf("summarise analytics mirror: %w", err)
	}
	return buckets, nil
}

func mirrorConditions(filter models.AnalyticsFilter) (string, []interface{}) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.UserType != "" {
		args = append(args, filter.UserType)
		conditions = append(conditions, fmt.Sprintf("user_type = $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
