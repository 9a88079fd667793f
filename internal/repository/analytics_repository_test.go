package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docaccess-api/internal/models"
)

func newAnalyticsRepoMock(t *testing.T) (*AnalyticsRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewAnalyticsRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func TestAnalyticsRepositoryInsertIgnoresDuplicates(t *testing.T) {
	repo, mock, cleanup := newAnalyticsRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO requesters_analytics") + "(?s).*ON CONFLICT \\(request_id\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := &models.Request{
		ID:        "req-1",
		UserType:  models.UserTypeGuest,
		Requester: models.Requester{Email: "a@gmail.com", Country: "PH"},
		Status:    models.RequestStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Insert(context.Background(), models.MirrorRecordFromRequest(req)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryUpdateStatus(t *testing.T) {
	repo, mock, cleanup := newAnalyticsRepoMock(t)
	defer cleanup()

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE requesters_analytics SET status = $1, updated_at = $2 WHERE request_id = $3")).
		WithArgs(models.RequestStatusApproved, at, "req-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), "req-1", models.RequestStatusApproved, at))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE requesters_analytics")).
		WithArgs(models.RequestStatusRejected, at, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateStatus(context.Background(), "missing", models.RequestStatusRejected, at)
	require.ErrorIs(t, err, ErrMirrorRowMissing)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryListAppliesFilters(t *testing.T) {
	repo, mock, cleanup := newAnalyticsRepoMock(t)
	defer cleanup()

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"request_id", "user_type", "email", "department", "program", "country", "city", "school", "status", "created_at", "updated_at"}).
		AddRow("req-1", "student", "s@uni.edu", "CS", "BSCS", nil, nil, nil, "pending", from.Add(time.Hour), nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM requesters_analytics WHERE created_at >= $1 AND status = $2 ORDER BY created_at DESC")).
		WithArgs(from, models.RequestStatusPending).
		WillReturnRows(rows)

	records, err := repo.List(context.Background(), models.AnalyticsFilter{From: &from, Status: models.RequestStatusPending})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "req-1", records[0].RequestID)
	require.NotNil(t, records[0].Department)
	assert.Equal(t, "CS", *records[0].Department)
	assert.Nil(t, records[0].Country)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositorySummary(t *testing.T) {
	repo, mock, cleanup := newAnalyticsRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"user_type", "status", "total"}).
		AddRow("guest", "approved", 2).
		AddRow("student", "pending", 5)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_type, status, COUNT(*) AS total FROM requesters_analytics GROUP BY user_type, status")).
		WillReturnRows(rows)

	buckets, err := repo.Summary(context.Background(), models.AnalyticsFilter{})
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, models.UserTypeStudent, buckets[1].UserType)
	assert.Equal(t, 5, buckets[1].Total)
	require.NoError(t, mock.ExpectationsWereMet())
}
