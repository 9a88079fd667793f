package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/docaccess-api/internal/models"
	"github.com/noah-isme/docaccess-api/internal/repository"
	appErrors "github.com/noah-isme/docaccess-api/pkg/errors"
	"github.com/noah-isme/docaccess-api/pkg/export"
)

// Export formats accepted by the reporting endpoint.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type analyticsReader interface {
	List(ctx context.Context, filter models.AnalyticsFilter) ([]models.MirrorRecord, error)
	Summary(ctx context.Context, filter models.AnalyticsFilter) ([]models.AnalyticsBucket, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportFile is a rendered report ready to stream.
type ExportFile struct {
	Name        string
	ContentType string
	Body        []byte
}

// AnalyticsService reports over the analytics mirror. Figures may lag the request store.
type AnalyticsService struct {
	repo      analyticsReader
	cache     summaryCache
	cacheTTL  time.Duration
	renderers map[string]datasetRenderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewAnalyticsService constructs the service with CSV and PDF renderers. cache may be nil;
// a non-positive ttl disables summary caching.
func NewAnalyticsService(repo analyticsReader, cache summaryCache, cacheTTL time.Duration, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		renderers: map[string]datasetRenderer{
			ExportFormatCSV: export.NewCSVExporter(),
			ExportFormatPDF: export.NewPDFExporter(),
		},
		logger: logger,
		now:    time.Now,
	}
}

// Summary counts mirrored requests by status and user type. The boolean reports whether
// the figures came from cache. Cache failures fall through to the database.
func (s *AnalyticsService) Summary(ctx context.Context, filter models.AnalyticsFilter) (*models.AnalyticsSummary, bool, error) {
	if err := validateAnalyticsFilter(filter); err != nil {
		return nil, false, err
	}

	useCache := s.cache != nil && s.cacheTTL > 0
	cacheKey := summaryCacheKey(filter)
	if useCache {
		var cached models.AnalyticsSummary
		err := s.cache.Get(ctx, cacheKey, &cached)
		if err == nil {
			return &cached, true, nil
		}
		if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn("analytics cache read failed", zap.Error(err))
		}
	}

	buckets, err := s.repo.Summary(ctx, filter)
	if err != nil {
		return nil, false, appErrors.WrapAs(err, appErrors.ErrUpstreamUnavailable, "analytics store unavailable")
	}
	summary := &models.AnalyticsSummary{
		ByStatus:    make(map[models.RequestStatus]int),
		ByUserType:  make(map[models.UserType]int),
		Buckets:     buckets,
		GeneratedAt: s.now().UTC(),
	}
	for _, b := range buckets {
		summary.Total += b.Total
		summary.ByStatus[b.Status] += b.Total
		summary.ByUserType[b.UserType] += b.Total
	}

	if useCache {
		if err := s.cache.Set(ctx, cacheKey, summary, s.cacheTTL); err != nil {
			s.logger.Warn("analytics cache write failed", zap.Error(err))
		}
	}
	return summary, false, nil
}

func summaryCacheKey(filter models.AnalyticsFilter) string {
	return strings.Join([]string{
		"summary",
		formatFilterTime(filter.From),
		formatFilterTime(filter.To),
		string(filter.Status),
		string(filter.UserType),
	}, ":")
}

func formatFilterTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return strconv.FormatInt(t.Unix(), 10)
}

// Export renders mirrored rows as CSV or PDF.
func (s *AnalyticsService) Export(ctx context.Context, filter models.AnalyticsFilter, format string) (*ExportFile, error) {
	renderer, ok := s.renderers[strings.ToLower(format)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if err := validateAnalyticsFilter(filter); err != nil {
		return nil, err
	}
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstreamUnavailable, "analytics store unavailable")
	}

	body, err := renderer.Render(mirrorDataset(records))
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to render export")
	}
	s.logger.Info("analytics export rendered", zap.String("format", renderer.Extension()), zap.Int("rows", len(records)))
	return &ExportFile{
		Name:        fmt.Sprintf("requests-%s.%s", s.now().UTC().Format("20060102-150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

func validateAnalyticsFilter(filter models.AnalyticsFilter) error {
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return appErrors.Clone(appErrors.ErrValidation, "from must be before to")
	}
	if filter.Status != "" && filter.Status != models.RequestStatusPending && !filter.Status.IsDecision() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown status")
	}
	if filter.UserType != "" && !filter.UserType.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown userType")
	}
	return nil
}

func mirrorDataset(records []models.MirrorRecord) export.Dataset {
	data := export.Dataset{
		Title: "Document access requests",
		Columns: []export.Column{
			{Key: "request_id", Label: "Request"},
			{Key: "user_type", Label: "User type"},
			{Key: "email", Label: "Email"},
			{Key: "department", Label: "Department"},
			{Key: "program", Label: "Program"},
			{Key: "country", Label: "Country"},
			{Key: "city", Label: "City"},
			{Key: "school", Label: "School"},
			{Key: "status", Label: "Status"},
			{Key: "created_at", Label: "Created"},
			{Key: "updated_at", Label: "Updated"},
		},
		Rows: make([]map[string]string, 0, len(records)),
	}
	for _, rec := range records {
		row := map[string]string{
			"request_id": rec.RequestID,
			"user_type":  string(rec.UserType),
			"email":      rec.Email,
			"department": deref(rec.Department),
			"program":    deref(rec.Program),
			"country":    deref(rec.Country),
			"city":       deref(rec.City),
			"school":     deref(rec.School),
			"status":     string(rec.Status),
			"created_at": rec.CreatedAt.UTC().Format(time.RFC3339),
		}
		if rec.UpdatedAt != nil {
			row["updated_at"] = rec.UpdatedAt.UTC().Format(time.RFC3339)
		}
		data.Rows = append(data.Rows, row)
	}
	return data
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
