package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/docaccess-api/internal/models"
)

const (
	requestsCollection        = "requests"
	requestsArchiveCollection = "requests_archive"
)

// ErrRequestNotPending is returned by Resolve when the conditional update matched nothing.
var ErrRequestNotPending = errors.New("request is not pending")

// RequestRepository stores access requests in MongoDB.
type RequestRepository struct {
	coll    *mongo.Collection
	archive *mongo.Collection
}

// NewRequestRepository constructs the repository over db.
func NewRequestRepository(db *mongo.Database) *RequestRepository {
	return &RequestRepository{
		coll:    db.Collection(requestsCollection),
		archive: db.Collection(requestsArchiveCollection),
	}
}

// EnsureIndexes creates the indexes used by listing and archival.
func (r *RequestRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "updatedAt", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("ensure request indexes: %w", err)
	}
	return nil
}

// Create inserts a new request, assigning id, status and timestamps when unset.
func (r *RequestRepository) Create(ctx context.Context, req *models.Request) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.CreatedAt
	}
	if _, err := r.coll.InsertOne(ctx, req); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// GetByID fetches a request. A missing id yields mongo.ErrNoDocuments.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.Request, error) {
	var req models.Request
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests matching the filter, newest first, with the total match count.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.DocumentID != "" {
		query["document_id"] = filter.DocumentID
	}
	if filter.Email != "" {
		query["requester.email"] = filter.Email
	}

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}

	page, size := normalisePage(filter.Page, filter.PageSize)
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * size)).
		SetLimit(int64(size))
	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	requests := make([]models.Request, 0)
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, 0, fmt.Errorf("decode requests: %w", err)
	}
	return requests, int(total), nil
}

// Resolve applies the pending -> resolved transition only if the request is still pending
// and returns the updated document. Concurrent callers race on the status predicate; the
// losers get ErrRequestNotPending.
func (r *RequestRepository) Resolve(ctx context.Context, id string, res models.RequestResolution) (*models.Request, error) {
	if res.UpdatedAt.IsZero() {
		res.UpdatedAt = time.Now().UTC()
	}
	set := bson.M{
		"status":      res.Status,
		"deanRemarks": res.DeanRemarks,
		"updatedAt":   res.UpdatedAt,
	}
	if len(res.ApprovedChapters) > 0 {
		set["approvedChapters"] = res.ApprovedChapters
	}
	if res.ObjectKey != "" {
		set["objectKey"] = res.ObjectKey
	}
	if res.ReviewedBy != "" {
		set["reviewedBy"] = res.ReviewedBy
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Request
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": models.RequestStatusPending},
		bson.M{"$set": set},
		opts,
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRequestNotPending
	}
	if err != nil {
		return nil, fmt.Errorf("resolve request: %w", err)
	}
	return &updated, nil
}

// ArchiveBatch copies up to limit requests last updated before cutoff into the archive
// collection and removes them from the live collection. Documents already present in the
// archive from an interrupted run are tolerated.
func (r *RequestRepository) ArchiveBatch(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 500
	}
	cursor, err := r.coll.Find(ctx,
		bson.M{"updatedAt": bson.M{"$lt": cutoff}},
		options.Find().SetSort(bson.D{{Key: "updatedAt", Value: 1}}).SetLimit(int64(limit)),
	)
	if err != nil {
		return 0, fmt.Errorf("find stale requests: %w", err)
	}
	var stale []bson.M
	if err := cursor.All(ctx, &stale); err != nil {
		return 0, fmt.Errorf("decode stale requests: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, len(stale))
	ids := make([]interface{}, len(stale))
	for i, doc := range stale {
		docs[i] = doc
		ids[i] = doc["_id"]
	}
	if _, err := r.archive.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil && !mongo.IsDuplicateKeyError(err) {
		return 0, fmt.Errorf("copy requests to archive: %w", err)
	}

	res, err := r.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("delete archived requests: %w", err)
	}
	return res.DeletedCount, nil
}

func normalisePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
