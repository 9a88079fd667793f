package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/noah-isme/docaccess-api/internal/models"
)

func requestDoc(t *testing.T, req models.Request) bson.D {
	t.Helper()
	raw, err := bson.Marshal(req)
	require.NoError(t, err)
	var doc bson.D
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func sampleRequest() models.Request {
	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	return models.Request{
		ID:                "req-1",
		DocumentID:        "2025-0001",
		UserType:          models.UserTypeGuest,
		Requester:         models.Requester{Email: "a@gmail.com"},
		ChaptersRequested: []string{"1", "2"},
		Purpose:           "research study",
		Status:            models.RequestStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestRequestRepositoryCreate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("assigns defaults", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo := NewRequestRepository(mt.DB)

		req := &models.Request{DocumentID: "2025-0001", Requester: models.Requester{Email: "a@gmail.com"}}
		require.NoError(t, repo.Create(context.Background(), req))
		assert.NotEmpty(t, req.ID)
		assert.Equal(t, models.RequestStatusPending, req.Status)
		assert.Equal(t, req.CreatedAt, req.UpdatedAt)
	})

	mt.Run("propagates write errors", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}))
		repo := NewRequestRepository(mt.DB)

		err := repo.Create(context.Background(), &models.Request{ID: "req-1"})
		require.Error(t, err)
		assert.True(t, mongo.IsDuplicateKeyError(err))
	})
}

func TestRequestRepositoryGetByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + requestsCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, requestDoc(t, sampleRequest())))
		repo := NewRequestRepository(mt.DB)

		req, err := repo.GetByID(context.Background(), "req-1")
		require.NoError(t, err)
		assert.Equal(t, "2025-0001", req.DocumentID)
		assert.Equal(t, []string{"1", "2"}, req.ChaptersRequested)
		assert.Equal(t, time.UTC, req.CreatedAt.Location())
	})

	mt.Run("missing", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + requestsCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		repo := NewRequestRepository(mt.DB)

		_, err := repo.GetByID(context.Background(), "nope")
		require.ErrorIs(t, err, mongo.ErrNoDocuments)
	})
}

func TestRequestRepositoryList(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("pending page", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + requestsCollection
		second := sampleRequest()
		second.ID = "req-2"
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(2)}}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, requestDoc(t, sampleRequest()), requestDoc(t, second)),
		)
		repo := NewRequestRepository(mt.DB)

		items, total, err := repo.List(context.Background(), models.RequestFilter{Status: models.RequestStatusPending})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, items, 2)
		assert.Equal(t, "req-2", items[1].ID)
	})
}

func TestRequestRepositoryResolve(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("pending request transitions", func(mt *mtest.T) {
		resolved := sampleRequest()
		resolved.Status = models.RequestStatusApproved
		resolved.DeanRemarks = "ok"
		resolved.ObjectKey = "approved-requests/req-1-1.pdf"
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: requestDoc(t, resolved)}))
		repo := NewRequestRepository(mt.DB)

		got, err := repo.Resolve(context.Background(), "req-1", models.RequestResolution{
			Status:      models.RequestStatusApproved,
			DeanRemarks: "ok",
			ObjectKey:   resolved.ObjectKey,
		})
		require.NoError(t, err)
		assert.Equal(t, models.RequestStatusApproved, got.Status)
		assert.Equal(t, resolved.ObjectKey, got.ObjectKey)

		started := mt.GetStartedEvent()
		require.NotNil(t, started)
		assert.Equal(t, "findAndModify", started.CommandName)
		query := started.Command.Lookup("query").Document()
		assert.Equal(t, "pending", query.Lookup("status").StringValue())
	})

	mt.Run("already resolved", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))
		repo := NewRequestRepository(mt.DB)

		_, err := repo.Resolve(context.Background(), "req-1", models.RequestResolution{Status: models.RequestStatusRejected})
		require.ErrorIs(t, err, ErrRequestNotPending)
	})
}

func TestRequestRepositoryArchiveBatch(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("moves stale requests", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + requestsCollection
		stale := sampleRequest()
		other := sampleRequest()
		other.ID = "req-2"
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, requestDoc(t, stale), requestDoc(t, other)),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(2)}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(2)}),
		)
		repo := NewRequestRepository(mt.DB)

		moved, err := repo.ArchiveBatch(context.Background(), time.Now().UTC(), 100)
		require.NoError(t, err)
		assert.Equal(t, int64(2), moved)
	})

	mt.Run("nothing to archive", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + requestsCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		repo := NewRequestRepository(mt.DB)

		moved, err := repo.ArchiveBatch(context.Background(), time.Now().UTC(), 0)
		require.NoError(t, err)
		assert.Zero(t, moved)
	})
}
