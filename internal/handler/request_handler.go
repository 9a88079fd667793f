package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docaccess-api/internal/dto"
	"github.com/noah-isme/docaccess-api/internal/models"
	"github.com/noah-isme/docaccess-api/internal/service"
	appErrors "github.com/noah-isme/docaccess-api/pkg/errors"
	"github.com/noah-isme/docaccess-api/pkg/response"
)

const (
	artifactField     = "pdf"
	maxArtifactSize   = 25 << 20
	maxSubmissionSize = 1 << 20
)

type requestService interface {
	Submit(ctx context.Context, draft *models.RequestDraft) (*models.Request, error)
	Get(ctx context.Context, id string) (*models.Request, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.Request, *models.Pagination, error)
	Resolve(ctx context.Context, id string, input service.ResolveInput) (*service.Resolution, error)
}

type submissionValidator interface {
	Validate(raw []byte) (*models.RequestDraft, error)
}

type signedFileOpener interface {
	OpenSigned(token string) (*os.File, string, time.Time, error)
}

// RequestHandler serves the public submission endpoint and the reviewer surface.
type RequestHandler struct {
	requests  requestService
	validator submissionValidator
	files     signedFileOpener
}

// NewRequestHandler constructs the handler. files may be nil when artifacts are served by
// the object store directly.
func NewRequestHandler(requests requestService, validator submissionValidator, files signedFileOpener) *RequestHandler {
	return &RequestHandler{requests: requests, validator: validator, files: files}
}

// Create godoc
// @Summary Submit a document access request
// @Tags Requests
// @Accept json
// @Produce json
// @Success 201 {object} dto.SubmitRequestResponse
// @Failure 400 {object} dto.SubmitErrorResponse
// @Failure 413 {object} dto.SubmitErrorResponse
// @Failure 429 {object} dto.RateLimitedResponse
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSubmissionSize)
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rejectSubmission(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes.", tooLarge.Limit))
			return
		}
		rejectSubmission(c, http.StatusBadRequest, "Unable to read request body.")
		return
	}

	draft, err := h.validator.Validate(raw)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			rejectSubmission(c, http.StatusBadRequest, verr.Message)
			return
		}
		response.Error(c, err)
		return
	}

	created, err := h.requests.Submit(c.Request.Context(), draft)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Plain(c, http.StatusCreated, dto.SubmitRequestResponse{Message: "Request submitted", RequestID: created.ID})
}

// rejectSubmission writes the flat {error} body public form clients expect.
func rejectSubmission(c *gin.Context, status int, message string) {
	c.Abort()
	response.Plain(c, status, dto.SubmitErrorResponse{Error: message})
}

// Respond godoc
// @Summary Approve or reject a pending request
// @Tags Requests
// @Accept json,mpfd
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} dto.RespondResponse
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /requests/{id}/respond [post]
func (h *RequestHandler) Respond(c *gin.Context) {
	input, err := parseResolveInput(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	input.ReviewedBy = reviewerFromContext(c)

	result, err := h.requests.Resolve(c.Request.Context(), c.Param("id"), *input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Plain(c, http.StatusOK, dto.RespondResponse{
		Message:      fmt.Sprintf("Request %s", result.Status),
		PresignedURL: result.DownloadURL,
		ExpiresAt:    result.ExpiresAt,
	})
}

// Get godoc
// @Summary Fetch a request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	req, err := h.requests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// List godoc
// @Summary List requests
// @Tags Requests
// @Produce json
// @Param status query string false "pending, approved or rejected"
// @Param documentId query string false "Document ID"
// @Param email query string false "Requester email"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		response.Error(c, err)
		return
	}
	pageSize, err := queryInt(c, "pageSize")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.RequestFilter{
		Status:     models.RequestStatus(strings.ToLower(c.Query("status"))),
		DocumentID: c.Query("documentId"),
		Email:      c.Query("email"),
		Page:       page,
		PageSize:   pageSize,
	}

	items, pagination, err := h.requests.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Download godoc
// @Summary Download an approved document through a signed link
// @Tags Requests
// @Produce application/pdf
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Router /requests/files [get]
func (h *RequestHandler) Download(c *gin.Context) {
	if h.files == nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}

	file, key, _, err := h.files.OpenSigned(token)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "document not found"))
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "download link is invalid or expired"))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.WrapAs(err, appErrors.ErrInternal, "unable to read document"))
		return
	}
	name := path.Base(key)
	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("Cache-Control", "private, no-store")
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), file)
}

func parseResolveInput(c *gin.Context) (*service.ResolveInput, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		return parseMultipartResolve(c)
	}

	var body dto.RespondRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid request body")
	}
	chapters, err := decodeApprovedChapters(body.ApprovedChapters)
	if err != nil {
		return nil, err
	}
	return &service.ResolveInput{
		Status:           models.RequestStatus(strings.ToLower(strings.TrimSpace(body.Status))),
		DeanRemarks:      body.DeanRemarks,
		ApprovedChapters: chapters,
	}, nil
}

func parseMultipartResolve(c *gin.Context) (*service.ResolveInput, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxArtifactSize+(1<<20))
	if err := c.Request.ParseMultipartForm(maxArtifactSize); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid multipart body")
	}

	input := &service.ResolveInput{
		Status:      models.RequestStatus(strings.ToLower(strings.TrimSpace(c.PostForm("status")))),
		DeanRemarks: c.PostForm("deanRemarks"),
	}
	chapters, err := formChapters(c.PostFormArray("approvedChapters"))
	if err != nil {
		return nil, err
	}
	input.ApprovedChapters = chapters

	header, err := c.FormFile(artifactField)
	if errors.Is(err, http.ErrMissingFile) {
		return input, nil
	}
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid pdf upload")
	}
	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid pdf upload")
	}
	defer file.Close()

	body, err := io.ReadAll(file)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid pdf upload")
	}
	input.Artifact = body
	input.ArtifactContentType = header.Header.Get("Content-Type")
	if input.ArtifactContentType == "" {
		input.ArtifactContentType = "application/pdf"
	}
	return input, nil
}

// formChapters accepts repeated fields, a JSON array or a comma separated list.
func formChapters(values []string) ([]string, error) {
	if len(values) == 1 {
		single := strings.TrimSpace(values[0])
		if strings.HasPrefix(single, "[") {
			return decodeApprovedChapters(json.RawMessage(single))
		}
		values = strings.Split(single, ",")
	}
	return service.NormalizeChapters(values), nil
}

func decodeApprovedChapters(raw json.RawMessage) ([]string, error) {
	chapters, err := service.DecodeChapters(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "approvedChapters must be an array of strings or numbers")
	}
	return chapters, nil
}
