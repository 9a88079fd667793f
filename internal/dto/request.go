package dto

import (
	"encoding/json"
	"time"
)

// SubmitRequestResponse is returned by POST /requests.
type SubmitRequestResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

// RespondRequest captures the JSON body of POST /requests/:id/respond. Multipart
// submissions carry the same fields as form values plus an optional "pdf" file.
type RespondRequest struct {
	Status           string          `json:"status"`
	DeanRemarks      string          `json:"deanRemarks"`
	ApprovedChapters json.RawMessage `json:"approvedChapters,omitempty"`
}

// RespondResponse is returned after a successful decision.
type RespondResponse struct {
	Message      string     `json:"message"`
	PresignedURL string     `json:"presignedUrl,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// SubmitErrorResponse is the flat body of a rejected submission.
type SubmitErrorResponse struct {
	Error string `json:"error"`
}

// RateLimitedResponse is the body of a 429 on submission.
type RateLimitedResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}
