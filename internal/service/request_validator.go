package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/docaccess-api/internal/models"
)

// ValidationRule names the check a submission failed.
type ValidationRule string

const (
	RulePayload          ValidationRule = "payload"
	RuleRequiredFields   ValidationRule = "required_fields"
	RuleRequesterEmail   ValidationRule = "requester_email"
	RuleUserType         ValidationRule = "user_type"
	RuleChaptersSequence ValidationRule = "chapters_requested"
)

// ValidationError reports the first rule a submission broke.
type ValidationError struct {
	Rule    ValidationRule
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

func invalid(rule ValidationRule, message string) *ValidationError {
	return &ValidationError{Rule: rule, Message: message}
}

type submissionPayload struct {
	DocumentID        json.RawMessage `json:"document_id"`
	DocID             json.RawMessage `json:"docId"`
	UserType          json.RawMessage `json:"userType"`
	Requester         json.RawMessage `json:"requester"`
	ChaptersRequested json.RawMessage `json:"chaptersRequested"`
	Purpose           json.RawMessage `json:"purpose"`
}

type requesterPayload struct {
	Email      json.RawMessage `json:"email"`
	Name       string          `json:"name"`
	Program    string          `json:"program"`
	Department string          `json:"department"`
	Country    string          `json:"country"`
	City       string          `json:"city"`
	School     string          `json:"school"`
	GroupID    json.RawMessage `json:"group_id"`
	LeaderName string          `json:"leader_name"`
}

// RequestValidator checks raw submissions in a fixed order and stops at the first failure.
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator constructs the validator.
func NewRequestValidator(validate *validator.Validate) *RequestValidator {
	if validate == nil {
		validate = validator.New()
	}
	return &RequestValidator{validate: validate}
}

// Validate turns a raw JSON body into a draft. Nothing is returned unless every rule passes:
// required fields, requester email, user type, then the chapters list shape.
func (v *RequestValidator) Validate(raw []byte) (*models.RequestDraft, error) {
	var payload submissionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, invalid(RulePayload, "request body must be a JSON object")
	}

	documentID := scalarString(payload.DocumentID)
	if documentID == "" {
		documentID = scalarString(payload.DocID)
	}
	userType := scalarString(payload.UserType)
	purpose := scalarString(payload.Purpose)
	if documentID == "" || userType == "" || purpose == "" || !isObject(payload.Requester) {
		return nil, invalid(RuleRequiredFields, "Missing required fields.")
	}

	var requester requesterPayload
	if err := json.Unmarshal(payload.Requester, &requester); err != nil {
		return nil, invalid(RuleRequiredFields, "requester must be an object with string fields")
	}
	email := scalarString(requester.Email)
	if !isString(requester.Email) || v.validate.Var(email, "required,email") != nil {
		return nil, invalid(RuleRequesterEmail, "Invalid or missing email.")
	}

	if v.validate.Var(userType, "oneof=student guest group") != nil {
		return nil, invalid(RuleUserType, "Invalid userType. Must be 'student', 'guest' or 'group'.")
	}

	chapters, err := chapterList(payload.ChaptersRequested)
	if err != nil {
		return nil, err
	}

	return &models.RequestDraft{
		DocumentID: documentID,
		UserType:   models.UserType(userType),
		Requester: models.Requester{
			Email:      email,
			Name:       strings.TrimSpace(requester.Name),
			Program:    strings.TrimSpace(requester.Program),
			Department: strings.TrimSpace(requester.Department),
			Country:    strings.TrimSpace(requester.Country),
			City:       strings.TrimSpace(requester.City),
			School:     strings.TrimSpace(requester.School),
			GroupID:    scalarString(requester.GroupID),
			LeaderName: strings.TrimSpace(requester.LeaderName),
		},
		ChaptersRequested: chapters,
		Purpose:           purpose,
	}, nil
}

// NormalizeChapters trims, drops blanks and de-duplicates while keeping first-seen order.
func NormalizeChapters(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, ch := range in {
		ch = strings.TrimSpace(ch)
		if ch == "" {
			continue
		}
		if _, dup := seen[ch]; dup {
			continue
		}
		seen[ch] = struct{}{}
		out = append(out, ch)
	}
	return out
}

func chapterList(raw json.RawMessage) ([]string, error) {
	if isAbsent(raw) {
		return []string{}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, invalid(RuleChaptersSequence, "chaptersRequested must be an array.")
	}
	chapters := make([]string, 0, len(items))
	for _, item := range items {
		value := scalarString(item)
		if value == "" && !isString(item) {
			return nil, invalid(RuleChaptersSequence, "chaptersRequested entries must be strings or numbers.")
		}
		chapters = append(chapters, value)
	}
	return NormalizeChapters(chapters), nil
}

// scalarString returns a trimmed string for JSON strings and numbers, "" otherwise.
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return ""
		}
		return n.String()
	}
	return ""
}

func isString(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func isAbsent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// DecodeChapters parses a JSON array of chapter names or numbers into normalised strings.
func DecodeChapters(raw json.RawMessage) ([]string, error) {
	return chapterList(raw)
}
