package models

import "time"

// MirrorRecord is the relational projection of a Request used for reporting.
type MirrorRecord struct {
	RequestID  string        `db:"request_id" json:"request_id"`
	UserType   UserType      `db:"user_type" json:"user_type"`
	Email      string        `db:"email" json:"email"`
	Department *string       `db:"department" json:"department,omitempty"`
	Program    *string       `db:"program" json:"program,omitempty"`
	Country    *string       `db:"country" json:"country,omitempty"`
	City       *string       `db:"city" json:"city,omitempty"`
	School     *string       `db:"school" json:"school,omitempty"`
	Status     RequestStatus `db:"status" json:"status"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  *time.Time    `db:"updated_at" json:"updated_at,omitempty"`
}

// MirrorRecordFromRequest denormalises a request into its mirror shape.
func MirrorRecordFromRequest(req *Request) MirrorRecord {
	return MirrorRecord{
		RequestID:  req.ID,
		UserType:   req.UserType,
		Email:      req.Requester.Email,
		Department: optional(req.Requester.Department),
		Program:    optional(req.Requester.Program),
		Country:    optional(req.Requester.Country),
		City:       optional(req.Requester.City),
		School:     optional(req.Requester.School),
		Status:     req.Status,
		CreatedAt:  req.CreatedAt,
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// AnalyticsFilter scopes mirror reporting queries by creation time.
type AnalyticsFilter struct {
	From     *time.Time
	To       *time.Time
	Status   RequestStatus
	UserType UserType
}

// AnalyticsBucket is one grouped count.
type AnalyticsBucket struct {
	UserType UserType      `db:"user_type" json:"user_type"`
	Status   RequestStatus `db:"status" json:"status"`
	Total    int           `db:"total" json:"total"`
}

// AnalyticsSummary aggregates mirror rows for dashboards.
type AnalyticsSummary struct {
	Total       int                   `json:"total"`
	ByStatus    map[RequestStatus]int `json:"by_status"`
	ByUserType  map[UserType]int      `json:"by_user_type"`
	Buckets     []AnalyticsBucket     `json:"buckets"`
	GeneratedAt time.Time             `json:"generated_at"`
}
